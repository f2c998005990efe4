package scheduler

import (
	"context"
	"sync"
	"time"

	"BriefScanner/internal/ports"
)

// CronScheduler fires a job at every minute matched by a cron expression.
type CronScheduler struct {
	schedule *Schedule
	loc      *time.Location
	now      func() time.Time
	after    func(time.Duration) <-chan time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

var _ ports.Scheduler = (*CronScheduler)(nil)

// NewCronScheduler parses spec and evaluates it in loc.
func NewCronScheduler(spec string, loc *time.Location) (*CronScheduler, error) {
	schedule, err := Parse(spec)
	if err != nil {
		return nil, err
	}
	if loc == nil {
		loc = time.Local
	}
	return &CronScheduler{schedule: schedule, loc: loc, now: time.Now, after: time.After}, nil
}

// Next reports the next fire time after from.
func (c *CronScheduler) Next(from time.Time) time.Time {
	return c.schedule.Next(from.In(c.loc))
}

// Start runs job in a background goroutine until ctx is done or Stop is called.
// Jobs run sequentially; a slow job delays but never overlaps the next one.
func (c *CronScheduler) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stop != nil {
		return nil
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	c.stop, c.done = stop, done

	go func() {
		defer close(done)
		for {
			now := c.now().In(c.loc)
			next := c.schedule.Next(now)
			if next.IsZero() {
				return
			}
			select {
			case <-c.after(next.Sub(now)):
				job(next)
			case <-ctx.Done():
				return
			case <-stop:
				return
			}
		}
	}()

	return nil
}

// Stop halts the loop and waits for a running job to return.
func (c *CronScheduler) Stop(ctx context.Context) error {
	c.mu.Lock()
	stop, done := c.stop, c.done
	c.stop, c.done = nil, nil
	c.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
