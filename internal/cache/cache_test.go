package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"BriefScanner/internal/domain"
)

func TestNegativeResultIsCached(t *testing.T) {
	t.Parallel()

	c := New()
	ctx := context.Background()

	_, ok := c.GetOrFetch(ctx, 42, func(context.Context) (domain.Item, error) {
		return domain.Item{}, errors.New("boom")
	})
	if ok {
		t.Fatalf("expected negative outcome")
	}

	var calls int32
	item, ok := c.GetOrFetch(ctx, 42, func(context.Context) (domain.Item, error) {
		atomic.AddInt32(&calls, 1)
		return domain.Item{ID: 42, Title: "late"}, nil
	})
	if ok || item.ID != 0 {
		t.Fatalf("expected cached negative, got %+v ok=%v", item, ok)
	}
	if calls != 0 {
		t.Fatalf("expected no new load, got %d", calls)
	}
	if s := c.Stats(); s.Loads != 1 || s.Negatives != 1 || s.Hits != 1 {
		t.Fatalf("unexpected stats: %+v", s)
	}
}

func TestPositiveResultIsCached(t *testing.T) {
	t.Parallel()

	c := New()
	var calls int32
	load := func(context.Context) (domain.Item, error) {
		atomic.AddInt32(&calls, 1)
		return domain.Item{ID: 7, Title: "seven"}, nil
	}

	for i := 0; i < 3; i++ {
		item, ok := c.GetOrFetch(context.Background(), 7, load)
		if !ok || item.Title != "seven" {
			t.Fatalf("unexpected outcome: %+v ok=%v", item, ok)
		}
	}
	if calls != 1 {
		t.Fatalf("expected a single load, got %d", calls)
	}
}

func TestConcurrentRequestsShareOneLoad(t *testing.T) {
	t.Parallel()

	c := New()
	var calls int32
	start := make(chan struct{})
	load := func(context.Context) (domain.Item, error) {
		atomic.AddInt32(&calls, 1)
		<-start
		return domain.Item{ID: 9, Title: "nine"}, nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := c.GetOrFetch(context.Background(), 9, load); !ok {
				t.Errorf("expected positive outcome")
			}
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(start)
	wg.Wait()

	if calls != 1 {
		t.Fatalf("expected one load for concurrent requests, got %d", calls)
	}
}

func TestDifferentIDsLoadInParallel(t *testing.T) {
	t.Parallel()

	c := New()
	var inFlight, peak int32
	release := make(chan struct{})
	load := func(context.Context) (domain.Item, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		<-release
		atomic.AddInt32(&inFlight, -1)
		return domain.Item{Title: "x"}, nil
	}

	var wg sync.WaitGroup
	for id := int64(1); id <= 3; id++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c.GetOrFetch(context.Background(), id, load)
		}(id)
	}
	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&peak) < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(release)
	wg.Wait()

	if peak != 3 {
		t.Fatalf("expected loads of distinct ids to overlap, peak=%d", peak)
	}
	if c.Len() != 3 {
		t.Fatalf("expected 3 entries, got %d", c.Len())
	}
}

func TestCancelledLoadIsNotCached(t *testing.T) {
	t.Parallel()

	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, ok := c.GetOrFetch(ctx, 5, func(ctx context.Context) (domain.Item, error) {
		return domain.Item{}, ctx.Err()
	}); ok {
		t.Fatalf("expected negative outcome")
	}
	if c.Len() != 0 {
		t.Fatalf("cancelled load must not be cached")
	}
}
