package summarize

import (
	"time"

	"BriefScanner/internal/ports"
)

// Backoff is the retry rule for one failure class.
type Backoff struct {
	Retry bool
	Base  time.Duration
}

// Policy maps failure classes to backoff rules.
type Policy struct {
	MaxAttempts int
	MaxDelay    time.Duration
	Rules       map[ports.FailureClass]Backoff
}

// DefaultPolicy gives up immediately on auth failures and backs off longest on
// rate limiting.
func DefaultPolicy(maxAttempts int) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return Policy{
		MaxAttempts: maxAttempts,
		MaxDelay:    30 * time.Second,
		Rules: map[ports.FailureClass]Backoff{
			ports.FailureAuth:      {Retry: false},
			ports.FailureRateLimit: {Retry: true, Base: 5 * time.Second},
			ports.FailureNetwork:   {Retry: true, Base: 2 * time.Second},
			ports.FailureOther:     {Retry: true, Base: time.Second},
		},
	}
}

// Delay returns the wait before retrying after the given zero-based attempt
// failed with class, and false when the class must not be retried.
func (p Policy) Delay(class ports.FailureClass, attempt int) (time.Duration, bool) {
	rule, ok := p.Rules[class]
	if !ok {
		rule = p.Rules[ports.FailureOther]
	}
	if !rule.Retry {
		return 0, false
	}
	d := rule.Base << uint(attempt)
	if p.MaxDelay > 0 && (d > p.MaxDelay || d <= 0) {
		d = p.MaxDelay
	}
	return d, true
}
