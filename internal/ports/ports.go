package ports

import (
	"context"
	"errors"
	"time"

	"BriefScanner/internal/domain"
)

// FetchRequest describes a single content retrieval.
type FetchRequest struct {
	URL     string
	Referer string
	Timeout time.Duration
}

// Fetcher retrieves raw content bytes. Implementations never retry.
type Fetcher interface {
	Fetch(ctx context.Context, req FetchRequest) ([]byte, error)
}

// CompletionRequest is a single chat completion call with a fixed instruction.
type CompletionRequest struct {
	Model       string
	System      string
	User        string
	Temperature float32
	TopP        float32
}

// Completer produces one completion text for a request.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// FailureClass groups completion failures by how they should be handled.
type FailureClass int

const (
	FailureOther FailureClass = iota
	FailureAuth
	FailureRateLimit
	FailureNetwork
)

func (c FailureClass) String() string {
	switch c {
	case FailureAuth:
		return "auth"
	case FailureRateLimit:
		return "rate_limit"
	case FailureNetwork:
		return "network"
	default:
		return "other"
	}
}

// CompletionError carries the failure class decided by the completer adapter.
type CompletionError struct {
	Class FailureClass
	Err   error
}

func (e *CompletionError) Error() string {
	return e.Class.String() + ": " + e.Err.Error()
}

func (e *CompletionError) Unwrap() error {
	return e.Err
}

// ClassOf extracts the failure class of err; unclassified errors are FailureOther.
func ClassOf(err error) FailureClass {
	var ce *CompletionError
	if errors.As(err, &ce) {
		return ce.Class
	}
	return FailureOther
}

// Message is what notification sinks receive.
type Message struct {
	Title   string
	Content string
}

// Notifier delivers a rendered report to a channel.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
}

// Archive records delivered digests for audit. It is never read back by the pipeline.
type Archive interface {
	Record(ctx context.Context, runID string, report domain.Report) error
}

// Scheduler controls when jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
