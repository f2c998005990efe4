package notify

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"BriefScanner/internal/ports"
)

type recordingSink struct {
	err      error
	received []ports.Message
}

func (r *recordingSink) Notify(_ context.Context, msg ports.Message) error {
	r.received = append(r.received, msg)
	return r.err
}

func quiet() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMultiDeliversDespiteFailures(t *testing.T) {
	t.Parallel()

	broken := &recordingSink{err: errors.New("down")}
	healthy := &recordingSink{}
	multi := NewMulti(quiet(), Named{"broken", broken}, Named{"healthy", healthy})

	if err := multi.Notify(context.Background(), ports.Message{Title: "t", Content: "c"}); err != nil {
		t.Fatalf("expected success when one sink works, got %v", err)
	}
	if len(broken.received) != 1 || len(healthy.received) != 1 {
		t.Fatalf("every sink must be tried exactly once: %d %d", len(broken.received), len(healthy.received))
	}
}

func TestMultiAllFailed(t *testing.T) {
	t.Parallel()

	multi := NewMulti(quiet(), Named{"a", &recordingSink{err: errors.New("x")}}, Named{"b", &recordingSink{err: errors.New("y")}})
	if err := multi.Notify(context.Background(), ports.Message{}); err == nil {
		t.Fatalf("expected error when every sink fails")
	}
	if err := NewMulti(quiet()).Notify(context.Background(), ports.Message{}); err != nil {
		t.Fatalf("no sinks is not an error: %v", err)
	}
}

func TestWriterAndLog(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	if err := NewWriter(&out).Notify(context.Background(), ports.Message{Content: "# report"}); err != nil {
		t.Fatalf("Writer error: %v", err)
	}
	if out.String() != "# report\n" {
		t.Fatalf("unexpected output %q", out.String())
	}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	if err := NewLog(logger).Notify(context.Background(), ports.Message{Title: "Brief", Content: "body"}); err != nil {
		t.Fatalf("Log error: %v", err)
	}
	if !strings.Contains(logs.String(), "title=Brief") {
		t.Fatalf("unexpected log output %q", logs.String())
	}
}
