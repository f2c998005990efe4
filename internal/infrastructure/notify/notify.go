// Package notify combines notification sinks.
package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"BriefScanner/internal/ports"
)

// Named pairs a sink with the name used in logs.
type Named struct {
	Name     string
	Notifier ports.Notifier
}

// Multi fans a message out to every sink. Failures are logged and never retried.
type Multi struct {
	sinks  []Named
	logger *slog.Logger
}

var _ ports.Notifier = (*Multi)(nil)

// NewMulti builds a fan-out notifier.
func NewMulti(logger *slog.Logger, sinks ...Named) *Multi {
	if logger == nil {
		logger = slog.Default()
	}
	return &Multi{sinks: sinks, logger: logger}
}

// Len reports the number of configured sinks.
func (m *Multi) Len() int {
	return len(m.sinks)
}

// Notify delivers to every sink and returns an error only when all of them failed.
func (m *Multi) Notify(ctx context.Context, msg ports.Message) error {
	if len(m.sinks) == 0 {
		return nil
	}
	failed := 0
	for _, sink := range m.sinks {
		if err := sink.Notifier.Notify(ctx, msg); err != nil {
			failed++
			m.logger.Error("notification failed", "sink", sink.Name, "error", err)
			continue
		}
		m.logger.Info("notification sent", "sink", sink.Name)
	}
	if failed == len(m.sinks) {
		return fmt.Errorf("all %d notification sinks failed", failed)
	}
	return nil
}

// Log writes the report into the application log.
type Log struct {
	logger *slog.Logger
}

// NewLog builds a log sink.
func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger}
}

func (l *Log) Notify(_ context.Context, msg ports.Message) error {
	l.logger.Info("report", "title", msg.Title, "content", msg.Content)
	return nil
}

// Writer prints the report to w, as used by dry runs.
type Writer struct {
	w io.Writer
}

// NewWriter builds a writer sink.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Notify(_ context.Context, msg ports.Message) error {
	_, err := fmt.Fprintln(w.w, msg.Content)
	return err
}
