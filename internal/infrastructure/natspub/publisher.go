// Package natspub publishes reports on a NATS subject.
package natspub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"

	"BriefScanner/internal/ports"
)

// Payload is the JSON document published for every report.
type Payload struct {
	Title   string    `json:"title"`
	Content string    `json:"content"`
	SentAt  time.Time `json:"sent_at"`
}

// headerCarrier adapts nats.Msg headers for OTel TextMapCarrier.
type headerCarrier nats.Msg

func (c *headerCarrier) Get(key string) string {
	if c.Header == nil {
		return ""
	}
	return c.Header.Get(key)
}

func (c *headerCarrier) Set(key, val string) {
	if c.Header == nil {
		c.Header = make(nats.Header)
	}
	c.Header.Set(key, val)
}

func (c *headerCarrier) Keys() []string {
	if c.Header == nil {
		return nil
	}
	keys := make([]string, 0, len(c.Header))
	for k := range c.Header {
		keys = append(keys, k)
	}
	return keys
}

// Publisher implements ports.Notifier over a NATS connection.
type Publisher struct {
	conn    *nats.Conn
	subject string
	now     func() time.Time
}

var _ ports.Notifier = (*Publisher)(nil)

// Connect dials url and returns a publisher bound to subject.
func Connect(url, subject string) (*Publisher, error) {
	conn, err := nats.Connect(url, nats.Name("briefscanner"), nats.Timeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("nats connect %s: %w", url, err)
	}
	return New(conn, subject), nil
}

// New wraps an existing connection.
func New(conn *nats.Conn, subject string) *Publisher {
	return &Publisher{conn: conn, subject: subject, now: time.Now}
}

// Notify publishes the report and waits for the server to acknowledge the flush.
func (p *Publisher) Notify(ctx context.Context, msg ports.Message) error {
	data, err := json.Marshal(Payload{Title: msg.Title, Content: msg.Content, SentAt: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	out := &nats.Msg{Subject: p.subject, Data: data}
	otel.GetTextMapPropagator().Inject(ctx, (*headerCarrier)(out))
	if err := p.conn.PublishMsg(out); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}
	return nil
}

// Close drains the connection.
func (p *Publisher) Close() error {
	return p.conn.Drain()
}
