// Package ntfy publishes reports to an ntfy topic.
package ntfy

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"BriefScanner/internal/ports"
)

// Notifier posts reports to ntfy.sh or a self-hosted ntfy server.
type Notifier struct {
	url    string
	token  string
	client *http.Client
}

var _ ports.Notifier = (*Notifier)(nil)

// New creates a notifier. Topic can be a bare topic name, expanded against
// server, or a full URL.
func New(server, topic, token string) *Notifier {
	url := topic
	if !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		if server == "" {
			server = "https://ntfy.sh"
		}
		url = strings.TrimSuffix(server, "/") + "/" + topic
	}
	return &Notifier{url: url, token: token, client: &http.Client{Timeout: 10 * time.Second}}
}

// Notify posts the report body with its title as a Markdown message.
func (n *Notifier) Notify(ctx context.Context, msg ports.Message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, strings.NewReader(msg.Content))
	if err != nil {
		return fmt.Errorf("ntfy: build request: %w", err)
	}
	req.Header.Set("Title", msg.Title)
	req.Header.Set("Tags", "newspaper")
	req.Header.Set("Markdown", "yes")
	if n.token != "" {
		req.Header.Set("Authorization", "Bearer "+n.token)
	}
	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("ntfy: post: %w", err)
	}
	resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("ntfy: HTTP %d", resp.StatusCode)
	}
	return nil
}
