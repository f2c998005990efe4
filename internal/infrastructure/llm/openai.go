package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"BriefScanner/internal/config"
	"BriefScanner/internal/ports"
)

const minAPIKeyLength = 10

// Client implements ports.Completer against OpenAI-compatible chat APIs.
type Client struct {
	client *openai.Client
	logger *slog.Logger
}

var _ ports.Completer = (*Client)(nil)

// Usable reports whether cfg carries a key worth trying.
func Usable(cfg config.AIConfig) bool {
	key := strings.TrimSpace(cfg.APIKey)
	return len(key) >= minAPIKeyLength && key != "your_api_key"
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AIConfig, logger *slog.Logger) *Client {
	clientCfg := openai.DefaultConfig(strings.TrimSpace(cfg.APIKey))
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{client: openai.NewClientWithConfig(clientCfg), logger: logger}
}

// Complete sends the system and user messages and returns the first choice.
func (c *Client) Complete(ctx context.Context, req ports.CompletionRequest) (string, error) {
	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      false,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", &ports.CompletionError{Class: ports.FailureOther, Err: fmt.Errorf("no choices in completion")}
	}

	c.logger.Debug("completion done",
		"model", req.Model,
		"duration", time.Since(start),
		"prompt_tokens", resp.Usage.PromptTokens,
		"completion_tokens", resp.Usage.CompletionTokens)
	return resp.Choices[0].Message.Content, nil
}

func classify(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &ports.CompletionError{Class: classForStatus(apiErr.HTTPStatusCode), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &ports.CompletionError{Class: classForStatus(reqErr.HTTPStatusCode), Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &ports.CompletionError{Class: ports.FailureNetwork, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ports.CompletionError{Class: ports.FailureNetwork, Err: err}
	}
	return &ports.CompletionError{Class: ports.FailureOther, Err: err}
}

func classForStatus(status int) ports.FailureClass {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ports.FailureAuth
	case http.StatusTooManyRequests:
		return ports.FailureRateLimit
	case http.StatusRequestTimeout, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return ports.FailureNetwork
	default:
		return ports.FailureOther
	}
}
