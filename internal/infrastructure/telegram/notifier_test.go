package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"BriefScanner/internal/ports"
)

func TestNotifyPostsMessage(t *testing.T) {
	t.Parallel()

	var (
		mu    sync.Mutex
		path  string
		chat  string
		texts []string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		mu.Lock()
		defer mu.Unlock()
		path = r.URL.Path
		chat = r.PostForm.Get("chat_id")
		texts = append(texts, r.PostForm.Get("text"))
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	notifier := NewNotifier(server.URL, "123:abc", "42")
	if err := notifier.Notify(context.Background(), ports.Message{Title: "t", Content: "# Brief\n\nhello"}); err != nil {
		t.Fatalf("Notify error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if path != "/bot123:abc/sendMessage" {
		t.Fatalf("unexpected path %s", path)
	}
	if chat != "42" || len(texts) != 1 || texts[0] != "# Brief\n\nhello" {
		t.Fatalf("unexpected request: chat=%s texts=%q", chat, texts)
	}
}

func TestNotifyReportsHTTPFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewNotifier(server.URL, "token", "chat").Notify(context.Background(), ports.Message{Content: "x"})
	if err == nil {
		t.Fatalf("expected error on 400 response")
	}
}

func TestNotifyMisconfigured(t *testing.T) {
	t.Parallel()

	if err := NewNotifier("", "", "").Notify(context.Background(), ports.Message{Content: "x"}); err == nil {
		t.Fatalf("expected error without credentials")
	}
}

func TestSplit(t *testing.T) {
	t.Parallel()

	text := strings.Repeat("line of text\n", 10)
	chunks := split(text, 30)
	if len(chunks) < 4 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	var rebuilt []string
	for _, c := range chunks {
		if utf8.RuneCountInString(c) > 30 {
			t.Fatalf("chunk too long: %q", c)
		}
		rebuilt = append(rebuilt, c)
	}
	if strings.Join(rebuilt, "\n") != strings.TrimRight(text, "\n") {
		t.Fatalf("chunks lost content: %q", rebuilt)
	}

	long := split(strings.Repeat("字", 25), 10)
	if len(long) != 3 || utf8.RuneCountInString(long[2]) != 5 {
		t.Fatalf("unexpected long-line split: %q", long)
	}
	if got := split("", 10); len(got) != 1 || got[0] != "" {
		t.Fatalf("unexpected empty split: %q", got)
	}
}
