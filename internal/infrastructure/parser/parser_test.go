package parser

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"BriefScanner/internal/config"
	"BriefScanner/internal/infrastructure/fetcher"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/scanner"
)

type mapFetcher struct {
	pages map[string]string
}

func (m mapFetcher) Fetch(_ context.Context, req ports.FetchRequest) ([]byte, error) {
	page, ok := m.pages[req.URL]
	if !ok {
		return nil, &fetcher.Error{Kind: fetcher.KindStatus, Status: http.StatusNotFound, URL: req.URL}
	}
	return []byte(page), nil
}

var longBody = strings.Repeat("人工智能模型发布", 25)

func aibaseConfig(base string) config.SourceConfig {
	return config.SourceConfig{
		Name:    "aibase",
		Kind:    config.KindAIBase,
		ListURL: base + "/zh/news/",
		ItemURL: base + "/zh/news/%d",
		Referer: base + "/zh/news/",
	}
}

func aibasePage(title, date, body string) string {
	return fmt.Sprintf(`<html><body><h1>%s</h1><div class="text-surface-500">%s</div>
<div class="post-content"><p>%s</p>

<p>  </p></div></body></html>`, title, date, body)
}

func TestAIBaseParse(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("SGT", 8*3600)
	source := NewAIBaseSource(aibaseConfig("https://example.org"), nil, loc, 0)

	item, err := source.Parse([]byte(aibasePage(" 新模型发布 ", "2025年10月18日 11:54", longBody)), 101, "https://example.org/zh/news/101")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if item.Title != "新模型发布" || item.ID != 101 || item.Source != "aibase" {
		t.Fatalf("unexpected item: %+v", item)
	}
	want := time.Date(2025, 10, 18, 11, 54, 0, 0, loc)
	if !item.PublishedAt.Equal(want) {
		t.Fatalf("published = %v, want %v", item.PublishedAt, want)
	}
	if item.Body != longBody {
		t.Fatalf("body not normalized: %q", item.Body)
	}
	if !item.Valid() {
		t.Fatalf("expected valid item")
	}
}

func TestAIBaseParseRejections(t *testing.T) {
	t.Parallel()

	source := NewAIBaseSource(aibaseConfig("https://example.org"), nil, time.UTC, 0)
	tests := []struct {
		name string
		page string
		want error
	}{
		{"missing title", aibasePage("", "2025年10月18日", strings.Repeat("a", 200)), scanner.ErrNoTitle},
		{"no timestamp", aibasePage("Title", "yesterday", longBody), scanner.ErrNoTimestamp},
		{"invalid localized date", aibasePage("Title", "2025年2月30日", longBody), scanner.ErrNoTimestamp},
		{"short body", aibasePage("Title", "2025年10月18日", "too short"), scanner.ErrBodyTooShort},
		{"empty page", "", scanner.ErrNotFound},
	}
	for _, tt := range tests {
		_, err := source.Parse([]byte(tt.page), 1, "u")
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestAIBaseParseLatinDateFallback(t *testing.T) {
	t.Parallel()

	source := NewAIBaseSource(aibaseConfig("https://example.org"), nil, time.UTC, 0)
	page := `<html><body><h1>Title</h1><span class="meta">Published Aug 26, 2025</span>
<div class="post-content">` + longBody + `</div></body></html>`

	item, err := source.Parse([]byte(page), 7, "u")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if want := time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC); !item.PublishedAt.Equal(want) {
		t.Fatalf("published = %v, want %v", item.PublishedAt, want)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want time.Time
		ok   bool
	}{
		{"2024年10月18日 11:54", time.Date(2024, 10, 18, 11, 54, 0, 0, time.UTC), true},
		{"发布于 2024年1月2日", time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), true},
		{"Aug  6,   2025", time.Date(2025, 8, 6, 0, 0, 0, 0, time.UTC), true},
		{"Foo 6, 2025", time.Time{}, false},
		{"", time.Time{}, false},
	}
	for _, tt := range tests {
		got, ok := parseTimestamp(tt.text, time.UTC)
		if ok != tt.ok || !got.Equal(tt.want) {
			t.Errorf("parseTimestamp(%q) = %v, %v; want %v, %v", tt.text, got, ok, tt.want, tt.ok)
		}
	}
}

func TestAIBaseDiscover(t *testing.T) {
	t.Parallel()

	cfg := aibaseConfig("https://example.org")
	listing := `<a href="/zh/news/101">a</a><a href="/zh/news/detail/105.html">b</a><a href="/news/98">c</a>`
	source := NewAIBaseSource(cfg, mapFetcher{pages: map[string]string{cfg.ListURL: listing}}, time.UTC, 0)

	seed, err := source.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover error: %v", err)
	}
	if seed.Latest != 105 || len(seed.IDs) != 0 {
		t.Fatalf("unexpected seed: %+v", seed)
	}

	empty := NewAIBaseSource(cfg, mapFetcher{pages: map[string]string{cfg.ListURL: "<p>nothing</p>"}}, time.UTC, 0)
	if _, err := empty.Discover(context.Background()); err == nil {
		t.Fatalf("expected error for listing without ids")
	}

	broken := NewAIBaseSource(cfg, mapFetcher{}, time.UTC, 0)
	if _, err := broken.Discover(context.Background()); err == nil {
		t.Fatalf("expected error for unreachable listing")
	}
}

func TestAIBaseOverHTTP(t *testing.T) {
	t.Parallel()

	var referer string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/zh/news/":
			_, _ = w.Write([]byte(`<a href="/zh/news/42">latest</a>`))
		case "/zh/news/42":
			referer = r.Header.Get("Referer")
			_, _ = w.Write([]byte(aibasePage("Answer", "2025年10月18日", longBody)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := aibaseConfig(server.URL)
	source := NewAIBaseSource(cfg, fetcher.New(fetcher.Options{}), time.UTC, time.Second)

	seed, err := source.Discover(context.Background())
	if err != nil || seed.Latest != 42 {
		t.Fatalf("Discover = %+v, %v", seed, err)
	}
	url := source.ItemURL(42)
	raw, err := fetcher.New(fetcher.Options{}).Fetch(context.Background(), ports.FetchRequest{URL: url, Referer: source.Referer()})
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	item, err := source.Parse(raw, 42, url)
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if item.Title != "Answer" || item.URL != url {
		t.Fatalf("unexpected item: %+v", item)
	}
	if referer != cfg.Referer {
		t.Fatalf("referer = %q, want %q", referer, cfg.Referer)
	}
}

func hnConfig(storyType string) config.SourceConfig {
	return config.SourceConfig{
		Name:    "hn",
		Kind:    config.KindHackerNews,
		ListURL: "https://hn.example/v0/",
		ItemURL: "https://hn.example/v0/item/%d.json",
		Options: map[string]string{"story_type": storyType},
	}
}

func TestHackerNewsParse(t *testing.T) {
	t.Parallel()

	source := NewHackerNewsSource(hnConfig("top"), nil, 0)
	raw := `{"id":8863,"type":"story","by":"dhouston","time":1175714200,"title":"My YC app: Dropbox","url":"http://www.getdropbox.com/u/2/screencast.html","score":111,"descendants":71}`

	item, err := source.Parse([]byte(raw), 8863, source.ItemURL(8863))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if item.Score != 111 || item.Comments != 71 || item.Author != "dhouston" {
		t.Fatalf("unexpected engagement fields: %+v", item)
	}
	if item.URL != "http://www.getdropbox.com/u/2/screencast.html" {
		t.Fatalf("unexpected url %s", item.URL)
	}
	if item.DiscussionURL != "https://news.ycombinator.com/item?id=8863" {
		t.Fatalf("unexpected discussion url %s", item.DiscussionURL)
	}
	if !item.PublishedAt.Equal(time.Unix(1175714200, 0)) {
		t.Fatalf("unexpected time %v", item.PublishedAt)
	}
	if !source.Ranked() {
		t.Fatalf("hacker news must be ranked")
	}
}

func TestHackerNewsParseAskStory(t *testing.T) {
	t.Parallel()

	source := NewHackerNewsSource(hnConfig("top"), nil, 0)
	raw := `{"id":5,"type":"story","time":1700000000,"title":"Ask HN: Rust or Go?","text":"<p>Which one &amp; why?</p><p>Thanks</p>"}`

	item, err := source.Parse([]byte(raw), 5, "")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if item.URL != item.DiscussionURL {
		t.Fatalf("text posts should link to the discussion, got %s", item.URL)
	}
	if item.Body != "Which one & why?Thanks" {
		t.Fatalf("unexpected body %q", item.Body)
	}
	if item.Category != "programming" {
		t.Fatalf("unexpected category %s", item.Category)
	}
}

func TestHackerNewsParseRejections(t *testing.T) {
	t.Parallel()

	source := NewHackerNewsSource(hnConfig("top"), nil, 0)
	tests := []struct {
		name string
		raw  string
		want error
	}{
		{"null", `null`, scanner.ErrNotFound},
		{"comment", `{"id":1,"type":"comment","time":1700000000,"text":"hi"}`, scanner.ErrWrongType},
		{"dead", `{"id":1,"type":"story","dead":true,"time":1700000000,"title":"x"}`, scanner.ErrWrongType},
		{"deleted", `{"id":1,"type":"story","deleted":true,"time":1700000000}`, scanner.ErrWrongType},
		{"no title", `{"id":1,"type":"story","time":1700000000}`, scanner.ErrNoTitle},
		{"no time", `{"id":1,"type":"story","title":"x"}`, scanner.ErrNoTimestamp},
	}
	for _, tt := range tests {
		_, err := source.Parse([]byte(tt.raw), 1, "")
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestHackerNewsDiscover(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"https://hn.example/v0/topstories.json": `[30, 10, 20]`,
		"https://hn.example/v0/newstories.json": `[]`,
		"https://hn.example/v0/maxitem.json":    "41000000\n",
	}

	top, err := NewHackerNewsSource(hnConfig("top"), mapFetcher{pages: pages}, 0).Discover(context.Background())
	if err != nil {
		t.Fatalf("top Discover error: %v", err)
	}
	if len(top.IDs) != 3 || top.IDs[0] != 30 {
		t.Fatalf("unexpected top seed: %+v", top)
	}

	walk, err := NewHackerNewsSource(hnConfig("walk"), mapFetcher{pages: pages}, 0).Discover(context.Background())
	if err != nil {
		t.Fatalf("walk Discover error: %v", err)
	}
	if walk.Latest != 41000000 || len(walk.IDs) != 0 {
		t.Fatalf("unexpected walk seed: %+v", walk)
	}

	if _, err := NewHackerNewsSource(hnConfig("new"), mapFetcher{pages: pages}, 0).Discover(context.Background()); err == nil {
		t.Fatalf("expected error for empty listing")
	}
}

func TestCategorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		title, link, want string
	}{
		{"Show HN: A tiny LLM inference server", "", "ai"},
		{"Critical CVE in OpenSSH", "", "security"},
		{"Writing a compiler in Rust", "", "programming"},
		{"Quantum entanglement observed at room temperature", "", "science"},
		{"The history of the pencil", "https://example.com/said", "general"},
	}
	for _, tt := range tests {
		if got := Categorize(tt.title, tt.link); got != tt.want {
			t.Errorf("Categorize(%q) = %s, want %s", tt.title, got, tt.want)
		}
	}
}
