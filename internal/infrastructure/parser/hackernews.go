package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"BriefScanner/internal/config"
	"BriefScanner/internal/domain"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/scanner"
)

const (
	storyTypeTop  = "top"
	storyTypeNew  = "new"
	storyTypeWalk = "walk"

	discussionURL = "https://news.ycombinator.com/item?id="
)

type category struct {
	name string
	expr *regexp.Regexp
}

// Checked in order; the first match wins.
var categories = []category{
	{"ai", regexp.MustCompile(`(?i)\b(ai|llm|llms|gpt|openai|anthropic|claude|gemini|machine learning|neural|deep learning|transformer|diffusion)\b`)},
	{"security", regexp.MustCompile(`(?i)\b(security|vulnerability|exploit|cve|breach|malware|ransomware|encryption|privacy|backdoor)\b`)},
	{"programming", regexp.MustCompile(`(?i)\b(rust|golang|go|python|javascript|typescript|compiler|database|postgres|sqlite|linux|kernel|git|programming|api)\b`)},
	{"science", regexp.MustCompile(`(?i)\b(physics|biology|chemistry|space|nasa|quantum|climate|research|study|astronomy)\b`)},
}

type hnItem struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	By          string `json:"by"`
	Time        int64  `json:"time"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Text        string `json:"text"`
	Score       int    `json:"score"`
	Descendants int    `json:"descendants"`
	Deleted     bool   `json:"deleted"`
	Dead        bool   `json:"dead"`
}

// HackerNewsSource reads stories from the Hacker News Firebase API.
type HackerNewsSource struct {
	cfg     config.SourceConfig
	fetcher ports.Fetcher
	timeout time.Duration
}

var _ scanner.Source = (*HackerNewsSource)(nil)

// NewHackerNewsSource builds the adapter. Option story_type selects the
// top or new listing, or walk for a countdown from maxitem.
func NewHackerNewsSource(cfg config.SourceConfig, fetcher ports.Fetcher, timeout time.Duration) *HackerNewsSource {
	return &HackerNewsSource{cfg: cfg, fetcher: fetcher, timeout: timeout}
}

// Name identifies the source inside the registry.
func (h *HackerNewsSource) Name() string {
	return h.cfg.Name
}

// Ranked is true: stories are ordered by score.
func (h *HackerNewsSource) Ranked() bool {
	return true
}

// Referer is sent with every item request.
func (h *HackerNewsSource) Referer() string {
	return h.cfg.Referer
}

// ItemURL expands the configured item URL template.
func (h *HackerNewsSource) ItemURL(id int64) string {
	return fmt.Sprintf(h.cfg.ItemURL, id)
}

func (h *HackerNewsSource) storyType() string {
	switch t := strings.ToLower(strings.TrimSpace(h.cfg.Options["story_type"])); t {
	case storyTypeNew, storyTypeWalk:
		return t
	default:
		return storyTypeTop
	}
}

// Discover returns the story listing, or the newest item id in walk mode.
func (h *HackerNewsSource) Discover(ctx context.Context) (scanner.Seed, error) {
	base := strings.TrimSuffix(h.cfg.ListURL, "/")
	kind := h.storyType()
	if kind == storyTypeWalk {
		raw, err := h.fetch(ctx, base+"/maxitem.json")
		if err != nil {
			return scanner.Seed{}, err
		}
		latest, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return scanner.Seed{}, fmt.Errorf("decode maxitem: %w", err)
		}
		return scanner.Seed{Latest: latest}, nil
	}

	raw, err := h.fetch(ctx, base+"/"+kind+"stories.json")
	if err != nil {
		return scanner.Seed{}, err
	}
	var ids []int64
	if err := json.Unmarshal(raw, &ids); err != nil {
		return scanner.Seed{}, fmt.Errorf("decode %s stories: %w", kind, err)
	}
	if len(ids) == 0 {
		return scanner.Seed{}, fmt.Errorf("empty %s stories listing", kind)
	}
	return scanner.Seed{IDs: ids}, nil
}

func (h *HackerNewsSource) fetch(ctx context.Context, url string) ([]byte, error) {
	raw, err := h.fetcher.Fetch(ctx, ports.FetchRequest{URL: url, Referer: h.cfg.Referer, Timeout: h.timeout})
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	return raw, nil
}

// Parse decodes an item document. Only live stories are accepted.
func (h *HackerNewsSource) Parse(raw []byte, id int64, _ string) (domain.Item, error) {
	var item hnItem
	if err := json.Unmarshal(raw, &item); err != nil {
		return domain.Item{}, fmt.Errorf("decode item %d: %w", id, err)
	}
	// The API answers "null" for unknown ids.
	if item.ID == 0 {
		return domain.Item{}, scanner.ErrNotFound
	}
	if item.Type != "story" || item.Deleted || item.Dead {
		return domain.Item{}, scanner.ErrWrongType
	}
	title := strings.TrimSpace(item.Title)
	if title == "" {
		return domain.Item{}, scanner.ErrNoTitle
	}
	if item.Time <= 0 {
		return domain.Item{}, scanner.ErrNoTimestamp
	}

	discussion := discussionURL + strconv.FormatInt(item.ID, 10)
	link := item.URL
	if link == "" {
		link = discussion
	}
	return domain.Item{
		ID:            item.ID,
		Source:        h.cfg.Name,
		URL:           link,
		DiscussionURL: discussion,
		Title:         title,
		PublishedAt:   time.Unix(item.Time, 0),
		Body:          stripHTML(item.Text),
		Score:         item.Score,
		Comments:      item.Descendants,
		Author:        item.By,
		Category:      Categorize(title, item.URL),
	}, nil
}

// Categorize assigns a coarse topic from title and link keywords.
func Categorize(title, link string) string {
	text := title + " " + link
	for _, c := range categories {
		if c.expr.MatchString(text) {
			return c.name
		}
	}
	return "general"
}

func stripHTML(fragment string) string {
	if fragment == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return normalizeBody(fragment)
	}
	return normalizeBody(doc.Text())
}
