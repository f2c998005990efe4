package parser

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"BriefScanner/internal/config"
	"BriefScanner/internal/domain"
	"BriefScanner/internal/ports"
	"BriefScanner/internal/scanner"
)

var (
	aibaseIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/zh/news/(\d+)`),
		regexp.MustCompile(`/zh/news/detail/(\d+)`),
		regexp.MustCompile(`/news/(\d+)`),
		regexp.MustCompile(`/zh/news/(\d+)\.html`),
		regexp.MustCompile(`/zh/news/detail/(\d+)\.html`),
	}
	localizedDateExpr = regexp.MustCompile(`(\d{4})年(\d{1,2})月(\d{1,2})日(?:\s*(\d{1,2}):(\d{2}))?`)
	latinDateExpr     = regexp.MustCompile(`([A-Z][a-z]{2})\s+(\d{1,2}),\s+(\d{4})`)
	spaceExpr         = regexp.MustCompile(`\s+`)
)

// AIBaseSource walks the AIBase news archive, whose articles live at
// sequential numeric paths.
type AIBaseSource struct {
	cfg     config.SourceConfig
	fetcher ports.Fetcher
	loc     *time.Location
	timeout time.Duration
}

var _ scanner.Source = (*AIBaseSource)(nil)

// NewAIBaseSource builds the adapter. Localized timestamps are read in loc.
func NewAIBaseSource(cfg config.SourceConfig, fetcher ports.Fetcher, loc *time.Location, timeout time.Duration) *AIBaseSource {
	if loc == nil {
		loc = time.Local
	}
	return &AIBaseSource{cfg: cfg, fetcher: fetcher, loc: loc, timeout: timeout}
}

// Name identifies the source inside the registry.
func (a *AIBaseSource) Name() string {
	return a.cfg.Name
}

// Ranked is false: AIBase articles carry no engagement score.
func (a *AIBaseSource) Ranked() bool {
	return false
}

// Referer is sent with every item request.
func (a *AIBaseSource) Referer() string {
	return a.cfg.Referer
}

// ItemURL expands the configured item URL template.
func (a *AIBaseSource) ItemURL(id int64) string {
	return fmt.Sprintf(a.cfg.ItemURL, id)
}

// Discover reads the listing page and returns the largest article id on it.
func (a *AIBaseSource) Discover(ctx context.Context) (scanner.Seed, error) {
	raw, err := a.fetcher.Fetch(ctx, ports.FetchRequest{URL: a.cfg.ListURL, Referer: a.cfg.Referer, Timeout: a.timeout})
	if err != nil {
		return scanner.Seed{}, fmt.Errorf("fetch listing: %w", err)
	}
	latest, ok := scanner.ExtractMaxID(string(raw), aibaseIDPatterns)
	if !ok {
		return scanner.Seed{}, fmt.Errorf("no article ids on listing %s", a.cfg.ListURL)
	}
	return scanner.Seed{Latest: latest}, nil
}

// Parse extracts an article from its HTML page.
func (a *AIBaseSource) Parse(raw []byte, id int64, url string) (domain.Item, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.Item{}, scanner.ErrNotFound
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return domain.Item{}, fmt.Errorf("parse document: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	if title == "" {
		return domain.Item{}, scanner.ErrNoTitle
	}

	publishedAt, ok := parseTimestamp(strings.TrimSpace(doc.Find(".text-surface-500").First().Text()), a.loc)
	if !ok {
		publishedAt, ok = parseLatinDate(string(raw), a.loc)
	}
	if !ok {
		return domain.Item{}, scanner.ErrNoTimestamp
	}

	body := normalizeBody(doc.Find("div.post-content").First().Text())
	if utf8.RuneCountInString(body) < domain.MinBodyLength {
		return domain.Item{}, scanner.ErrBodyTooShort
	}

	return domain.Item{
		ID:          id,
		Source:      a.cfg.Name,
		URL:         url,
		Title:       title,
		PublishedAt: publishedAt,
		Body:        body,
	}, nil
}

// parseTimestamp reads "YYYY年M月D日 [HH:MM]" first and "Mon D, YYYY" second.
func parseTimestamp(text string, loc *time.Location) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	text = spaceExpr.ReplaceAllString(text, " ")
	if m := localizedDateExpr.FindStringSubmatch(text); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		hour, minute := 0, 0
		if m[4] != "" {
			hour, _ = strconv.Atoi(m[4])
			minute, _ = strconv.Atoi(m[5])
		}
		if validDate(year, month, day, hour, minute) {
			return time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc), true
		}
	}
	return parseLatinDate(text, loc)
}

func parseLatinDate(text string, loc *time.Location) (time.Time, bool) {
	for _, m := range latinDateExpr.FindAllStringSubmatch(text, -1) {
		parsed, err := time.ParseInLocation("Jan 2, 2006", m[1]+" "+m[2]+", "+m[3], loc)
		if err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

func validDate(year, month, day, hour, minute int) bool {
	if month < 1 || month > 12 || day < 1 || hour > 23 || minute > 59 {
		return false
	}
	// time.Date normalizes overflow, so a round trip detects days like Feb 30.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	return t.Day() == day
}

func normalizeBody(text string) string {
	return strings.TrimSpace(spaceExpr.ReplaceAllString(text, " "))
}
