package scanner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"

	"BriefScanner/internal/domain"
)

// Parse rejections. None of them is fatal to a run: the walker treats them all
// as "this identifier yields no item".
var (
	ErrNotFound     = errors.New("item not found")
	ErrNoTitle      = errors.New("missing title")
	ErrNoTimestamp  = errors.New("unparseable timestamp")
	ErrBodyTooShort = errors.New("body too short")
	ErrWrongType    = errors.New("unsupported item type")
	ErrInvalid      = errors.New("invalid item")
)

// Seed is the starting point of a crawl. When IDs is non-empty the walker
// batches through it in order; otherwise it counts down from Latest.
type Seed struct {
	Latest int64
	IDs    []int64
}

// Source adapts one ID-addressable content origin to the crawl pipeline.
type Source interface {
	Name() string
	Discover(ctx context.Context) (Seed, error)
	ItemURL(id int64) string
	Referer() string
	Parse(raw []byte, id int64, url string) (domain.Item, error)
	// Ranked sources are ordered by score rather than recency.
	Ranked() bool
}

// ExtractMaxID applies every pattern to raw and returns the largest captured
// identifier. Each pattern must have exactly one numeric capture group.
func ExtractMaxID(raw string, patterns []*regexp.Regexp) (int64, bool) {
	var (
		latest int64
		found  bool
	)
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(raw, -1) {
			if len(m) < 2 {
				continue
			}
			id, err := strconv.ParseInt(m[1], 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			if !found || id > latest {
				latest = id
				found = true
			}
		}
	}
	return latest, found
}

// Registry keeps a mapping from source names to their adapters.
type Registry struct {
	sources map[string]Source
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{sources: map[string]Source{}}
}

// Register adds or replaces a source adapter.
func (r *Registry) Register(source Source) {
	if r.sources == nil {
		r.sources = map[string]Source{}
	}
	r.sources[source.Name()] = source
}

// Resolve returns a source by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Source, error) {
	if source, ok := r.sources[name]; ok {
		return source, nil
	}
	return nil, fmt.Errorf("source %s is not registered", name)
}

// Names lists registered sources in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.sources))
	for name := range r.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
