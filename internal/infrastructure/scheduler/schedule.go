package scheduler

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
	"time"
)

// field is a bitset of allowed values.
type field uint64

func (f field) has(v int) bool {
	return f&(1<<uint(v)) != 0
}

// Schedule is a parsed five-field cron expression:
// minute hour day-of-month month day-of-week.
type Schedule struct {
	minute, hour, dom, month, dow field
	// Standard cron matches either day field when both are restricted.
	domStar, dowStar bool
	expr             string
}

// Parse validates a cron expression. Fields accept *, lists, ranges and steps.
// Day-of-week 7 is an alias for Sunday.
func Parse(expr string) (*Schedule, error) {
	parts := strings.Fields(expr)
	if len(parts) != 5 {
		return nil, fmt.Errorf("cron %q: expected 5 fields, got %d", expr, len(parts))
	}
	bounds := [5][2]int{{0, 59}, {0, 23}, {1, 31}, {1, 12}, {0, 7}}
	names := [5]string{"minute", "hour", "day-of-month", "month", "day-of-week"}

	var fields [5]field
	for i, part := range parts {
		f, err := parseField(part, bounds[i][0], bounds[i][1])
		if err != nil {
			return nil, fmt.Errorf("cron %q: %s: %w", expr, names[i], err)
		}
		fields[i] = f
	}
	if fields[4].has(7) {
		fields[4] = fields[4]&^(1<<7) | 1
	}

	return &Schedule{
		minute:  fields[0],
		hour:    fields[1],
		dom:     fields[2],
		month:   fields[3],
		dow:     fields[4],
		domStar: parts[2] == "*",
		dowStar: parts[4] == "*",
		expr:    expr,
	}, nil
}

// String returns the source expression.
func (s *Schedule) String() string {
	return s.expr
}

// Next returns the first matching minute strictly after from, in from's location.
func (s *Schedule) Next(from time.Time) time.Time {
	t := from.Truncate(time.Minute).Add(time.Minute)
	limit := t.AddDate(5, 0, 0)
	loc := t.Location()

	for t.Before(limit) {
		if !s.month.has(int(t.Month())) {
			t = time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.dayMatches(t) {
			t = time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, loc)
			continue
		}
		if !s.hour.has(t.Hour()) {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour()+1, 0, 0, 0, loc)
			continue
		}
		if !s.minute.has(t.Minute()) {
			t = t.Add(time.Minute)
			continue
		}
		return t
	}
	return time.Time{}
}

func (s *Schedule) dayMatches(t time.Time) bool {
	domOK := s.dom.has(t.Day())
	dowOK := s.dow.has(int(t.Weekday()))
	switch {
	case s.domStar && s.dowStar:
		return true
	case s.domStar:
		return dowOK
	case s.dowStar:
		return domOK
	default:
		return domOK || dowOK
	}
}

func (f field) count() int {
	return bits.OnesCount64(uint64(f))
}

func parseField(expr string, lo, hi int) (field, error) {
	var f field
	for _, part := range strings.Split(expr, ",") {
		mask, err := parseRange(part, lo, hi)
		if err != nil {
			return 0, err
		}
		f |= mask
	}
	if f.count() == 0 {
		return 0, fmt.Errorf("empty field")
	}
	return f, nil
}

func parseRange(part string, lo, hi int) (field, error) {
	step := 1
	stepped := false
	if base, s, ok := strings.Cut(part, "/"); ok {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid step %q", s)
		}
		step, stepped, part = n, true, base
	}

	start, end := lo, hi
	switch {
	case part == "*":
	case strings.Contains(part, "-"):
		a, b, _ := strings.Cut(part, "-")
		var err error
		if start, err = strconv.Atoi(a); err != nil {
			return 0, fmt.Errorf("invalid range start %q", a)
		}
		if end, err = strconv.Atoi(b); err != nil {
			return 0, fmt.Errorf("invalid range end %q", b)
		}
	default:
		v, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("invalid value %q", part)
		}
		start, end = v, v
		if stepped {
			end = hi
		}
	}
	if start < lo || end > hi || start > end {
		return 0, fmt.Errorf("range %d-%d outside [%d, %d]", start, end, lo, hi)
	}

	var f field
	for v := start; v <= end; v += step {
		f |= 1 << uint(v)
	}
	return f, nil
}
