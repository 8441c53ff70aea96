package sales

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// MaxDateLength is the longest raw value considered as a date
const MaxDateLength = 50

type dateOrder int

const (
	orderDMY dateOrder = iota
	orderYMD
	// orderDMYSwappable reads day/month but accepts month/day when only that fits
	orderDMYSwappable
)

type dateFormat struct {
	name    string
	pattern *regexp.Regexp
	order   dateOrder
}

// timeSuffix matches a trailing time of day, with or without the ISO "T" separator.
var timeSuffix = regexp.MustCompile(`(?:[ T]\d{1,2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)$`)

var dateFormats = []dateFormat{
	{name: "dotted", pattern: regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})\.(\d{4})$`), order: orderDMY},
	{name: "iso", pattern: regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})$`), order: orderYMD},
	{name: "slash", pattern: regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`), order: orderDMYSwappable},
	{name: "space", pattern: regexp.MustCompile(`^(\d{1,2}) (\d{1,2}) (\d{4})$`), order: orderDMYSwappable},
}

var adjacentDelimiters = regexp.MustCompile(`[./\- ]{2,}`)

// DateNormalizer turns raw date values into calendar dates at UTC midnight
type DateNormalizer struct {
	now   func() time.Time
	noise *NoiseList
}

// DateNormalizerOption configures a DateNormalizer
type DateNormalizerOption func(*DateNormalizer)

// WithClock sets the clock used for the upper year bound
func WithClock(now func() time.Time) DateNormalizerOption {
	return func(n *DateNormalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// WithNoiseList sets the noise list used by the pre-filters
func WithNoiseList(l *NoiseList) DateNormalizerOption {
	return func(n *DateNormalizer) {
		if l != nil {
			n.noise = l
		}
	}
}

// NewDateNormalizer creates a DateNormalizer
func NewDateNormalizer(opts ...DateNormalizerOption) *DateNormalizer {
	n := &DateNormalizer{
		now:   time.Now,
		noise: NewNoiseList(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize returns the calendar date held by value, which may be a string or
// a time.Time. It reports false for anything that is not a plausible sale date.
func (n *DateNormalizer) Normalize(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return n.fromTime(v)
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return n.fromTime(*v)
	case string:
		return n.Parse(v)
	default:
		return time.Time{}, false
	}
}

// Parse parses date text
func (n *DateNormalizer) Parse(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if !n.plausible(s) {
		return time.Time{}, false
	}
	s = timeSuffix.ReplaceAllString(s, "")

	for _, f := range dateFormats {
		m := f.pattern.FindStringSubmatch(s)
		if m == nil {
			continue
		}
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		c, _ := strconv.Atoi(m[3])

		var day, month, year int
		switch f.order {
		case orderYMD:
			year, month, day = a, b, c
		case orderDMYSwappable:
			day, month, year = a, b, c
			if month > 12 && day <= 12 {
				day, month = month, day
			}
		default:
			day, month, year = a, b, c
		}
		return n.build(year, month, day)
	}
	return time.Time{}, false
}

func (n *DateNormalizer) fromTime(t time.Time) (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	y, m, d := t.Date()
	return n.build(y, int(m), d)
}

// plausible applies the pre-filters that reject free text in a date column.
func (n *DateNormalizer) plausible(s string) bool {
	if s == "" || utf8.RuneCountInString(s) > MaxDateLength {
		return false
	}
	if strings.ContainsAny(s, "\"\r\n") {
		return false
	}
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return false
		}
	}
	if adjacentDelimiters.MatchString(s) {
		return false
	}
	return !n.noise.Contains(s)
}

// build constructs the date in UTC and rejects any value that does not survive
// the round trip unchanged.
func (n *DateNormalizer) build(year, month, day int) (time.Time, bool) {
	if day < 1 || day > 31 || month < 1 || month > 12 || year < 1900 || year > 2100 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || int(t.Month()) != month || t.Day() != day {
		return time.Time{}, false
	}
	if year < MinSaleYear || year > n.now().UTC().Year()+1 {
		return time.Time{}, false
	}
	return t, true
}
