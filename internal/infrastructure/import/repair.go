package csvimport

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"go.uber.org/zap"
)

// Repair stage names, as reported on drops
const (
	StageLineValidity  = "line_validity"
	StageKeyFields     = "key_fields"
	StageMergedRows    = "merged_rows"
	StageQuoteRepair   = "quote_repair"
	StageNameArtifacts = "name_artifacts"
)

// Repair defaults
const (
	DefaultMinFields         = 5
	DefaultMaxKeyFieldLength = 50
)

var dateToken = regexp.MustCompile(`\d{1,2}\.\d{1,2}\.\d{4}`)

var (
	whitespaceRun     = regexp.MustCompile(`\s+`)
	trailingDateTail  = regexp.MustCompile(`[\s,;]+\d{1,2}\.\d{1,2}\.\d{4}.*$`)
	longNumberTail    = regexp.MustCompile(`,\d{4,}.*$`)
	trailingNumberRun = regexp.MustCompile(`(?:,\s*\d+(?:\.\d+)?){2,}[\s,]*$`)
)

// KeyColumns are the positions of the date, SKU and product name columns. A
// negative position means the column is unknown.
type KeyColumns struct {
	Date int
	SKU  int
	Name int
}

// DefaultKeyColumns is the layout of both supported marketplace exports
var DefaultKeyColumns = KeyColumns{Date: 0, SKU: 1, Name: 2}

// RepairConfig configures a Repairer
type RepairConfig struct {
	Delimiter         rune
	MinFields         int
	MaxKeyFieldLength int
	Keys              KeyColumns
	Noise             *sales.NoiseList
}

// Drop describes a line removed by a repair stage
type Drop struct {
	Stage  string
	Code   string
	Reason string
	Line   string
}

// RepairOutcome is the result of running every stage over one line
type RepairOutcome struct {
	Lines []string
	Drops []Drop
}

// Repairer recovers candidate rows from corrupted delimited lines. Every stage
// is a pure function of its input line and the configuration.
type Repairer struct {
	cfg    RepairConfig
	logger *zap.Logger
}

// NewRepairer creates a Repairer, filling unset configuration with defaults
func NewRepairer(cfg RepairConfig, logger *zap.Logger) *Repairer {
	if cfg.Delimiter == 0 {
		cfg.Delimiter = ','
	}
	if cfg.MinFields <= 0 {
		cfg.MinFields = DefaultMinFields
	}
	if cfg.MaxKeyFieldLength <= 0 {
		cfg.MaxKeyFieldLength = DefaultMaxKeyFieldLength
	}
	if cfg.Noise == nil {
		cfg.Noise = sales.NewNoiseList()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repairer{cfg: cfg, logger: logger}
}

// Repair runs the stages over one data line: line validity, merged-row
// splitting, then per candidate line validity, key-field checks, quote repair
// and name artifact stripping.
func (r *Repairer) Repair(line string) RepairOutcome {
	var out RepairOutcome
	drop := func(d Drop) {
		out.Drops = append(out.Drops, d)
		r.logger.Warn("Dropped import line",
			zap.String("stage", d.Stage),
			zap.String("reason", d.Reason),
			zap.String("line_prefix", Prefix(d.Line, valuePrefixLength)),
		)
	}

	anchored, d := r.AnchorLine(line)
	if d != nil {
		drop(*d)
		return out
	}

	for _, candidate := range r.SplitMergedLine(anchored) {
		candidate, d := r.AnchorLine(candidate)
		if d != nil {
			drop(*d)
			continue
		}
		if d := r.CheckKeyFields(candidate); d != nil {
			drop(*d)
			continue
		}
		candidate = r.RepairQuotes(candidate)
		candidate, d = r.StripNameField(candidate)
		if d != nil {
			drop(*d)
			continue
		}
		out.Lines = append(out.Lines, candidate)
	}
	return out
}

// AnchorLine makes the line start at its first date token, discarding any
// leading garbage, and checks the minimum field count. The anchoring is
// skipped when the date column is not the first column.
func (r *Repairer) AnchorLine(line string) (string, *Drop) {
	line = strings.TrimSpace(r.normalizeTabs(line))

	if r.cfg.Keys.Date <= 0 {
		tokens := dateTokens(line)
		if len(tokens) == 0 {
			return "", &Drop{Stage: StageLineValidity, Code: ErrCodeImportNoDateToken, Reason: "no date token", Line: line}
		}
		if tokens[0] > 0 {
			r.logger.Debug("Discarded leading garbage before date token",
				zap.String("discarded", Prefix(line[:tokens[0]], valuePrefixLength)))
			line = line[tokens[0]:]
		}
	}

	if n := countFields(line, r.cfg.Delimiter); n < r.cfg.MinFields {
		return "", &Drop{
			Stage:  StageLineValidity,
			Code:   ErrCodeImportTooFewFields,
			Reason: fmt.Sprintf("%d fields, need at least %d", n, r.cfg.MinFields),
			Line:   line,
		}
	}
	return line, nil
}

// CheckKeyFields rejects a line whose date or SKU field holds a noise token,
// an unterminated quote, an empty value or an implausibly long value.
func (r *Repairer) CheckKeyFields(line string) *Drop {
	fields := splitFields(line, r.cfg.Delimiter)
	keys := []struct {
		name string
		idx  int
	}{
		{"date", r.cfg.Keys.Date},
		{"sku", r.cfg.Keys.SKU},
	}

	for _, k := range keys {
		if k.idx < 0 {
			continue
		}
		corrupt := func(reason string) *Drop {
			return &Drop{Stage: StageKeyFields, Code: ErrCodeImportCorruptField, Reason: k.name + " field " + reason, Line: line}
		}
		if k.idx >= len(fields) {
			return corrupt("is missing")
		}
		raw := strings.TrimSpace(fields[k.idx])
		value := strings.TrimSpace(unquote(raw))
		switch {
		case !isTerminated(raw):
			return corrupt("has an unterminated quote")
		case value == "":
			return corrupt("is empty")
		case utf8.RuneCountInString(value) > r.cfg.MaxKeyFieldLength:
			return corrupt(fmt.Sprintf("is longer than %d characters", r.cfg.MaxKeyFieldLength))
		case r.cfg.Noise.Contains(value):
			return corrupt("holds product name text")
		}
	}
	return nil
}

// SplitMergedLine segments a line holding several concatenated rows at each
// date token that starts a field and is followed by at least the minimum
// field count. A line with a single row is returned unchanged.
func (r *Repairer) SplitMergedLine(line string) []string {
	tokens := dateTokens(line)
	if len(tokens) < 2 {
		return []string{line}
	}

	var cuts []int
	end := len(line)
	for k := len(tokens) - 1; k >= 0; k-- {
		pos := tokens[k]
		if pos == 0 || !r.atFieldBoundary(line, pos) {
			continue
		}
		if countFields(r.trimSegment(line[pos:end]), r.cfg.Delimiter) < r.cfg.MinFields {
			continue
		}
		cuts = append([]int{pos}, cuts...)
		end = pos
	}
	if len(cuts) == 0 {
		return []string{line}
	}

	r.logger.Debug("Split merged line", zap.Int("segments", len(cuts)+1))
	segments := make([]string, 0, len(cuts)+1)
	start := 0
	for _, cut := range cuts {
		segments = append(segments, r.trimSegment(line[start:cut]))
		start = cut
	}
	return append(segments, r.trimSegment(line[start:]))
}

// RepairQuotes re-quotes fields holding stray quotes so the line parses under
// standard quoted-CSV rules. Well-formed lines are returned unchanged.
func (r *Repairer) RepairQuotes(line string) string {
	if !strings.ContainsRune(line, quote) {
		return line
	}
	fields := splitFields(line, r.cfg.Delimiter)
	for i, f := range fields {
		trimmed := strings.TrimLeft(f, " ")
		switch {
		case isQuoted(trimmed):
			fields[i] = `"` + strings.ReplaceAll(unquote(trimmed), `"`, `""`) + `"`
		case strings.ContainsRune(f, quote):
			fields[i] = `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
		}
	}
	return joinFields(fields, r.cfg.Delimiter)
}

// StripNameField applies StripNameArtifacts to the product name column. A
// name with nothing left after stripping drops the line.
func (r *Repairer) StripNameField(line string) (string, *Drop) {
	idx := r.cfg.Keys.Name
	if idx < 0 {
		return line, nil
	}
	fields := splitFields(line, r.cfg.Delimiter)
	if idx >= len(fields) {
		return line, nil
	}
	original := unquote(fields[idx])
	cleaned := StripNameArtifacts(original)
	if cleaned == "" {
		return "", &Drop{Stage: StageNameArtifacts, Code: ErrCodeImportCorruptField, Reason: "product name is empty after cleanup", Line: line}
	}
	if cleaned == strings.TrimSpace(original) {
		return line, nil
	}
	fields[idx] = requote(cleaned, r.cfg.Delimiter)
	return joinFields(fields, r.cfg.Delimiter), nil
}

// StripNameArtifacts removes merge artifacts from a product name: line
// breaks, a trailing date with the data after it, a trailing run of
// comma-separated numbers and a tail starting at a comma followed by a long
// number.
func StripNameArtifacts(name string) string {
	s := whitespaceRun.ReplaceAllString(name, " ")
	s = trailingDateTail.ReplaceAllString(s, "")
	s = longNumberTail.ReplaceAllString(s, "")
	s = trailingNumberRun.ReplaceAllString(s, "")
	s = strings.TrimRight(strings.TrimSpace(s), ", ")
	// an unbalanced trailing quote is left over from the merge
	if strings.Count(s, `"`)%2 == 1 {
		s = strings.TrimRight(strings.TrimSuffix(s, `"`), ", ")
	}
	return s
}

// normalizeTabs turns tabs outside quoted fields into the file delimiter
func (r *Repairer) normalizeTabs(line string) string {
	if r.cfg.Delimiter == '\t' || !strings.ContainsRune(line, '\t') {
		return line
	}
	fields := splitFields(line, r.cfg.Delimiter)
	for i, f := range fields {
		if !isQuoted(strings.TrimLeft(f, " ")) {
			fields[i] = strings.ReplaceAll(f, "\t", string(r.cfg.Delimiter))
		}
	}
	return joinFields(fields, r.cfg.Delimiter)
}

func (r *Repairer) atFieldBoundary(line string, pos int) bool {
	switch c := rune(line[pos-1]); c {
	case r.cfg.Delimiter, '\t', ' ', quote:
		return true
	}
	return false
}

func (r *Repairer) trimSegment(s string) string {
	return strings.TrimRight(strings.TrimSpace(s), " \t"+string(r.cfg.Delimiter))
}

// dateTokens returns the offsets of day.month.year tokens that are not part
// of a longer number.
func dateTokens(line string) []int {
	var out []int
	for _, loc := range dateToken.FindAllStringIndex(line, -1) {
		start, end := loc[0], loc[1]
		if start > 0 && (isDigit(line[start-1]) || line[start-1] == '.') {
			continue
		}
		if end < len(line) && isDigit(line[end]) {
			continue
		}
		out = append(out, start)
	}
	return out
}

// startsWithDateToken reports whether the trimmed line begins with a date token
func startsWithDateToken(line string) bool {
	tokens := dateTokens(strings.TrimSpace(line))
	return len(tokens) > 0 && tokens[0] == 0
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
