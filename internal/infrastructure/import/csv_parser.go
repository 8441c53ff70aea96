package csvimport

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// CSVParser parses the header and the repaired data lines of a delimited file.
// Each line is parsed on its own, so a malformed line never swallows the
// lines after it.
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	trimSpace  bool
	headerMap  map[string]int
	headers    []string
	totalRows  int
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithTrimSpace enables trimming of leading/trailing spaces from fields
func WithTrimSpace(trim bool) ParserOption {
	return func(p *CSVParser) {
		p.trimSpace = trim
	}
}

// NewCSVParser creates a new CSV parser
func NewCSVParser(opts ...ParserOption) *CSVParser {
	parser := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		trimSpace:  true,
		headerMap:  make(map[string]int),
	}

	for _, opt := range opts {
		opt(parser)
	}

	return parser
}

// ParseHeader parses the header line
func (p *CSVParser) ParseHeader(line string) error {
	record, err := p.readRecord(line)
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	headers := make([]string, 0, len(record))
	for _, h := range record {
		if p.trimSpace {
			h = trimSpaces(h)
		}
		headers = append(headers, h)
	}
	for len(headers) > 0 && headers[len(headers)-1] == "" {
		headers = headers[:len(headers)-1]
	}
	if len(headers) == 0 {
		return ErrMissingHeader
	}

	p.headers = headers
	p.headerMap = make(map[string]int, len(headers))
	for i, h := range headers {
		if _, dup := p.headerMap[h]; !dup {
			p.headerMap[h] = i
		}
	}
	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// HeaderMap returns a map of header name to column index
func (p *CSVParser) HeaderMap() map[string]int {
	return p.headerMap
}

// HasHeader checks if a header exists
func (p *CSVParser) HasHeader(name string) bool {
	_, ok := p.headerMap[name]
	return ok
}

// ParseLine parses one data line into a Row
func (p *CSVParser) ParseLine(lineNumber int, line string) (*Row, error) {
	record, err := p.readRecord(line)
	if err != nil {
		return nil, fmt.Errorf("error reading row %d: %w", lineNumber, err)
	}
	p.totalRows++
	if p.trimSpace {
		for i := range record {
			record[i] = trimSpaces(record[i])
		}
	}
	return NewRow(lineNumber, p.headers, record), nil
}

// TotalRows returns the total number of data rows parsed
func (p *CSVParser) TotalRows() int {
	return p.totalRows
}

func (p *CSVParser) readRecord(line string) ([]string, error) {
	reader := csv.NewReader(strings.NewReader(line))
	reader.Comma = p.delimiter
	reader.LazyQuotes = p.lazyQuotes
	reader.TrimLeadingSpace = p.trimSpace
	reader.FieldsPerRecord = -1 // Allow variable number of fields

	record, err := reader.Read()
	if err == io.EOF {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Row represents a decoded row with its data and source line number
type Row struct {
	LineNumber int
	Data       map[string]string
	// Dates holds cells the source typed as dates, keyed by header
	Dates     map[string]time.Time
	RawFields []string
	headers   []string
}

// NewRow maps fields onto headers. Missing trailing fields map to "" and
// extra fields are kept only in RawFields.
func NewRow(lineNumber int, headers, fields []string) *Row {
	row := &Row{
		LineNumber: lineNumber,
		Data:       make(map[string]string, len(headers)),
		Dates:      make(map[string]time.Time),
		RawFields:  fields,
		headers:    headers,
	}
	for i, header := range headers {
		if _, dup := row.Data[header]; dup {
			continue
		}
		if i < len(fields) {
			row.Data[header] = fields[i]
		} else {
			row.Data[header] = ""
		}
	}
	return row
}

// Headers returns the header names of the file the row came from
func (r *Row) Headers() []string {
	return r.headers
}

// Get returns the value for a column by header name
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// GetOrDefault returns the value for a column, or default if not present
func (r *Row) GetOrDefault(header, defaultVal string) string {
	if val, ok := r.Data[header]; ok && val != "" {
		return val
	}
	return defaultVal
}

// Date returns the typed date of a column, if the source had one
func (r *Row) Date(header string) (time.Time, bool) {
	t, ok := r.Dates[header]
	return t, ok
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if trimSpaces(v) != "" {
			return false
		}
	}
	return len(r.Dates) == 0
}

// trimSpaces trims whitespace from a string
func trimSpaces(s string) string {
	// Trim common whitespace characters
	start := 0
	end := len(s)

	for start < end {
		r, size := utf8.DecodeRuneInString(s[start:])
		if !isWhitespace(r) {
			break
		}
		start += size
	}

	for end > start {
		r, size := utf8.DecodeLastRuneInString(s[:end])
		if !isWhitespace(r) {
			break
		}
		end -= size
	}

	return s[start:end]
}

// isWhitespace checks if a rune is whitespace
func isWhitespace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '\v', '\f', ' ':
		return true
	}
	return false
}
