package csvimport

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"go.uber.org/zap"
)

// FileKind is the declared kind of an uploaded file
type FileKind string

const (
	FileKindDelimited   FileKind = "delimited"
	FileKindSpreadsheet FileKind = "spreadsheet"
)

// Decoder defaults
const (
	DefaultMaxFileSize    int64 = 50 << 20
	DefaultMaxDiagnostics       = 100
	maxContinuationLines        = 5
)

// KindFromExtension maps a file extension, with or without the leading dot, to a FileKind
func KindFromExtension(ext string) (FileKind, error) {
	switch strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), ".")) {
	case "csv":
		return FileKindDelimited, nil
	case "xlsx", "xls":
		return FileKindSpreadsheet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
}

// KindFromFileName maps a file name to a FileKind by its extension
func KindFromFileName(name string) (FileKind, error) {
	return KindFromExtension(filepath.Ext(name))
}

// KeyColumnResolver finds the key column positions of a header row
type KeyColumnResolver func(headers []string) KeyColumns

// DecodeResult holds the rows of a decoded file and the lines dropped on the way
type DecodeResult struct {
	Kind      FileKind
	Headers   []string
	Delimiter rune
	Rows      []*Row
	// LinesSeen counts the non-blank data records read from the source
	LinesSeen int
	Drops     *ErrorCollection
}

// Decoder turns raw file bytes into rows
type Decoder struct {
	logger         *zap.Logger
	maxFileSize    int64
	maxDiagnostics int
	minFields      int
	noise          *sales.NoiseList
	keyColumns     KeyColumnResolver
}

// DecoderOption is a functional option for Decoder configuration
type DecoderOption func(*Decoder)

// WithLogger sets the decoder logger
func WithLogger(logger *zap.Logger) DecoderOption {
	return func(d *Decoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMaxFileSize sets the maximum accepted input size in bytes
func WithMaxFileSize(n int64) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.maxFileSize = n
		}
	}
}

// WithMaxDiagnostics caps the number of drop diagnostics kept in detail
func WithMaxDiagnostics(n int) DecoderOption {
	return func(d *Decoder) {
		d.maxDiagnostics = n
	}
}

// WithMinFields sets the minimum field count of a data line
func WithMinFields(n int) DecoderOption {
	return func(d *Decoder) {
		if n > 0 {
			d.minFields = n
		}
	}
}

// WithNoiseList sets the noise tokens used by the key-field checks
func WithNoiseList(noise *sales.NoiseList) DecoderOption {
	return func(d *Decoder) {
		if noise != nil {
			d.noise = noise
		}
	}
}

// WithKeyColumnResolver sets how key column positions are found from the header
func WithKeyColumnResolver(fn KeyColumnResolver) DecoderOption {
	return func(d *Decoder) {
		if fn != nil {
			d.keyColumns = fn
		}
	}
}

// NewDecoder creates a new Decoder
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{
		logger:         zap.NewNop(),
		maxFileSize:    DefaultMaxFileSize,
		maxDiagnostics: DefaultMaxDiagnostics,
		minFields:      DefaultMinFields,
		noise:          sales.NewNoiseList(),
		keyColumns: func([]string) KeyColumns {
			return DefaultKeyColumns
		},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Decode reads the whole input and decodes it as kind. It either returns every
// recoverable row or fails for the whole file.
func (d *Decoder) Decode(r io.Reader, kind FileKind) (*DecodeResult, error) {
	if kind != FileKindDelimited && kind != FileKindSpreadsheet {
		return nil, fmt.Errorf("%w: kind %q", ErrUnsupportedFormat, kind)
	}

	data, err := io.ReadAll(io.LimitReader(r, d.maxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read input: %v", ErrDecodeFailed, err)
	}
	if int64(len(data)) > d.maxFileSize {
		return nil, fmt.Errorf("%w: limit is %d bytes", ErrFileTooLarge, d.maxFileSize)
	}
	if len(data) == 0 {
		return nil, ErrEmptyFile
	}

	result := &DecodeResult{Kind: kind, Drops: NewErrorCollection(d.maxDiagnostics)}
	if kind == FileKindSpreadsheet {
		err = d.decodeSpreadsheet(data, result)
	} else {
		err = d.decodeDelimited(data, result)
	}
	if err != nil {
		return nil, err
	}

	d.logger.Info("Decoded import file",
		zap.String("kind", string(kind)),
		zap.Int("headers", len(result.Headers)),
		zap.Int("lines_seen", result.LinesSeen),
		zap.Int("rows", len(result.Rows)),
		zap.Int("dropped", result.Drops.TotalCount()),
	)
	return result, nil
}

// sourceLine is a logical record and the physical line it starts on
type sourceLine struct {
	number int
	text   string
}

func (d *Decoder) decodeDelimited(data []byte, result *DecodeResult) error {
	text, err := NormalizeText(data)
	if err != nil {
		return err
	}
	delim := DetectDelimiter(text)
	lines := strings.Split(text, "\n")

	headerAt := -1
	for i, line := range lines {
		if strings.TrimSpace(line) != "" {
			headerAt = i
			break
		}
	}
	if headerAt < 0 {
		return ErrEmptyFile
	}

	parser := NewCSVParser(WithDelimiter(delim))
	if err := parser.ParseHeader(lines[headerAt]); err != nil {
		return fmt.Errorf("%w: %v", ErrDecodeFailed, err)
	}
	headers := parser.Headers()

	repairer := NewRepairer(RepairConfig{
		Delimiter: delim,
		MinFields: min(d.minFields, len(headers)),
		Keys:      d.keyColumns(headers),
		Noise:     d.noise,
	}, d.logger)

	result.Headers = headers
	result.Delimiter = delim

	for _, rec := range joinContinuations(lines[headerAt+1:], headerAt+2) {
		if strings.TrimSpace(rec.text) == "" {
			continue
		}
		result.LinesSeen++

		outcome := repairer.Repair(rec.text)
		for _, drop := range outcome.Drops {
			result.Drops.AddDropped(rec.number, ErrCodeRowDropped, drop.Stage+": "+drop.Reason, drop.Line)
		}
		for _, candidate := range outcome.Lines {
			row, err := parser.ParseLine(rec.number, candidate)
			if err != nil {
				d.logger.Warn("Dropped unparseable import line",
					zap.Int("line", rec.number),
					zap.Error(err),
					zap.String("line_prefix", Prefix(candidate, valuePrefixLength)),
				)
				result.Drops.AddDropped(rec.number, ErrCodeRowDropped, "malformed row: "+err.Error(), candidate)
				continue
			}
			if row.IsEmpty() {
				continue
			}
			result.Rows = append(result.Rows, row)
		}
	}
	return nil
}

// joinContinuations joins a line with an open quote to the lines after it so
// that a quoted line break does not split a record.
func joinContinuations(lines []string, firstNumber int) []sourceLine {
	out := make([]sourceLine, 0, len(lines))
	for i := 0; i < len(lines); i++ {
		rec := sourceLine{number: firstNumber + i, text: lines[i]}
		for joined := 0; joined < maxContinuationLines && i+1 < len(lines); joined++ {
			if strings.Count(rec.text, `"`)%2 == 0 || startsWithDateToken(lines[i+1]) {
				break
			}
			i++
			rec.text += " " + lines[i]
		}
		out = append(out, rec)
	}
	return out
}
