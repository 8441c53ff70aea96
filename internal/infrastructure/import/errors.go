package csvimport

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Import error codes
const (
	// File-level errors
	ErrCodeImportUnsupportedFormat = "ERR_IMPORT_UNSUPPORTED_FORMAT"
	ErrCodeImportDecodeFailed      = "ERR_IMPORT_DECODE_FAILED"
	ErrCodeImportEmptyFile         = "ERR_IMPORT_EMPTY_FILE"
	ErrCodeImportFileTooLarge      = "ERR_IMPORT_FILE_TOO_LARGE"

	// Line-level repair drops
	ErrCodeRowDropped         = "ERR_IMPORT_ROW_DROPPED"
	ErrCodeImportNoDateToken  = "ERR_IMPORT_NO_DATE_TOKEN"
	ErrCodeImportTooFewFields = "ERR_IMPORT_TOO_FEW_FIELDS"
	ErrCodeImportCorruptField = "ERR_IMPORT_CORRUPT_FIELD"
	ErrCodeImportMalformedRow = "ERR_IMPORT_MALFORMED_ROW"

	// Field validation
	ErrCodeImportRequiredField   = "ERR_IMPORT_REQUIRED_FIELD"
	ErrCodeImportInvalidType     = "ERR_IMPORT_INVALID_TYPE"
	ErrCodeImportInvalidFormat   = "ERR_IMPORT_INVALID_FORMAT"
	ErrCodeImportInvalidLength   = "ERR_IMPORT_INVALID_LENGTH"
	ErrCodeImportInvalidRange    = "ERR_IMPORT_INVALID_RANGE"
	ErrCodeImportNoiseDetected   = "ERR_IMPORT_NOISE_DETECTED"
	ErrCodeImportInvalidValue    = "ERR_IMPORT_INVALID_VALUE"
	ErrCodeImportAnalyticsFailed = "ERR_IMPORT_ANALYTICS_FAILED"
)

// Common import errors
var (
	// ErrUnsupportedFormat is returned for a file extension the decoder cannot read
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrDecodeFailed is returned when the file body cannot be decoded at all
	ErrDecodeFailed = errors.New("failed to decode file")

	// ErrEmptyFile is returned when the file has no content
	ErrEmptyFile = errors.New("file is empty")

	// ErrMissingHeader is returned when the file has no header row
	ErrMissingHeader = errors.New("file missing header row")

	// ErrFileTooLarge is returned when the file exceeds maximum size
	ErrFileTooLarge = errors.New("file exceeds maximum allowed size")
)

// valuePrefixLength bounds the raw value kept on a RowError
const valuePrefixLength = 80

// RowError represents a problem with a specific row. For row drops it is a
// diagnostic, not a failure of the file.
type RowError struct {
	Row     int    `json:"row"`
	Column  string `json:"column"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   string `json:"value,omitempty"`
}

// Error implements the error interface
func (e RowError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("row %d, column '%s': %s", e.Row, e.Column, e.Message)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Message)
}

// NewRowError creates a new RowError
func NewRowError(row int, column, code, message string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
	}
}

// NewRowErrorWithValue creates a new RowError carrying a prefix of the offending value
func NewRowErrorWithValue(row int, column, code, message, value string) RowError {
	return RowError{
		Row:     row,
		Column:  column,
		Code:    code,
		Message: message,
		Value:   Prefix(value, valuePrefixLength),
	}
}

// Prefix returns at most n runes of s
func Prefix(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// ErrorCollection manages a collection of import errors. It is not safe for
// concurrent use.
type ErrorCollection struct {
	errors     []RowError
	maxErrors  int
	totalCount int
	byCode     map[string]int
}

// NewErrorCollection creates a new ErrorCollection with a maximum error limit
func NewErrorCollection(maxErrors int) *ErrorCollection {
	if maxErrors <= 0 {
		maxErrors = 100 // Default limit
	}
	return &ErrorCollection{
		errors:    make([]RowError, 0, maxErrors),
		maxErrors: maxErrors,
		byCode:    make(map[string]int),
	}
}

// Add adds an error to the collection
func (ec *ErrorCollection) Add(err RowError) {
	ec.totalCount++
	ec.byCode[err.Code]++
	if len(ec.errors) < ec.maxErrors {
		ec.errors = append(ec.errors, err)
	}
}

// Merge adds every error of other, keeping other's totals
func (ec *ErrorCollection) Merge(other *ErrorCollection) {
	if other == nil {
		return
	}
	for _, err := range other.errors {
		if len(ec.errors) < ec.maxErrors {
			ec.errors = append(ec.errors, err)
		}
	}
	ec.totalCount += other.totalCount
	for code, n := range other.byCode {
		ec.byCode[code] += n
	}
}

// AddRequiredError adds a required field error
func (ec *ErrorCollection) AddRequiredError(row int, column string) {
	ec.Add(NewRowError(row, column, ErrCodeImportRequiredField, fmt.Sprintf("field '%s' is required", column)))
}

// AddDropped records a line dropped by the repair stages
func (ec *ErrorCollection) AddDropped(row int, code, reason, line string) {
	ec.Add(NewRowErrorWithValue(row, "", code, reason, line))
}

// Errors returns the collected errors
func (ec *ErrorCollection) Errors() []RowError {
	return ec.errors
}

// Count returns the number of collected errors (up to maxErrors)
func (ec *ErrorCollection) Count() int {
	return len(ec.errors)
}

// TotalCount returns the total number of errors including those not collected
func (ec *ErrorCollection) TotalCount() int {
	return ec.totalCount
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollection) HasErrors() bool {
	return ec.totalCount > 0
}

// IsTruncated returns true if some errors were not collected due to the limit
func (ec *ErrorCollection) IsTruncated() bool {
	return ec.totalCount > len(ec.errors)
}

// ErrorSummary returns the number of errors per code, including truncated ones
func (ec *ErrorCollection) ErrorSummary() map[string]int {
	summary := make(map[string]int, len(ec.byCode))
	for code, n := range ec.byCode {
		summary[code] = n
	}
	return summary
}

// String returns a string representation of all errors
func (ec *ErrorCollection) String() string {
	if !ec.HasErrors() {
		return "no errors"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d error(s) found", ec.totalCount))
	if ec.IsTruncated() {
		sb.WriteString(fmt.Sprintf(" (showing first %d)", len(ec.errors)))
	}
	sb.WriteString(":\n")

	codes := make([]string, 0, len(ec.byCode))
	for code := range ec.byCode {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		sb.WriteString(fmt.Sprintf("  [%s] x%d\n", code, ec.byCode[code]))
	}
	for _, err := range ec.errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}

	return sb.String()
}
