// Package shared holds error kinds common to every domain package.
package shared

import "fmt"

// DomainError is an error kind identified by Code. Errors derived from one
// kind with Withf match it under errors.Is.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches any DomainError with the same code
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && t.Code == e.Code
}

// Withf returns an error of the same kind with a formatted detail appended
func (e *DomainError) Withf(format string, args ...any) *DomainError {
	return &DomainError{Code: e.Code, Message: e.Message + ": " + fmt.Sprintf(format, args...)}
}

// NewDomainError creates an error kind
func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

var (
	ErrNotFound     = NewDomainError("NOT_FOUND", "resource not found")
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "invalid input")
)
