package csvimport

import (
	"fmt"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// FieldType represents the expected type of a field
type FieldType string

const (
	TypeString  FieldType = "string"
	TypeInt     FieldType = "int"
	TypeDecimal FieldType = "decimal"
)

// NumberParser parses a numeric cell. The default is decimal.NewFromString.
type NumberParser func(value string) (decimal.Decimal, error)

// FieldRule defines validation rules for a field
type FieldRule struct {
	Column     string
	Type       FieldType
	Required   bool
	MinLength  int
	MaxLength  int
	MinValue   *decimal.Decimal
	MaxValue   *decimal.Decimal
	CustomCode string
	CustomFunc func(value string) error
}

// FieldRuleBuilder helps build field rules fluently
type FieldRuleBuilder struct {
	rule FieldRule
}

// Field creates a new field rule builder
func Field(column string) *FieldRuleBuilder {
	return &FieldRuleBuilder{
		rule: FieldRule{
			Column: column,
			Type:   TypeString,
		},
	}
}

// Required marks the field as required
func (b *FieldRuleBuilder) Required() *FieldRuleBuilder {
	b.rule.Required = true
	return b
}

// Int sets the field type to integer
func (b *FieldRuleBuilder) Int() *FieldRuleBuilder {
	b.rule.Type = TypeInt
	return b
}

// Decimal sets the field type to decimal
func (b *FieldRuleBuilder) Decimal() *FieldRuleBuilder {
	b.rule.Type = TypeDecimal
	return b
}

// Length sets the min and max length in characters
func (b *FieldRuleBuilder) Length(min, max int) *FieldRuleBuilder {
	b.rule.MinLength = min
	b.rule.MaxLength = max
	return b
}

// Range sets both min and max values
func (b *FieldRuleBuilder) Range(min, max decimal.Decimal) *FieldRuleBuilder {
	b.rule.MinValue = &min
	b.rule.MaxValue = &max
	return b
}

// Custom sets a custom validation function reported under code
func (b *FieldRuleBuilder) Custom(code string, fn func(value string) error) *FieldRuleBuilder {
	b.rule.CustomCode = code
	b.rule.CustomFunc = fn
	return b
}

// Build returns the built field rule
func (b *FieldRuleBuilder) Build() FieldRule {
	return b.rule
}

// FieldValidator checks cell values against rules. It holds no per-row state
// and is safe for concurrent use.
type FieldValidator struct {
	parseNumber NumberParser
}

// NewFieldValidator creates a new field validator. A nil parser means
// decimal.NewFromString.
func NewFieldValidator(parser NumberParser) *FieldValidator {
	if parser == nil {
		parser = decimal.NewFromString
	}
	return &FieldValidator{parseNumber: parser}
}

// Check validates one value of a row. A nil result means the value passed.
func (v *FieldValidator) Check(row int, rule FieldRule, value string) *RowError {
	if value == "" {
		if rule.Required {
			err := NewRowError(row, rule.Column, ErrCodeImportRequiredField, fmt.Sprintf("field '%s' is required", rule.Column))
			return &err
		}
		return nil
	}

	fail := func(code, msg string) *RowError {
		err := NewRowErrorWithValue(row, rule.Column, code, msg, value)
		return &err
	}

	if n := utf8.RuneCountInString(value); (rule.MinLength > 0 && n < rule.MinLength) || (rule.MaxLength > 0 && n > rule.MaxLength) {
		return fail(ErrCodeImportInvalidLength, fmt.Sprintf("length must be between %d and %d characters", rule.MinLength, rule.MaxLength))
	}

	if rule.Type == TypeInt || rule.Type == TypeDecimal {
		d, err := v.parseNumber(value)
		if err != nil {
			return fail(ErrCodeImportInvalidType, fmt.Sprintf("expected %s value", rule.Type))
		}
		if rule.Type == TypeInt && !d.IsInteger() {
			return fail(ErrCodeImportInvalidType, "expected int value")
		}
		if err := validateRange(d, rule.MinValue, rule.MaxValue); err != nil {
			return fail(ErrCodeImportInvalidRange, err.Error())
		}
	}

	if rule.CustomFunc != nil {
		if err := rule.CustomFunc(value); err != nil {
			code := rule.CustomCode
			if code == "" {
				code = ErrCodeImportInvalidValue
			}
			return fail(code, err.Error())
		}
	}
	return nil
}

// CheckAll validates values by rule column and returns the first failure
func (v *FieldValidator) CheckAll(row int, rules []FieldRule, values map[string]string) *RowError {
	for _, rule := range rules {
		if err := v.Check(row, rule, values[rule.Column]); err != nil {
			return err
		}
	}
	return nil
}

// validateRange validates numeric value against min/max
func validateRange(d decimal.Decimal, min, max *decimal.Decimal) error {
	if min != nil && d.LessThan(*min) {
		return fmt.Errorf("value %s is less than minimum %s", d.String(), min.String())
	}
	if max != nil && d.GreaterThan(*max) {
		return fmt.Errorf("value %s is greater than maximum %s", d.String(), max.String())
	}
	return nil
}
