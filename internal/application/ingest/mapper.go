package ingestapp

import (
	"errors"
	"fmt"
	"time"

	"github.com/marketplace-analytics/backend/internal/domain/sales"
	csvimport "github.com/marketplace-analytics/backend/internal/infrastructure/import"
	"github.com/shopspring/decimal"
)

// RowMapper turns decoded rows of one marketplace export into canonical sale rows
type RowMapper struct {
	profile   sales.ColumnProfile
	dates     *sales.DateNormalizer
	noise     *sales.NoiseList
	validator *csvimport.FieldValidator
	rules     map[sales.Field]csvimport.FieldRule
	now       func() time.Time
}

// MapperConfig configures a RowMapper
type MapperConfig struct {
	Profile sales.ColumnProfile
	Noise   *sales.NoiseList
	Now     func() time.Time
}

// NewRowMapper creates a RowMapper
func NewRowMapper(cfg MapperConfig) *RowMapper {
	if cfg.Noise == nil {
		cfg.Noise = sales.NewNoiseList()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &RowMapper{
		profile:   cfg.Profile,
		dates:     sales.NewDateNormalizer(sales.WithClock(cfg.Now), sales.WithNoiseList(cfg.Noise)),
		noise:     cfg.Noise,
		validator: csvimport.NewFieldValidator(sales.ParseAmount),
		now:       cfg.Now,
	}
	m.rules = m.fieldRules()
	return m
}

func (m *RowMapper) fieldRules() map[sales.Field]csvimport.FieldRule {
	noNoise := func(value string) error {
		if m.noise.Contains(value) {
			return errors.New("holds product name text")
		}
		return nil
	}
	return map[sales.Field]csvimport.FieldRule{
		sales.FieldSKU: csvimport.Field(string(sales.FieldSKU)).Required().
			Length(sales.MinSKULength, sales.MaxSKULength).
			Custom(csvimport.ErrCodeImportNoiseDetected, noNoise).Build(),
		sales.FieldName: csvimport.Field(string(sales.FieldName)).Required().
			Length(sales.MinProductNameLength, sales.MaxProductNameLength).Build(),
		sales.FieldPrice: csvimport.Field(string(sales.FieldPrice)).Required().Decimal().
			Range(decimal.Zero, sales.MaxPrice).Build(),
		sales.FieldQuantity: csvimport.Field(string(sales.FieldQuantity)).Required().Int().
			Range(decimal.NewFromInt(sales.MinQuantity), decimal.NewFromInt(sales.MaxQuantity)).Build(),
	}
}

// Map resolves one row. A non-nil RowError means the row produced no sale.
func (m *RowMapper) Map(row *csvimport.Row) (sales.CanonicalSaleRow, *csvimport.RowError) {
	values := make(map[sales.Field]string, len(sales.RequiredFields))
	headers := make(map[sales.Field]string, len(sales.RequiredFields))
	for _, f := range sales.RequiredFields {
		header, value, ok := m.profile.Resolve(f, row)
		if !ok {
			err := csvimport.NewRowError(row.LineNumber, string(f), csvimport.ErrCodeImportRequiredField,
				fmt.Sprintf("field '%s' is required", f))
			return sales.CanonicalSaleRow{}, &err
		}
		values[f], headers[f] = value, header
	}

	values[sales.FieldName] = csvimport.StripNameArtifacts(values[sales.FieldName])
	for _, f := range []sales.Field{sales.FieldSKU, sales.FieldName, sales.FieldPrice, sales.FieldQuantity} {
		if err := m.validator.Check(row.LineNumber, m.rules[f], values[f]); err != nil {
			return sales.CanonicalSaleRow{}, err
		}
	}

	var dateValue any = values[sales.FieldDate]
	if typed, ok := row.Date(headers[sales.FieldDate]); ok {
		dateValue = typed
	}
	saleDate, ok := m.dates.Normalize(dateValue)
	if !ok {
		err := csvimport.NewRowErrorWithValue(row.LineNumber, string(sales.FieldDate), csvimport.ErrCodeImportInvalidFormat,
			"not a valid sale date", values[sales.FieldDate])
		return sales.CanonicalSaleRow{}, &err
	}

	price, err := sales.ParseAmount(values[sales.FieldPrice])
	if err != nil {
		return sales.CanonicalSaleRow{}, m.invalid(row.LineNumber, sales.FieldPrice, values[sales.FieldPrice], err)
	}
	qty, err := sales.ParseQuantity(values[sales.FieldQuantity])
	if err != nil {
		return sales.CanonicalSaleRow{}, m.invalid(row.LineNumber, sales.FieldQuantity, values[sales.FieldQuantity], err)
	}

	in := sales.SaleRowInput{
		SKU:         values[sales.FieldSKU],
		ProductName: values[sales.FieldName],
		SaleDate:    saleDate,
		Quantity:    qty,
		Price:       price,
	}
	// commission is informational; an unreadable value is treated as absent
	if _, raw, ok := m.profile.Resolve(sales.FieldCommission, row); ok {
		if c, err := sales.ParseAmount(raw); err == nil {
			in.RawCommission = &c
		}
	}

	canonical, err := sales.NewCanonicalSaleRow(in, m.now())
	if err != nil {
		var ie *sales.InvalidInputError
		field := ""
		if errors.As(err, &ie) {
			field = ie.Field
		}
		rowErr := csvimport.NewRowError(row.LineNumber, field, csvimport.ErrCodeImportInvalidValue, err.Error())
		return sales.CanonicalSaleRow{}, &rowErr
	}
	return canonical, nil
}

func (m *RowMapper) invalid(line int, f sales.Field, value string, err error) *csvimport.RowError {
	rowErr := csvimport.NewRowErrorWithValue(line, string(f), csvimport.ErrCodeImportInvalidType, err.Error(), value)
	return &rowErr
}
