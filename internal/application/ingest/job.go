package ingestapp

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
)

// IngestionJob describes one file to ingest into one report
type IngestionJob struct {
	ReportID    uuid.UUID         `json:"report_id" validate:"required"`
	StorageKey  string            `json:"storage_key" validate:"required,max=1024"`
	FileName    string            `json:"file_name" validate:"required,max=255"`
	Marketplace sales.Marketplace `json:"marketplace" validate:"required,oneof=WILDBERRIES OZON"`
}

var (
	jobValidator     *validator.Validate
	jobValidatorOnce sync.Once
)

func getJobValidator() *validator.Validate {
	jobValidatorOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		// Use JSON tag names for field names in errors
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		jobValidator = v
	})
	return jobValidator
}

// NewIngestionJob builds and validates a job. The marketplace is parsed
// leniently, so "wb" and "Ozon" are accepted.
func NewIngestionJob(reportID uuid.UUID, storageKey, fileName, marketplace string) (IngestionJob, error) {
	m, err := sales.ParseMarketplace(marketplace)
	if err != nil {
		return IngestionJob{}, fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	job := IngestionJob{
		ReportID:    reportID,
		StorageKey:  strings.TrimSpace(storageKey),
		FileName:    strings.TrimSpace(fileName),
		Marketplace: m,
	}
	if err := job.Validate(); err != nil {
		return IngestionJob{}, err
	}
	return job, nil
}

// Validate checks the job fields
func (j IngestionJob) Validate() error {
	err := getJobValidator().Struct(j)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrInvalidJob, err)
	}
	msgs := make([]string, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		msgs = append(msgs, e.Field()+": "+validationMessage(e))
	}
	return fmt.Errorf("%w: %s", ErrInvalidJob, strings.Join(msgs, "; "))
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + e.Param() + " characters"
	case "oneof":
		return "must be one of: " + e.Param()
	default:
		return "invalid value"
	}
}
