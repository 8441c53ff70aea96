package ingestapp

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIngestionJob(t *testing.T) {
	reportID := uuid.New()

	t.Run("parses marketplace leniently and trims names", func(t *testing.T) {
		job, err := NewIngestionJob(reportID, " uploads/a.csv ", " a.csv", "Wb")

		require.NoError(t, err)
		assert.Equal(t, reportID, job.ReportID)
		assert.Equal(t, "uploads/a.csv", job.StorageKey)
		assert.Equal(t, "a.csv", job.FileName)
		assert.Equal(t, sales.MarketplaceWildberries, job.Marketplace)
	})

	tests := []struct {
		name        string
		reportID    uuid.UUID
		storageKey  string
		fileName    string
		marketplace string
		wantMsg     string
	}{
		{"unknown marketplace", reportID, "k", "a.csv", "amazon", ""},
		{"missing report id", uuid.Nil, "k", "a.csv", "ozon", "report_id: is required"},
		{"missing storage key", reportID, "  ", "a.csv", "ozon", "storage_key: is required"},
		{"missing file name", reportID, "k", "", "ozon", "file_name: is required"},
		{"file name too long", reportID, "k", strings.Repeat("a", 256), "ozon", "file_name: must be at most 255 characters"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIngestionJob(tt.reportID, tt.storageKey, tt.fileName, tt.marketplace)

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidJob)
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestIngestionJob_Validate(t *testing.T) {
	job := IngestionJob{
		ReportID:    uuid.New(),
		StorageKey:  "uploads/a.csv",
		FileName:    "a.csv",
		Marketplace: "AMAZON",
	}

	err := job.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "marketplace: must be one of: WILDBERRIES OZON")

	job.Marketplace = sales.MarketplaceOzon
	assert.NoError(t, job.Validate())
}
