package bootstrap

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/infrastructure/cache"
	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFeeSchedule(t *testing.T) {
	t.Run("no overrides keeps the built-in schedule", func(t *testing.T) {
		fees, err := FeeSchedule(nil)
		require.NoError(t, err)
		assert.Equal(t, sales.DefaultFeeScheduleVersion, fees.Version())
	})

	t.Run("overrides replace only the configured rates", func(t *testing.T) {
		fees, err := FeeSchedule(map[string]config.FeeConfig{
			"wildberries": {SaleCommission: "0.06", Surcharge: "0.02"},
			"ozon":        {Logistics: " 0.04 "},
		})
		require.NoError(t, err)
		assert.Equal(t, ConfiguredFeeScheduleVersion, fees.Version())

		wb, ok := fees.Profile(sales.MarketplaceWildberries)
		require.True(t, ok)
		assert.True(t, wb.SaleCommissionRate.Equal(decimal.RequireFromString("0.06")))
		assert.True(t, wb.LogisticsRate.Equal(decimal.RequireFromString("0.04")))
		require.NotNil(t, wb.Surcharge)
		assert.Equal(t, "acquiring", wb.Surcharge.Name)
		assert.True(t, wb.Surcharge.Rate.Equal(decimal.RequireFromString("0.02")))

		ozon, ok := fees.Profile(sales.MarketplaceOzon)
		require.True(t, ok)
		assert.True(t, ozon.LogisticsRate.Equal(decimal.RequireFromString("0.04")))
		assert.True(t, ozon.SaleCommissionRate.Equal(decimal.RequireFromString("0.08")))
	})

	tests := []struct {
		name    string
		fees    map[string]config.FeeConfig
		wantErr string
	}{
		{"unknown marketplace", map[string]config.FeeConfig{"amazon": {Storage: "0.01"}}, "fees.amazon"},
		{"unparsable rate", map[string]config.FeeConfig{"wb": {Storage: "five"}}, "fees.wb.storage"},
		{"rate above one", map[string]config.FeeConfig{"ozon": {SaleCommission: "1.5"}}, "invalid fee schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := FeeSchedule(tt.fees)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func sqliteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{Driver: config.DriverSQLite, SQLitePath: ":memory:"},
		Storage:  config.StorageConfig{Driver: config.StorageLocal, LocalRoot: t.TempDir()},
		Log:      config.LogConfig{Level: "error"},
		Ingestion: config.IngestionConfig{
			Workers:               2,
			BatchSize:             100,
			MaxFileSize:           1 << 20,
			DeleteSourceOnSuccess: true,
		},
	}
}

func TestOpenDatabase_SQLite(t *testing.T) {
	db, err := OpenDatabase(sqliteConfig(t), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	assert.True(t, db.DB.Migrator().HasTable("reports"))
	assert.True(t, db.DB.Migrator().HasTable("sales_records"))
}

func TestConnectRedis_Unreachable(t *testing.T) {
	client := ConnectRedis(context.Background(), config.RedisConfig{Addr: "127.0.0.1:1"}, zap.NewNop())
	assert.Nil(t, client)
}

func TestSetupTelemetry_Disabled(t *testing.T) {
	tel, err := SetupTelemetry(context.Background(), config.TelemetryConfig{ServiceName: "test"}, "dev", zap.NewNop())
	require.NoError(t, err)
	assert.False(t, tel.Tracer.IsEnabled())
	assert.False(t, tel.Meter.IsEnabled())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestNewIngestion_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cfg := sqliteConfig(t)
	db, err := OpenDatabase(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ing, err := NewIngestion(ctx, cfg, db, nil, nil, zap.NewNop())
	require.NoError(t, err)
	_, inMemory := ing.Locker.(*cache.MemoryReportLocker)
	assert.True(t, inMemory)

	report, err := sales.NewReport(uuid.New(), "wb.csv", sales.MarketplaceWildberries)
	require.NoError(t, err)
	require.NoError(t, ing.Reports.Create(ctx, report))

	csv := "Дата продажи;Артикул WB;Наименование;Цена продажи;Количество\n" +
		"15.03.2024;WB-1001;Шапка зимняя;1000;2\n"
	key := "reports/" + report.ID.String() + "/wb.csv"
	require.NoError(t, ing.Store.Put(ctx, key, strings.NewReader(csv)))

	job, err := ingestapp.NewIngestionJob(report.ID, key, "wb.csv", "wb")
	require.NoError(t, err)
	result, err := ing.Orchestrator.Run(ctx, job)
	require.NoError(t, err)
	assert.Equal(t, ingestapp.StateDone, result.State)
	assert.Equal(t, 1, result.Diagnostics.Persisted)

	stored, err := ing.Reports.FindByID(ctx, report.ID)
	require.NoError(t, err)
	assert.True(t, stored.Processed)
	assert.True(t, stored.TotalRevenue.Equal(decimal.NewFromInt(2000)))
}
