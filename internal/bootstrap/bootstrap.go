// Package bootstrap builds the runtime graph shared by the worker and the
// ingest CLI from a loaded configuration.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	ingestapp "github.com/marketplace-analytics/backend/internal/application/ingest"
	"github.com/marketplace-analytics/backend/internal/domain/sales"
	"github.com/marketplace-analytics/backend/internal/infrastructure/cache"
	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/marketplace-analytics/backend/internal/infrastructure/logger"
	"github.com/marketplace-analytics/backend/internal/infrastructure/persistence"
	"github.com/marketplace-analytics/backend/internal/infrastructure/storage"
	"github.com/marketplace-analytics/backend/internal/infrastructure/telemetry"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ConfiguredFeeScheduleVersion tags a schedule that carries overrides from configuration
const ConfiguredFeeScheduleVersion = sales.DefaultFeeScheduleVersion + "+config"

// FeeSchedule applies the configured fee overrides to the built-in profiles.
// Without overrides the built-in schedule is returned unchanged.
func FeeSchedule(fees map[string]config.FeeConfig) (*sales.FeeSchedule, error) {
	if len(fees) == 0 {
		return sales.DefaultFeeSchedule(), nil
	}
	profiles := sales.DefaultFeeProfiles()

	keys := make([]string, 0, len(fees))
	for k := range fees {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		m, err := sales.ParseMarketplace(key)
		if err != nil {
			return nil, fmt.Errorf("fees.%s: %w", key, err)
		}
		profile := profiles[m]
		fc := fees[key]
		if err := overrideRate(&profile.SaleCommissionRate, fc.SaleCommission); err != nil {
			return nil, fmt.Errorf("fees.%s.sale_commission: %w", key, err)
		}
		if err := overrideRate(&profile.LogisticsRate, fc.Logistics); err != nil {
			return nil, fmt.Errorf("fees.%s.logistics: %w", key, err)
		}
		if err := overrideRate(&profile.StorageRate, fc.Storage); err != nil {
			return nil, fmt.Errorf("fees.%s.storage: %w", key, err)
		}
		if strings.TrimSpace(fc.Surcharge) != "" {
			surcharge := sales.Surcharge{Name: "surcharge"}
			if profile.Surcharge != nil {
				surcharge = *profile.Surcharge
			}
			if err := overrideRate(&surcharge.Rate, fc.Surcharge); err != nil {
				return nil, fmt.Errorf("fees.%s.surcharge: %w", key, err)
			}
			profile.Surcharge = &surcharge
		}
		profiles[m] = profile
	}
	return sales.NewFeeSchedule(ConfiguredFeeScheduleVersion, profiles)
}

func overrideRate(dst *decimal.Decimal, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil {
		return fmt.Errorf("invalid rate %q", raw)
	}
	*dst = rate
	return nil
}

// OpenDatabase connects with a zap-backed GORM logger and installs query
// tracing. SQLite schemas are created with AutoMigrate; postgres uses the SQL
// migrations.
func OpenDatabase(cfg *config.Config, log *zap.Logger) (*persistence.Database, error) {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Driver == config.DriverSQLite {
		if err := db.AutoMigrate(); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	dbSystem := "postgresql"
	if cfg.Database.Driver == config.DriverSQLite {
		dbSystem = "sqlite"
	}
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:        dbSystem,
	}, log); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register db tracing: %w", err)
	}
	return db, nil
}

// ConnectRedis returns a connected client, or a nil interface when Redis is
// unreachable so callers can fall back to in-process locks.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig, log *zap.Logger) redis.UniversalClient {
	client, err := cache.NewRedisClient(ctx, cfg)
	if err != nil {
		log.Warn("Redis unavailable", zap.String("addr", cfg.Addr), zap.Error(err))
		return nil
	}
	log.Info("Redis connected", zap.String("addr", cfg.Addr))
	return client
}

// Telemetry holds the trace and metric providers of a process
type Telemetry struct {
	Tracer *telemetry.TracerProvider
	Meter  *telemetry.MeterProvider
}

// SetupTelemetry creates the trace and metric providers. When telemetry is
// disabled both are no-op.
func SetupTelemetry(ctx context.Context, cfg config.TelemetryConfig, version string, log *zap.Logger) (*Telemetry, error) {
	tcfg := telemetry.Config{
		Enabled:           cfg.Enabled,
		CollectorEndpoint: cfg.CollectorEndpoint,
		Insecure:          cfg.Insecure,
		ServiceName:       cfg.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     cfg.SamplingRatio,
		MetricsInterval:   cfg.MetricsInterval,
	}
	tp, err := telemetry.NewTracerProvider(ctx, tcfg, log)
	if err != nil {
		return nil, fmt.Errorf("tracer provider: %w", err)
	}
	mp, err := telemetry.NewMeterProvider(ctx, tcfg, log)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("meter provider: %w", err)
	}
	return &Telemetry{Tracer: tp, Meter: mp}, nil
}

// Shutdown flushes and stops both providers
func (t *Telemetry) Shutdown(ctx context.Context) error {
	return errors.Join(t.Meter.Shutdown(ctx), t.Tracer.Shutdown(ctx))
}

// Ingestion is the wired ingestion pipeline
type Ingestion struct {
	Orchestrator *ingestapp.Orchestrator
	Store        storage.FileStore
	Locker       sales.ReportLocker
	Reports      *persistence.GormReportRepository
}

// NewIngestion wires the orchestrator to its file store, database, locks and
// fee schedule. recorder may be nil.
func NewIngestion(
	ctx context.Context,
	cfg *config.Config,
	db *persistence.Database,
	redisClient redis.UniversalClient,
	recorder ingestapp.RunRecorder,
	log *zap.Logger,
) (*Ingestion, error) {
	fees, err := FeeSchedule(cfg.Fees)
	if err != nil {
		return nil, err
	}
	log.Info("Fee schedule loaded",
		zap.String("version", fees.Version()),
		zap.Int("marketplaces", len(fees.Marketplaces())),
	)

	store, err := storage.New(ctx, &cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("file store: %w", err)
	}

	locker := cache.NewReportLocker(redisClient, cfg.Ingestion.LockTTL, log)

	opts := []ingestapp.Option{}
	if recorder != nil {
		opts = append(opts, ingestapp.WithRecorder(recorder))
	}
	orch := ingestapp.NewOrchestrator(
		ingestapp.Config{
			Workers:               cfg.Ingestion.Workers,
			MaxFileSize:           cfg.Ingestion.MaxFileSize,
			MaxDiagnostics:        cfg.Ingestion.MaxDiagnostics,
			DeleteSourceOnSuccess: cfg.Ingestion.DeleteSourceOnSuccess,
			NoiseTokens:           cfg.Ingestion.NoiseTokens,
		},
		store,
		persistence.NewGormSalesIngestionStore(db.DB, cfg.Ingestion.BatchSize),
		locker,
		sales.NewCalculator(fees),
		log,
		opts...,
	)
	return &Ingestion{
		Orchestrator: orch,
		Store:        store,
		Locker:       locker,
		Reports:      persistence.NewGormReportRepository(db.DB),
	}, nil
}

// ShutdownTimeout bounds graceful shutdown of a process
const ShutdownTimeout = 30 * time.Second
