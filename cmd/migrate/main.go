// Command migrate manages the postgres schema of the marketplace analytics
// database using the embedded migration set.
package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/marketplace-analytics/backend/internal/infrastructure/config"
	"github.com/marketplace-analytics/backend/internal/infrastructure/logger"
	"github.com/marketplace-analytics/backend/internal/infrastructure/migration"
	"github.com/marketplace-analytics/backend/migrations"
	"go.uber.org/zap"
)

const defaultMigrationsPath = "migrations"

var errUsage = errors.New("invalid usage")

// dbCommand is a subcommand that runs against a live database
type dbCommand struct {
	arg string // required argument name, empty when none
	run func(m *migration.Migrator, arg string, log *zap.Logger) error
}

var dbCommands = map[string]dbCommand{
	"up":   {run: func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Up() }},
	"down": {run: func(m *migration.Migrator, _ string, _ *zap.Logger) error { return m.Down() }},
	"step": {arg: "n", run: func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: step count %q", errUsage, arg)
		}
		return m.Steps(n)
	}},
	"goto": {arg: "version", run: func(m *migration.Migrator, arg string, _ *zap.Logger) error {
		v, err := strconv.ParseUint(arg, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, arg)
		}
		return m.GoTo(uint(v))
	}},
	"force": {arg: "version", run: func(m *migration.Migrator, arg string, log *zap.Logger) error {
		v, err := strconv.Atoi(arg)
		if err != nil {
			return fmt.Errorf("%w: version %q", errUsage, arg)
		}
		log.Warn("Forcing migration version", zap.Int("version", v))
		return m.Force(v)
	}},
	"version": {run: func(m *migration.Migrator, _ string, log *zap.Logger) error {
		v, dirty, err := m.Version()
		if err != nil {
			return err
		}
		if v == 0 {
			log.Info("No migrations applied")
			return nil
		}
		log.Info("Current migration version", zap.Uint("version", v), zap.Bool("dirty", dirty))
		return nil
	}},
	"drop": {arg: "-confirm", run: func(m *migration.Migrator, arg string, log *zap.Logger) error {
		if arg != "-confirm" && arg != "--confirm" {
			return fmt.Errorf("%w: drop needs -confirm", errUsage)
		}
		log.Warn("Dropping all database objects")
		return m.Drop()
	}},
}

func main() {
	var (
		migrationsPath string
		logLevel       string
	)
	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: logger.DefaultTimeFormat,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	err = run(args, migrationsPath, log)
	_ = logger.Sync(log)
	if errors.Is(err, errUsage) {
		log.Error("Invalid command", zap.Error(err))
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("Migration command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(args []string, migrationsPath string, log *zap.Logger) error {
	command := args[0]
	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("source", sourceName(migrationsPath)),
	)

	switch command {
	case "create":
		return create(args[1:], migrationsPath, log)
	case "list":
		return list(sourceFS(migrationsPath), log)
	}

	cmd, ok := dbCommands[command]
	if !ok {
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
	var arg string
	if cmd.arg != "" {
		if len(args) < 2 {
			return fmt.Errorf("%w: %s requires <%s>", errUsage, command, cmd.arg)
		}
		arg = args[1]
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	if cfg.Database.Driver != config.DriverPostgres {
		return fmt.Errorf("migrations require the postgres driver, got %q; sqlite schemas are created by AutoMigrate",
			cfg.Database.Driver)
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	var m *migration.Migrator
	if migrationsPath == "" {
		m, err = migration.NewEmbedded(db, migrations.FS, log)
	} else {
		m, err = migration.New(db, migrationsPath, log)
	}
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	return cmd.run(m, arg, log)
}

func create(args []string, dir string, log *zap.Logger) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: create requires <name>", errUsage)
	}
	if dir == "" {
		dir = defaultMigrationsPath
	}
	var description string
	if len(args) > 1 {
		description = args[1]
	}

	mf, err := migration.CreateMigration(dir, args[0], description)
	if err != nil {
		return err
	}
	log.Info("Migration created",
		zap.String("version", mf.Version),
		zap.String("up_file", mf.UpPath),
		zap.String("down_file", mf.DownPath),
	)
	return nil
}

func list(fsys fs.FS, log *zap.Logger) error {
	if err := migration.CheckPairs(fsys); err != nil {
		log.Warn("Migration set is inconsistent", zap.Error(err))
	}
	names, err := migration.ListMigrations(fsys)
	if err != nil {
		return err
	}
	if len(names) == 0 {
		log.Info("No migrations found")
		return nil
	}
	log.Info("Available migrations", zap.Int("count", len(names)))
	for _, name := range names {
		fmt.Println("  -", name)
	}
	return nil
}

func sourceName(path string) string {
	if path == "" {
		return "embedded"
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

func sourceFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

func printUsage() {
	fmt.Println(`Marketplace Analytics Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                    Apply all pending migrations
  down                  Roll back all migrations
  step <n>              Apply n migrations (positive=up, negative=down)
  goto <version>        Migrate to a specific version
  version               Show current migration version
  force <version>       Force set migration version
  drop -confirm         Drop all database objects
  create <name> [desc]  Create a new migration file pair
  list                  List available migrations and check their pairing

Flags:
  -path string          Read migrations from a directory (default: embedded set;
                        create writes to ./migrations)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  MPA_DATABASE_HOST, MPA_DATABASE_PORT, MPA_DATABASE_USER,
  MPA_DATABASE_PASSWORD, MPA_DATABASE_NAME, MPA_DATABASE_SSLMODE

Examples:
  migrate up
  migrate step -1
  migrate -path migrations create add_sku_index "Index sales records by SKU"`)
}
