package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations
var migrations embed.FS

// Migrator applies the embedded SQL migrations for one dialect.
type Migrator struct {
	provider *goose.Provider
	log      *zap.Logger
}

// NewMigrator builds a Migrator over the connection held by db.
func NewMigrator(db *gorm.DB, driver string, log *zap.Logger) (*Migrator, error) {
	if log == nil {
		log = zap.NewNop()
	}

	var (
		dialect goose.Dialect
		dir     string
	)
	switch normalizeDriver(driver) {
	case DriverMySQL:
		dialect, dir = goose.DialectMySQL, "migrations/mysql"
	case DriverPostgres:
		dialect, dir = goose.DialectPostgres, "migrations/postgres"
	case DriverSQLite:
		dialect, dir = goose.DialectSQLite3, "migrations/sqlite3"
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get sql db: %w", err)
	}
	fsys, err := fs.Sub(migrations, dir)
	if err != nil {
		return nil, fmt.Errorf("migrations dir: %w", err)
	}
	provider, err := goose.NewProvider(dialect, sqlDB, fsys)
	if err != nil {
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	return &Migrator{provider: provider, log: log}, nil
}

// Up applies every pending migration.
func (m *Migrator) Up(ctx context.Context) error {
	results, err := m.provider.Up(ctx)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down(ctx context.Context) error {
	result, err := m.provider.Down(ctx)
	if result != nil {
		m.logResults([]*goose.MigrationResult{result})
	}
	if err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}
	return nil
}

// Reset rolls every migration back and re-applies them, leaving an empty schema.
func (m *Migrator) Reset(ctx context.Context) error {
	results, err := m.provider.DownTo(ctx, 0)
	m.logResults(results)
	if err != nil {
		return fmt.Errorf("migrate reset: %w", err)
	}
	return m.Up(ctx)
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	return m.provider.GetDBVersion(ctx)
}

// MigrationStatus describes one migration.
type MigrationStatus struct {
	Version int64
	Path    string
	Applied bool
}

// Status lists every known migration and whether it is applied.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	statuses, err := m.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate status: %w", err)
	}
	out := make([]MigrationStatus, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, MigrationStatus{
			Version: s.Source.Version,
			Path:    s.Source.Path,
			Applied: s.State == goose.StateApplied,
		})
	}
	return out, nil
}

func (m *Migrator) logResults(results []*goose.MigrationResult) {
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		fields := []zap.Field{
			zap.Int64("version", r.Source.Version),
			zap.String("path", r.Source.Path),
			zap.String("direction", r.Direction),
			zap.Duration("duration", r.Duration),
		}
		if r.Error != nil {
			m.log.Error("migration failed", append(fields, zap.Error(r.Error))...)
			continue
		}
		m.log.Info("migration applied", fields...)
	}
}
