package storage

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

func (s *SQLStore) gooseProvider() (*goose.Provider, error) {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migrations fs: %w", err)
	}

	dialect := goose.DialectPostgres
	if s.dialect == DialectSQLite {
		dialect = goose.DialectSQLite3
	}

	return goose.NewProvider(dialect, s.db, fsys)
}

// Migrate applies all pending migrations
func (s *SQLStore) Migrate(ctx context.Context) error {
	provider, err := s.gooseProvider()
	if err != nil {
		return err
	}

	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// MigrationVersion returns the current schema version
func (s *SQLStore) MigrationVersion(ctx context.Context) (int64, error) {
	provider, err := s.gooseProvider()
	if err != nil {
		return 0, err
	}
	return provider.GetDBVersion(ctx)
}
