package store

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFS embed.FS

// migration is one versioned schema file, e.g. 0001_init.sql.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrator is the dialect-specific half of the runner.
type migrator interface {
	ensureMigrationsTable(ctx context.Context) error
	appliedVersions(ctx context.Context) (map[int]bool, error)
	// applyMigration runs m and records its version in one transaction.
	applyMigration(ctx context.Context, m migration) error
}

func loadMigrations(dir string) ([]migration, error) {
	entries, err := fs.ReadDir(migrationFS, dir)
	if err != nil {
		return nil, errors.Wrapf(err, "read migrations %s", dir)
	}

	var out []migration
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			return nil, fmt.Errorf("migration %s: name must be <version>_<name>.sql", e.Name())
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			return nil, fmt.Errorf("migration %s: bad version: %w", e.Name(), err)
		}
		body, err := fs.ReadFile(migrationFS, path.Join(dir, e.Name()))
		if err != nil {
			return nil, errors.Wrapf(err, "read migration %s", e.Name())
		}
		out = append(out, migration{Version: version, Name: e.Name(), SQL: string(body)})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("duplicate migration version %d", out[i].Version)
		}
	}
	return out, nil
}

// runMigrations applies every migration in dir that m has not recorded yet.
func runMigrations(ctx context.Context, dir string, m migrator) ([]int, error) {
	migrations, err := loadMigrations(dir)
	if err != nil {
		return nil, err
	}

	if err := m.ensureMigrationsTable(ctx); err != nil {
		return nil, errors.Wrap(err, "create schema_migrations")
	}

	applied, err := m.appliedVersions(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "read schema_migrations")
	}

	var done []int
	for _, mig := range migrations {
		if applied[mig.Version] {
			continue
		}
		if err := m.applyMigration(ctx, mig); err != nil {
			return done, errors.Wrapf(err, "apply migration %s", mig.Name)
		}
		done = append(done, mig.Version)
	}
	return done, nil
}
