// Package migrations exposes the embedded CRM schema to go-persistence-bun.
// Postgres files live in data/sql/migrations and the sqlite variants in
// data/sql/migrations/sqlite; both sets must carry the same versions.
package migrations

import (
	"context"
	"fmt"
	"io/fs"
	"slices"
	"sort"
	"strings"

	crm "github.com/goliatone/go-crm"
)

const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultSourceLabel = "go-crm"
	rootPath           = "data/sql/migrations"
)

// Source is one dialect's migration directory.
type Source struct {
	Dialect  string
	Path     string
	FS       fs.FS
	Versions []string
}

type RegisterFunc func(ctx context.Context, dialect string, sourceLabel string, fsys fs.FS) error

type options struct {
	label   string
	targets []string
	root    fs.FS
}

type Option func(*options)

func WithSourceLabel(label string) Option {
	return func(o *options) {
		if label = strings.TrimSpace(label); label != "" {
			o.label = label
		}
	}
}

// WithValidationTargets limits registration to the given dialects.
func WithValidationTargets(dialects ...string) Option {
	return func(o *options) {
		targets := make([]string, 0, len(dialects))
		for _, dialect := range dialects {
			if dialect = normalizeDialect(dialect); dialect != "" && !slices.Contains(targets, dialect) {
				targets = append(targets, dialect)
			}
		}
		if len(targets) > 0 {
			o.targets = targets
		}
	}
}

// WithRoot replaces the embedded filesystem, mainly for tests.
func WithRoot(root fs.FS) Option {
	return func(o *options) {
		if root != nil {
			o.root = root
		}
	}
}

// DialectForDriver maps a database/sql driver name to its migration set.
func DialectForDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "pgx", "pq":
		return DialectPostgres
	default:
		return DialectSQLite
	}
}

// Sources returns the postgres and sqlite sets found under root, or under the
// embedded CRM schema when root is nil.
func Sources(root fs.FS) ([]Source, error) {
	if root == nil {
		root = crm.GetMigrationsFS()
	}
	postgres, err := fs.Sub(root, rootPath)
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve %s: %w", rootPath, err)
	}
	sqlite, err := fs.Sub(postgres, "sqlite")
	if err != nil {
		return nil, fmt.Errorf("migrations: resolve sqlite set: %w", err)
	}

	sources := []Source{
		{Dialect: DialectPostgres, Path: rootPath, FS: postgres},
		{Dialect: DialectSQLite, Path: rootPath + "/sqlite", FS: sqlite},
	}
	for i := range sources {
		versions, err := versions(sources[i].FS)
		if err != nil {
			return nil, fmt.Errorf("migrations: %s set %s: %w", sources[i].Dialect, sources[i].Path, err)
		}
		sources[i].Versions = versions
	}
	if !slices.Equal(sources[0].Versions, sources[1].Versions) {
		return nil, fmt.Errorf("migrations: postgres versions %v differ from sqlite versions %v",
			sources[0].Versions, sources[1].Versions)
	}
	return sources, nil
}

// Register hands each targeted dialect set to registerFn and returns the
// sources it registered.
func Register(ctx context.Context, registerFn RegisterFunc, opts ...Option) ([]Source, error) {
	if registerFn == nil {
		return nil, fmt.Errorf("migrations: register function is required")
	}
	cfg := options{
		label:   defaultSourceLabel,
		targets: []string{DialectPostgres, DialectSQLite},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	sources, err := Sources(cfg.root)
	if err != nil {
		return nil, err
	}
	registered := make([]Source, 0, len(cfg.targets))
	for _, source := range sources {
		if !slices.Contains(cfg.targets, source.Dialect) {
			continue
		}
		if err := registerFn(ctx, source.Dialect, cfg.label, source.FS); err != nil {
			return registered, fmt.Errorf("migrations: register %s (%s): %w", source.Dialect, source.Path, err)
		}
		registered = append(registered, source)
	}
	if len(registered) == 0 {
		return nil, fmt.Errorf("migrations: no migration set matches %v", cfg.targets)
	}
	return registered, nil
}

// versions lists migration names that have both an up and a down file.
func versions(fsys fs.FS) ([]string, error) {
	ups, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return nil, err
	}
	if len(ups) == 0 {
		return nil, fmt.Errorf("no *.up.sql files")
	}
	out := make([]string, 0, len(ups))
	for _, up := range ups {
		name := strings.TrimSuffix(up, ".up.sql")
		if _, err := fs.Stat(fsys, name+".down.sql"); err != nil {
			return nil, fmt.Errorf("missing %s.down.sql", name)
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func normalizeDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case DialectPostgres:
		return DialectPostgres
	case DialectSQLite, "sqlite3":
		return DialectSQLite
	default:
		return ""
	}
}
