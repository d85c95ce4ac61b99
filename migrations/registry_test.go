package migrations

import (
	"context"
	"database/sql"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	crm "github.com/goliatone/go-crm"
	_ "github.com/mattn/go-sqlite3"
)

func TestSources_PairedVersionsForBothDialects(t *testing.T) {
	sources, err := Sources(nil)
	if err != nil {
		t.Fatalf("sources: %v", err)
	}
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	want := []string{"00001_crm_core_schema", "00002_crm_jobs"}
	for _, source := range sources {
		if strings.Join(source.Versions, ",") != strings.Join(want, ",") {
			t.Fatalf("%s: expected versions %v, got %v", source.Dialect, want, source.Versions)
		}
	}
	if sources[0].Dialect != DialectPostgres || sources[1].Dialect != DialectSQLite {
		t.Fatalf("unexpected dialect order: %s, %s", sources[0].Dialect, sources[1].Dialect)
	}
}

func TestSources_RejectsMismatchedSets(t *testing.T) {
	root := fstest.MapFS{
		"data/sql/migrations/00001_a.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00001_a.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.up.sql":          {Data: []byte("SELECT 1;")},
		"data/sql/migrations/00002_b.down.sql":        {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.up.sql":   {Data: []byte("SELECT 1;")},
		"data/sql/migrations/sqlite/00001_a.down.sql": {Data: []byte("SELECT 1;")},
	}
	if _, err := Sources(root); err == nil {
		t.Fatalf("expected version mismatch error")
	}

	delete(root, "data/sql/migrations/00002_b.up.sql")
	delete(root, "data/sql/migrations/00002_b.down.sql")
	delete(root, "data/sql/migrations/sqlite/00001_a.down.sql")
	if _, err := Sources(root); err == nil || !strings.Contains(err.Error(), "00001_a.down.sql") {
		t.Fatalf("expected missing down file error, got %v", err)
	}
}

func TestDialectForDriver(t *testing.T) {
	cases := map[string]string{
		"postgres": DialectPostgres,
		" PGX ":    DialectPostgres,
		"sqlite3":  DialectSQLite,
		"":         DialectSQLite,
	}
	for driver, want := range cases {
		if got := DialectForDriver(driver); got != want {
			t.Fatalf("driver %q: expected %q, got %q", driver, want, got)
		}
	}
}

func TestRegister_UsesValidationTargets(t *testing.T) {
	var calls []string
	_, err := Register(context.Background(), func(_ context.Context, dialect string, _ string, _ fs.FS) error {
		calls = append(calls, dialect)
		return nil
	}, WithValidationTargets(DialectSQLite))
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if len(calls) != 1 {
		t.Fatalf("expected 1 registration call, got %d", len(calls))
	}
	if calls[0] != DialectSQLite {
		t.Fatalf("expected sqlite registration, got %q", calls[0])
	}
}

func TestCoreSchemaMigrationPairs_ExistForBothDialects(t *testing.T) {
	root := crm.GetMigrationsFS()
	for _, name := range []string{"00001_crm_core_schema", "00002_crm_jobs"} {
		paths := []string{
			"data/sql/migrations/" + name + ".up.sql",
			"data/sql/migrations/" + name + ".down.sql",
			"data/sql/migrations/sqlite/" + name + ".up.sql",
			"data/sql/migrations/sqlite/" + name + ".down.sql",
		}
		for _, migrationPath := range paths {
			content, err := fs.ReadFile(root, migrationPath)
			if err != nil {
				t.Fatalf("read migration %s: %v", migrationPath, err)
			}
			if strings.TrimSpace(string(content)) == "" {
				t.Fatalf("expected migration %s to have SQL content", migrationPath)
			}
		}
	}
}

func TestRegister_DefaultSourceLabel(t *testing.T) {
	var labels []string
	registered, err := Register(context.Background(), func(_ context.Context, _ string, label string, _ fs.FS) error {
		labels = append(labels, label)
		return nil
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(registered) != 2 || len(labels) != 2 {
		t.Fatalf("expected postgres and sqlite registrations, got %d", len(labels))
	}
	for _, label := range labels {
		if label != "go-crm" {
			t.Fatalf("expected go-crm source label, got %q", label)
		}
	}

	if _, err := Register(context.Background(), func(context.Context, string, string, fs.FS) error { return nil },
		WithValidationTargets("mysql")); err != nil {
		t.Fatalf("unknown targets keep the defaults, got %v", err)
	}
}

func TestRegister_RequiresRegisterFunc(t *testing.T) {
	if _, err := Register(context.Background(), nil); err == nil {
		t.Fatalf("expected error for nil register function")
	}
}

func TestSQLiteJobsMigration_IdempotencyKeyUniqueUntilRollback(t *testing.T) {
	db, err := sql.Open("sqlite3", "file:migrations-crm-jobs?mode=memory&cache=shared&_foreign_keys=on")
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	defer func() { _ = db.Close() }()

	root := crm.GetMigrationsFS()
	sqliteMigrations, err := fs.Sub(root, "data/sql/migrations/sqlite")
	if err != nil {
		t.Fatalf("resolve sqlite migrations: %v", err)
	}
	for _, migration := range []string{
		"00001_crm_core_schema.up.sql",
		"00002_crm_jobs.up.sql",
	} {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("apply migration %s: %v", migration, err)
		}
	}

	insertStatement := `INSERT INTO crm_jobs (id, job_id, payload, idempotency_key) VALUES (?, ?, ?, ?)`
	if _, err := db.ExecContext(context.Background(), insertStatement, "job-1", "crm.mass_create_ticket", "{}", "key-1"); err != nil {
		t.Fatalf("insert first job: %v", err)
	}
	if _, err := db.ExecContext(context.Background(), insertStatement, "job-2", "crm.mass_create_ticket", "{}", "key-1"); err == nil {
		t.Fatalf("expected unique idempotency key violation")
	}

	var status string
	if err := db.QueryRowContext(context.Background(), `SELECT status FROM crm_jobs WHERE id = ?`, "job-1").Scan(&status); err != nil {
		t.Fatalf("select job status: %v", err)
	}
	if status != "pending" {
		t.Fatalf("expected default status pending, got %q", status)
	}

	for _, migration := range []string{
		"00002_crm_jobs.down.sql",
		"00001_crm_core_schema.down.sql",
	} {
		if err := execSQLMigration(context.Background(), db, sqliteMigrations, migration); err != nil {
			t.Fatalf("rollback migration %s: %v", migration, err)
		}
	}
	var count int
	if err := db.QueryRowContext(
		context.Background(),
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('crm_jobs', 'users', 'customer_exports')`,
	).Scan(&count); err != nil {
		t.Fatalf("count tables: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected tables dropped after rollback, got %d", count)
	}
}

func execSQLMigration(ctx context.Context, db *sql.DB, fsys fs.FS, filename string) error {
	content, err := fs.ReadFile(fsys, filepath.Clean(filename))
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(content))
	return err
}
