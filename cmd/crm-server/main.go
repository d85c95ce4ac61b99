package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	crm "github.com/goliatone/go-crm"
	"github.com/goliatone/go-crm/adapters/gologger"
	"github.com/goliatone/go-crm/core"
	"github.com/goliatone/go-crm/migrations"
	glog "github.com/goliatone/go-logger/glog"
	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

func main() {
	configPath := flag.String("config", os.Getenv("CRM_CONFIG"), "path to a YAML config file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	skipMigrate := flag.Bool("skip-migrate", false, "do not apply SQL migrations on start")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "crm: load %s: %v\n", *envFile, err)
	}

	provider := gologger.NewZerologProvider(os.Stdout, os.Getenv("CRM_LOG_LEVEL"), os.Getenv("CRM_LOG_CONSOLE") == "true")
	logger := provider.GetLogger("crm.server")

	if err := run(*configPath, *skipMigrate, provider, logger); err != nil {
		logger.Error("crm server stopped with error", "error", err.Error())
		os.Exit(1)
	}
}

func run(configPath string, skipMigrate bool, provider glog.LoggerProvider, logger glog.Logger) error {
	mainCtx, mainCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer mainCancel()

	loader := core.NewFileConfigLoader(configPath)
	cfg, err := core.LoadConfig(mainCtx, core.NewCfgxConfigProvider(loader), nil, envOverrides())
	if err != nil {
		return err
	}
	stopWatch, err := loader.Watch(mainCtx, logger)
	if err != nil {
		logger.Warn("config watch disabled", "error", err.Error())
	} else {
		defer stopWatch()
		loader.OnChange(func(map[string]any) {
			logger.Info("config file changed, restart to apply", "path", loader.Path())
		})
	}

	client, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer client.Close()

	if !skipMigrate {
		dialect := migrations.DialectForDriver(cfg.Database.GetDriver())
		if err := migrate(mainCtx, client, dialect); err != nil {
			return err
		}
		logger.Info("migrations applied", "dialect", dialect)
	}

	rt, err := crm.NewRuntime(cfg, client, crm.WithLoggerProvider(provider))
	if err != nil {
		return err
	}
	if err := rt.RegisterMessages(); err != nil {
		return err
	}
	defer rt.Close()

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           rt.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g, groupCtx := errgroup.WithContext(mainCtx)
	g.Go(func() error {
		logger.Info("http server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("crm: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("job worker starting", "poll_interval", cfg.Jobs.PollEvery().String())
		if err := rt.RunWorker(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("crm: job worker: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("crm server stopped")
	return nil
}

// envOverrides maps CRM_* variables onto the runtime config layer.
func envOverrides() core.Config {
	return core.Config{
		ServiceName: os.Getenv("CRM_SERVICE_NAME"),
		Webhooks: core.WebhooksConfig{
			Token: os.Getenv("CRM_WEBHOOK_TOKEN"),
		},
		Database: core.DatabaseConfig{
			Driver: os.Getenv("CRM_DATABASE_DRIVER"),
			DSN:    os.Getenv("CRM_DATABASE_DSN"),
			Debug:  os.Getenv("CRM_DATABASE_DEBUG") == "true",
		},
		HTTP: core.HTTPConfig{
			Addr: os.Getenv("CRM_HTTP_ADDR"),
		},
		Exports: core.ExportsConfig{
			Timezone: os.Getenv("CRM_EXPORTS_TIMEZONE"),
		},
	}
}

func openDatabase(cfg core.DatabaseConfig) (*persistence.Client, error) {
	driver := cfg.GetDriver()
	var dialect schema.Dialect = sqlitedialect.New()
	if migrations.DialectForDriver(driver) == migrations.DialectPostgres {
		dialect = pgdialect.New()
	}
	sqlDB, err := sql.Open(driver, strings.TrimSpace(cfg.GetServer()))
	if err != nil {
		return nil, fmt.Errorf("crm: open %s: %w", driver, err)
	}
	if migrations.DialectForDriver(driver) == migrations.DialectSQLite {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(cfg, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("crm: persistence client: %w", err)
	}
	return client, nil
}

func migrate(ctx context.Context, client *persistence.Client, dialect string) error {
	if _, err := migrations.Register(ctx, func(_ context.Context, target string, _ string, fsys fs.FS) error {
		if target == dialect {
			client.RegisterSQLMigrations(fsys)
		}
		return nil
	}, migrations.WithValidationTargets(dialect)); err != nil {
		return fmt.Errorf("crm: register migrations: %w", err)
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("crm: migrate: %w", err)
	}
	return nil
}
