package core

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
)

type ExportsConfig struct {
	Timezone       string `koanf:"timezone" mapstructure:"timezone"`
	DefaultPerPage int    `koanf:"default_per_page" mapstructure:"default_per_page"`
	MaxPerPage     int    `koanf:"max_per_page" mapstructure:"max_per_page"`
}

type WebhooksConfig struct {
	TicketBatchSize int    `koanf:"ticket_batch_size" mapstructure:"ticket_batch_size"`
	Token           string `koanf:"token" mapstructure:"token"`
	IdempotencyTTL  string `koanf:"idempotency_ttl" mapstructure:"idempotency_ttl"`
}

type JobsConfig struct {
	PollInterval string `koanf:"poll_interval" mapstructure:"poll_interval"`
	BatchSize    int    `koanf:"batch_size" mapstructure:"batch_size"`
	MaxAttempts  int    `koanf:"max_attempts" mapstructure:"max_attempts"`
	MaxDelay     string `koanf:"max_delay" mapstructure:"max_delay"`
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type HTTPConfig struct {
	Addr string `koanf:"addr" mapstructure:"addr"`
}

type Config struct {
	ServiceName string         `koanf:"service_name" mapstructure:"service_name"`
	Exports     ExportsConfig  `koanf:"exports" mapstructure:"exports"`
	Webhooks    WebhooksConfig `koanf:"webhooks" mapstructure:"webhooks"`
	Jobs        JobsConfig     `koanf:"jobs" mapstructure:"jobs"`
	Database    DatabaseConfig `koanf:"database" mapstructure:"database"`
	HTTP        HTTPConfig     `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "crm",
		Exports: ExportsConfig{
			Timezone:       "UTC",
			DefaultPerPage: 25,
			MaxPerPage:     500,
		},
		Webhooks: WebhooksConfig{
			TicketBatchSize: 100,
			IdempotencyTTL:  "10m",
		},
		Jobs: JobsConfig{
			PollInterval: "1s",
			BatchSize:    10,
			MaxAttempts:  5,
			MaxDelay:     "5m",
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:crm.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{
			Addr: ":8080",
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if _, err := c.Exports.Location(); err != nil {
		return err
	}
	if c.Exports.DefaultPerPage < 0 || c.Exports.MaxPerPage < 0 {
		return fmt.Errorf("core: exports page sizes must not be negative")
	}
	if c.Webhooks.TicketBatchSize < 0 {
		return fmt.Errorf("core: webhooks.ticket_batch_size must not be negative")
	}
	for key, value := range map[string]string{
		"webhooks.idempotency_ttl": c.Webhooks.IdempotencyTTL,
		"jobs.poll_interval":       c.Jobs.PollInterval,
		"jobs.max_delay":           c.Jobs.MaxDelay,
	} {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("core: invalid %s: %w", key, err)
		}
	}
	switch strings.TrimSpace(c.Database.Driver) {
	case "", "postgres", "sqlite3":
	default:
		return fmt.Errorf("core: unsupported database driver %q", c.Database.Driver)
	}
	return nil
}

// Location resolves the zone used for start/end of day boundaries.
func (c ExportsConfig) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Timezone)
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("core: invalid exports.timezone %q: %w", name, err)
	}
	return loc, nil
}

func (c WebhooksConfig) IdempotencyWindow() time.Duration {
	d, _ := parseDuration(c.IdempotencyTTL)
	return d
}

func (c JobsConfig) PollEvery() time.Duration {
	d, _ := parseDuration(c.PollInterval)
	if d <= 0 {
		return time.Second
	}
	return d
}

func (c JobsConfig) MaxRetryDelay() time.Duration {
	d, _ := parseDuration(c.MaxDelay)
	return d
}

func parseDuration(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", value)
	}
	return d, nil
}
