package core

import (
	"strings"
	"time"
)

const defaultPingTimeout = 5 * time.Second

// GetDebug and the other getters let DatabaseConfig feed persistence.New.
func (c DatabaseConfig) GetDebug() bool { return c.Debug }

func (c DatabaseConfig) GetDriver() string {
	if driver := strings.TrimSpace(c.Driver); driver != "" {
		return driver
	}
	return "sqlite3"
}

func (c DatabaseConfig) GetServer() string { return c.DSN }

func (c DatabaseConfig) GetPingTimeout() time.Duration { return defaultPingTimeout }

func (c DatabaseConfig) GetOtelIdentifier() string { return "crm-db" }
