package storage

import (
	"net"
	"net/url"
	"strings"

	"github.com/Veraticus/spice-statements/internal/common"
)

// Supported database drivers.
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// SinkConfig locates the output database. Postgres settings keep the names of
// the environment variables they are usually read from.
type SinkConfig struct {
	Driver   string
	Path     string // sqlite3 database file
	User     string // PG_USER
	Password string // PG_PASS
	Host     string // PG_SERV
	Port     string // PG_PORT
	Database string // PG_DTBS
	SSLMode  string
}

// Validate reports every missing setting for the configured driver before
// any connection is attempted.
func (c SinkConfig) Validate() error {
	switch c.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Path) == "" {
			return &common.ConfigError{Missing: []string{"database path"}}
		}
		return nil
	case DriverPostgres:
		var missing []string
		for _, setting := range []struct {
			name  string
			value string
		}{
			{"PG_USER", c.User},
			{"PG_PASS", c.Password},
			{"PG_SERV", c.Host},
			{"PG_PORT", c.Port},
			{"PG_DTBS", c.Database},
		} {
			if strings.TrimSpace(setting.value) == "" {
				missing = append(missing, setting.name)
			}
		}
		if len(missing) > 0 {
			return &common.ConfigError{Missing: missing}
		}
		return nil
	case "":
		return &common.ConfigError{Missing: []string{"database driver"}}
	default:
		return common.NewConfigError("unsupported database driver %q", c.Driver)
	}
}

// DSN returns the data source name for sql.Open.
func (c SinkConfig) DSN() string {
	if c.Driver == DriverSQLite {
		return c.Path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Database,
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

// Redacted returns a printable description of the target without secrets.
func (c SinkConfig) Redacted() string {
	if c.Driver == DriverSQLite {
		return c.Path
	}
	return c.User + "@" + net.JoinHostPort(c.Host, c.Port) + "/" + c.Database
}
