package main

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cast"
)

type Config struct {
	Supabase SupabaseConfig `toml:"supabase"`
	Database DatabaseConfig `toml:"database"`
	SQL      SQLConfig      `toml:"sql"`
	Server   ServerConfig   `toml:"server"`
	Log      LogConfig      `toml:"log"`
}

type SupabaseConfig struct {
	URL            string `toml:"url"`
	ServiceRoleKey string `toml:"service_role_key"`
	DBPassword     string `toml:"db_password"`
}

type DatabaseConfig struct {
	Driver         string `toml:"driver"`
	DSN            string `toml:"dsn"`
	RecordsBackend string `toml:"records_backend"` // rest or sql
}

type SQLConfig struct {
	StrictClassification bool          `toml:"strict_classification"`
	QueryTimeout         time.Duration `toml:"query_timeout"`
	MaxRows              int           `toml:"max_rows"`
}

type ServerConfig struct {
	Transport string `toml:"transport"` // stdio, http or sdk
	Addr      string `toml:"addr"`
	Token     string `toml:"token"`
	JWTSecret string `toml:"jwt_secret"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:         "postgres",
			RecordsBackend: "rest",
		},
		SQL: SQLConfig{
			QueryTimeout: 30 * time.Second,
			MaxRows:      DefaultMaxRows,
		},
		Server: ServerConfig{
			Transport: "stdio",
			Addr:      ":8080",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig layers defaults, the optional TOML file at path and the environment.
// A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config: %w", err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}
	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, err
	}
	return cfg, cfg.validate()
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	str("SUPABASE_URL", &cfg.Supabase.URL)
	str("SUPABASE_SERVICE_ROLE_KEY", &cfg.Supabase.ServiceRoleKey)
	str("SUPABASE_DB_PASSWORD", &cfg.Supabase.DBPassword)
	str("MCP_DIRECT_DSN", &cfg.Database.DSN)
	str("MCP_DIRECT_DRIVER", &cfg.Database.Driver)
	str("MCP_RECORDS_BACKEND", &cfg.Database.RecordsBackend)
	str("MCP_TRANSPORT", &cfg.Server.Transport)
	str("MCP_HTTP_ADDR", &cfg.Server.Addr)
	str("MCP_TOKEN", &cfg.Server.Token)
	str("MCP_JWT_SECRET", &cfg.Server.JWTSecret)
	str("MCP_LOG_LEVEL", &cfg.Log.Level)

	if v := getenv("MCP_STRICT_SQL"); v != "" {
		b, err := cast.ToBoolE(v)
		if err != nil {
			return fmt.Errorf("MCP_STRICT_SQL: %w", err)
		}
		cfg.SQL.StrictClassification = b
	}
	if v := getenv("MCP_QUERY_TIMEOUT"); v != "" {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("MCP_QUERY_TIMEOUT: %w", err)
		}
		cfg.SQL.QueryTimeout = d
	}
	if v := getenv("MCP_MAX_ROWS"); v != "" {
		n, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("MCP_MAX_ROWS: %w", err)
		}
		cfg.SQL.MaxRows = n
	}
	return nil
}

func (c *Config) validate() error {
	if _, err := dialectFor(c.Database.Driver); err != nil {
		return err
	}
	switch c.Database.RecordsBackend {
	case "rest", "sql":
	default:
		return fmt.Errorf("unknown records backend %q (rest, sql)", c.Database.RecordsBackend)
	}
	switch c.Server.Transport {
	case "stdio", "http", "sdk":
	default:
		return fmt.Errorf("unknown transport %q (stdio, http, sdk)", c.Server.Transport)
	}
	if c.SQL.QueryTimeout < 0 {
		return fmt.Errorf("query timeout must not be negative")
	}
	return nil
}

// Missing lists the credentials whose absence puts the server in degraded mode.
func (c *Config) Missing() []string {
	var out []string
	if c.Supabase.URL == "" {
		out = append(out, "SUPABASE_URL")
	}
	if c.Supabase.ServiceRoleKey == "" {
		out = append(out, "SUPABASE_SERVICE_ROLE_KEY")
	}
	return out
}

// DirectDSN returns the explicit DSN, or one derived from the project URL and
// database password. An empty result means no direct connection is configured.
func (c *Config) DirectDSN() (string, error) {
	if c.Database.DSN != "" {
		return c.Database.DSN, nil
	}
	if c.Supabase.DBPassword == "" || c.Supabase.URL == "" {
		return "", nil
	}
	u, err := url.Parse(c.Supabase.URL)
	if err != nil {
		return "", fmt.Errorf("parsing SUPABASE_URL: %w", err)
	}
	ref, _, _ := strings.Cut(u.Hostname(), ".")
	if ref == "" {
		return "", fmt.Errorf("SUPABASE_URL %q has no project reference", c.Supabase.URL)
	}
	dsn := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword("postgres", c.Supabase.DBPassword),
		Host:     ref + ".supabase.co:5432",
		Path:     "/postgres",
		RawQuery: "sslmode=require",
	}
	return dsn.String(), nil
}
