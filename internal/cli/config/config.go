// Package config loads easyblocks.yml with viper. Every key can be
// overridden by an EASYBLOCKS_ environment variable, e.g.
// EASYBLOCKS_SERVER_PORT or EASYBLOCKS_DATABASE_URL.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// FileName is the config file name without extension.
const FileName = "easyblocks"

// Config represents the easyblocks configuration
type Config struct {
	Project   ProjectConfig   `mapstructure:"project"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Resources ResourcesConfig `mapstructure:"resources"`

	// File is the config file that was read, empty when running on
	// defaults.
	File string `mapstructure:"-"`
}

// ProjectConfig names the project and its definitions file.
type ProjectConfig struct {
	ID          string `mapstructure:"id"`
	Definitions string `mapstructure:"definitions"`
	Locale      string `mapstructure:"locale"`
}

// ServerConfig represents server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
	RateLimit       int           `mapstructure:"rate_limit"`
	Profiling       bool          `mapstructure:"profiling"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// Serve HTTPS when both are set.
	TLSCert string `mapstructure:"tls_cert"`
	TLSKey  string `mapstructure:"tls_key"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DatabaseConfig selects the document store.
type DatabaseConfig struct {
	// Driver is "memory", "sqlite3", "postgres" or "pgx".
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// CacheConfig selects where resource results and rendered pages are cached.
type CacheConfig struct {
	// Backend is "memory", "redis" or "none".
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
}

// RedisConfig is used by the redis cache backend and the rate limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ResourcesConfig selects the resource fetcher. URL takes precedence over
// Fixtures; with neither, external references stay unresolved.
type ResourcesConfig struct {
	URL      string            `mapstructure:"url"`
	Headers  map[string]string `mapstructure:"headers"`
	Fixtures string            `mapstructure:"fixtures"`
	Timeout  time.Duration     `mapstructure:"timeout"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("project.id", "default")
	v.SetDefault("project.definitions", "easyblocks.project.yml")
	v.SetDefault("project.locale", "en")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.rate_limit", 0)
	v.SetDefault("server.profiling", false)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.tls_cert", "")
	v.SetDefault("server.tls_key", "")

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.url", "easyblocks.db")

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	v.SetDefault("resources.url", "")
	v.SetDefault("resources.headers", map[string]string{})
	v.SetDefault("resources.fixtures", "")
	v.SetDefault("resources.timeout", 10*time.Second)
}

// Load reads the config. An explicit path must exist; otherwise
// easyblocks.yml or easyblocks.yaml is looked up in the working directory
// and defaults are used when there is none.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("EASYBLOCKS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	config.File = v.ConfigFileUsed()

	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

// Resolve makes a path from the config relative to the config file's
// directory.
func (c *Config) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) || c.File == "" {
		return path
	}
	return filepath.Join(filepath.Dir(c.File), path)
}

// GetProjectRoot walks up from the working directory to the first directory
// holding an easyblocks config file.
func GetProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		for _, ext := range []string{".yml", ".yaml"} {
			if _, err := os.Stat(filepath.Join(dir, FileName+ext)); err == nil {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not in an easyblocks project (no %s.yml found)", FileName)
		}
		dir = parent
	}
}

func oneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got: %q", field, strings.Join(allowed, ", "), value)
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	if cfg.Project.ID == "" {
		return fmt.Errorf("project.id must not be empty")
	}
	if cfg.Server.Port < 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 0 and 65535, got: %d", cfg.Server.Port)
	}
	if cfg.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must not be negative, got: %d", cfg.Server.RateLimit)
	}
	if (cfg.Server.TLSCert == "") != (cfg.Server.TLSKey == "") {
		return fmt.Errorf("server.tls_cert and server.tls_key must be set together")
	}
	if err := oneOf("database.driver", cfg.Database.Driver, "memory", "sqlite3", "postgres", "pgx"); err != nil {
		return err
	}
	if cfg.Database.Driver != "memory" && cfg.Database.URL == "" {
		return fmt.Errorf("database.url is required for driver %s", cfg.Database.Driver)
	}
	if err := oneOf("cache.backend", cfg.Cache.Backend, "memory", "redis", "none"); err != nil {
		return err
	}
	if err := oneOf("log.level", cfg.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("log.format", cfg.Log.Format, "console", "json"); err != nil {
		return err
	}
	if cfg.Resources.URL != "" && !strings.HasPrefix(cfg.Resources.URL, "http://") && !strings.HasPrefix(cfg.Resources.URL, "https://") {
		return fmt.Errorf("resources.url must be an http(s) URL, got: %s", cfg.Resources.URL)
	}
	return nil
}
