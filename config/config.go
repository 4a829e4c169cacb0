// Package config loads the service configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the service.
type Config struct {
	Server    Server    `yaml:"server"`
	Database  Database  `yaml:"database"`
	Redis     Redis     `yaml:"redis"`
	Feed      Feed      `yaml:"feed"`
	Tokens    Tokens    `yaml:"tokens"`
	RateLimit RateLimit `yaml:"rate_limit"`
	Log       Log       `yaml:"log"`
}

type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type Database struct {
	// URL selects the backend: postgres://, sqlite:// or file:.
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// Redis is optional. An empty Addr disables trending tags and rate limiting.
type Redis struct {
	Addr        string `yaml:"addr"`
	Password    string `yaml:"password"`
	DB          int    `yaml:"db"`
	MaxTrending int    `yaml:"max_trending"`
}

type Feed struct {
	OpTimeout       time.Duration `yaml:"op_timeout"`
	DefaultPageSize int           `yaml:"default_page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	SearchLimit     int           `yaml:"search_limit"`
}

type Tokens struct {
	Header string `yaml:"header"`
	Pepper string `yaml:"pepper"`
}

// RateLimit bounds post submission per client. A zero Rate disables it.
type RateLimit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			URL:          "sqlite://confess.db",
			MaxOpenConns: 10,
			AutoMigrate:  true,
		},
		Redis: Redis{
			MaxTrending: 100,
		},
		Feed: Feed{
			OpTimeout:       5 * time.Second,
			DefaultPageSize: 10,
			MaxPageSize:     50,
			SearchLimit:     50,
		},
		Tokens: Tokens{
			Header: "X-Client-Token",
		},
		RateLimit: RateLimit{
			Rate:  0.2,
			Burst: 5,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. path names an optional YAML file; a .env file
// in the working directory is read when present. Environment variables win
// over both.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.Addr = getEnv("CONFESS_ADDR", c.Server.Addr)
	c.Database.URL = getEnv("DATABASE_URL", c.Database.URL)
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Tokens.Header = getEnv("CONFESS_TOKEN_HEADER", c.Tokens.Header)
	c.Tokens.Pepper = getEnv("CONFESS_TOKEN_PEPPER", c.Tokens.Pepper)
	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}
	collect(getEnvInt("CONFESS_DB_MAX_OPEN_CONNS", &c.Database.MaxOpenConns))
	collect(getEnvBool("CONFESS_AUTO_MIGRATE", &c.Database.AutoMigrate))
	collect(getEnvInt("REDIS_DB", &c.Redis.DB))
	collect(getEnvInt("CONFESS_MAX_TRENDING", &c.Redis.MaxTrending))
	collect(getEnvDuration("CONFESS_OP_TIMEOUT", &c.Feed.OpTimeout))
	collect(getEnvInt("CONFESS_PAGE_SIZE", &c.Feed.DefaultPageSize))
	collect(getEnvInt("CONFESS_MAX_PAGE_SIZE", &c.Feed.MaxPageSize))
	collect(getEnvInt("CONFESS_SEARCH_LIMIT", &c.Feed.SearchLimit))
	collect(getEnvFloat("CONFESS_POST_RATE", &c.RateLimit.Rate))
	collect(getEnvInt("CONFESS_POST_BURST", &c.RateLimit.Burst))
	collect(getEnvDuration("CONFESS_SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout))
	return errors.Join(errs...)
}

// Validate reports settings the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server address is empty"))
	}
	if c.Database.URL == "" {
		errs = append(errs, errors.New("database url is empty"))
	}
	if c.Feed.OpTimeout <= 0 {
		errs = append(errs, fmt.Errorf("op timeout %s must be positive", c.Feed.OpTimeout))
	}
	if c.Feed.MaxPageSize <= 0 {
		errs = append(errs, fmt.Errorf("max page size %d must be positive", c.Feed.MaxPageSize))
	}
	if c.Feed.DefaultPageSize <= 0 || c.Feed.DefaultPageSize > c.Feed.MaxPageSize {
		errs = append(errs, fmt.Errorf("default page size %d must be between 1 and %d", c.Feed.DefaultPageSize, c.Feed.MaxPageSize))
	}
	if c.Feed.SearchLimit <= 0 {
		errs = append(errs, fmt.Errorf("search limit %d must be positive", c.Feed.SearchLimit))
	}
	if c.Tokens.Header == "" {
		errs = append(errs, errors.New("token header is empty"))
	}
	if len(c.Tokens.Pepper) > 64 {
		errs = append(errs, errors.New("token pepper is longer than 64 bytes"))
	}
	if c.RateLimit.Rate < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured log level.
func (l Log) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return lvl, nil
}

// getEnv reads an environment variable, returning fallback when it is unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvInt(key string, dst *int) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func getEnvFloat(key string, dst *float64) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = f
	return nil
}

func getEnvBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func getEnvDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
