// Package config loads service settings from defaults, an optional YAML file
// and TASKS_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TASKS"

type Config struct {
	Addr           string
	LogLevel       string
	RequestTimeout time.Duration
	DB             DBConfig
	Auth           AuthConfig
	RateLimit      RateLimitConfig
	CORS           CORSConfig
	Tracing        TracingConfig
}

type DBConfig struct {
	Driver      string // memory, sqlite or postgres
	Path        string // sqlite file
	DSN         string // postgres connection string
	AutoMigrate bool
}

type AuthConfig struct {
	Mode        string
	APIKey      string
	BearerToken string
}

type RateLimitConfig struct {
	RPS   float64
	Burst int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type TracingConfig struct {
	Exporter    string // none, stdout or otlp
	Endpoint    string
	ServiceName string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("request_timeout", 15*time.Second)

	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.path", "data/tasks.db")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.auto_migrate", true)

	v.SetDefault("auth.mode", "none")
	v.SetDefault("auth.api_key", "")
	v.SetDefault("auth.bearer_token", "")

	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 20)

	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("tracing.exporter", "none")
	v.SetDefault("tracing.endpoint", "localhost:4318")
	v.SetDefault("tracing.service_name", "taskmanager-api")
}

// Load reads configuration. path may be empty, in which case only defaults
// and the environment are used.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := Config{
		Addr:           v.GetString("addr"),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
		RequestTimeout: v.GetDuration("request_timeout"),
		DB: DBConfig{
			Driver:      strings.ToLower(v.GetString("db.driver")),
			Path:        v.GetString("db.path"),
			DSN:         v.GetString("db.dsn"),
			AutoMigrate: v.GetBool("db.auto_migrate"),
		},
		Auth: AuthConfig{
			Mode:        strings.ToLower(v.GetString("auth.mode")),
			APIKey:      v.GetString("auth.api_key"),
			BearerToken: v.GetString("auth.bearer_token"),
		},
		RateLimit: RateLimitConfig{
			RPS:   v.GetFloat64("rate_limit.rps"),
			Burst: v.GetInt("rate_limit.burst"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetStringSlice("cors.allowed_origins")),
		},
		Tracing: TracingConfig{
			Exporter:    strings.ToLower(v.GetString("tracing.exporter")),
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings that cannot start a server.
func (c Config) Validate() error {
	var errs []error

	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	switch c.DB.Driver {
	case "memory":
	case "sqlite":
		if c.DB.Path == "" {
			errs = append(errs, errors.New("db.path is required for the sqlite driver"))
		}
	case "postgres":
		if c.DB.DSN == "" {
			errs = append(errs, errors.New("db.dsn is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("db.driver %q is not one of memory, sqlite, postgres", c.DB.Driver))
	}

	switch c.Auth.Mode {
	case "", "none":
	case "apikey":
		if c.Auth.APIKey == "" {
			errs = append(errs, errors.New("auth.api_key is required when auth.mode=apikey"))
		}
	case "bearer":
		if c.Auth.BearerToken == "" {
			errs = append(errs, errors.New("auth.bearer_token is required when auth.mode=bearer"))
		}
	default:
		errs = append(errs, fmt.Errorf("auth.mode %q is not one of none, apikey, bearer", c.Auth.Mode))
	}

	switch c.Tracing.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("tracing.exporter %q is not one of none, stdout, otlp", c.Tracing.Exporter))
	}

	if c.RateLimit.RPS < 0 {
		errs = append(errs, errors.New("rate_limit.rps must not be negative"))
	}

	return errors.Join(errs...)
}

// splitList accepts both YAML lists and comma separated env values.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
