package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable read by Load.
const EnvPrefix = "NIGHTWATCH"

// Load configuration from environment variables and optionally config files.
// Environment variables take precedence over values from config files.
// Returns a populated Config struct or an error if loading/validation fails.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom behaves like Load but reads the given config file instead of
// searching for nightwatch.yaml. An empty path falls back to the search.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("nightwatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.base_url", "http://localhost:8080")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "file:nightwatch.db")
	v.SetDefault("database.native_sleep", false)

	v.SetDefault("cache.driver", "memory")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.prefix", "")

	v.SetDefault("task.worker_count", 2)
	v.SetDefault("task.queue_size", 1000)
	v.SetDefault("task.poll_interval", "1s")

	v.SetDefault("mail.driver", "log")
	v.SetDefault("mail.to", "nightwatch-test@example.com")
	v.SetDefault("mail.cc", "nightwatch-cc@example.com")
	v.SetDefault("mail.from", "nightwatch@example.com")
	v.SetDefault("mail.smtp_addr", "localhost:1025")

	v.SetDefault("bulk.max_count", 1000)
	v.SetDefault("bulk.slow_query_interval", 5)
	v.SetDefault("bulk.slow_query_delay", "300ms")

	v.SetDefault("outgoing.base_url", "https://httpbin.org")

	v.SetDefault("user.table", "users")

	v.SetDefault("auth.guard", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_lifetime_minutes", 60)

	v.SetDefault("probes.internal.success", []map[string]interface{}{
		{"method": "GET", "path": "/api/nightwatch-test/public", "description": "Nightwatch public endpoint"},
	})
	v.SetDefault("probes.internal.redirect", []map[string]interface{}{})
	v.SetDefault("probes.internal.client_error", []map[string]interface{}{
		{
			"method":          "GET",
			"path":            "/api/nightwatch-test/authenticated",
			"expected_status": []int{401, 403},
			"description":     "Unauthorized",
		},
		{
			"method":          "GET",
			"path":            "/api/nonexistent-endpoint-xyz",
			"expected_status": []int{404},
			"description":     "Not found",
		},
	})
	v.SetDefault("probes.authenticated", []map[string]interface{}{
		{
			"method": "GET",
			"path":   "/api/nightwatch-test/authenticated",
			"label":  "Authenticated 2XX (GET /api/nightwatch-test/authenticated)",
		},
	})

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "nightwatch-testing")
}
