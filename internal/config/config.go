package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database" validate:"required"`
	Cache     CacheConfig     `mapstructure:"cache" validate:"required"`
	Task      TaskConfig      `mapstructure:"task" validate:"required"`
	Mail      MailConfig      `mapstructure:"mail" validate:"required"`
	Bulk      BulkConfig      `mapstructure:"bulk" validate:"required"`
	Outgoing  OutgoingConfig  `mapstructure:"outgoing" validate:"required"`
	User      UserConfig      `mapstructure:"user"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Probes    ProbesConfig    `mapstructure:"probes"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port     int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	// BaseURL is the externally reachable address of this service, used by
	// the internal request probes.
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// DatabaseConfig contains all database-related configuration settings.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"required,oneof=pgx sqlite"`
	URL    string `mapstructure:"url" validate:"required"`
	// NativeSleep declares whether the database understands a sleep
	// statement. When false, slow queries are simulated in-process.
	NativeSleep bool `mapstructure:"native_sleep"`
}

// CacheConfig selects and configures the cache store.
type CacheConfig struct {
	Driver    string `mapstructure:"driver" validate:"required,oneof=redis memory failing"`
	RedisAddr string `mapstructure:"redis_addr" validate:"required_if=Driver redis"`
	RedisDB   int    `mapstructure:"redis_db" validate:"gte=0"`
	Prefix    string `mapstructure:"prefix"`
}

// TaskConfig contains settings for the in-process job queue.
type TaskConfig struct {
	WorkerCount  int           `mapstructure:"worker_count" validate:"required,gt=0"`
	QueueSize    int           `mapstructure:"queue_size" validate:"required,gt=0"`
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"required,gt=0"`
}

// MailConfig contains mail transport and recipient settings.
type MailConfig struct {
	Driver   string `mapstructure:"driver" validate:"required,oneof=smtp log"`
	To       string `mapstructure:"to" validate:"required,email"`
	Cc       string `mapstructure:"cc" validate:"omitempty,email"`
	From     string `mapstructure:"from" validate:"required,email"`
	SMTPAddr string `mapstructure:"smtp_addr" validate:"required_if=Driver smtp"`
}

// BulkConfig controls bulk entry generation.
type BulkConfig struct {
	MaxCount          int           `mapstructure:"max_count" validate:"required,gt=0"`
	SlowQueryInterval int           `mapstructure:"slow_query_interval" validate:"required,gt=0"`
	SlowQueryDelay    time.Duration `mapstructure:"slow_query_delay" validate:"gte=0"`
}

// OutgoingConfig points the outgoing request checks at a status-echo service.
type OutgoingConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

// UserConfig names the table holding notifiable users. An empty table
// disables notification generation.
type UserConfig struct {
	Table string `mapstructure:"table"`
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	// Guard is the authentication mechanism protecting the authenticated
	// routes. Empty means no guard, and those routes are not registered.
	Guard                string `mapstructure:"guard" validate:"omitempty,oneof=jwt"`
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required_if=Guard jwt,omitempty,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gte=0"`
}

// Endpoint describes one HTTP request made by the probes.
type Endpoint struct {
	Method         string `mapstructure:"method" validate:"required"`
	Path           string `mapstructure:"path" validate:"required"`
	Description    string `mapstructure:"description"`
	Label          string `mapstructure:"label"`
	ExpectedStatus []int  `mapstructure:"expected_status"`
}

// InternalEndpoints groups probe endpoints by the status class they are
// expected to return.
type InternalEndpoints struct {
	Success     []Endpoint `mapstructure:"success" validate:"dive"`
	Redirect    []Endpoint `mapstructure:"redirect" validate:"dive"`
	ClientError []Endpoint `mapstructure:"client_error" validate:"dive"`
}

// ProbesConfig lists the endpoints exercised by the diagnostic suite.
type ProbesConfig struct {
	Internal      InternalEndpoints `mapstructure:"internal"`
	Authenticated []Endpoint        `mapstructure:"authenticated" validate:"dive"`
}

// TelemetryConfig toggles OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"service_name"`
}
