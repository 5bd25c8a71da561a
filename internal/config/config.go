package config

import "time"

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Logging    LoggingConfig    `mapstructure:"logging" validate:"required"`
	Runner     RunnerConfig     `mapstructure:"runner" validate:"required"`
	Archive    ArchiveConfig    `mapstructure:"archive" validate:"required"`
	Connection ConnectionConfig `mapstructure:"connection" validate:"required"`
	Admin      AdminConfig      `mapstructure:"admin"`
}

// LoggingConfig contains the log output settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"required,oneof=json text"`
}

// RunnerConfig contains the task queue and runner settings.
type RunnerConfig struct {
	// QueueCapacity bounds the number of pending tasks. Zero means unbounded.
	QueueCapacity int `mapstructure:"queue_capacity" validate:"gte=0"`

	// MaxAttempts is the attempt budget of tasks that do not set their own
	MaxAttempts int `mapstructure:"max_attempts" validate:"required,gte=1,lte=100"`

	RetryInitialInterval time.Duration `mapstructure:"retry_initial_interval" validate:"gt=0"`
	RetryMaxInterval     time.Duration `mapstructure:"retry_max_interval" validate:"gtefield=RetryInitialInterval"`

	// CloseTimeout bounds how long shutdown waits for queued tasks
	CloseTimeout time.Duration `mapstructure:"close_timeout" validate:"gt=0"`
}

// ArchiveConfig selects and configures the task archive store.
type ArchiveConfig struct {
	Driver   string         `mapstructure:"driver" validate:"required,oneof=memory postgres sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Sqlite   SqliteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig contains the settings of the postgres archive driver.
type PostgresConfig struct {
	// URL is required when the postgres driver is selected
	URL            string `mapstructure:"url" validate:"omitempty,url"`
	MigrateOnStart bool   `mapstructure:"migrate_on_start"`
}

// SqliteConfig contains the settings of the sqlite archive driver.
type SqliteConfig struct {
	Path     string `mapstructure:"path" validate:"required"`
	PoolSize int    `mapstructure:"pool_size" validate:"gte=1,lte=64"`
}

// ConnectionConfig contains the server connection reconnect settings.
type ConnectionConfig struct {
	ReconnectMinDelay time.Duration `mapstructure:"reconnect_min_delay" validate:"gt=0"`
	ReconnectMaxDelay time.Duration `mapstructure:"reconnect_max_delay" validate:"gtefield=ReconnectMinDelay"`
	Multiplier        float64       `mapstructure:"multiplier" validate:"gte=1"`

	// DeviceID enables the multi-device session when set
	DeviceID string `mapstructure:"device_id"`
}

// AdminConfig contains the settings of the inspection HTTP server.
type AdminConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Host is the interface the server listens on, loopback by default
	Host string `mapstructure:"host" validate:"required_if=Enabled true,omitempty,ip|hostname"`
	Port int    `mapstructure:"port" validate:"required_if=Enabled true,omitempty,gt=0,lt=65536"`
}
