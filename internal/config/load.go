package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable read by Load
const EnvPrefix = "TASKD"

type loadOptions struct {
	args []string
	file string
}

// LoadOption customizes Load
type LoadOption func(*loadOptions)

// WithArgs parses the given command-line arguments (without the program name)
func WithArgs(args []string) LoadOption {
	return func(o *loadOptions) {
		o.args = args
	}
}

// WithFile reads the given config file in addition to flags and environment
func WithFile(path string) LoadOption {
	return func(o *loadOptions) {
		o.file = path
	}
}

// NewFlagSet returns the command-line flags understood by Load
func NewFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("taskd", pflag.ContinueOnError)
	flags.String("config", "", "path to a YAML config file")
	flags.String("logging.level", "", "log level (debug, info, warn, error)")
	flags.String("archive.driver", "", "archive store (memory, postgres, sqlite)")
	flags.Bool("admin.enabled", false, "serve the inspection API")
	flags.String("admin.host", "", "interface of the inspection API")
	flags.Int("admin.port", 0, "port of the inspection API")
	return flags
}

// Load configuration from flags, environment variables and optionally a config file.
// Flags take precedence over environment variables, which take precedence over the file.
// Returns a populated Config struct or an error if loading/validation fails.
func Load(opts ...LoadOption) (*Config, error) {
	options := loadOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	v := viper.New()
	setDefaults(v)

	flags := NewFlagSet()
	if err := flags.Parse(options.args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}
	// Only flags given on the command line override other sources
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" || !f.Changed {
			return
		}
		_ = v.BindPFlag(f.Name, f)
	})

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := options.file
	if configFlag, err := flags.GetString("config"); err == nil && configFlag != "" {
		file = configFlag
	}
	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg against its validation tags
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			fields := make([]string, 0, len(validationErrs))
			for _, fieldErr := range validationErrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fieldErr.Namespace(), fieldErr.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if cfg.Archive.Driver == "postgres" && cfg.Archive.Postgres.URL == "" {
		return errors.New("config validation failed: archive.postgres.url is required for the postgres driver")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("runner.queue_capacity", 0)
	v.SetDefault("runner.max_attempts", 1)
	v.SetDefault("runner.retry_initial_interval", "500ms")
	v.SetDefault("runner.retry_max_interval", "30s")
	v.SetDefault("runner.close_timeout", "10s")

	v.SetDefault("archive.driver", "memory")
	v.SetDefault("archive.postgres.url", "")
	v.SetDefault("archive.postgres.migrate_on_start", true)
	v.SetDefault("archive.sqlite.path", "taskd.db")
	v.SetDefault("archive.sqlite.pool_size", 4)

	v.SetDefault("connection.reconnect_min_delay", "2s")
	v.SetDefault("connection.reconnect_max_delay", "512s")
	v.SetDefault("connection.multiplier", 2.0)
	v.SetDefault("connection.device_id", "")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.host", "127.0.0.1")
	v.SetDefault("admin.port", 8080)
}
