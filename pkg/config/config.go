// Package config loads replicafs settings from a config file, REPLICAFS_*
// environment variables, .env files and command line flags, in increasing
// order of precedence, and validates the result.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"replicafs/pkg/redundancy"
)

// EnvPrefix is the prefix of every environment variable read by Load.
const EnvPrefix = "replicafs"

// Provider types.
const (
	TypeMemory = "memory"
	TypeDisk   = "disk"
	TypeSQLite = "sqlite"
	TypeRemote = "remote"
)

var (
	// ErrInvalidConfig wraps every validation failure.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNoProviders is returned by ValidateGateway when no provider is configured.
	ErrNoProviders = errors.New("no providers configured")
)

// Config is the complete replicafs configuration.
type Config struct {
	Listen      string            `mapstructure:"listen" validate:"required,hostname_port"`
	LogLevel    string            `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	LogJSON     bool              `mapstructure:"log_json"`
	Redundancy  redundancy.Level  `mapstructure:"redundancy" validate:"oneof=single dual triple maximum"`
	Preferred   string            `mapstructure:"preferred"`
	CallTimeout time.Duration     `mapstructure:"call_timeout" validate:"gt=0"`
	HealthCheck HealthCheckConfig `mapstructure:"health_check"`
	Providers   []ProviderConfig  `mapstructure:"providers" validate:"unique=Name,dive"`
	Node        NodeConfig        `mapstructure:"node"`
}

// HealthCheckConfig controls the periodic health checker.
type HealthCheckConfig struct {
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"gt=0"`
	Disabled bool          `mapstructure:"disabled"`
}

// ProviderConfig describes one storage provider of the gateway.
type ProviderConfig struct {
	Name string `mapstructure:"name" validate:"required,excludesall=/\\"`
	Type string `mapstructure:"type" validate:"oneof=memory disk sqlite remote"`
	// Path is the storage directory (disk) or database file (sqlite).
	Path string `mapstructure:"path" validate:"required_if=Type disk,required_if=Type sqlite"`
	// URL is the storage node address (remote).
	URL string `mapstructure:"url" validate:"required_if=Type remote,omitempty,url"`
	// Encrypt seals payloads with the caller credential before they reach the provider.
	Encrypt bool `mapstructure:"encrypt"`
	// FallbackPath is a local directory receiving writes while a remote node is down.
	FallbackPath string        `mapstructure:"fallback_path" validate:"excluded_unless=Type remote"`
	RetryMax     int           `mapstructure:"retry_max" validate:"gte=-1"`
	RetryWaitMin time.Duration `mapstructure:"retry_wait_min" validate:"gte=0"`
	RetryWaitMax time.Duration `mapstructure:"retry_wait_max" validate:"gte=0,gtefield=RetryWaitMin"`
}

// NodeConfig configures a storage node started with "replicafs node".
type NodeConfig struct {
	Name   string `mapstructure:"name" validate:"required"`
	Listen string `mapstructure:"listen" validate:"required,hostname_port"`
	Type   string `mapstructure:"type" validate:"oneof=memory disk sqlite"`
	Path   string `mapstructure:"path" validate:"required_if=Type disk,required_if=Type sqlite"`
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is an explicit config file. Empty means no file.
	File string
	// EnvFiles are dotenv files loaded into the environment first. Missing files are ignored.
	EnvFiles []string
	// Flags are bound over every other source. Flag names use dashes
	// ("log-level") and map to the underscore keys unless FlagKeys says otherwise.
	Flags *pflag.FlagSet
	// FlagKeys maps flag names to config keys, e.g. "interval" to "health_check.interval".
	FlagKeys map[string]string
}

func (o LoadOptions) keyFor(flag string) string {
	if key, ok := o.FlagKeys[flag]; ok {
		return key
	}
	return strings.ReplaceAll(flag, "-", "_")
}

// DefaultEnvFiles are the dotenv files Load reads when LoadOptions.EnvFiles is nil.
var DefaultEnvFiles = []string{".env", ".env.local"}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("redundancy", string(redundancy.Dual))
	v.SetDefault("preferred", "")
	v.SetDefault("call_timeout", 30*time.Second)
	v.SetDefault("health_check.interval", 5*time.Minute)
	v.SetDefault("health_check.timeout", 10*time.Second)
	v.SetDefault("health_check.disabled", false)
	v.SetDefault("node.name", "node")
	v.SetDefault("node.listen", ":9090")
	v.SetDefault("node.type", TypeDisk)
	v.SetDefault("node.path", "data")
}

// Load reads and validates the configuration.
func Load(opts LoadOptions) (*Config, error) {
	envFiles := opts.EnvFiles
	if envFiles == nil {
		envFiles = DefaultEnvFiles
	}
	for _, file := range envFiles {
		// load env files
		_ = godotenv.Load(file)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", opts.File, err)
		}
	}

	if opts.Flags != nil {
		var bindErr error
		opts.Flags.VisitAll(func(flag *pflag.Flag) {
			if bindErr == nil {
				bindErr = v.BindPFlag(opts.keyFor(flag.Name), flag)
			}
		})
		if bindErr != nil {
			return nil, bindErr
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	if c.Preferred != "" {
		found := false
		for _, p := range c.Providers {
			found = found || p.Name == c.Preferred
		}
		if !found {
			return fmt.Errorf("%w: preferred provider %q is not configured", ErrInvalidConfig, c.Preferred)
		}
	}
	return nil
}

// ValidateGateway additionally requires at least one provider.
func (c *Config) ValidateGateway() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, ErrNoProviders)
	}
	return c.Validate()
}
