package dikernel

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	defaultPoolInitialSize = 5
	defaultPoolMaxSize     = 15
	defaultBridgeCacheSize = 256
)

// Config holds kernel wide settings.
type Config struct {
	// AllowEmptyCollections lets []T and iter.Seq[T] dependencies resolve
	// to an empty collection when no component is assignable to T.
	AllowEmptyCollections bool          `mapstructure:"allow_empty_collections" yaml:"allow_empty_collections"`
	DefaultLifestyle      LifestyleType `mapstructure:"default_lifestyle" yaml:"default_lifestyle"`
	Pool                  PoolConfig    `mapstructure:"pool" yaml:"pool"`
	Bridge                BridgeConfig  `mapstructure:"bridge" yaml:"bridge"`
	Log                   LogConfig     `mapstructure:"log" yaml:"log"`

	// Facilities holds per facility settings, keyed by facility name.
	Facilities map[string]FacilityConfig `mapstructure:"facilities" yaml:"facilities,omitempty"`
}

// PoolConfig holds the sizes used by pooled components that do not set
// their own.
type PoolConfig struct {
	InitialSize int `mapstructure:"initial_size" yaml:"initial_size"`
	MaxSize     int `mapstructure:"max_size" yaml:"max_size"`
}

// BridgeConfig configures FrameworkResolver instances built from config.
type BridgeConfig struct {
	MatchCacheSize int `mapstructure:"match_cache_size" yaml:"match_cache_size"`
}

// LogConfig configures NewLogger. Backend is "slog" or "zap"; Format is
// "text" or "json" for either backend.
type LogConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
	Level   string `mapstructure:"level" yaml:"level"`
	Format  string `mapstructure:"format" yaml:"format"`
}

// ConfigPaths locates the sources read by LoadConfig. Both are optional.
type ConfigPaths struct {
	File    string
	EnvFile string
}

// DefaultConfig returns the configuration used when none is supplied.
func DefaultConfig() Config {
	return Config{
		DefaultLifestyle: LifestyleSingleton,
		Pool: PoolConfig{
			InitialSize: defaultPoolInitialSize,
			MaxSize:     defaultPoolMaxSize,
		},
		Bridge: BridgeConfig{MatchCacheSize: defaultBridgeCacheSize},
		Log:    LogConfig{Backend: "slog", Level: "info", Format: "text"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("allow_empty_collections", d.AllowEmptyCollections)
	v.SetDefault("default_lifestyle", string(d.DefaultLifestyle))
	v.SetDefault("pool.initial_size", d.Pool.InitialSize)
	v.SetDefault("pool.max_size", d.Pool.MaxSize)
	v.SetDefault("bridge.match_cache_size", d.Bridge.MatchCacheSize)
	v.SetDefault("log.backend", d.Log.Backend)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// LoadConfig loads configuration from, in increasing priority: defaults,
// the config file, the env file and DIKERNEL_ prefixed environment
// variables.
func LoadConfig(paths ConfigPaths) (*Config, error) {
	if paths.EnvFile != "" {
		if err := godotenv.Load(paths.EnvFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", paths.EnvFile, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	if paths.File != "" {
		if _, err := os.Stat(paths.File); err != nil {
			return nil, fmt.Errorf("config file does not exist: %s", paths.File)
		}
		v.SetConfigFile(paths.File)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", paths.File, err)
		}
	}

	v.SetEnvPrefix("DIKERNEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	switch c.DefaultLifestyle {
	case LifestyleSingleton, LifestyleTransient, LifestylePooled, LifestyleScoped:
	default:
		return fmt.Errorf("default_lifestyle %q is not one of singleton, transient, pooled, scoped", c.DefaultLifestyle)
	}
	if c.Pool.InitialSize < 0 {
		return fmt.Errorf("pool.initial_size must not be negative, got %d", c.Pool.InitialSize)
	}
	if c.Pool.MaxSize <= 0 {
		return fmt.Errorf("pool.max_size must be positive, got %d", c.Pool.MaxSize)
	}
	if c.Pool.InitialSize > c.Pool.MaxSize {
		return fmt.Errorf("pool.initial_size (%d) exceeds pool.max_size (%d)", c.Pool.InitialSize, c.Pool.MaxSize)
	}
	switch c.Log.Backend {
	case "slog", "zap":
	default:
		return fmt.Errorf("log.backend %q is not one of slog, zap", c.Log.Backend)
	}
	if c.Bridge.MatchCacheSize <= 0 {
		return fmt.Errorf("bridge.match_cache_size must be positive, got %d", c.Bridge.MatchCacheSize)
	}
	return nil
}

// YAML renders the effective configuration.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
