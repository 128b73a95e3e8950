// Package config loads item store settings from defaults, an optional file
// and ITEMSTORE_* environment variables
package config

import (
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable override
const EnvPrefix = "ITEMSTORE"

// Config is the complete item store configuration
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Index    IndexConfig    `mapstructure:"index"`
	Hashing  HashingConfig  `mapstructure:"hashing"`
	Generate GenerateConfig `mapstructure:"generate"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// StoreConfig locates the record corpus
type StoreConfig struct {
	Location  string `mapstructure:"location"`
	CacheName string `mapstructure:"cache_name"`
	Overwrite bool   `mapstructure:"overwrite"`
}

// IndexConfig locates the search index; an empty path disables indexing
type IndexConfig struct {
	Path string `mapstructure:"path"`
}

// HashingConfig selects the comparator hash strategy
type HashingConfig struct {
	Strategy string `mapstructure:"strategy"`
}

// GenerateConfig tunes item generation
type GenerateConfig struct {
	Separator string  `mapstructure:"separator"`
	Workers   int     `mapstructure:"workers"`
	FetchRate float64 `mapstructure:"fetch_rate"`
}

// ServerConfig holds listener settings
type ServerConfig struct {
	GrpcPort    int  `mapstructure:"grpc_port"`
	MetricsPort int  `mapstructure:"metrics_port"`
	Watch       bool `mapstructure:"watch"`
}

// LogConfig mirrors logger.Config
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	v.SetDefault("store.location", "./data")
	v.SetDefault("store.cache_name", "items")
	v.SetDefault("store.overwrite", false)

	v.SetDefault("index.path", "")

	v.SetDefault("hashing.strategy", "sha256")

	v.SetDefault("generate.separator", ",")
	v.SetDefault("generate.workers", 4)
	v.SetDefault("generate.fetch_rate", 2.0) // requests per second

	v.SetDefault("server.grpc_port", 50051)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.watch", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// NewViper returns a viper instance with defaults and environment binding.
// A non-empty path is read as the config file.
func NewViper(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
	}
	return v, nil
}

// Load reads the configuration from v
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that would otherwise fail deep inside a command
func (c *Config) Validate() error {
	if c.Store.Location == "" {
		return errors.New("store.location must be set")
	}
	if strings.Contains(c.Store.CacheName, ".") {
		return errors.Newf("store.cache_name %q must not contain '.'", c.Store.CacheName)
	}
	if c.Generate.Workers < 1 {
		return errors.Newf("generate.workers must be positive, got %d", c.Generate.Workers)
	}
	return nil
}
