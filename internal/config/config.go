package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces every environment variable read by Load.
const EnvPrefix = "DEPOSITRATES"

// Config holds all configuration for the deposit rates fetcher.
type Config struct {
	// Storage locations
	CacheDir      string `mapstructure:"cache_dir"`
	CatalogueFile string `mapstructure:"catalogue_file"`
	MetricsFile   string `mapstructure:"metrics_file"`

	// Scraping behaviour
	RequestTimeout   time.Duration `mapstructure:"request_timeout"`
	UserAgent        string        `mapstructure:"user_agent"`
	RetryCount       int           `mapstructure:"retry_count"`
	Workers          int           `mapstructure:"workers"`
	RateLimitPerHost float64       `mapstructure:"rate_limit_per_host"`

	// MaxAge expires cached data by age; zero keeps it until refreshed
	MaxAge time.Duration `mapstructure:"max_age"`

	Debug bool `mapstructure:"debug"`
}

// Load reads configuration from defaults, an optional config file and
// environment variables, in increasing order of precedence. A .env file in
// the working directory is loaded into the environment first.
//
// When configFile is empty, config.yaml is searched for in the working
// directory and in $HOME/.depositrates.
//
// Environment variables:
//   - DEPOSITRATES_CACHE_DIR (default ./data)
//   - DEPOSITRATES_CATALOGUE_FILE (default ./catalogue.yaml)
//   - DEPOSITRATES_METRICS_FILE (optional, Prometheus textfile output)
//   - DEPOSITRATES_REQUEST_TIMEOUT (default 20s)
//   - DEPOSITRATES_USER_AGENT (default desktop Chrome)
//   - DEPOSITRATES_RETRY_COUNT (default 0, one fetch per page)
//   - DEPOSITRATES_WORKERS (default 4, 1 scrapes sequentially)
//   - DEPOSITRATES_RATE_LIMIT_PER_HOST (default 2 requests/second, 0 disables)
//   - DEPOSITRATES_MAX_AGE (default 0, never expire)
//   - DEPOSITRATES_DEBUG (default false)
func Load(configFile string) (*Config, error) {
	// a missing .env file is fine
	_ = godotenv.Load()

	v := viper.New()

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.depositrates")

		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("cache_dir", "./data")
	v.SetDefault("catalogue_file", "./catalogue.yaml")
	v.SetDefault("metrics_file", "")
	v.SetDefault("request_timeout", 20*time.Second)
	v.SetDefault("user_agent", "")
	v.SetDefault("retry_count", 0)
	v.SetDefault("workers", 4)
	v.SetDefault("rate_limit_per_host", 2.0)
	v.SetDefault("max_age", time.Duration(0))
	v.SetDefault("debug", false)
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var invalid []string
	if c.CacheDir == "" {
		invalid = append(invalid, "cache_dir must not be empty")
	}
	if c.CatalogueFile == "" {
		invalid = append(invalid, "catalogue_file must not be empty")
	}
	if c.RequestTimeout <= 0 {
		invalid = append(invalid, "request_timeout must be positive")
	}
	if c.RetryCount < 0 {
		invalid = append(invalid, "retry_count must not be negative")
	}
	if c.Workers < 1 {
		invalid = append(invalid, "workers must be at least 1")
	}
	if c.RateLimitPerHost < 0 {
		invalid = append(invalid, "rate_limit_per_host must not be negative")
	}
	if c.MaxAge < 0 {
		invalid = append(invalid, "max_age must not be negative")
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, ", "))
	}
	return nil
}
