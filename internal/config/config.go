// Package config loads application configuration and initializes logging.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Site   SiteConfig   `yaml:"site" mapstructure:"site"`
	Smarty SmartyConfig `yaml:"smarty" mapstructure:"smarty"`
	Retry  RetryConfig  `yaml:"retry" mapstructure:"retry"`
	Lister ListerConfig `yaml:"lister" mapstructure:"lister"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// SiteConfig configures access to the mailbox directory site.
type SiteConfig struct {
	BaseURL        string  `yaml:"base_url" mapstructure:"base_url"`
	UserAgent      string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// SmartyConfig configures the Smarty US Street verification API.
type SmartyConfig struct {
	BaseURL         string  `yaml:"base_url" mapstructure:"base_url"`
	CredentialsFile string  `yaml:"credentials_file" mapstructure:"credentials_file"`
	TimeoutSecs     int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	RequestsPerSec  float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
}

// RetryConfig configures the shared bounded-retry helper.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

// ListerConfig configures the listing stage.
type ListerConfig struct {
	OutputDir   string `yaml:"output_dir" mapstructure:"output_dir"`
	Concurrency int    `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ATMB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("site.base_url", "https://www.anytimemailbox.com")
	v.SetDefault("site.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36")
	v.SetDefault("site.timeout_secs", 10)
	v.SetDefault("site.requests_per_sec", 2.0)
	v.SetDefault("smarty.base_url", "https://us-street.api.smarty.com/street-address")
	v.SetDefault("smarty.credentials_file", "smarty_api_key.txt")
	v.SetDefault("smarty.timeout_secs", 10)
	v.SetDefault("smarty.requests_per_sec", 10.0)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 30000)
	v.SetDefault("lister.output_dir", "Public")
	v.SetDefault("lister.concurrency", 5)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
