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
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Metabase   MetabaseConfig   `yaml:"metabase" mapstructure:"metabase"`
	Outscraper OutscraperConfig `yaml:"outscraper" mapstructure:"outscraper"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// MetabaseConfig holds Metabase API credentials and sync parameters.
type MetabaseConfig struct {
	URL         string `yaml:"url" mapstructure:"url"`
	APIKey      string `yaml:"api_key" mapstructure:"api_key"`
	CardID      int    `yaml:"card_id" mapstructure:"card_id"`
	RowLimit    int    `yaml:"row_limit" mapstructure:"row_limit"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// OutscraperConfig holds Outscraper API settings.
type OutscraperConfig struct {
	APIKey      string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	Language    string  `yaml:"language" mapstructure:"language"`
	Region      string  `yaml:"region" mapstructure:"region"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// PipelineConfig configures the enrichment pipeline defaults.
type PipelineConfig struct {
	MaxRecords  int  `yaml:"max_records" mapstructure:"max_records"`
	DelayMs     int  `yaml:"delay_ms" mapstructure:"delay_ms"`
	StopOnError bool `yaml:"stop_on_error" mapstructure:"stop_on_error"`
}

// ServerConfig configures the trigger server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
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
	v.SetEnvPrefix("PLACESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so values supplied
	// only through the environment survive Unmarshal.
	v.SetDefault("store.database_url", "")
	v.SetDefault("metabase.url", "")
	v.SetDefault("metabase.api_key", "")
	v.SetDefault("metabase.card_id", 0)
	v.SetDefault("outscraper.api_key", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("metabase.row_limit", 2000)
	v.SetDefault("metabase.timeout_secs", 300)
	v.SetDefault("outscraper.base_url", "https://api.outscraper.cloud/maps/search-v3")
	v.SetDefault("outscraper.language", "es")
	v.SetDefault("outscraper.region", "ES")
	v.SetDefault("outscraper.rate_per_sec", 1.0)
	v.SetDefault("outscraper.timeout_secs", 60)
	v.SetDefault("pipeline.max_records", 50)
	v.SetDefault("pipeline.delay_ms", 2000)
	v.SetDefault("pipeline.stop_on_error", false)
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)

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

// Validate checks that the settings a command depends on are present.
func (c *Config) Validate(needs ...string) error {
	for _, n := range needs {
		switch n {
		case "store":
			if c.Store.DatabaseURL == "" {
				return eris.New("config: store.database_url is required (PLACESYNC_STORE_DATABASE_URL)")
			}
		case "metabase":
			if c.Metabase.URL == "" || c.Metabase.APIKey == "" {
				return eris.New("config: metabase.url and metabase.api_key are required")
			}
			if c.Metabase.CardID == 0 {
				return eris.New("config: metabase.card_id is required")
			}
		case "outscraper":
			if c.Outscraper.APIKey == "" {
				return eris.New("config: outscraper.api_key is required (PLACESYNC_OUTSCRAPER_API_KEY)")
			}
		}
	}
	return nil
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
