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
	API     APIConfig     `yaml:"api" mapstructure:"api"`
	Collect CollectConfig `yaml:"collect" mapstructure:"collect"`
	Cache   CacheConfig   `yaml:"cache" mapstructure:"cache"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	BCB     BCBConfig     `yaml:"bcb" mapstructure:"bcb"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// APIConfig holds PDPJ API credentials and client tuning.
type APIConfig struct {
	Tokens        []string `yaml:"tokens" mapstructure:"tokens"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Tribunal      string   `yaml:"tribunal" mapstructure:"tribunal"`
	ClassID       string   `yaml:"class_id" mapstructure:"class_id"`
	PageSize      int      `yaml:"page_size" mapstructure:"page_size"`
	MaxRetries    int      `yaml:"max_retries" mapstructure:"max_retries"`
	TimeoutSecs   int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	BackoffBaseMS int      `yaml:"backoff_base_ms" mapstructure:"backoff_base_ms"`
	GateWaitSecs  int      `yaml:"gate_wait_secs" mapstructure:"gate_wait_secs"`
	RatePerSecond float64  `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int      `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// CollectConfig configures the collection run.
type CollectConfig struct {
	InputFile          string   `yaml:"input_file" mapstructure:"input_file"`
	OutputDir          string   `yaml:"output_dir" mapstructure:"output_dir"`
	MaxPages           int      `yaml:"max_pages" mapstructure:"max_pages"`
	MaxItems           int      `yaml:"max_items" mapstructure:"max_items"`
	OversizedThreshold int      `yaml:"oversized_threshold" mapstructure:"oversized_threshold"`
	PriorityClassCode  int      `yaml:"priority_class_code" mapstructure:"priority_class_code"`
	MaxPerTier         int      `yaml:"max_per_tier" mapstructure:"max_per_tier"`
	MaxPerEntity       int      `yaml:"max_per_entity" mapstructure:"max_per_entity"`
	MaxBranches        int      `yaml:"max_branches" mapstructure:"max_branches"`
	DownloadDetails    bool     `yaml:"download_details" mapstructure:"download_details"`
	SearchDocument     bool     `yaml:"search_document" mapstructure:"search_document"`
	SearchBranches     bool     `yaml:"search_branches" mapstructure:"search_branches"`
	SearchName         bool     `yaml:"search_name" mapstructure:"search_name"`
	WorkersPerToken    int      `yaml:"workers_per_token" mapstructure:"workers_per_token"`
	Blacklist          []string `yaml:"blacklist" mapstructure:"blacklist"`
}

// CacheConfig configures the on-disk negative/result caches.
type CacheConfig struct {
	Dir         string `yaml:"dir" mapstructure:"dir"`
	ErrorLogCap int    `yaml:"error_log_cap" mapstructure:"error_log_cap"`
}

// StoreConfig configures the run-ledger backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the status HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BCBConfig configures the central-bank rate-index lookup.
type BCBConfig struct {
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	SeriesID int    `yaml:"series_id" mapstructure:"series_id"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Workers returns the detail-download pool size: tokens x workers-per-token,
// clamped to [1, 8].
func (c *Config) Workers() int {
	n := len(c.API.Tokens) * c.Collect.WorkersPerToken
	if n > 8 {
		n = 8
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("LITIGIO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("api.base_url", "https://api-processo-integracao.data-lake.pdpj.jus.br/processo-api/api/v1/processos")
	v.SetDefault("api.tribunal", "TJPE")
	v.SetDefault("api.class_id", "1116")
	v.SetDefault("api.page_size", 100)
	v.SetDefault("api.max_retries", 5)
	v.SetDefault("api.timeout_secs", 60)
	v.SetDefault("api.backoff_base_ms", 1000)
	v.SetDefault("api.gate_wait_secs", 120)
	v.SetDefault("api.rate_per_second", 0)
	v.SetDefault("api.rate_burst", 1)
	v.SetDefault("collect.output_dir", "outputs")
	v.SetDefault("collect.max_pages", 100)
	v.SetDefault("collect.max_items", 1000)
	v.SetDefault("collect.oversized_threshold", 5000)
	v.SetDefault("collect.priority_class_code", 1116)
	v.SetDefault("collect.max_per_tier", 1)
	v.SetDefault("collect.max_per_entity", 2)
	v.SetDefault("collect.max_branches", 1)
	v.SetDefault("collect.download_details", false)
	v.SetDefault("collect.search_document", true)
	v.SetDefault("collect.search_branches", true)
	v.SetDefault("collect.search_name", true)
	v.SetDefault("collect.workers_per_token", 1)
	v.SetDefault("cache.dir", ".")
	v.SetDefault("cache.error_log_cap", 2000)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "litigio.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("bcb.base_url", "https://api.bcb.gov.br/dados/serie")
	v.SetDefault("bcb.series_id", 4390)
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

// Validate reports fatal configuration problems. A run never starts with an
// invalid configuration.
func (c *Config) Validate() error {
	var problems []string
	if len(c.API.Tokens) == 0 {
		problems = append(problems, "no API tokens configured")
	}
	for _, t := range c.API.Tokens {
		if len(strings.TrimSpace(t)) < 16 {
			problems = append(problems, "one or more API tokens look malformed")
			break
		}
	}
	if c.API.BaseURL == "" {
		problems = append(problems, "api.base_url is empty")
	}
	if c.Collect.OutputDir == "" {
		problems = append(problems, "collect.output_dir is empty")
	}
	if len(problems) > 0 {
		return eris.New("config: " + strings.Join(problems, "; "))
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
