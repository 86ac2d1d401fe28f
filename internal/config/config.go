package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvPrefix prefixes every environment override, e.g. MAPSCRAP_ENRICH_WORKERS.
const EnvPrefix = "MAPSCRAP"

// Config holds the full application configuration.
type Config struct {
	Search    SearchConfig    `yaml:"search" mapstructure:"search"`
	Browser   BrowserConfig   `yaml:"browser" mapstructure:"browser"`
	Discovery DiscoveryConfig `yaml:"discovery" mapstructure:"discovery"`
	Extract   ExtractConfig   `yaml:"extract" mapstructure:"extract"`
	Enrich    EnrichConfig    `yaml:"enrich" mapstructure:"enrich"`
	Locator   LocatorConfig   `yaml:"locator" mapstructure:"locator"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// SearchConfig holds the default query and listing target.
type SearchConfig struct {
	Query     string `yaml:"query" mapstructure:"query"`
	Target    int    `yaml:"target" mapstructure:"target"`
	InputFile string `yaml:"input_file" mapstructure:"input_file"`
}

// BrowserConfig configures the Chrome automation surface.
type BrowserConfig struct {
	Headless    bool   `yaml:"headless" mapstructure:"headless"`
	ExecPath    string `yaml:"exec_path" mapstructure:"exec_path"`
	Locale      string `yaml:"locale" mapstructure:"locale"`
	StartURL    string `yaml:"start_url" mapstructure:"start_url"`
	TimeoutSecs int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// DiscoveryConfig tunes the feed reveal loop.
type DiscoveryConfig struct {
	SettleMs        int `yaml:"settle_ms" mapstructure:"settle_ms"`
	FeedTimeoutMs   int `yaml:"feed_timeout_ms" mapstructure:"feed_timeout_ms"`
	StagnationLimit int `yaml:"stagnation_limit" mapstructure:"stagnation_limit"`
	MaxRounds       int `yaml:"max_rounds" mapstructure:"max_rounds"`
}

// ExtractConfig tunes detail pane extraction.
type ExtractConfig struct {
	SettleMs int `yaml:"settle_ms" mapstructure:"settle_ms"`
}

// EnrichConfig configures website contact mining.
type EnrichConfig struct {
	Workers          int     `yaml:"workers" mapstructure:"workers"`
	FetchTimeoutSecs int     `yaml:"fetch_timeout_secs" mapstructure:"fetch_timeout_secs"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	MaxBodyKB        int     `yaml:"max_body_kb" mapstructure:"max_body_kb"`
	Retries          int     `yaml:"retries" mapstructure:"retries"`
}

// LocatorConfig points at an optional YAML override of the locator table.
type LocatorConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// OutputConfig configures the export writers.
type OutputConfig struct {
	Dir  string `yaml:"dir" mapstructure:"dir"`
	XLSX bool   `yaml:"xlsx" mapstructure:"xlsx"`
}

// StoreConfig configures the run history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Settle returns the discovery settle delay.
func (c DiscoveryConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

// FeedTimeout returns how long to wait for the feed container.
func (c DiscoveryConfig) FeedTimeout() time.Duration {
	return time.Duration(c.FeedTimeoutMs) * time.Millisecond
}

// Settle returns the detail pane settle delay.
func (c ExtractConfig) Settle() time.Duration {
	return time.Duration(c.SettleMs) * time.Millisecond
}

// FetchTimeout returns the per-page fetch bound.
func (c EnrichConfig) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSecs) * time.Second
}

// MaxBodyBytes returns the response size cap in bytes.
func (c EnrichConfig) MaxBodyBytes() int64 {
	return int64(c.MaxBodyKB) * 1024
}

// ActionTimeout returns the bound on a single browser action.
func (c BrowserConfig) ActionTimeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads configuration from .env, config.yaml and the environment.
func Load() (*Config, error) {
	// .env is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

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

func setDefaults(v *viper.Viper) {
	v.SetDefault("search.query", "")
	v.SetDefault("search.target", 20)
	v.SetDefault("search.input_file", "input.txt")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.locale", "en-GB")
	v.SetDefault("browser.start_url", "https://www.google.com/maps")
	v.SetDefault("browser.timeout_secs", 30)
	v.SetDefault("discovery.settle_ms", 1800)
	v.SetDefault("discovery.feed_timeout_ms", 8000)
	v.SetDefault("discovery.stagnation_limit", 3)
	v.SetDefault("discovery.max_rounds", 200)
	v.SetDefault("extract.settle_ms", 2200)
	v.SetDefault("enrich.workers", 10)
	v.SetDefault("enrich.fetch_timeout_secs", 12)
	v.SetDefault("enrich.rate_limit", 20)
	v.SetDefault("enrich.max_body_kb", 2048)
	v.SetDefault("enrich.retries", 2)
	v.SetDefault("locator.file", "")
	v.SetDefault("output.dir", "output")
	v.SetDefault("output.xlsx", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "mapscrap.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Validate checks the settings a command mode needs. Modes are "scrape",
// "enrich", "serve" and "runs".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "scrape":
		if c.Search.Target <= 0 {
			problems = append(problems, "search.target must be > 0")
		}
		problems = append(problems, c.enrichProblems()...)
	case "enrich":
		problems = append(problems, c.enrichProblems()...)
	case "serve":
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
		problems = append(problems, c.enrichProblems()...)
		problems = append(problems, c.storeProblems()...)
	case "runs":
		problems = append(problems, c.storeProblems()...)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c *Config) enrichProblems() []string {
	var problems []string
	if c.Enrich.Workers < 1 || c.Enrich.Workers > 100 {
		problems = append(problems, "enrich.workers must be between 1 and 100")
	}
	if c.Enrich.Retries < 0 {
		problems = append(problems, "enrich.retries must be >= 0")
	}
	if c.Enrich.RateLimit < 0 {
		problems = append(problems, "enrich.rate_limit must be >= 0")
	}
	return problems
}

func (c *Config) storeProblems() []string {
	switch strings.ToLower(c.Store.Driver) {
	case "sqlite", "postgres", "postgresql", "pgx":
	default:
		return []string{"store.driver must be sqlite or postgres"}
	}
	if c.Store.DatabaseURL == "" {
		return []string{"store.database_url is required"}
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
