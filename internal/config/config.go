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
	Cache     CacheConfig     `yaml:"cache" mapstructure:"cache"`
	Boundary  BoundaryConfig  `yaml:"boundary" mapstructure:"boundary"`
	Harmonize HarmonizeConfig `yaml:"harmonize" mapstructure:"harmonize"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	Output    OutputConfig    `yaml:"output" mapstructure:"output"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Batch     BatchConfig     `yaml:"batch" mapstructure:"batch"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// CacheConfig configures the on-disk boundary cache.
type CacheConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// BoundaryConfig configures the remote boundary service client.
type BoundaryConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries  int     `yaml:"max_retries" mapstructure:"max_retries"`
	RateLimit   float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	UserAgent   string  `yaml:"user_agent" mapstructure:"user_agent"`
}

// HarmonizeConfig configures fuzzy name matching.
type HarmonizeConfig struct {
	SimilarityThreshold float64 `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
	MatchRateWarn       float64 `yaml:"match_rate_warn" mapstructure:"match_rate_warn"`
	Algorithm           string  `yaml:"algorithm" mapstructure:"algorithm"`
}

// ScorerConfig configures clustering and ranking. The breakpoints and seed
// are policy constants, never derived from the data.
type ScorerConfig struct {
	Seed             int64 `yaml:"seed" mapstructure:"seed"`
	SmallBreakpoint  int   `yaml:"small_breakpoint" mapstructure:"small_breakpoint"`
	MediumBreakpoint int   `yaml:"medium_breakpoint" mapstructure:"medium_breakpoint"`
	MaxIterations    int   `yaml:"max_iterations" mapstructure:"max_iterations"`
}

// OutputConfig configures the rendering sinks.
type OutputConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// BatchConfig configures concurrent batch analysis.
type BatchConfig struct {
	MaxConcurrent int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
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
	v.SetEnvPrefix("NEEDSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("cache.dir", "cache")
	v.SetDefault("boundary.base_url", "https://www.geoboundaries.org")
	v.SetDefault("boundary.timeout_secs", 60)
	v.SetDefault("boundary.max_retries", 3)
	v.SetDefault("boundary.rate_limit", 5)
	v.SetDefault("boundary.user_agent", "needscan/1.0")
	v.SetDefault("harmonize.similarity_threshold", 0.84)
	v.SetDefault("harmonize.match_rate_warn", 0.70)
	v.SetDefault("harmonize.algorithm", "levenshtein")
	v.SetDefault("scorer.seed", 42)
	v.SetDefault("scorer.small_breakpoint", 15)
	v.SetDefault("scorer.medium_breakpoint", 40)
	v.SetDefault("scorer.max_iterations", 100)
	v.SetDefault("output.dir", "output")
	v.SetDefault("server.port", 8080)
	v.SetDefault("batch.max_concurrent", 4)
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
