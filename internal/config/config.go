package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Metrics    MetricsConfig    `yaml:"metrics" mapstructure:"metrics"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Gemini     GeminiConfig     `yaml:"gemini" mapstructure:"gemini"`
	Oracle     OracleConfig     `yaml:"oracle" mapstructure:"oracle"`
	YouTube    YouTubeConfig    `yaml:"youtube" mapstructure:"youtube"`
	Collector  CollectorConfig  `yaml:"collector" mapstructure:"collector"`
	Credit     CreditConfig     `yaml:"credit" mapstructure:"credit"`
	Channel    ChannelConfig    `yaml:"channel" mapstructure:"channel"`
	Proposal   ProposalConfig   `yaml:"proposal" mapstructure:"proposal"`
	Ledger     LedgerConfig     `yaml:"ledger" mapstructure:"ledger"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the evaluation store.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port               int      `yaml:"port" mapstructure:"port"`
	CORSOrigins        []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	RequestTimeoutSecs int      `yaml:"request_timeout_secs" mapstructure:"request_timeout_secs"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the Prometheus registry.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	BaseURL   string `yaml:"base_url" mapstructure:"base_url"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	Key   string `yaml:"key" mapstructure:"key"`
	Model string `yaml:"model" mapstructure:"model"`
}

// OracleConfig selects and bounds the scoring oracles.
type OracleConfig struct {
	// Provider is "anthropic", "gemini", or "rules". The rules provider
	// decides deterministically and skips brand-safety and proposal scoring.
	Provider            string `yaml:"provider" mapstructure:"provider"`
	TimeoutSecs         int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	DecisionTimeoutSecs int    `yaml:"decision_timeout_secs" mapstructure:"decision_timeout_secs"`
	BreakerThreshold    int    `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs    int    `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
}

// YouTubeConfig configures the channel statistics feed.
type YouTubeConfig struct {
	Key              string  `yaml:"key" mapstructure:"key"`
	BaseURL          string  `yaml:"base_url" mapstructure:"base_url"`
	MaxVideos        int     `yaml:"max_videos" mapstructure:"max_videos"`
	RateLimit        float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst        int     `yaml:"rate_burst" mapstructure:"rate_burst"`
	CacheTTLMins     int     `yaml:"cache_ttl_mins" mapstructure:"cache_ttl_mins"`
	RetryMaxAttempts int     `yaml:"retry_max_attempts" mapstructure:"retry_max_attempts"`
	RetryBackoffMs   int     `yaml:"retry_backoff_ms" mapstructure:"retry_backoff_ms"`
}

// CollectorConfig bounds the sub-score fan-out.
type CollectorConfig struct {
	BranchTimeoutSecs int `yaml:"branch_timeout_secs" mapstructure:"branch_timeout_secs"`
	TrendBatchSize    int `yaml:"trend_batch_size" mapstructure:"trend_batch_size"`
}

// CreditConfig configures the credit risk scorer.
type CreditConfig struct {
	WindowDays int `yaml:"window_days" mapstructure:"window_days"`

	NetIncomeWeight       float64 `yaml:"net_income_weight" mapstructure:"net_income_weight"`
	SalaryFrequencyWeight float64 `yaml:"salary_frequency_weight" mapstructure:"salary_frequency_weight"`
	BalanceWeight         float64 `yaml:"balance_weight" mapstructure:"balance_weight"`
	OverdraftWeight       float64 `yaml:"overdraft_weight" mapstructure:"overdraft_weight"`

	NetIncomeMin       float64 `yaml:"net_income_min" mapstructure:"net_income_min"`
	NetIncomeMax       float64 `yaml:"net_income_max" mapstructure:"net_income_max"`
	SalaryFrequencyMax float64 `yaml:"salary_frequency_max" mapstructure:"salary_frequency_max"`
	SalaryMonths       float64 `yaml:"salary_months" mapstructure:"salary_months"`
	OverdraftCap       int     `yaml:"overdraft_cap" mapstructure:"overdraft_cap"`

	SalaryKeywords    []string `yaml:"salary_keywords" mapstructure:"salary_keywords"`
	OverdraftKeywords []string `yaml:"overdraft_keywords" mapstructure:"overdraft_keywords"`
}

// ChannelConfig configures the channel quality scorer.
type ChannelConfig struct {
	MaxSubscribers     float64 `yaml:"max_subscribers" mapstructure:"max_subscribers"`
	MaxViewsPerVideo   float64 `yaml:"max_views_per_video" mapstructure:"max_views_per_video"`
	MaxEngagementRatio float64 `yaml:"max_engagement_ratio" mapstructure:"max_engagement_ratio"`

	SubscribersWeight float64 `yaml:"subscribers_weight" mapstructure:"subscribers_weight"`
	ViewsWeight       float64 `yaml:"views_weight" mapstructure:"views_weight"`
	EngagementWeight  float64 `yaml:"engagement_weight" mapstructure:"engagement_weight"`

	MaxBoost  float64 `yaml:"max_boost" mapstructure:"max_boost"`
	SanityMin float64 `yaml:"sanity_min" mapstructure:"sanity_min"`
	SanityMax float64 `yaml:"sanity_max" mapstructure:"sanity_max"`
}

// ProposalConfig locates business proposals on disk.
type ProposalConfig struct {
	Dir string `yaml:"dir" mapstructure:"dir"`
}

// LedgerConfig configures ledger loading from object storage.
type LedgerConfig struct {
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"`
}

// MonitoringConfig configures evaluation health alerts.
type MonitoringConfig struct {
	WebhookURL               string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs        int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours      int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	FailureRateThreshold     float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	InvalidDecisionThreshold float64 `yaml:"invalid_decision_threshold" mapstructure:"invalid_decision_threshold"`
	// ExposureThreshold alerts when credit approved within the window
	// exceeds it. Zero disables the check.
	ExposureThreshold int64 `yaml:"exposure_threshold" mapstructure:"exposure_threshold"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; values already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CREDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets and optional endpoints have empty defaults so env overrides
	// reach Unmarshal.
	for _, key := range []string{
		"store.database_url", "anthropic.key", "anthropic.base_url",
		"gemini.key", "youtube.key", "youtube.base_url", "ledger.credentials_file",
		"monitoring.webhook_url",
	} {
		v.SetDefault(key, "")
	}

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.sqlite_path", "creator-credit.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.request_timeout_secs", 120)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "creator_credit")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1024)
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("oracle.provider", "anthropic")
	v.SetDefault("oracle.timeout_secs", 30)
	v.SetDefault("oracle.decision_timeout_secs", 60)
	v.SetDefault("oracle.breaker_threshold", 5)
	v.SetDefault("oracle.breaker_reset_secs", 30)
	v.SetDefault("youtube.max_videos", 50)
	v.SetDefault("youtube.rate_limit", 5.0)
	v.SetDefault("youtube.rate_burst", 5)
	v.SetDefault("youtube.cache_ttl_mins", 15)
	v.SetDefault("youtube.retry_max_attempts", 3)
	v.SetDefault("youtube.retry_backoff_ms", 500)
	v.SetDefault("collector.branch_timeout_secs", 45)
	v.SetDefault("collector.trend_batch_size", 10)
	v.SetDefault("credit.window_days", 90)
	v.SetDefault("credit.net_income_weight", 0.4)
	v.SetDefault("credit.salary_frequency_weight", 0.3)
	v.SetDefault("credit.balance_weight", 0.2)
	v.SetDefault("credit.overdraft_weight", 0.1)
	v.SetDefault("credit.net_income_min", -5000.0)
	v.SetDefault("credit.net_income_max", 5000.0)
	v.SetDefault("credit.salary_frequency_max", 2.0)
	v.SetDefault("credit.salary_months", 3.0)
	v.SetDefault("credit.overdraft_cap", 3)
	v.SetDefault("credit.salary_keywords", []string{"salary"})
	v.SetDefault("credit.overdraft_keywords", []string{"overdraft", "fee"})
	v.SetDefault("channel.max_subscribers", 1_200_000.0)
	v.SetDefault("channel.max_views_per_video", 800_000.0)
	v.SetDefault("channel.max_engagement_ratio", 0.07)
	v.SetDefault("channel.subscribers_weight", 0.4)
	v.SetDefault("channel.views_weight", 0.4)
	v.SetDefault("channel.engagement_weight", 0.2)
	v.SetDefault("channel.max_boost", 1.2)
	v.SetDefault("channel.sanity_min", 0.8)
	v.SetDefault("channel.sanity_max", 1.2)
	v.SetDefault("proposal.dir", "proposals")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.failure_rate_threshold", 0.2)
	v.SetDefault("monitoring.invalid_decision_threshold", 0.1)

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

// Validate checks the keys a command needs. Mode is one of "evaluate",
// "serve", "score", "store".
func (c *Config) Validate(mode string) error {
	var errs []string

	needsOracle := mode == "evaluate" || mode == "serve"
	needsStore := mode == "evaluate" || mode == "serve" || mode == "store"

	if needsOracle {
		switch c.Oracle.Provider {
		case "anthropic":
			if c.Anthropic.Key == "" {
				errs = append(errs, "anthropic.key is required")
			}
		case "gemini":
			if c.Gemini.Key == "" {
				errs = append(errs, "gemini.key is required")
			}
		case "rules":
		default:
			errs = append(errs, "oracle.provider must be anthropic, gemini or rules")
		}
		if c.Oracle.TimeoutSecs <= 0 {
			errs = append(errs, "oracle.timeout_secs must be > 0")
		}
		if c.Oracle.DecisionTimeoutSecs <= 0 {
			errs = append(errs, "oracle.decision_timeout_secs must be > 0")
		}
	}

	if needsStore {
		switch c.Store.Driver {
		case "sqlite":
			if c.Store.SQLitePath == "" {
				errs = append(errs, "store.sqlite_path is required")
			}
		case "postgres":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
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
