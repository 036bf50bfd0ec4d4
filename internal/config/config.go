package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingSetting is wrapped by every validation failure so callers can
// tell configuration problems apart from runtime errors.
var ErrMissingSetting = errors.New("missing required setting")

// Mode selects which credentials a binary needs.
type Mode int

const (
	ModeBacktest Mode = iota
	ModeLive
	ModeUI
)

// Config holds all configuration for the application.
// It is loaded once at startup and passed by pointer; nothing mutates it afterwards.
type Config struct {
	Twitter   Twitter   `mapstructure:"twitter"`
	Kite      Kite      `mapstructure:"kite"`
	Sentiment Sentiment `mapstructure:"sentiment"`
	Market    Market    `mapstructure:"market"`
	Trading   Trading   `mapstructure:"trading"`
	Backtest  Backtest  `mapstructure:"backtest"`
	Logger    Logger    `mapstructure:"logger"`
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
}

// Twitter holds the configuration for the post feed.
type Twitter struct {
	BearerToken    string  `mapstructure:"bearer_token"`
	BaseURL        string  `mapstructure:"base_url"`
	CacheDir       string  `mapstructure:"cache_dir"`
	CacheEnabled   bool    `mapstructure:"cache_enabled"`
	PageSize       int     `mapstructure:"page_size"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// Kite holds the configuration for the broker and historical price API.
type Kite struct {
	ApiKey         string  `mapstructure:"api_key"`
	ApiSecret      string  `mapstructure:"api_secret"`
	AccessToken    string  `mapstructure:"access_token"`
	RequestToken   string  `mapstructure:"request_token"`
	BaseURL        string  `mapstructure:"base_url"`
	Exchange       string  `mapstructure:"exchange"`
	Interval       string  `mapstructure:"interval"`
	Product        string  `mapstructure:"product"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
	MaxRetries     int     `mapstructure:"max_retries"`
}

// Sentiment holds the configuration for the sentiment classifier.
type Sentiment struct {
	Endpoint   string     `mapstructure:"endpoint"`
	ApiToken   string     `mapstructure:"api_token"`
	Thresholds Thresholds `mapstructure:"thresholds"`
	RateLimit  float64    `mapstructure:"rate_limit"`
	MaxRetries int        `mapstructure:"max_retries"`
}

// Thresholds map a raw positivity score onto sentiment labels.
type Thresholds struct {
	SuperPositive float64 `mapstructure:"super_positive"`
	Positive      float64 `mapstructure:"positive"`
	Negative      float64 `mapstructure:"negative"`
	SuperNegative float64 `mapstructure:"super_negative"`
}

// Market describes the exchange session. Times are "HH:MM" in Timezone.
type Market struct {
	Timezone        string `mapstructure:"timezone"`
	OpenTime        string `mapstructure:"open_time"`
	CloseTime       string `mapstructure:"close_time"`
	OpeningWindow   int    `mapstructure:"opening_window"`
	ClosingWindow   int    `mapstructure:"closing_window"`
	OpenCutoffHour  int    `mapstructure:"open_cutoff_hour"`
	CloseCutoffHour int    `mapstructure:"close_cutoff_hour"`
}

// Trading holds position sizing and exit parameters. Percentages are in percent (2.0 = 2%).
type Trading struct {
	Handles             []string `mapstructure:"handles"`
	TradeAmount         float64  `mapstructure:"trade_amount"`
	StopLossPercentage  float64  `mapstructure:"stop_loss_percentage"`
	TargetPercentage    float64  `mapstructure:"target_percentage"`
	ConfidenceThreshold float64  `mapstructure:"confidence_threshold"`
	MaxPositions        int      `mapstructure:"max_positions"`
	DryRun              bool     `mapstructure:"dry_run"`
	TickInterval        int      `mapstructure:"tick_interval"`
}

// Backtest holds replay parameters.
type Backtest struct {
	StartDate   string `mapstructure:"start_date"`
	EndDate     string `mapstructure:"end_date"`
	Days        int    `mapstructure:"days"`
	PostsPerDay int    `mapstructure:"posts_per_day"`
	Parallelism int    `mapstructure:"parallelism"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level   string   `mapstructure:"level"`
	Format  string   `mapstructure:"format"`
	Outputs []string `mapstructure:"outputs"`
}

// Server holds the configuration for the results API.
type Server struct {
	Port int `mapstructure:"port"`
}

// Database holds the configuration for the run output store. An empty DSN disables it.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("twitter.base_url", "https://api.twitter.com/2")
	v.SetDefault("twitter.cache_dir", "tweet_cache")
	v.SetDefault("twitter.cache_enabled", true)
	v.SetDefault("twitter.page_size", 100)
	v.SetDefault("twitter.rate_limit", 1)
	v.SetDefault("twitter.rate_limit_burst", 1)
	v.SetDefault("twitter.max_retries", 3)

	v.SetDefault("kite.base_url", "https://api.kite.trade")
	v.SetDefault("kite.exchange", "NSE")
	v.SetDefault("kite.interval", "minute")
	v.SetDefault("kite.product", "MIS")
	v.SetDefault("kite.rate_limit", 3) // historical API allows 3 req/s
	v.SetDefault("kite.rate_limit_burst", 1)
	v.SetDefault("kite.max_retries", 3)

	v.SetDefault("sentiment.endpoint", "https://api-inference.huggingface.co/models/finiteautomata/bertweet-base-sentiment-analysis")
	v.SetDefault("sentiment.thresholds.super_positive", 0.8)
	v.SetDefault("sentiment.thresholds.positive", 0.6)
	v.SetDefault("sentiment.thresholds.negative", 0.4)
	v.SetDefault("sentiment.thresholds.super_negative", 0.2)
	v.SetDefault("sentiment.rate_limit", 5)
	v.SetDefault("sentiment.max_retries", 3)

	v.SetDefault("market.timezone", "Asia/Kolkata")
	v.SetDefault("market.open_time", "09:15")
	v.SetDefault("market.close_time", "15:30")
	v.SetDefault("market.opening_window", 30)
	v.SetDefault("market.closing_window", 30)
	v.SetDefault("market.open_cutoff_hour", 10)
	v.SetDefault("market.close_cutoff_hour", 14)

	v.SetDefault("trading.trade_amount", 10000.0)
	v.SetDefault("trading.stop_loss_percentage", 2.0)
	v.SetDefault("trading.target_percentage", 4.0)
	v.SetDefault("trading.confidence_threshold", 0.7)
	v.SetDefault("trading.max_positions", 5)
	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.tick_interval", 60)

	v.SetDefault("backtest.days", 30)
	v.SetDefault("backtest.posts_per_day", 100)
	v.SetDefault("backtest.parallelism", 1)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("server.port", 8080)
}

// LoadConfig reads configuration from path/config.yml, a .env file and environment variables.
// A missing config file is not an error; defaults and the environment still apply.
func LoadConfig(path string) (*Config, error) {
	// .env is optional, real environment variables win over it.
	_ = godotenv.Load()

	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	// AutomaticEnv only resolves keys viper already knows about.
	for _, key := range []string{
		"twitter.bearer_token", "kite.api_key", "kite.api_secret", "kite.access_token",
		"kite.request_token", "sentiment.api_token", "database.dsn",
		"backtest.start_date", "backtest.end_date", "trading.handles",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that every setting required by mode is present.
func (c *Config) Validate(mode Mode) error {
	var errs []error
	require := func(value, key string) {
		if strings.TrimSpace(value) == "" {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingSetting, key))
		}
	}

	switch mode {
	case ModeBacktest, ModeLive:
		require(c.Twitter.BearerToken, "twitter.bearer_token")
		require(c.Kite.ApiKey, "kite.api_key")
		require(c.Sentiment.Endpoint, "sentiment.endpoint")
		if c.Kite.AccessToken == "" && c.Kite.RequestToken == "" {
			errs = append(errs, fmt.Errorf("%w: kite.access_token or kite.request_token", ErrMissingSetting))
		}
		if c.Kite.AccessToken == "" {
			require(c.Kite.ApiSecret, "kite.api_secret")
		}
		if c.Trading.TradeAmount <= 0 {
			errs = append(errs, fmt.Errorf("%w: trading.trade_amount must be positive", ErrMissingSetting))
		}
		if mode == ModeLive && len(c.Trading.Handles) == 0 {
			errs = append(errs, fmt.Errorf("%w: trading.handles", ErrMissingSetting))
		}
		if mode == ModeLive {
			require(c.Database.DSN, "database.dsn")
		}
	case ModeUI:
		require(c.Database.DSN, "database.dsn")
	}

	return errors.Join(errs...)
}
