// Package config handles configuration loading for StockWatcher.
// It supports YAML config files, a .env file and environment variable
// overrides.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. STOCKWATCHER_LLM_MODEL.
const EnvPrefix = "STOCKWATCHER"

// Transport limits the chunk settings are validated against.
const (
	telegramMaxMessage = 4096
	telegramWrapBudget = 64
)

// ErrMissingCredential is returned when a required secret is not set.
var ErrMissingCredential = errors.New("config: missing credential")

// Config represents the complete application configuration.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	Telegram  TelegramConfig  `mapstructure:"telegram"  yaml:"telegram"`
	Watchlist WatchlistConfig `mapstructure:"watchlist" yaml:"watchlist"`
	News      NewsConfig      `mapstructure:"news"      yaml:"news"`
	Scoring   ScoringConfig   `mapstructure:"scoring"   yaml:"scoring"`
	Storage   StorageConfig   `mapstructure:"storage"   yaml:"storage"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"  yaml:"analysis"`
	Network   NetworkConfig   `mapstructure:"network"   yaml:"network"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// LLMConfig holds reasoning-oracle settings.
type LLMConfig struct {
	Primary       string  `mapstructure:"primary"        yaml:"primary"` // "groq", "openai", "ollama"
	GroqKey       string  `mapstructure:"groq_key"       yaml:"groq_key"`
	GroqURL       string  `mapstructure:"groq_url"       yaml:"groq_url"`
	OpenAIKey     string  `mapstructure:"openai_key"     yaml:"openai_key"`
	OllamaURL     string  `mapstructure:"ollama_url"     yaml:"ollama_url"`
	Model         string  `mapstructure:"model"          yaml:"model"`
	FallbackModel string  `mapstructure:"fallback_model" yaml:"fallback_model"` // Ollama model
	Temperature   float64 `mapstructure:"temperature"    yaml:"temperature"`
	MaxTokens     int     `mapstructure:"max_tokens"     yaml:"max_tokens"`
	TimeoutSec    int     `mapstructure:"timeout_sec"    yaml:"timeout_sec"`
	MaxRetries    int     `mapstructure:"max_retries"    yaml:"max_retries"`
}

// TelegramConfig holds report delivery settings.
type TelegramConfig struct {
	Token        string `mapstructure:"token"          yaml:"token"`
	ChatID       string `mapstructure:"chat_id"        yaml:"chat_id"`
	BaseURL      string `mapstructure:"base_url"       yaml:"base_url"`
	ChunkLimit   int    `mapstructure:"chunk_limit"    yaml:"chunk_limit"`
	ChunkDelayMs int    `mapstructure:"chunk_delay_ms" yaml:"chunk_delay_ms"`
	TimeoutSec   int    `mapstructure:"timeout_sec"    yaml:"timeout_sec"`
}

// WatchlistConfig lists the tracked tickers (Yahoo symbols) and the
// standing interpretation rules passed to the oracle.
type WatchlistConfig struct {
	Tickers []string `mapstructure:"tickers" yaml:"tickers"`
	Rules   []string `mapstructure:"rules"   yaml:"rules"`
}

// FeedConfig is one RSS source.
type FeedConfig struct {
	Name string `mapstructure:"name" yaml:"name"`
	URL  string `mapstructure:"url"  yaml:"url"`
}

// NewsConfig holds feed and relevance settings.
type NewsConfig struct {
	Feeds             []FeedConfig `mapstructure:"feeds"              yaml:"feeds"`
	ImpactKeywords    []string     `mapstructure:"impact_keywords"    yaml:"impact_keywords"`
	DomainKeywords    []string     `mapstructure:"domain_keywords"    yaml:"domain_keywords"`
	AcceptThreshold   int          `mapstructure:"accept_threshold"   yaml:"accept_threshold"`
	CriticalThreshold int          `mapstructure:"critical_threshold" yaml:"critical_threshold"`
	Capacity          int          `mapstructure:"capacity"           yaml:"capacity"`
	Mode              string       `mapstructure:"mode"               yaml:"mode"` // "recent" or "relevance"
	Limit             int          `mapstructure:"limit"              yaml:"limit"`
}

// ScoringConfig holds the SIP budget and weight scheme.
type ScoringConfig struct {
	MonthlyBudget string  `mapstructure:"monthly_budget" yaml:"monthly_budget"` // INR
	WeightsPreset string  `mapstructure:"weights_preset" yaml:"weights_preset"` // "balanced", "momentum", "custom"
	Trend         float64 `mapstructure:"trend"          yaml:"trend"`
	News          float64 `mapstructure:"news"           yaml:"news"`
	Fundamentals  float64 `mapstructure:"fundamentals"   yaml:"fundamentals"`
}

// StorageConfig selects the state backend.
type StorageConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"` // "json" or "sqlite"
	Dir    string `mapstructure:"dir"    yaml:"dir"`
}

// AnalysisConfig holds price scan settings.
type AnalysisConfig struct {
	ConcurrentFetches int `mapstructure:"concurrent_fetches" yaml:"concurrent_fetches"`
	LookbackDays      int `mapstructure:"lookback_days"      yaml:"lookback_days"`
}

// NetworkConfig holds shared HTTP settings for data sources.
type NetworkConfig struct {
	RequestTimeoutSec int    `mapstructure:"request_timeout_sec" yaml:"request_timeout_sec"`
	RateLimit         int    `mapstructure:"rate_limit"          yaml:"rate_limit"` // requests per second
	UserAgent         string `mapstructure:"user_agent"          yaml:"user_agent"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("error loading %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockwatcher/config.yaml (home directory)
//  3. /etc/stockwatcher/config.yaml (system)
//
// Environment variables override config file values.
// Format: STOCKWATCHER_<SECTION>_<KEY>, e.g., STOCKWATCHER_SCORING_MONTHLY_BUDGET
func Load() (*Config, error) {
	v := newViper()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockwatcher"))
	v.AddConfigPath("/etc/stockwatcher")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return unmarshal(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}
	return unmarshal(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	return &cfg, nil
}

// Default returns the built-in configuration with no file or env applied.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// LLM defaults (Groq's OpenAI-compatible endpoint, local Ollama fallback)
	v.SetDefault("llm.primary", "groq")
	v.SetDefault("llm.groq_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.ollama_url", "http://localhost:11434")
	v.SetDefault("llm.model", "llama-3.3-70b-versatile")
	v.SetDefault("llm.fallback_model", "llama3.1:8b")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.timeout_sec", 120)
	v.SetDefault("llm.max_retries", 2)

	// Telegram defaults
	v.SetDefault("telegram.base_url", "https://api.telegram.org")
	v.SetDefault("telegram.chunk_limit", 3500)
	v.SetDefault("telegram.chunk_delay_ms", 1200)
	v.SetDefault("telegram.timeout_sec", 10)

	// Watchlist defaults
	v.SetDefault("watchlist.tickers", []string{"BHEL.NS", "MTARTECH.NS", "WALCHANNAG.NS", "LT.NS", "NTPC.NS"})
	v.SetDefault("watchlist.rules", []string{
		"AERB licensing guidelines = Long-term growth",
		"SMR tenders = Direct catalyst",
		"New supplier contracts for MTAR/BHEL/LT = Earnings visibility",
	})

	// News defaults
	v.SetDefault("news.feeds", []map[string]string{
		{"name": "Moneycontrol_Business", "url": "https://www.moneycontrol.com/rss/business.xml"},
		{"name": "ET_Defence", "url": "https://b2b.economictimes.indiatimes.com/rss/defence"},
		{"name": "ET_Energy", "url": "https://energy.economictimes.indiatimes.com/rss/power"},
		{"name": "Nuclear_Strategic", "url": "https://news.google.com/rss/search?q=Nuclear+Power+India+SMR+AERB+SHANTI+Bill&hl=en-IN&gl=IN&ceid=IN:en"},
	})
	v.SetDefault("news.impact_keywords", []string{"ORDER", "CONTRACT", "TENDER", "WINS", "BAGS", "SECURES", "DEFENCE", "INFRA", "POWER"})
	v.SetDefault("news.domain_keywords", []string{"NUCLEAR", "SMR", "SMALL MODULAR REACTOR", "AERB", "NPCIL", "SHANTI BILL", "ATOMIC ENERGY", "KUDANKULAM", "KAIGA"})
	v.SetDefault("news.accept_threshold", 5)
	v.SetDefault("news.critical_threshold", 9)
	v.SetDefault("news.capacity", 80)
	v.SetDefault("news.mode", "recent")
	v.SetDefault("news.limit", 15)

	// Scoring defaults: 30/20/50 trend/news/fundamentals
	v.SetDefault("scoring.monthly_budget", "20000")
	v.SetDefault("scoring.weights_preset", "balanced")
	v.SetDefault("scoring.trend", 0.30)
	v.SetDefault("scoring.news", 0.20)
	v.SetDefault("scoring.fundamentals", 0.50)

	// Storage defaults
	v.SetDefault("storage.driver", "json")
	v.SetDefault("storage.dir", "data")

	// Analysis defaults
	v.SetDefault("analysis.concurrent_fetches", 5)
	v.SetDefault("analysis.lookback_days", 365)

	// Network defaults
	v.SetDefault("network.request_timeout_sec", 15)
	v.SetDefault("network.rate_limit", 5)
	v.SetDefault("network.user_agent", "Mozilla/5.0 (compatible; StockWatcher/1.0)")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
// The bare names (GROQ_API_KEY, TELEGRAM_TOKEN, TELEGRAM_CHAT_ID) are what
// CI secrets usually carry; the prefixed names win when both are set.
func overrideFromEnv(cfg *Config) {
	cfg.LLM.GroqKey = firstEnv(cfg.LLM.GroqKey, "STOCKWATCHER_LLM_GROQ_KEY", "GROQ_API_KEY")
	cfg.LLM.OpenAIKey = firstEnv(cfg.LLM.OpenAIKey, "STOCKWATCHER_LLM_OPENAI_KEY", "OPENAI_API_KEY")
	cfg.Telegram.Token = firstEnv(cfg.Telegram.Token, "STOCKWATCHER_TELEGRAM_TOKEN", "TELEGRAM_TOKEN")
	cfg.Telegram.ChatID = firstEnv(cfg.Telegram.ChatID, "STOCKWATCHER_TELEGRAM_CHAT_ID", "TELEGRAM_CHAT_ID")
}

func firstEnv(current string, names ...string) string {
	for _, n := range names {
		if v := os.Getenv(n); v != "" {
			return v
		}
	}
	return current
}

// Budget returns the monthly SIP budget.
func (c *Config) Budget() (decimal.Decimal, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(c.Scoring.MonthlyBudget), ",", "")
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("config: scoring.monthly_budget %q: %w", c.Scoring.MonthlyBudget, err)
	}
	return d, nil
}

// Validate reports every inconsistent setting at once.
func (c *Config) Validate() error {
	var errs []error

	if b, err := c.Budget(); err != nil {
		errs = append(errs, err)
	} else if !b.IsPositive() {
		errs = append(errs, fmt.Errorf("config: scoring.monthly_budget must be positive, got %s", b))
	}

	switch c.Scoring.WeightsPreset {
	case "", "balanced", "momentum":
	case "custom":
		s := c.Scoring
		if s.Trend < 0 || s.News < 0 || s.Fundamentals < 0 || math.Abs(s.Trend+s.News+s.Fundamentals-1) > 1e-9 {
			errs = append(errs, fmt.Errorf("config: custom scoring weights must be non-negative and sum to 1, got %.2f/%.2f/%.2f",
				s.Trend, s.News, s.Fundamentals))
		}
	default:
		errs = append(errs, fmt.Errorf("config: unknown scoring.weights_preset %q", c.Scoring.WeightsPreset))
	}

	if c.Telegram.ChunkLimit <= 0 || c.Telegram.ChunkLimit+telegramWrapBudget > telegramMaxMessage {
		errs = append(errs, fmt.Errorf("config: telegram.chunk_limit must be in (0, %d], got %d",
			telegramMaxMessage-telegramWrapBudget, c.Telegram.ChunkLimit))
	}
	if c.Telegram.ChunkDelayMs < 0 {
		errs = append(errs, errors.New("config: telegram.chunk_delay_ms must not be negative"))
	}
	if c.News.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("config: news.capacity must be positive, got %d", c.News.Capacity))
	}
	if c.News.Mode != "recent" && c.News.Mode != "relevance" {
		errs = append(errs, fmt.Errorf("config: news.mode must be recent or relevance, got %q", c.News.Mode))
	}
	if len(c.Watchlist.Tickers) == 0 {
		errs = append(errs, errors.New("config: watchlist.tickers is empty"))
	}
	if c.Analysis.ConcurrentFetches <= 0 {
		errs = append(errs, fmt.Errorf("config: analysis.concurrent_fetches must be positive, got %d", c.Analysis.ConcurrentFetches))
	}
	switch c.Storage.Driver {
	case "json", "sqlite":
	default:
		errs = append(errs, fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver))
	}
	switch c.LLM.Primary {
	case "groq", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("config: unknown llm.primary %q", c.LLM.Primary))
	}
	return errors.Join(errs...)
}

// RequireOracle checks the primary oracle's credentials.
func (c *Config) RequireOracle() error {
	switch c.LLM.Primary {
	case "groq":
		if c.LLM.GroqKey == "" {
			return fmt.Errorf("%w: GROQ_API_KEY", ErrMissingCredential)
		}
	case "openai":
		if c.LLM.OpenAIKey == "" {
			return fmt.Errorf("%w: OPENAI_API_KEY", ErrMissingCredential)
		}
	}
	return nil
}

// RequireTelegram checks the delivery credentials.
func (c *Config) RequireTelegram() error {
	var missing []string
	if c.Telegram.Token == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.Telegram.ChatID == "" {
		missing = append(missing, "TELEGRAM_CHAT_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredential, strings.Join(missing, ", "))
	}
	return nil
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
