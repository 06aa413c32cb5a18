// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name         string `yaml:"name"`
	Env          string `yaml:"env"`
	MetricsAddr  string `yaml:"metrics_addr"`
	ObserverAddr string `yaml:"observer_addr"`
	LogLevel     string `yaml:"log_level"`
}

// Alpaca describes the brokerage collaborator connectivity parameters.
// Credentials come from the environment (ALPACA_API_KEY / ALPACA_API_SECRET)
// and override whatever the file holds.
type Alpaca struct {
	BaseURL     string `yaml:"base_url"`
	DataBaseURL string `yaml:"data_base_url"`
	APIKey      string `yaml:"api_key"`
	APISecret   string `yaml:"api_secret"`
	Paper       bool   `yaml:"paper"`
}

// Twitter configures the recent-search social collaborator.
type Twitter struct {
	BaseURL     string `yaml:"base_url"`
	BearerToken string `yaml:"bearer_token"`
}

// OpenAI configures the language-analysis collaborator.
type OpenAI struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// Broker selects which brokerage implementation backs the engine.
type Broker struct {
	Mode string `yaml:"mode"` // alpaca|paper
}

// Paper captures the offline broker's account settings.
type Paper struct {
	StartingCash float64 `yaml:"starting_cash"`
	FillsPath    string  `yaml:"fills_path"`
}

// Trading groups the symbols, the active policy, and its thresholds.
type Trading struct {
	Symbols            []string `yaml:"symbols"`
	Mode               string   `yaml:"mode"` // rsi|sentiment
	MaxPositionDollars float64  `yaml:"max_position_dollars"`
	MaxDailyLoss       float64  `yaml:"max_daily_loss"` // 0 disables the guard
	RSIOversold        float64  `yaml:"rsi_oversold"`
	RSIOverbought      float64  `yaml:"rsi_overbought"`
	SentimentThreshold float64  `yaml:"sentiment_threshold"`
	Keywords           []string `yaml:"keywords"`
	LookbackHours      int      `yaml:"lookback_hours"`
	BreadthBasket      []string `yaml:"breadth_basket"`
}

// MarketHours is the local-time fallback used only when the broker clock
// endpoint is unreachable.
type MarketHours struct {
	Timezone string `yaml:"timezone"` // e.g. America/New_York
	Open     string `yaml:"open"`     // "09:30"
	Close    string `yaml:"close"`    // "16:00"
}

// Cache tunes the quote cache.
type Cache struct {
	TTLSecs int `yaml:"ttl_secs"`
}

// Sentiment tunes the fusion component's rate discipline and item bound.
type Sentiment struct {
	MinRequestIntervalSecs int `yaml:"min_request_interval_secs"`
	MaxItems               int `yaml:"max_items"`
}

// Execution tunes the order retry state machine.
type Execution struct {
	MaxAttempts   int `yaml:"max_attempts"`
	BackoffBaseMs int `yaml:"backoff_base_ms"`
}

// Loop tunes the control loop cadence.
type Loop struct {
	PassIntervalSecs   int `yaml:"pass_interval_secs"`
	ClosedIntervalSecs int `yaml:"closed_interval_secs"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App         `yaml:"app"`
	Broker      Broker      `yaml:"broker"`
	Alpaca      Alpaca      `yaml:"alpaca"`
	Twitter     Twitter     `yaml:"twitter"`
	OpenAI      OpenAI      `yaml:"openai"`
	Paper       Paper       `yaml:"paper"`
	Trading     Trading     `yaml:"trading"`
	MarketHours MarketHours `yaml:"market_hours"`
	Cache       Cache       `yaml:"cache"`
	Sentiment   Sentiment   `yaml:"sentiment"`
	Execution   Execution   `yaml:"execution"`
	Loop        Loop        `yaml:"loop"`
}

// Load reads a YAML file from disk, hydrates a Config struct, applies
// environment overrides for credentials, and fills defaults.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	config.applyEnv()
	config.applyDefaults()
	return &config, nil
}

// LoadEnvFile best-effort loads a .env file so credentials can live outside
// the YAML. A missing file is not an error.
func LoadEnvFile(path string) {
	_ = godotenv.Load(path)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		c.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		c.Alpaca.APISecret = v
	}
	if v := os.Getenv("TWITTER_BEARER_TOKEN"); v != "" {
		c.Twitter.BearerToken = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		c.OpenAI.APIKey = v
	}
}

func (c *Config) applyDefaults() {
	if c.Broker.Mode == "" {
		c.Broker.Mode = "paper"
	}
	if c.Alpaca.BaseURL == "" {
		if c.Alpaca.Paper {
			c.Alpaca.BaseURL = "https://paper-api.alpaca.markets"
		} else {
			c.Alpaca.BaseURL = "https://api.alpaca.markets"
		}
	}
	if c.Alpaca.DataBaseURL == "" {
		c.Alpaca.DataBaseURL = "https://data.alpaca.markets"
	}
	if c.Twitter.BaseURL == "" {
		c.Twitter.BaseURL = "https://api.twitter.com"
	}
	if c.OpenAI.BaseURL == "" {
		c.OpenAI.BaseURL = "https://api.openai.com"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-3.5-turbo"
	}
	if len(c.Trading.Symbols) == 0 {
		c.Trading.Symbols = []string{"SPY", "AAPL", "MSFT"}
	}
	if c.Trading.Mode == "" {
		c.Trading.Mode = "rsi"
	}
	if c.Trading.MaxPositionDollars <= 0 {
		c.Trading.MaxPositionDollars = 1000
	}
	if c.Trading.RSIOversold <= 0 {
		c.Trading.RSIOversold = 30
	}
	if c.Trading.RSIOverbought <= 0 {
		c.Trading.RSIOverbought = 70
	}
	if c.Trading.SentimentThreshold <= 0 {
		c.Trading.SentimentThreshold = 0.7
	}
	if len(c.Trading.Keywords) == 0 {
		c.Trading.Keywords = []string{"market", "stock", "trading", "economy"}
	}
	if c.Trading.LookbackHours <= 0 {
		c.Trading.LookbackHours = 1
	}
	if len(c.Trading.BreadthBasket) == 0 {
		c.Trading.BreadthBasket = []string{
			"AAPL", "MSFT", "AMZN", "GOOGL", "META", "NVDA", "BRK.B", "JPM", "JNJ", "V",
		}
	}
	if c.MarketHours.Timezone == "" {
		c.MarketHours.Timezone = "America/New_York"
	}
	if c.MarketHours.Open == "" {
		c.MarketHours.Open = "09:30"
	}
	if c.MarketHours.Close == "" {
		c.MarketHours.Close = "16:00"
	}
	if c.Cache.TTLSecs <= 0 {
		c.Cache.TTLSecs = 60
	}
	if c.Sentiment.MinRequestIntervalSecs <= 0 {
		c.Sentiment.MinRequestIntervalSecs = 20
	}
	if c.Sentiment.MaxItems <= 0 {
		c.Sentiment.MaxItems = 5
	}
	if c.Execution.MaxAttempts <= 0 {
		c.Execution.MaxAttempts = 3
	}
	if c.Execution.BackoffBaseMs <= 0 {
		c.Execution.BackoffBaseMs = 1000
	}
	if c.Loop.PassIntervalSecs <= 0 {
		c.Loop.PassIntervalSecs = 5
	}
	if c.Loop.ClosedIntervalSecs <= 0 {
		c.Loop.ClosedIntervalSecs = 60
	}
	if c.Paper.StartingCash <= 0 {
		c.Paper.StartingCash = 100000
	}
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Trading.Symbols) == 0 {
		return fmt.Errorf("no trading symbols configured")
	}
	switch c.Trading.Mode {
	case "rsi", "sentiment":
	default:
		return fmt.Errorf("unknown trading mode %q", c.Trading.Mode)
	}
	if c.Broker.Mode == "alpaca" && (c.Alpaca.APIKey == "" || c.Alpaca.APISecret == "") {
		return fmt.Errorf("alpaca broker selected but credentials missing")
	}
	if c.Trading.Mode == "sentiment" && c.Broker.Mode == "alpaca" {
		if c.Twitter.BearerToken == "" {
			return fmt.Errorf("sentiment mode requires TWITTER_BEARER_TOKEN")
		}
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("sentiment mode requires OPENAI_API_KEY")
		}
	}
	if _, err := c.MarketHours.Location(); err != nil {
		return fmt.Errorf("market hours timezone: %w", err)
	}
	return nil
}
