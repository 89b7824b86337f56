package config

import "strings"

// Config is the top-level configuration carrier for parity.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Venues    VenuesConfig    `mapstructure:"venues"`
	Accounts  []AccountConfig `mapstructure:"accounts"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type AppConfig struct {
	Env           string `mapstructure:"env"`
	LogLevel      string `mapstructure:"log_level"`
	HTTPAddr      string `mapstructure:"http_addr"`
	LogPath       string `mapstructure:"log_path"`
	DBPath        string `mapstructure:"db_path"`
	HistoryDBPath string `mapstructure:"history_db_path"`
}

// ReconcileConfig controls the reconciliation engine.
type ReconcileConfig struct {
	Interval         string  `mapstructure:"interval"`           // e.g. "5m"
	OrderBatchSize   int     `mapstructure:"order_batch_size"`   // max open orders fetched per account
	AlertThreshold   int     `mapstructure:"alert_threshold"`    // discrepancies per run before alerting
	FillTolerance    float64 `mapstructure:"fill_tolerance"`     // fill-granularity tolerance
	WorkerLimit      int     `mapstructure:"worker_limit"`       // concurrent accounts per run
	RetryMaxAttempts int     `mapstructure:"retry_max_attempts"` // per venue call
	RunImmediately   bool    `mapstructure:"run_immediately"`
	HistoryMaxRows   int     `mapstructure:"history_max_rows"`
}

type VenuesConfig struct {
	Binance BinanceConfig `mapstructure:"binance"`
	Gate    GateConfig    `mapstructure:"gate"`
}

type ProxyConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	RESTURL string `mapstructure:"rest_url"`
	WSURL   string `mapstructure:"ws_url"`
}

type BinanceConfig struct {
	RESTBaseURL    string      `mapstructure:"rest_base_url"`
	TimeoutSeconds int         `mapstructure:"timeout_seconds"`
	Proxy          ProxyConfig `mapstructure:"proxy"`
}

type GateConfig struct {
	RESTBaseURL    string `mapstructure:"rest_base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// AccountConfig binds one set of venue credentials to a trading mode.
type AccountConfig struct {
	ID                     string `mapstructure:"id"`
	Mode                   string `mapstructure:"mode"`  // "paper" | "live"
	Venue                  string `mapstructure:"venue"` // "binance" | "gate" | "mock"
	APIKey                 string `mapstructure:"api_key"`
	APISecret              string `mapstructure:"api_secret"`
	RateLimitPublic        int    `mapstructure:"rate_limit_public"`
	RateLimitPrivate       int    `mapstructure:"rate_limit_private"`
	RateLimitWindowSeconds int    `mapstructure:"rate_limit_window_seconds"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

// AccountsForMode returns the accounts configured for a trading mode.
func (c *Config) AccountsForMode(mode string) []AccountConfig {
	mode = strings.ToLower(strings.TrimSpace(mode))
	var out []AccountConfig
	for _, acct := range c.Accounts {
		if strings.ToLower(acct.Mode) == mode {
			out = append(out, acct)
		}
	}
	return out
}
