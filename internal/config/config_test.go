package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
accounts:
  - id: paper-main
    mode: paper
    venue: mock
`

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.App.Env)
	assert.Equal(t, "info", cfg.App.LogLevel)
	assert.Equal(t, ":9982", cfg.App.HTTPAddr)
	assert.Equal(t, "5m", cfg.Reconcile.Interval)
	assert.Equal(t, 200, cfg.Reconcile.OrderBatchSize)
	assert.Equal(t, 10, cfg.Reconcile.AlertThreshold)
	assert.Equal(t, 1e-8, cfg.Reconcile.FillTolerance)
	assert.Equal(t, 4, cfg.Reconcile.WorkerLimit)
	assert.Equal(t, 3, cfg.Reconcile.RetryMaxAttempts)
	assert.Equal(t, 5000, cfg.Reconcile.HistoryMaxRows)

	require.Len(t, cfg.Accounts, 1)
	assert.Equal(t, 120, cfg.Accounts[0].RateLimitPublic)
	assert.Equal(t, 60, cfg.Accounts[0].RateLimitPrivate)
	assert.Equal(t, 60, cfg.Accounts[0].RateLimitWindowSeconds)
}

func TestLoadExplicitValuesWin(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
app:
  log_level: debug
  http_addr: ":8080"
reconcile:
  interval: 30s
  alert_threshold: 5
accounts:
  - id: live-1
    mode: LIVE
    venue: binance
    api_key: k
    api_secret: s
    rate_limit_public: 10
`))
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, ":8080", cfg.App.HTTPAddr)
	assert.Equal(t, "30s", cfg.Reconcile.Interval)
	assert.Equal(t, 5, cfg.Reconcile.AlertThreshold)
	// Modes are normalized to lowercase.
	assert.Equal(t, "live", cfg.Accounts[0].Mode)
	assert.Equal(t, 10, cfg.Accounts[0].RateLimitPublic)
}

func TestLoadValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			"bad mode",
			"accounts:\n  - id: a\n    mode: sandbox\n    venue: mock\n",
			"mode must be paper or live",
		},
		{
			"unsupported venue",
			"accounts:\n  - id: a\n    mode: paper\n    venue: kraken\n",
			"unsupported venue",
		},
		{
			"duplicate account id",
			"accounts:\n  - id: a\n    mode: paper\n    venue: mock\n  - id: a\n    mode: live\n    venue: mock\n",
			"duplicate id",
		},
		{
			"missing api key for real venue",
			"accounts:\n  - id: a\n    mode: live\n    venue: binance\n",
			"api_key is required",
		},
		{
			"bad interval",
			"reconcile:\n  interval: soon\naccounts:\n  - id: a\n    mode: paper\n    venue: mock\n",
			"interval is invalid",
		},
		{
			"telegram enabled without token",
			"notify:\n  telegram:\n    enabled: true\naccounts:\n  - id: a\n    mode: paper\n    venue: mock\n",
			"bot_token and chat_id are required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
	_, err = Load("")
	assert.Error(t, err)
}

func TestAccountsForMode(t *testing.T) {
	cfg := &Config{Accounts: []AccountConfig{
		{ID: "p1", Mode: "paper"},
		{ID: "l1", Mode: "live"},
		{ID: "p2", Mode: "paper"},
	}}
	paper := cfg.AccountsForMode("PAPER")
	require.Len(t, paper, 2)
	assert.Equal(t, "p1", paper[0].ID)
	assert.Empty(t, cfg.AccountsForMode("sandbox"))
}

func TestIsValidMode(t *testing.T) {
	assert.True(t, IsValidMode("paper"))
	assert.True(t, IsValidMode(" Live "))
	assert.False(t, IsValidMode(""))
	assert.False(t, IsValidMode("backtest"))
}
