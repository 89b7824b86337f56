package config

import (
	"fmt"
	"strings"

	"parity/internal/scheduler"
)

var validModes = map[string]bool{"paper": true, "live": true}

var validVenues = map[string]bool{"binance": true, "gate": true, "mock": true}

// IsValidMode reports whether mode names a supported trading mode.
func IsValidMode(mode string) bool {
	return validModes[strings.ToLower(strings.TrimSpace(mode))]
}

func validate(cfg *Config) error {
	if _, ok := scheduler.ParseIntervalDuration(cfg.Reconcile.Interval); !ok {
		return fmt.Errorf("reconcile.interval is invalid: %q", cfg.Reconcile.Interval)
	}
	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acct := range cfg.Accounts {
		if strings.TrimSpace(acct.ID) == "" {
			return fmt.Errorf("accounts[%d]: id cannot be empty", i)
		}
		if seen[acct.ID] {
			return fmt.Errorf("accounts[%d]: duplicate id %q", i, acct.ID)
		}
		seen[acct.ID] = true
		if !validModes[acct.Mode] {
			return fmt.Errorf("accounts[%d] (%s): mode must be paper or live, got %q", i, acct.ID, acct.Mode)
		}
		if !validVenues[acct.Venue] {
			return fmt.Errorf("accounts[%d] (%s): unsupported venue %q", i, acct.ID, acct.Venue)
		}
		if acct.Venue != "mock" && strings.TrimSpace(acct.APIKey) == "" {
			return fmt.Errorf("accounts[%d] (%s): api_key is required for venue %s", i, acct.ID, acct.Venue)
		}
	}
	if cfg.Notify.Telegram.Enabled {
		if strings.TrimSpace(cfg.Notify.Telegram.BotToken) == "" || strings.TrimSpace(cfg.Notify.Telegram.ChatID) == "" {
			return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
		}
	}
	return nil
}
