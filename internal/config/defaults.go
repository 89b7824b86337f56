package config

import "strings"

const (
	defaultInterval       = "5m"
	defaultOrderBatchSize = 200
	defaultAlertThreshold = 10
	defaultFillTolerance  = 1e-8
	defaultWorkerLimit    = 4
	defaultRetryAttempts  = 3
	defaultHistoryRows    = 5000
	defaultRateWindowSec  = 60
	defaultPublicLimit    = 120
	defaultPrivateLimit   = 60
)

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.App.Env) == "" {
		c.App.Env = "dev"
	}
	if strings.TrimSpace(c.App.LogLevel) == "" {
		c.App.LogLevel = "info"
	}
	if strings.TrimSpace(c.App.HTTPAddr) == "" {
		c.App.HTTPAddr = ":9982"
	}
	if strings.TrimSpace(c.App.DBPath) == "" {
		c.App.DBPath = "data/parity.db"
	}
	if strings.TrimSpace(c.App.HistoryDBPath) == "" {
		c.App.HistoryDBPath = "data/parity_history.db"
	}

	r := &c.Reconcile
	if strings.TrimSpace(r.Interval) == "" {
		r.Interval = defaultInterval
	}
	if r.OrderBatchSize <= 0 {
		r.OrderBatchSize = defaultOrderBatchSize
	}
	if r.AlertThreshold <= 0 {
		r.AlertThreshold = defaultAlertThreshold
	}
	if r.FillTolerance <= 0 {
		r.FillTolerance = defaultFillTolerance
	}
	if r.WorkerLimit <= 0 {
		r.WorkerLimit = defaultWorkerLimit
	}
	if r.RetryMaxAttempts <= 0 {
		r.RetryMaxAttempts = defaultRetryAttempts
	}
	if r.HistoryMaxRows <= 0 {
		r.HistoryMaxRows = defaultHistoryRows
	}

	if c.Venues.Binance.TimeoutSeconds <= 0 {
		c.Venues.Binance.TimeoutSeconds = 15
	}
	if c.Venues.Gate.TimeoutSeconds <= 0 {
		c.Venues.Gate.TimeoutSeconds = 15
	}

	for i := range c.Accounts {
		acct := &c.Accounts[i]
		acct.Mode = strings.ToLower(strings.TrimSpace(acct.Mode))
		acct.Venue = strings.ToLower(strings.TrimSpace(acct.Venue))
		if acct.RateLimitPublic <= 0 {
			acct.RateLimitPublic = defaultPublicLimit
		}
		if acct.RateLimitPrivate <= 0 {
			acct.RateLimitPrivate = defaultPrivateLimit
		}
		if acct.RateLimitWindowSeconds <= 0 {
			acct.RateLimitWindowSeconds = defaultRateWindowSec
		}
	}
}
