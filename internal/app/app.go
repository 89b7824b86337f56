// Package app wires configuration, storage, venue adapters and the
// reconciliation engine into one runnable unit.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"parity/internal/config"
	"parity/internal/logger"
	"parity/internal/notifier"
	"parity/internal/reconcile"
	"parity/internal/store/history"
	"parity/internal/store/sqlite"
	reconhttp "parity/internal/transport/http"
	"parity/internal/venue"
	"parity/internal/venue/binance"
	"parity/internal/venue/gate"
	"parity/internal/venue/mock"
	"parity/internal/venue/validator"
)

type App struct {
	cfg     *config.Config
	store   *sqlite.Store
	hist    *history.Store
	factory *venue.Factory
	engine  *reconcile.Engine
	server  *reconhttp.Server
	watcher *config.Watcher
	logFile *os.File
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg}

	logger.SetLevel(cfg.App.LogLevel)
	if cfg.App.LogPath != "" {
		if err := a.setupLogFile(cfg.App.LogPath); err != nil {
			return nil, err
		}
	}

	a.store, err = sqlite.NewStore(cfg.App.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening order store: %w", err)
	}
	a.hist, err = history.NewStore(cfg.App.HistoryDBPath, cfg.Reconcile.HistoryMaxRows)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening history store: %w", err)
	}

	a.factory = venue.NewFactory()
	if err := a.registerAdapters(); err != nil {
		a.Close()
		return nil, err
	}

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notify.Telegram.Enabled {
		notify = notifier.NewTelegram(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID)
	}

	a.engine = reconcile.NewEngine(cfg, a.factory, a.store.Orders,
		sqlite.NewResolver(a.store), a.hist, notify)

	a.server, err = reconhttp.NewServer(reconhttp.ServerConfig{
		Addr:    cfg.App.HTTPAddr,
		Engine:  a.engine,
		History: a.hist,
	})
	if err != nil {
		a.Close()
		return nil, err
	}

	if w, err := config.Watch(configPath); err != nil {
		logger.Warnf("app: config watcher unavailable: %v", err)
	} else {
		a.watcher = w
	}
	return a, nil
}

func (a *App) setupLogFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	a.logFile = f
	logger.SetOutput(io.MultiWriter(os.Stdout, f))
	return nil
}

// registerAdapters binds the venue builders. The mock adapter is certified
// against the contract validator first; the real venues are validated on
// demand against their sandboxes, not at boot.
func (a *App) registerAdapters() error {
	binanceCfg := binance.Config{
		RESTBaseURL:  a.cfg.Venues.Binance.RESTBaseURL,
		HTTPTimeout:  time.Duration(a.cfg.Venues.Binance.TimeoutSeconds) * time.Second,
		ProxyEnabled: a.cfg.Venues.Binance.Proxy.Enabled,
		RESTProxyURL: a.cfg.Venues.Binance.Proxy.RESTURL,
		WSProxyURL:   a.cfg.Venues.Binance.Proxy.WSURL,
	}
	a.factory.Register(binance.Name, func(acct venue.Account) (venue.Adapter, error) {
		return binance.New(acct, binanceCfg)
	})

	gateCfg := gate.Config{
		RESTBaseURL: a.cfg.Venues.Gate.RESTBaseURL,
		HTTPTimeout: time.Duration(a.cfg.Venues.Gate.TimeoutSeconds) * time.Second,
	}
	a.factory.Register(gate.Name, func(acct venue.Account) (venue.Adapter, error) {
		return gate.New(acct, gateCfg)
	})

	mockBuilder := func(acct venue.Account) (venue.Adapter, error) {
		return mock.New(acct), nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rep := validator.New().Validate(ctx, mock.New(venue.Account{ID: "contract-check", Venue: mock.Name}))
	logger.Debugf("app: mock contract report\n%s", rep.Render())
	if err := validator.Register(a.factory, mock.Name, mockBuilder, rep); err != nil {
		return err
	}
	return nil
}

// Run starts the engine and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	if err := a.engine.Start(ctx); err != nil {
		return err
	}
	err := a.server.Start(ctx)
	a.engine.Stop()
	return err
}

// Close releases every resource the app holds. Safe on a partially built app.
func (a *App) Close() {
	if a.watcher != nil {
		a.watcher.Close()
	}
	if a.hist != nil {
		if err := a.hist.Close(); err != nil {
			logger.Warnf("app: closing history store: %v", err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			logger.Warnf("app: closing order store: %v", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
