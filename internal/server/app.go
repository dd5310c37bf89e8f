// Package server wires storage, sessions, the OAuth flow and the HTTP API
// together and runs them until a shutdown signal arrives.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/extsession/internal/logging"
	"github.com/dmitrijs2005/extsession/internal/server/config"
	"github.com/dmitrijs2005/extsession/internal/server/cookies"
	"github.com/dmitrijs2005/extsession/internal/server/httpapi"
	"github.com/dmitrijs2005/extsession/internal/server/kvstore"
	"github.com/dmitrijs2005/extsession/internal/server/metrics"
	"github.com/dmitrijs2005/extsession/internal/server/oauth"
	"github.com/dmitrijs2005/extsession/internal/server/platform"
	"github.com/dmitrijs2005/extsession/internal/server/resolver"
	"github.com/dmitrijs2005/extsession/internal/server/session"
)

const openTimeout = 30 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	store   kvstore.Store
	metrics *metrics.Metrics
	server  *httpapi.HTTPServer
}

func NewApp(c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, c.LogLevel)
	return newApp(c, logger)
}

func newApp(c *config.Config, logger logging.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	m := metrics.New()

	kvstore.SetMigrationLogger(logger)

	raw, err := kvstore.Open(ctx, c.StorageDriver, c.DatabaseDSN, c.KeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}
	store := m.InstrumentStore(raw)

	codec, err := cookies.NewCodec(c.SecretKey)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("cookie codec init error: %w", err)
	}

	sessions := session.NewStorage(store, logger, session.WithMalformedHook(m.MalformedHook()))
	res := resolver.New(sessions, codec, c.SessionCookieName, logger, resolver.WithOutcomeHook(m.ResolverHook()))

	webhooks := platform.NewClient(platform.Config{
		ClusterURL: c.ExtensionClusterURL,
		BaseURL:    c.ExtensionBaseURL,
		APIKey:     c.ExtensionAPIKey,
		APISecret:  c.ExtensionAPISecret,
		Email:      c.WebhookEmail,
	})

	flow := oauth.NewFlow(oauth.Config{
		ClusterURL:   c.ExtensionClusterURL,
		BaseURL:      c.ExtensionBaseURL,
		ClientID:     c.ExtensionAPIKey,
		ClientSecret: c.ExtensionAPISecret,
		InstallTTL:   c.InstallSessionTTL,
	}, sessions, res, logger,
		oauth.WithWebhooks(webhooks),
		oauth.WithEventHook(m.FlowHook()),
	)

	router := httpapi.NewRouter(httpapi.Deps{
		Flow:     flow,
		Resolver: res,
		Sessions: sessions,
		Metrics:  m,
		Logger:   logger,
	})

	return &App{
		config:  c,
		logger:  logger,
		store:   store,
		metrics: m,
		server:  httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, router),
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.server.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run blocks until ctx is cancelled, a signal arrives or the HTTP server
// fails. The store is closed before it returns.
func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "storage", app.config.StorageDriver, "address", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	sweeper := kvstore.StartSweeper(ctx, app.store, app.config.SweepInterval, app.logger,
		kvstore.WithSweepHook(app.metrics.SweepHook()))

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	sweeper.Stop()
	if err := app.store.Close(); err != nil {
		app.logger.Error(context.Background(), "failed to close storage", "error", err)
	}
	app.logger.Info(context.Background(), "App stopped")
}
