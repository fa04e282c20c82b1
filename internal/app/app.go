// Package app wires configuration, storage, clients and services into one
// application shared by the server binary and its tests.
package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/folio/internal/clients/eodhd"
	"github.com/bobmcallan/folio/internal/clients/gemini"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/interfaces"
	"github.com/bobmcallan/folio/internal/services/analytics"
	"github.com/bobmcallan/folio/internal/services/ledger"
	"github.com/bobmcallan/folio/internal/services/quote"
	"github.com/bobmcallan/folio/internal/services/valuation"
	"github.com/bobmcallan/folio/internal/storage/surrealdb"
)

// App holds all initialized services, clients, and storage.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Store            interfaces.LedgerStore
	Quotes           *quote.Service
	ValuationService interfaces.ValuationService
	AnalyticsService interfaces.AnalyticsService
	LedgerService    interfaces.LedgerService
	StartupTime      time.Time

	storage   *surrealdb.Manager
	scheduler *cron.Cron
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// resolveConfigPath checks the provided path, FOLIO_CONFIG, the binary dir,
// then falls back to config/folio.toml.
func resolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("FOLIO_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "folio.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/folio.toml"
		}
	}
	return configPath
}

// NewApp loads configuration, connects to SurrealDB and the external APIs,
// and builds the services.
func NewApp(configPath string) (*App, error) {
	startupStart := time.Now()

	common.LoadVersionFromFile()

	config, err := common.LoadConfig(resolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger := common.NewLoggerFromConfig(config.Logging)

	ctx := context.Background()
	manager, err := surrealdb.NewManager(ctx, logger, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	eodhdKey, err := common.ResolveAPIKey("eodhd_api_key", config.Clients.EODHD.APIKey)
	if err != nil {
		logger.Warn().Msg("EODHD API key not configured - live prices will fall back to static asset prices")
	}
	eodhdConfig := config.Clients.EODHD
	eodhdConfig.APIKey = eodhdKey
	feed := eodhd.NewClientFromConfig(eodhdConfig, logger)

	var narrator interfaces.NarrativeGenerator
	geminiKey, err := common.ResolveAPIKey("gemini_api_key", config.Clients.Gemini.APIKey)
	if err != nil {
		logger.Warn().Msg("Gemini API key not configured - analytics summaries will be unavailable")
	} else {
		client, err := gemini.NewClient(ctx, geminiKey,
			gemini.WithLogger(logger),
			gemini.WithModel(config.Clients.Gemini.Model),
		)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize Gemini client")
		} else {
			narrator = client
		}
	}

	a := Build(config, logger, manager.LedgerStore(), feed, narrator)
	a.storage = manager
	a.StartupTime = startupStart

	logger.Info().Dur("startup", time.Since(startupStart)).Msg("App initialized")

	return a, nil
}

// Build wires the services over an already opened store and price feed.
// narrator may be nil.
func Build(config *common.Config, logger *common.Logger, store interfaces.LedgerStore, feed interfaces.PriceFeed, narrator interfaces.NarrativeGenerator) *App {
	quotes := quote.NewService(feed, logger, quote.WithConcurrency(config.Analytics.Concurrency))
	valuationService := valuation.NewService(store, quotes, logger, config.Analytics.Concurrency)
	analyticsService := analytics.NewService(
		store,
		quotes,
		valuationService,
		narrator,
		quotes,
		analytics.NewConfig(config.Analytics),
		logger,
	)
	ledgerService := ledger.NewService(store, analyticsService, logger)

	return &App{
		Config:           config,
		Logger:           logger,
		Store:            store,
		Quotes:           quotes,
		ValuationService: valuationService,
		AnalyticsService: analyticsService,
		LedgerService:    ledgerService,
		StartupTime:      time.Now(),
	}
}

// StartPriceScheduler registers the quote refresh job on the configured cron
// spec. An empty spec disables the job.
func (a *App) StartPriceScheduler() error {
	spec := a.Config.Scheduler.PriceRefresh
	if spec == "" {
		a.Logger.Info().Msg("Price refresh schedule not configured")
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, a.refreshPrices); err != nil {
		return fmt.Errorf("invalid price refresh schedule %q: %w", spec, err)
	}
	c.Start()
	a.scheduler = c

	a.Logger.Info().Str("schedule", spec).Msg("Price scheduler started")
	return nil
}

// refreshPrices re-fetches every quote the valuation path has asked for.
// A new quote stamp retires cached analytics reports.
func (a *App) refreshPrices() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := a.Quotes.Refresh(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Price refresh: quote refresh failed")
	}
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, close storage.
func (a *App) Close() {
	if a.scheduler != nil {
		<-a.scheduler.Stop().Done()
		a.scheduler = nil
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.storage = nil
	}
}
