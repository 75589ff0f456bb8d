// Package bootstrap wires all dependencies and starts the service.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/deepalweb/travelbuddy-sub001/adapters/clock"
	apihttp "github.com/deepalweb/travelbuddy-sub001/adapters/http"
	"github.com/deepalweb/travelbuddy-sub001/adapters/idgen"
	"github.com/deepalweb/travelbuddy-sub001/adapters/memory"
	"github.com/deepalweb/travelbuddy-sub001/adapters/metrics"
	"github.com/deepalweb/travelbuddy-sub001/adapters/sqlite"
	"github.com/deepalweb/travelbuddy-sub001/app"
	"github.com/deepalweb/travelbuddy-sub001/config"
	"github.com/deepalweb/travelbuddy-sub001/core/events"
	"github.com/deepalweb/travelbuddy-sub001/domain/tier"
	"github.com/deepalweb/travelbuddy-sub001/ports"
	"github.com/rs/zerolog"
)

// App represents the running service.
type App struct {
	Logger     zerolog.Logger
	Holder     *config.Holder
	DB         *sqlite.DB
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Meter  *app.MeterService
	Policy *app.PolicyService
	Cost   *app.CostService
	Hub    *apihttp.Hub

	rateStore *memory.RateLimitStore
}

// Options configures application startup.
type Options struct {
	// ConfigPath is the YAML config file. Empty means environment-only
	// configuration.
	ConfigPath string

	// WatchConfig enables fsnotify + SIGHUP hot reload.
	WatchConfig bool
}

// New creates and wires the application.
func New(opts Options) (*App, error) {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	var holder *config.Holder
	if opts.ConfigPath != "" {
		var err error
		holder, err = config.NewHolder(opts.ConfigPath, bootLogger)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err := config.LoadFromEnv()
		if err != nil {
			return nil, err
		}
		holder = config.NewStaticHolder(cfg, bootLogger)
	}

	cfg := holder.Get()
	logger := setupLogger(cfg.Logging)

	a := &App{
		Logger: logger,
		Holder: holder,
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.New()
	}
	a.Metrics = collector

	if opts.WatchConfig {
		holder.OnChange(func(next *config.Config) {
			if collector != nil {
				collector.ConfigReloads.Inc()
			}
		})
		if err := holder.WatchFile(); err != nil {
			logger.Warn().Err(err).Msg("config file watch unavailable")
		}
		holder.WatchSignals()
	}

	// Storage backend. Rate-limit window state is ephemeral by contract
	// and always lives in memory; only counters, events and config get a
	// durable home.
	var (
		quotaStore      ports.QuotaStore
		usageStore      ports.UsageEventStore
		costConfigStore ports.CostConfigStore
		subscriberStore ports.SubscriberStore
	)
	switch cfg.Database.Driver {
	case "sqlite":
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		quotaStore = sqlite.NewQuotaStore(db)
		usageStore = sqlite.NewUsageEventStore(db)
		costConfigStore = sqlite.NewCostConfigStore(db)
		subscriberStore = sqlite.NewSubscriberStore(db)
		logger.Info().Str("dsn", cfg.Database.DSN).Msg("using sqlite storage")
	default:
		quotaStore = memory.NewQuotaStore()
		usageStore = memory.NewUsageEventStore()
		costConfigStore = memory.NewCostConfigStore()
		subscriberStore = memory.NewSubscriberStore()
		logger.Warn().Msg("using in-memory storage, counters reset on restart")
	}

	clk := clock.Real{}
	a.rateStore = memory.NewRateLimitStore(memory.RateLimitStoreConfig{
		Clock:         clk,
		SweepInterval: cfg.Enforcement.SweepInterval,
		IdleAge:       cfg.Enforcement.BucketIdleAge,
	})

	bus := events.NewBus(logger)

	a.Meter = app.NewMeterService(usageStore, bus, clk, idgen.UUID{}, collector, logger)
	a.Policy = app.NewPolicyService(
		a.rateStore,
		quotaStore,
		subscriberStore,
		clk,
		collector,
		logger,
		func() tier.Table { return holder.Get().TierTable() },
		func() bool { return holder.Get().EnforcementEnabled() },
	)
	a.Cost = app.NewCostService(context.Background(), costConfigStore, a.Meter, bus, clk, logger, cfg.CostDefaults())
	a.Hub = apihttp.NewHub(bus, a.Meter, a.Cost, collector, logger)

	handler := apihttp.NewHandler(a.Meter, a.Policy, a.Cost, a.Hub, logger)

	routerCfg := apihttp.RouterConfig{
		AdminTokenHash: func() string { return holder.Get().Admin.TokenHash },
		AdminForCosts:  func() bool { return holder.Get().Admin.RequireForCosts },
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = apihttp.MetricsHandler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}

	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      apihttp.NewRouter(handler, logger, routerCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return a, nil
}

// Run starts the HTTP server and blocks until interrupt or error.
func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().
			Str("addr", a.HTTPServer.Addr).
			Msg("starting http server")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown gracefully stops the application.
func (a *App) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error().Err(err).Msg("http server shutdown error")
		}
	}

	// Drain in-flight event writes before the database goes away.
	if a.Meter != nil {
		a.Meter.Close()
	}

	if a.rateStore != nil {
		a.rateStore.Close()
	}

	if a.Holder != nil {
		a.Holder.Stop()
	}

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			a.Logger.Error().Err(err).Msg("database close error")
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		output := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(output).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
