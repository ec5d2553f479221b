// Package bootstrap wires all dependencies and starts the application.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/metercore/metercore/adapters/clock"
	meterhttp "github.com/metercore/metercore/adapters/http"
	"github.com/metercore/metercore/adapters/idgen"
	"github.com/metercore/metercore/adapters/memory"
	"github.com/metercore/metercore/adapters/metrics"
	"github.com/metercore/metercore/adapters/sqlite"
	"github.com/metercore/metercore/app"
	"github.com/metercore/metercore/config"
	"github.com/metercore/metercore/ports"
)

// App represents the running metering core.
type App struct {
	Logger     zerolog.Logger
	DB         *sqlite.DB // nil with the memory driver
	HTTPServer *http.Server
	Metrics    *metrics.Collector

	Admission *app.AdmissionService
	Recorder  *app.RecorderService
	Reporting *app.ReportingService
	Meter     *meterhttp.Meter

	holder  *config.Holder
	windows *memory.WindowStore
	store   ports.UsageStore
	writer  *BufferedWriter
	stopCh  chan struct{}
}

// New wires the application from a config holder. The holder's change
// notifications feed the hot-reloadable policy and pricing tables.
func New(holder *config.Holder) (*App, error) {
	cfg := holder.Get()
	logger := setupLogger(cfg.Logging)

	logger.Info().Msg("initializing metercore")

	a := &App{
		Logger: logger,
		holder: holder,
		stopCh: make(chan struct{}),
	}

	if cfg.Metrics.Enabled {
		a.Metrics = metrics.New()
		logger.Info().Msg("prometheus metrics enabled")
	}

	if err := a.initStore(cfg); err != nil {
		return nil, err
	}

	a.windows = memory.NewWindowStore(memory.WindowStoreConfig{
		NumShards:     cfg.RateLimit.Shards,
		SweepInterval: cfg.RateLimit.SweepInterval,
		IdleTTL:       cfg.RateLimit.IdleTTL,
	})

	a.writer = NewBufferedWriter(a.store, logger, a.Metrics, WriterConfig{
		BatchSize:     cfg.Usage.BatchSize,
		FlushInterval: cfg.Usage.FlushInterval,
		WriteTimeout:  cfg.Usage.WriteTimeout,
	})

	realClock := clock.Real{}
	a.Admission = app.NewAdmissionService(app.AdmissionDeps{
		Windows: a.windows,
		Clock:   realClock,
		Logger:  logger,
		Metrics: a.Metrics,
	}, cfg.RateLimitTable())

	a.Recorder = app.NewRecorderService(app.RecorderDeps{
		Writer:  a.writer,
		Store:   a.store,
		Clock:   realClock,
		IDGen:   idgen.UUID{},
		Logger:  logger,
		Metrics: a.Metrics,
	}, cfg.PricingTable())

	a.Reporting = app.NewReportingService(a.store, logger)
	a.Meter = meterhttp.NewMeter(a.Admission, a.Recorder, realClock, cfg.Auth)

	handler := meterhttp.NewReportingHandler(meterhttp.ReportingDeps{
		Reporting: a.Reporting,
		Logger:    logger,
		Auth:      cfg.Auth,
		Metrics:   cfg.Metrics,
	})
	a.HTTPServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Policy and pricing follow config reloads; everything else is static.
	holder.OnChange(func(newCfg *config.Config) {
		a.Admission.UpdateTable(newCfg.RateLimitTable())
		a.Recorder.UpdatePricing(newCfg.PricingTable())
	})

	return a, nil
}

func (a *App) initStore(cfg *config.Config) error {
	switch cfg.Database.Driver {
	case "memory":
		a.store = memory.NewUsageStore()
		a.Logger.Warn().Msg("using in-memory usage store, events are lost on restart")
	default:
		db, err := sqlite.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return fmt.Errorf("migrate database: %w", err)
		}
		a.DB = db
		a.store = sqlite.NewUsageStore(db)
		a.Logger.Info().Str("dsn", cfg.Database.DSN).Msg("usage store ready")
	}
	return nil
}

// Run starts the HTTP server and background loops, blocking until SIGINT
// or SIGTERM, then shuts down gracefully.
func (a *App) Run() error {
	if retention := a.holder.Get().Usage.Retention; retention > 0 {
		go a.retentionLoop(retention)
	}
	if a.Metrics != nil {
		go a.windowGaugeLoop()
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", a.HTTPServer.Addr).Msg("reporting API listening")
		if err := a.HTTPServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		a.Logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	return a.Shutdown()
}

// Shutdown stops the server, flushes buffered usage, and closes resources.
func (a *App) Shutdown() error {
	close(a.stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := a.HTTPServer.Shutdown(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("http shutdown failed")
	}

	if err := a.writer.Close(); err != nil {
		a.Logger.Error().Err(err).Msg("final usage flush failed")
	}
	a.windows.Close()
	a.holder.Close()

	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			return fmt.Errorf("close database: %w", err)
		}
	}

	a.Logger.Info().Msg("shutdown complete")
	return nil
}

// retentionLoop removes events older than the retention window, daily.
func (a *App) retentionLoop(retention time.Duration) {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			removed, err := a.store.Cleanup(ctx, time.Now().Add(-retention))
			cancel()
			if err != nil {
				a.Logger.Error().Err(err).Msg("retention cleanup failed")
				continue
			}
			if removed > 0 {
				a.Logger.Info().Int64("removed", removed).Msg("retention cleanup")
			}
		case <-a.stopCh:
			return
		}
	}
}

// windowGaugeLoop keeps the active-window gauge fresh.
func (a *App) windowGaugeLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Metrics.ActiveWindows.Set(float64(a.windows.Len()))
		case <-a.stopCh:
			return
		}
	}
}

// setupLogger builds the process logger from logging config.
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.Format == "console" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	} else {
		logger = zerolog.New(os.Stderr)
	}

	return logger.Level(level).With().Timestamp().Logger()
}
