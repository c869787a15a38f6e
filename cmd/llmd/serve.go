package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"llmd/internal/config"
	"llmd/internal/httpapi"
	"llmd/internal/llm"
	"llmd/internal/manager"
	"llmd/internal/registry"
	"llmd/internal/reporter"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx context.Context, v *viper.Viper) error {
	cfg, err := loadSettings(v)
	if err != nil {
		return err
	}
	log := newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, cfg, log)
}

// run wires the manager, HTTP server and reporter and blocks until ctx is
// canceled or the server fails. The manager is always cleaned up.
func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	hub := httpapi.NewEventHub()
	mgr, err := newManager(cfg, log, fanout{hub, logPublisher{log: log}})
	if err != nil {
		return err
	}
	defer mgr.Cleanup()

	httpapi.SetLogger(log)
	httpapi.Configure(httpapi.Options{
		MaxBodyBytes:        cfg.MaxBodyBytes,
		InferTimeoutSeconds: cfg.InferTimeoutSeconds,
		CORSEnabled:         cfg.CORS.Enabled,
		CORSAllowedOrigins:  cfg.CORS.AllowedOrigins,
		CORSAllowedMethods:  cfg.CORS.AllowedMethods,
		CORSAllowedHeaders:  cfg.CORS.AllowedHeaders,
	})
	httpapi.SetBaseContext(ctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Int("models", len(mgr.ListModels())).Msg("llmd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	if cfg.Status.SinkURL != "" {
		rep := reporter.New(reporter.Config{
			SinkURL:     cfg.Status.SinkURL,
			ServiceName: cfg.Status.ServiceName,
			Interval:    cfg.ReportInterval(),
			Logger:      log,
		}, mgr)
		g.Go(func() error { return rep.Run(gctx) })
	}

	mgr.Start(gctx)
	startup(gctx, mgr, cfg, log)

	err = g.Wait()
	log.Info().Msg("shutting down")
	return err
}

func newManager(cfg config.Config, log zerolog.Logger, pub manager.EventPublisher) (*manager.Manager, error) {
	models, err := registry.Build(cfg.ApplyModelDefaults(cfg.Models), cfg.ModelsDir)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}
	return manager.NewWithConfig(manager.ManagerConfig{
		Registry:        models,
		DefaultModel:    cfg.DefaultModel,
		MaxQueueDepth:   cfg.MaxQueueDepth,
		MaxWait:         cfg.MaxWait(),
		MaxInflight:     cfg.MaxInflight,
		DrainTimeout:    cfg.DrainTimeout(),
		Logger:          log,
		Publisher:       pub,
		ProviderOptions: providerOptions(cfg),
	})
}

func providerOptions(cfg config.Config) llm.Options {
	return llm.Options{
		CacheDir:  cfg.CacheDir,
		LlamaBin:  cfg.LlamaBin,
		LlamaHost: cfg.LlamaHost,
	}
}

// startup kicks off the configured initial load without blocking.
func startup(ctx context.Context, mgr *manager.Manager, cfg config.Config, log zerolog.Logger) {
	switch cfg.Startup {
	case config.StartupBringUp:
		id, err := mgr.BringUp()
		if err != nil {
			log.Error().Err(err).Msg("bring-up failed")
			return
		}
		if id != "" {
			log.Info().Str("model", id).Msg("bring-up started")
		}
	case config.StartupDefault:
		op, err := mgr.Switch(ctx, cfg.DefaultModel)
		if err != nil {
			log.Error().Err(err).Str("model", cfg.DefaultModel).Msg("default model switch failed")
			return
		}
		log.Info().Str("model", cfg.DefaultModel).Str("op_id", op).Msg("default model switch started")
	}
}

// fanout publishes each event to every publisher in order.
type fanout []manager.EventPublisher

func (f fanout) Publish(e manager.Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// logPublisher records lifecycle events in the process log.
type logPublisher struct{ log zerolog.Logger }

func (p logPublisher) Publish(e manager.Event) {
	ev := p.log.Debug()
	if _, failed := e.Fields["error"]; failed {
		ev = p.log.Warn()
	}
	ev.Str("event", e.Name).Str("model", e.ModelID).Str("event_id", e.ID).Fields(e.Fields).Msg("manager event")
}
