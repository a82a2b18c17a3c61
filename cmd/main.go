package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/cadhub/internal/adapters/http/api"
	"github.com/okian/cadhub/internal/adapters/http/swagger"
	"github.com/okian/cadhub/internal/adapters/http/ws"
	"github.com/okian/cadhub/internal/adapters/llm"
	"github.com/okian/cadhub/internal/adapters/mq/queue"
	"github.com/okian/cadhub/internal/adapters/mq/worker"
	"github.com/okian/cadhub/internal/adapters/repository"
	"github.com/okian/cadhub/internal/adapters/transcribe"
	"github.com/okian/cadhub/internal/adapters/transport"
	service "github.com/okian/cadhub/internal/app"
	"github.com/okian/cadhub/internal/config"
	"github.com/okian/cadhub/internal/domain/registry"
	"github.com/okian/cadhub/pkg/logger"
	"github.com/okian/cadhub/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 15 * time.Second
	minWriteTimeout           = 120 * time.Second
	writeTimeoutMargin        = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	nanosecondsPerMillisecond = 1e6
)

type flags struct {
	configPath string
	addr       string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:           "cadhub",
		Short:         "Coordinate parametric CAD sessions between web clients, CAD clients and an LLM",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return run(ctx, f)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML config file (overrides CADHUB_CONFIG)")
	cmd.Flags().StringVar(&f.addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "log level: debug, info, warn, error")
	return cmd
}

func loadConfig(ctx context.Context, f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFrom(ctx, f.configPath)
	} else {
		cfg, err = config.Load(ctx)
	}
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.Addr = f.addr
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	return cfg, nil
}

func initLogger(cfg *config.Config) error {
	opts := []logger.Option{logger.WithFormat(cfg.LogFormat)}
	if cfg.LogFile != "" {
		opts = append(opts, logger.WithFile(cfg.LogFile, 0, 0, 0))
	}
	return logger.Init(opts...)
}

func run(ctx context.Context, f flags) error {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	cfg, err := loadConfig(ctx, f)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := initLogger(cfg); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init(
		metrics.WithMetricsEnabled(cfg.MetricsEnabled),
		metrics.WithRefreshInterval(cfg.MetricsRefreshInterval),
		metrics.WithCustomLabels(cfg.MetricsLabels))

	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	hub, pool, err := buildHub(ctx, cfg, log)
	if err != nil {
		return err
	}
	if err := hub.Start(ctx); err != nil {
		return fmt.Errorf("start hub: %w", err)
	}
	defer hub.Stop()

	// Prompts in flight keep their own context and drain on shutdown.
	poolCtx, cancelPool := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelPool()
	if pool != nil {
		pool.Start(poolCtx)
	}

	wsHandler := ws.NewHandler(hub,
		ws.WithSendBuffer(cfg.WSSendBuffer),
		ws.WithAllowedOrigins(cfg.CORSOrigins),
		ws.WithLogger(log.Named("ws")))

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, hub, wsHandler, cfg.CORSOrigins),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeoutFor(cfg),
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("llm_host_url", cfg.LLMHostURL),
			logger.String("llm_model", cfg.LLMModel),
			logger.String("gh_listener_url", cfg.GHListenerURL))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		startServiceMetricsUpdater(gctx, hub)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		// Hijacked push connections are not closed by Shutdown.
		wsHandler.CloseAll()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		if pool != nil {
			if err := pool.Shutdown(shutdownCtx); err != nil {
				log.Warn(shutdownCtx, "prompt workers did not drain", logger.Error(err))
			}
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

// writeTimeoutFor keeps the write deadline above the slowest /chat answer:
// one completion call plus one HTTP fallback delivery.
func writeTimeoutFor(cfg *config.Config) time.Duration {
	return max(minWriteTimeout, cfg.LLMTimeout+cfg.GHTimeout+writeTimeoutMargin)
}

// buildHub wires the hub's collaborators from configuration. The pool is
// nil when push prompts run inline.
func buildHub(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Hub, *worker.Pool, error) {
	reg := registry.New()

	results := repository.NewResultStore(
		repository.WithTTL(cfg.ResultTTL),
		repository.WithSweepInterval(cfg.SweepInterval),
		repository.WithLogger(log.Named("results")))

	gateway := llm.NewGateway(cfg.LLMHostURL,
		llm.WithModel(cfg.LLMModel),
		llm.WithAPIKey(cfg.LLMAPIKey),
		llm.WithTemperature(cfg.LLMTemperature),
		llm.WithTimeout(cfg.LLMTimeout),
		llm.WithRateLimit(cfg.LLMRatePerSec, cfg.LLMBurst),
		llm.WithLogger(log.Named("llm")))

	dispatcher := transport.NewDispatcher(reg,
		transport.WithListenerURL(cfg.GHListenerURL),
		transport.WithTimeout(cfg.GHTimeout),
		transport.WithLogger(log.Named("transport")))

	opts := []service.Option{
		service.WithLogger(log.Named("hub")),
		service.WithRegistry(reg),
		service.WithResultStore(results),
		service.WithGateway(gateway),
		service.WithDispatcher(dispatcher),
		service.WithClampValues(cfg.ClampValues),
	}

	var pool *worker.Pool
	if cfg.PromptWorkers > 0 {
		jobs := queue.NewInMemoryQueue(queue.WithCapacity(cfg.PromptQueueSize))
		pool = worker.NewPool(cfg.PromptWorkers, jobs, worker.WithLogger(log.Named("prompts")))
		opts = append(opts, service.WithJobQueue(jobs))
	}

	t, err := transcribe.New(cfg.TranscribeURL,
		transcribe.WithModel(cfg.WhisperModel),
		transcribe.WithAPIKey(cfg.LLMAPIKey),
		transcribe.WithLogger(log.Named("transcribe")))
	switch {
	case err == nil:
		opts = append(opts, service.WithTranscriber(t))
	case errors.Is(err, transcribe.ErrDisabled):
		log.Info(ctx, "transcription disabled; set transcribe_url to enable")
	default:
		return nil, nil, fmt.Errorf("init transcription: %w", err)
	}

	return service.New(opts...), pool, nil
}

// newRouter mounts the API, the docs and the push channel behind CORS.
func newRouter(ctx context.Context, hub *service.Hub, wsHandler http.Handler, origins []string) http.Handler {
	r := mux.NewRouter()
	swagger.Register(ctx, r)
	api.NewServer(hub).Register(ctx, r, wsHandler)
	return api.WithCORS(r, origins)
}

// startSystemMetricsUpdater updates system metrics until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater refreshes hub gauges until ctx is done.
func startServiceMetricsUpdater(ctx context.Context, hub *service.Hub) {
	ticker := time.NewTicker(metrics.RefreshInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(hub)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics re-publishes gauges that only change lazily, such
// as results dropped by expiry between sweeps.
func updateServiceMetrics(hub *service.Hub) {
	stats := hub.GetStats()

	if stored, ok := stats["stored_results"].(int); ok {
		metrics.UpdateStoredResults(stored)
	}
	if n, ok := stats["schema_parameters"].(int); ok {
		metrics.UpdateSchemaParameters(n)
	}
	if web, ok := stats["web_clients"].(int); ok {
		metrics.UpdateConnectedClients(registry.RoleWeb.String(), web)
	}
	if cad, ok := stats["cad_clients"].(int); ok {
		metrics.UpdateConnectedClients(registry.RoleCAD.String(), cad)
	}
}
