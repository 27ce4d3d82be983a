package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/petrijr/packflow/internal/config"
	"github.com/petrijr/packflow/internal/httpapi"
	"github.com/petrijr/packflow/internal/telemetry"
	"github.com/petrijr/packflow/pkg/api"
	"github.com/petrijr/packflow/pkg/worker"
)

const shutdownTimeout = 10 * time.Second

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and run command workers",
		Long: `Serve the flow engine over HTTP.

Operations posted with ?async=true are executed by the configured number of
workers. Prometheus metrics are served on /metrics unless http.metrics is
false. SIGINT and SIGTERM shut the server down gracefully.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg, cfg.Log.Logger(cmd.ErrOrStderr()))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides http.addr)")

	return cmd
}

// runtime is everything serve starts, minus the listener.
type runtime struct {
	backend *config.Backend
	engine  api.Engine
	worker  *worker.Worker
	metrics *telemetry.Metrics
	handler http.Handler
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	metrics := telemetry.New(true)
	obs := api.NewCompositeObserver(api.NewLoggingObserver(logger), metrics)

	b, eng, err := openEngine(ctx, cfg, obs)
	if err != nil {
		return nil, err
	}
	w := worker.NewWithConfig(eng, b.Queue, worker.Config{
		MaxAttempts: cfg.Worker.MaxAttempts,
		Backoff:     cfg.Worker.Backoff,
		Logger:      logger,
		OnResult:    metrics.OnCommand,
	})

	opts := httpapi.Options{Engine: eng, Logger: logger}
	if cfg.Worker.Count > 0 {
		opts.Worker = w
	}
	if cfg.HTTP.Metrics {
		opts.Metrics = metrics.Handler()
	}
	return &runtime{
		backend: b,
		engine:  eng,
		worker:  w,
		metrics: metrics,
		handler: httpapi.New(opts),
	}, nil
}

// startWorkers runs n worker loops until ctx is done.
func (rt *runtime) startWorkers(ctx context.Context, n int, logger *slog.Logger) *sync.WaitGroup {
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			if err := rt.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("worker_stopped", slog.Int("worker", id), slog.Any("error", err))
			}
		}(i)
	}
	return &wg
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	rt, err := newRuntime(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.backend.Close() }()

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	workers := rt.startWorkers(workerCtx, cfg.Worker.Count, logger)
	defer func() {
		cancelWorkers()
		workers.Wait()
	}()

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           rt.handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http_listening",
			slog.String("addr", cfg.HTTP.Addr),
			slog.String("store", cfg.Store.Driver),
			slog.String("queue", cfg.Queue.Driver),
			slog.Int("workers", cfg.Worker.Count),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("http_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
