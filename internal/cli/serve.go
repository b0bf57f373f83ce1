package cli

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/pribylovaa/drrm-datacore/internal/config"
	"github.com/pribylovaa/drrm-datacore/internal/core"
	"github.com/pribylovaa/drrm-datacore/internal/metrics"
	transport "github.com/pribylovaa/drrm-datacore/internal/transport/http"

	"github.com/pribylovaa/drrm-datacore/internal/pkg/log"
)

// shutdownTimeout — ожидание завершения активных запросов при остановке.
const shutdownTimeout = 10 * time.Second

// NewServeCommand запускает REST API администрирования и служебный HTTP
// (/livez, /healthz, /metrics).
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the admin REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return err
			}

			return runServe(cmd.Context(), cfg, log.Setup(cfg.Env, cmd.OutOrStdout()))
		},
	}
}

func runServe(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	slog.SetDefault(logger)
	ctx = log.Into(ctx, logger)
	logger.Info("starting datacore", slog.String("env", cfg.Env), slog.String("store", cfg.Store.Kind))

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	c, err := core.New(cfg, core.WithMetrics(m))
	if err != nil {
		logger.Error("core_init_failed", slog.String("err", err.Error()))
		return err
	}
	defer c.Close()

	// Недоступное хранилище не мешает старту: данные берутся из встроенного набора.
	if err := c.Start(ctx); err != nil {
		logger.Warn("store_start_failed", slog.String("err", err.Error()))
	}
	logger.Info("core_initialized",
		slog.String("kind", string(c.State().Kind)),
		slog.String("status", string(c.State().Status)),
	)

	var ready atomic.Bool

	apiSrv := &http.Server{
		Addr: cfg.HTTP.Addr(),
		Handler: transport.NewRouter(c, transport.Options{
			Logger:   logger,
			Timeout:  cfg.Timeouts.Service,
			BasePath: "/api",
			Metrics:  m,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	opsSrv := &http.Server{
		Addr:              cfg.Metrics.Addr(),
		Handler:           opsMux(&ready, reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErrCh := make(chan error, 2)
	for _, srv := range []*http.Server{apiSrv, opsSrv} {
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			logger.Error("http_listen_failed", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
			shutdown(logger, apiSrv, opsSrv)
			return err
		}

		logger.Info("http_listen_start", slog.String("addr", srv.Addr))

		go func(srv *http.Server) {
			if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErrCh <- err
			}
		}(srv)
	}

	ready.Store(true)
	logger.Info("datacore_ready")

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown_requested")
	case serveErr = <-serveErrCh:
		logger.Error("http_serve_failed", slog.String("err", serveErr.Error()))
	}

	ready.Store(false)
	shutdown(logger, apiSrv, opsSrv)

	logger.Info("service_stopped")

	return serveErr
}

// opsMux — служебные эндпойнты: живость, готовность, метрики.
func opsMux(ready *atomic.Bool, g prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if ready.Load() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}

		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})

	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	return mux
}

func shutdown(logger *slog.Logger, servers ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("http_shutdown_incomplete", slog.String("addr", srv.Addr), slog.String("err", err.Error()))
		}
	}
}
