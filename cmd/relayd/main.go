// Command relayd is the relayd server binary.
//
// Subcommands:
//
//	serve — TCP request server over a fixed-size worker pool
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	// Embeds the IANA timezone database in the binary so that
	// time.LoadLocation works inside distroless containers that have no
	// /usr/share/zoneinfo.
	_ "time/tzdata"

	// Automatically sets GOMEMLIMIT from the cgroup memory limit so that
	// the Go GC triggers before the OOM killer fires in containers.
	_ "github.com/KimMachineGun/automemlimit"

	"github.com/spf13/cobra"

	"github.com/scarson/relayd/internal/config"
	"github.com/scarson/relayd/internal/ops"
	"github.com/scarson/relayd/internal/pool"
	"github.com/scarson/relayd/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:   "relayd",
		Short: "relayd — minimal request server over a fixed worker pool",
		// Silence default error printing; we print it ourselves with slog.
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.AddCommand(serveCmd())

	if err := root.Execute(); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// ── serve ─────────────────────────────────────────────────────────────────────

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the request server and worker pool",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Workers live for the rest of the process: pool.Shutdown is a documented
	// no-op, so stopping the listener is the only drain. Jobs already
	// submitted when the signal arrives still run to completion.
	workers := pool.New[net.Conn](cfg.WorkerCount,
		pool.WithLogger(logger),
		pool.WithRespawn(cfg.PoolRespawnWorkers),
	)

	srv := server.New(workers,
		server.WithLogger(logger),
		server.WithTimeouts(cfg.ReadTimeout, cfg.WriteTimeout),
		server.WithAcceptLimit(cfg.AcceptRateLimit, cfg.AcceptRateBurst),
	)
	registerRoutes(srv, cfg)

	if cfg.OpsAddr != "" {
		go serveOps(ctx, cfg.OpsAddr, workers)
	}

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Serve(ctx, cfg.ListenAddr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		stop() // release signal notification
	}

	// Serve returns once the cancelled context closes the listener.
	if err := <-serverErr; err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("server exited")
	return nil
}

// registerRoutes installs the default route table: the hello page and a
// deliberately slow route that ties up one worker for five seconds.
func registerRoutes(srv *server.Server, cfg *config.Config) {
	hello := server.ServeFile(cfg.DocRoot, "hello.html")
	srv.Handle(server.MethodGet, "/", hello)
	srv.Handle(server.MethodGet, "/sleep", func(req server.Request) (string, error) {
		time.Sleep(5 * time.Second)
		return hello(req)
	})
}

// ── ops ───────────────────────────────────────────────────────────────────────

// serveOps runs the /healthz + /metrics listener until ctx is cancelled.
func serveOps(ctx context.Context, addr string, stats ops.PoolStats) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           ops.NewHandler(stats),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	slog.Info("ops server started", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("ops server failed", "error", err)
	}
}

// ── helpers ───────────────────────────────────────────────────────────────────

// newLogger creates a slog.Logger based on the configured log level and format.
func newLogger(cfg *config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "text" || cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
