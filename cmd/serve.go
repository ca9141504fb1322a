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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bossnet/party-signup/internal/botdefense"
	"github.com/bossnet/party-signup/internal/database"
	"github.com/bossnet/party-signup/internal/handler"
	"github.com/bossnet/party-signup/internal/metrics"
	"github.com/bossnet/party-signup/internal/ratelimit"
	"github.com/bossnet/party-signup/internal/repository"
	"github.com/bossnet/party-signup/internal/requestmeta"
	"github.com/bossnet/party-signup/internal/service"
	"github.com/bossnet/party-signup/internal/tracing"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().String("port", "", "listen port (overrides PORT)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ── 1. Tracing ────────────────────────────────────────────────────────
	tp, err := tracing.Setup(cfg.TracingExporter)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			appLog.Warn("flush traces", "error", err)
		}
	}()

	// ── 2. Schema and PostgreSQL ──────────────────────────────────────────
	dbURL := cfg.PostgresURL()
	pool, err := database.NewPool(ctx, database.PoolConfig{URL: dbURL, MaxConns: cfg.DB.MaxConns}, appLog)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := database.Migrate(dbURL, appLog); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	m := metrics.New(prometheus.DefaultRegisterer)
	repo := repository.NewRegistrationRepository(pool)
	svc := service.NewRegistrationService(repo, botdefense.New(cfg.BotMinFillTime), m, appLog)

	limits := ratelimit.NewStore()
	defer limits.Flush()
	onReject := ratelimit.WithRejectHook(func(string) { m.IncRejection(metrics.ReasonRateLimit) })

	clientIP, err := requestmeta.NewResolver(cfg.TrustedProxies)
	if err != nil {
		return err
	}

	if cfg.AdminToken == "" {
		appLog.Warn("ADMIN_AUTH_TOKEN not set, participant listing is public")
	}

	router := handler.NewRouter(handler.RouterConfig{
		Handler: handler.NewRegistrationHandler(svc, cfg.AdminToken, appLog),
		GeneralLimiter: ratelimit.New(limits,
			ratelimit.GeneralPolicy(cfg.RateLimit.GeneralMax, cfg.RateLimit.GeneralWindow), appLog, onReject),
		RegisterLimiter: ratelimit.New(limits,
			ratelimit.RegistrationPolicy(cfg.RateLimit.RegisterMax, cfg.RateLimit.RegisterWindow), appLog, onReject),
		AllowedOrigins: cfg.AllowedOrigins,
		ClientIP:       clientIP,
		StaticDir:      cfg.StaticDir,
		Metrics:        promhttp.Handler(),
		Logger:         appLog,
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLog.Info("server listening", "addr", srv.Addr, "allowed_origins", cfg.AllowedOrigins)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLog.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	err = g.Wait()
	appLog.Info("server stopped")
	return err
}
