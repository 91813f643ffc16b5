// Package main is the entry point for the FurbitoBet API server. It wires
// together all services and starts the HTTP server alongside the WebSocket
// hub and the background scheduler.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/evetabi/furbito/internal/api"
	"github.com/evetabi/furbito/internal/app"
	"github.com/evetabi/furbito/internal/backoffice"
	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/logger"
	"github.com/evetabi/furbito/internal/metrics"
	"github.com/evetabi/furbito/internal/scheduler"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	memory := flag.Bool("memory", false, "use the in-memory store instead of PostgreSQL")
	withAdmin := flag.Bool("backoffice", false, "also serve the back-office router on Server.BackofficePort")
	migrations := flag.String("migrations", "migrations", "directory of SQL migrations applied on start (empty to skip)")
	flag.Parse()

	if err := run(*memory, *withAdmin, *migrations); err != nil {
		fmt.Fprintln(os.Stderr, "furbito:", err)
		os.Exit(1)
	}
}

func run(memory, withAdmin bool, migrations string) error {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()
	log, err := logger.New("furbito-api", cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting furbito api server", zap.String("port", cfg.Server.Port), zap.Bool("memory", memory))

	// ── 2. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Services ───────────────────────────────────────────────────────────
	if memory {
		migrations = ""
	}
	a, err := app.New(ctx, cfg, log, app.Options{
		Memory:        memory,
		MigrationsDir: migrations,
		WithHub:       true,
		Registerer:    prometheus.DefaultRegisterer,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown: closing backends", zap.Error(err))
		}
	}()

	// ── 4. HTTP servers ───────────────────────────────────────────────────────
	servers := []*http.Server{newServer(cfg, cfg.Server.Port, api.SetupRouter(api.RouterDeps{
		AuthSvc:    a.Auth,
		BetSvc:     a.Bets,
		EventSvc:   a.Events,
		AccountSvc: a.Accounts,
		StatsSvc:   a.Stats,
		Hub:        a.Hub,
		Metrics:    metrics.Handler(),
		Cfg:        cfg,
		Log:        log,
	}))}
	if withAdmin {
		servers = append(servers, newServer(cfg, cfg.Server.BackofficePort, backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
			AuthSvc:    a.Auth,
			EventSvc:   a.Events,
			AccountSvc: a.Accounts,
			SyncSvc:    a.Sync,
			Hub:        a.Hub,
			Cfg:        cfg,
			Log:        log,
		})))
	}

	// ── 5. Run everything until the first failure or a signal ─────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Hub.Run(gctx)
		return nil
	})

	var syncer scheduler.Syncer
	if a.Sync != nil {
		syncer = a.Sync
	}
	sched := scheduler.NewScheduler(syncer, a.Events, a.Locker, cfg.Sync, log)
	g.Go(func() error { return sched.Run(gctx) })

	for _, srv := range servers {
		g.Go(func() error {
			log.Info("http server listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	// ── 6. Graceful shutdown ──────────────────────────────────────────────────
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown signal received, draining connections")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown error", zap.String("addr", srv.Addr), zap.Error(err))
			}
		}
		return nil
	})

	err = g.Wait()
	log.Info("server stopped")
	return err
}

func newServer(cfg *config.Config, port string, h http.Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
