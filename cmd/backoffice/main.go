// Package main is the entry point for the FurbitoBet back-office admin
// server. It exposes admin-only endpoints on Server.BackofficePort.
//
// With -promote=<email> it grants the admin role to that account and exits,
// which is how the first operator is created.
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

	"github.com/evetabi/furbito/internal/app"
	"github.com/evetabi/furbito/internal/backoffice"
	"github.com/evetabi/furbito/internal/config"
	"github.com/evetabi/furbito/internal/logger"
	"go.uber.org/zap"
)

func main() {
	promote := flag.String("promote", "", "grant the admin role to the account with this email and exit")
	flag.Parse()

	if err := run(*promote); err != nil {
		fmt.Fprintln(os.Stderr, "furbito-backoffice:", err)
		os.Exit(1)
	}
}

func run(promote string) error {
	// ── Config + logger ───────────────────────────────────────────────────────
	cfg := config.MustLoad()
	log, err := logger.New("furbito-backoffice", cfg.Server.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Services ──────────────────────────────────────────────────────────────
	// Broadcasts need the API server's hub; admin changes reach clients on
	// their next read.
	a, err := app.New(ctx, cfg, log, app.Options{})
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("shutdown: closing backends", zap.Error(err))
		}
	}()

	if promote != "" {
		p, err := a.Accounts.PromoteByEmail(ctx, promote)
		if err != nil {
			return fmt.Errorf("promote %s: %w", promote, err)
		}
		log.Info("account promoted to admin", zap.Stringer("user_id", p.ID), zap.String("email", p.Email))
		return nil
	}

	// ── Router ────────────────────────────────────────────────────────────────
	router := backoffice.SetupBackofficeRouter(backoffice.BackofficeDeps{
		AuthSvc:    a.Auth,
		EventSvc:   a.Events,
		AccountSvc: a.Accounts,
		SyncSvc:    a.Sync,
		Cfg:        cfg,
		Log:        log,
	})

	// Resolution settles every bet of an event inside the request, so writes
	// get more time than on the public API.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.BackofficePort,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("backoffice server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("backoffice server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("backoffice shutdown error", zap.Error(err))
	}
	log.Info("backoffice stopped cleanly")
	return nil
}
