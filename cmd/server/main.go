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

	"github.com/gin-gonic/gin"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/api"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/app"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/config"
	"github.com/kirishio1019-jpg/kimochislider-sub000/internal/observ"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// ---------------------------------------------------------------
	// 1. Load config
	// ---------------------------------------------------------------
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// ---------------------------------------------------------------
	// 2. Create logger
	// ---------------------------------------------------------------
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// ---------------------------------------------------------------
	// Root context
	//
	// signal.NotifyContext gives a context that is cancelled on the
	// first SIGINT (Ctrl-C) or SIGTERM (docker stop, ECS, Kubernetes).
	// Everything started below takes ctx or a child of it, so one
	// signal reaches the HTTP server and the reconciler alike.
	//
	// stop() restores default signal handling: a second Ctrl-C during
	// a slow shutdown kills the process instead of being swallowed.
	// ---------------------------------------------------------------
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---------------------------------------------------------------
	// 3. Connect backends and build the service
	//
	// app.Open picks the store (Postgres or in-memory) and the view
	// cache (Redis or local) from cfg, and wires them into
	// community.Service. It fails fast: a bad DATABASE_URL or an
	// unreachable Redis stops startup here rather than on the first
	// request.
	//
	// defer a.Close() releases what Open acquired (pool, Redis client)
	// when run() returns, normally or with an error. Acquire, then
	// immediately defer the release.
	// ---------------------------------------------------------------
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	// ---------------------------------------------------------------
	// 4. HTTP server
	//
	// An explicit http.Server instead of router.Run so we can call
	// Shutdown. ReadHeaderTimeout bounds clients that open a
	// connection and never finish sending headers.
	// ---------------------------------------------------------------
	router := api.NewRouter(api.Deps{
		Service:    a.Service,
		Users:      a.Store.Users,
		Identities: a.Identities,
		JWTSecret:  cfg.JWTSecret,
		TokenTTL:   cfg.TokenTTL,
		Health:     a.Health,
		Logger:     logger,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("starting community service",
		zap.String("port", cfg.Port),
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreDriver),
		zap.String("owner_leave_policy", cfg.OwnerLeavePolicy),
	)

	// errgroup ties the goroutines together:
	//   - gctx is cancelled by a signal (via ctx) or by the first
	//     goroutine that returns an error, e.g. the port already in use.
	//   - The shutdown goroutine waits on gctx, then gives in-flight
	//     requests 10s to finish. ListenAndServe then returns
	//     ErrServerClosed, which is a clean exit, not an error.
	//   - g.Wait() returns the first real error, after every goroutine
	//     has stopped.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// ---------------------------------------------------------------
	// 5. Background reconciler for half-finished creations
	//
	// Creating a community inserts the row and then provisions its
	// default map. If the second step fails the community still stands
	// without a map; the reconciler finds and provisions those every
	// RECONCILE_INTERVAL. It runs on gctx, so it stops with the server.
	// RECONCILE_INTERVAL=0 turns it off (communityctl reconcile still
	// runs one pass by hand).
	// ---------------------------------------------------------------
	if cfg.ReconcileInterval > 0 {
		g.Go(func() error {
			return a.Service.RunReconciler(gctx, cfg.ReconcileInterval)
		})
	} else {
		logger.Info("reconciler disabled")
	}

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("community service stopped")
	return nil
}
