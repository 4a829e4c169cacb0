package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/secretdrop/feed-service/api"
	"github.com/secretdrop/feed-service/api/validator"
	"github.com/secretdrop/feed-service/config"
	"github.com/secretdrop/feed-service/feed"
	"github.com/secretdrop/feed-service/redis"
	"github.com/secretdrop/feed-service/store"
	"github.com/secretdrop/feed-service/token"
	"github.com/spf13/cobra"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feed API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the configured one")

	return cmd
}

// serve runs the API until ctx is cancelled, then drains in-flight requests.
func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	st, err := store.Connect(ctx, cfg.Database.URL, store.WithMaxOpenConns(cfg.Database.MaxOpenConns))
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("Connected to database", "dialect", st.Dialect())

	if cfg.Database.AutoMigrate {
		if err := st.Migrate(ctx, logger); err != nil {
			return err
		}
	}

	hasher, err := token.NewHasher(cfg.Tokens.Pepper)
	if err != nil {
		return fmt.Errorf("token hasher: %w", err)
	}
	if cfg.Tokens.Pepper == "" {
		logger.Warn("No token pepper configured, ledger keys are plain token hashes")
	}

	a := &api.API{
		Logger:      logger,
		Feed:        newFeed(st, logger, cfg.Feed),
		Tokens:      hasher,
		TokenHeader: cfg.Tokens.Header,
		Val:         validator.New(),
	}

	if cfg.Redis.Addr != "" {
		rdb, err := redis.Connect(ctx, redis.Options{
			Addr:        cfg.Redis.Addr,
			Password:    cfg.Redis.Password,
			DB:          cfg.Redis.DB,
			MaxTrending: cfg.Redis.MaxTrending,
		})
		if err != nil {
			logger.Warn("Redis unavailable, trending tags and rate limiting disabled", "error", err.Error())
		} else {
			defer rdb.Close()
			a.Cache = rdb
			a.Limiter = rdb.NewLimiter(logger, "posts", cfg.RateLimit.Rate, cfg.RateLimit.Burst)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Listening", "addr", cfg.Server.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

func newFeed(st *store.Store, logger *slog.Logger, cfg config.Feed) *feed.Service {
	return feed.NewService(st, logger, feed.Options{
		Timeout:         cfg.OpTimeout,
		DefaultPageSize: cfg.DefaultPageSize,
		MaxPageSize:     cfg.MaxPageSize,
		SearchLimit:     cfg.SearchLimit,
	})
}
