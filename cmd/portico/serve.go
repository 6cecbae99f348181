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

	"github.com/alecgard/portico/internal/api"
	"github.com/alecgard/portico/internal/auth"
	"github.com/alecgard/portico/internal/config"
	"github.com/alecgard/portico/internal/metrics"
	"github.com/alecgard/portico/internal/project"
	"github.com/alecgard/portico/internal/store"
	"github.com/alecgard/portico/internal/token"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Portico API server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	level, _ := cfg.LogLevel()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := store.Connect(ctx, cfg.Database.URL, cfg.Database.ServiceKey, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	st := store.New(pool, cfg.Database.QueryTimeout)
	if err := st.Ping(ctx); err != nil {
		return err
	}
	slog.Info("connected to database")

	m := metrics.New()
	m.RegisterDBPoolCollector(poolStats(pool))

	tokens, err := token.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	authorizer := auth.NewAuthorizer(tokens,
		auth.WithFailureHook(m.IncAuthFailure),
		auth.WithSuccessHook(m.IncAuthSuccess),
	)
	resolver := project.NewResolver(st, m.IncSoftFailure)

	router := api.NewRouter(api.RouterDeps{
		Authorizer:    authorizer,
		Projects:      resolver,
		Users:         st,
		Tokens:        tokens,
		Access:        st,
		DB:            st,
		Metrics:       m,
		AllowedOrigin: cfg.CORS.AllowedOrigin,
	})

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-sigCh:
	}
	slog.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	return srv.Shutdown(shutdownCtx)
}

// loadConfig loads and validates the configuration. An invalid configuration,
// a missing signing secret in particular, stops startup.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func poolStats(pool *pgxpool.Pool) metrics.DBPoolStatFunc {
	return func() metrics.PoolStats {
		s := pool.Stat()
		return metrics.PoolStats{
			Total:        s.TotalConns(),
			Idle:         s.IdleConns(),
			Acquired:     s.AcquiredConns(),
			Max:          s.MaxConns(),
			AcquireCount: s.AcquireCount(),
		}
	}
}
