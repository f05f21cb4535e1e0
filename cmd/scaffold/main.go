package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"crud-scaffold/internal/config"
	"crud-scaffold/internal/entity"
	"crud-scaffold/internal/handler"
	"crud-scaffold/internal/metrics"
	"crud-scaffold/internal/repository"
	"crud-scaffold/internal/resource"
	"crud-scaffold/internal/response"
	"crud-scaffold/internal/server"
	"crud-scaffold/internal/service"
)

// set via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "scaffold",
		Short:         "REST scaffold over in-memory entity stores",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				log.Error().Err(err).Msg("invalid configuration")
				return err
			}
			return serve(cfg)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	return root
}

func serve(cfg config.Config) error {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)

	// storage
	var store repository.Store
	if cfg.RedisAddr != "" {
		r, err := repository.NewRedisStore(cfg.RedisAddr)
		if err != nil {
			log.Error().Err(err).Msg("failed to connect redis")
			return err
		}
		store = r
	} else {
		store = repository.NewMemoryStore()
	}
	defer store.Close()

	// services
	governor, err := service.NewGovernor(store, cfg.RateLimit.Window(), cfg.RateLimit.MaxRequests)
	if err != nil {
		return err
	}

	// metrics
	metricsRegistry := metrics.NewRegistry()
	wr := response.NewWriter(cfg.IsProduction())

	// resources
	notes := handler.NewResource("notes",
		resource.NewNoteStore(entity.WithLogger[resource.Note](log.With().Str("resource", "notes").Logger())),
		wr, metricsRegistry)
	notes.RefreshGauge()

	h := server.New(cfg, server.Deps{
		Governor:    governor,
		Metrics:     metricsRegistry,
		Writer:      wr,
		Collections: []server.Collection{notes},
	})

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go governor.Run(ctx, cfg.RateLimit.SweepInterval())
	go service.PurgeDeleted(ctx, time.Minute, cfg.PurgeAfter, notes)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("env", cfg.Env).
			Str("api_prefix", cfg.APIPrefix).
			Bool("redis", cfg.RedisAddr != "").
			Msgf("listening %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		log.Error().Err(err).Msg("server failed")
		return err
	}
	log.Info().Msg("shutting down")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.GracefulShutdownTimeout)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	log.Info().Msg("server exited")
	return nil
}
