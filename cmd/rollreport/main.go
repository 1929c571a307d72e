package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/axlan/dice-logger/internal/artifact"
	"github.com/axlan/dice-logger/internal/cache"
	"github.com/axlan/dice-logger/internal/config"
	"github.com/axlan/dice-logger/internal/handler"
	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/metrics"
	"github.com/axlan/dice-logger/internal/render"
	"github.com/axlan/dice-logger/internal/repository"
	"github.com/axlan/dice-logger/internal/router"
	"github.com/axlan/dice-logger/internal/service"
	"github.com/axlan/dice-logger/internal/telemetry"
)

var version = "dev"

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "rollreport",
		Short:         "Serve HTML reports of rolls captured by dicelogger",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&cfg.Store.OutputDir, "output-dir", "o", cfg.Store.OutputDir, "Directory holding rolls.db and generated reports")
	f.IntVar(&cfg.Server.Port, "port", cfg.Server.Port, "HTTP port")
	f.DurationVar(&cfg.Server.ReportTimeout, "report-timeout", cfg.Server.ReportTimeout, "Maximum time to generate one report")
	f.StringVar(&cfg.App.LogLevel, "log-level", cfg.App.LogLevel, "Log level")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.SetupFor(cfg.App.IsProduction(), cfg.App.LogLevel, os.Stderr)
	log := logging.Component("main")
	if err := cfg.Validate(); err != nil {
		return err
	}
	log.Info().Str("env", cfg.App.Environment).Str("version", version).Msg("starting report server")

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "rollreport", cfg.App.OTelEndpoint)
	if err != nil {
		log.Warn().Err(err).Msg("tracing disabled")
	}
	defer shutdownTracing(context.Background())

	repo, err := repository.Open(cfg.Store.Driver, cfg.Store.Target())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	files, err := artifact.NewFileStore(cfg.Store.OutputDir)
	if err != nil {
		return err
	}
	var artifacts artifact.Store = files
	if cfg.Artifact.MirrorEnabled() {
		s3, err := artifact.NewS3Store(ctx, cfg.Artifact.S3Bucket, cfg.Artifact.S3Prefix, cfg.Artifact.S3Region, cfg.Artifact.S3Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("S3 mirror disabled")
		} else {
			artifacts = artifact.NewMirrored(files, s3)
			log.Info().Str("bucket", cfg.Artifact.S3Bucket).Msg("mirroring reports to S3")
		}
	}

	reportCache := newCache(cfg)
	defer reportCache.Close()

	rec := metrics.New(nil)
	gen := service.NewReportGenerator(repo, render.NewBarChart(), artifacts, rec)

	r := router.New(router.Config{
		Handler:       handler.New(repo, version),
		ReportHandler: handler.NewReportHandler(gen, cache.NewReportCache(reportCache, cfg.Cache.TTL), cfg.Server.ReportTimeout),
		AdminHandler:  handler.NewAdminHandler(repo, cfg.Cache.Type),
		Metrics:       rec,
		Static:        handler.Static(files.Dir()),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("Serving HTTP on http://%s/", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	log.Info().Msg("server stopped")
	return nil
}

// newCache picks the configured report cache, falling back to memory when Redis is unreachable.
func newCache(cfg *config.Config) cache.Cache {
	log := logging.Component("main")
	if cfg.Cache.Type == "redis" {
		rc, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.RedisAddress(),
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err == nil {
			return rc
		}
		log.Warn().Err(err).Msg("redis unavailable, using memory cache")
	}
	return cache.NewMemoryCache(cfg.Cache.MemorySizeMB)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
