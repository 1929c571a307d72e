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

	"github.com/spf13/cobra"

	"github.com/axlan/dice-logger/internal/config"
	"github.com/axlan/dice-logger/internal/logging"
	"github.com/axlan/dice-logger/internal/metrics"
	"github.com/axlan/dice-logger/internal/repository"
	"github.com/axlan/dice-logger/internal/service"
	"github.com/axlan/dice-logger/internal/transport"
)

const defaultNATSPort = 4222

func newRootCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "dicelogger",
		Short:         "Log die rolls from broker events to a database",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Broker.Transport == "nats" && !cmd.Flags().Changed("port") && cfg.Broker.Port == 1883 {
				cfg.Broker.Port = defaultNATSPort
			}
			return run(cmd.Context(), cfg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.Broker.Host, "host", cfg.Broker.Host, "Host address of broker")
	f.IntVar(&cfg.Broker.Port, "port", cfg.Broker.Port, "Broker TCP port")
	f.StringVar(&cfg.Broker.User, "user", cfg.Broker.User, "Optional broker username")
	f.StringVar(&cfg.Broker.Password, "password", cfg.Broker.Password, "Optional broker password")
	f.StringVar(&cfg.Broker.Topic, "topic", cfg.Broker.Topic,
		"Optional root topic, e.g. 'wled/e5a658/dice/'. By default listen to all topics for ones ending in 'roll_label' and 'roll'")
	f.StringVarP(&cfg.Store.OutputDir, "output-dir", "o", cfg.Store.OutputDir, "Directory to log to")
	f.StringVar(&cfg.Broker.Transport, "transport", cfg.Broker.Transport, "Broker protocol: mqtt or nats")
	f.StringVar(&cfg.App.MetricsAddr, "metrics-addr", cfg.App.MetricsAddr, "Serve prometheus metrics on this address (empty disables)")
	f.StringVar(&cfg.App.LogLevel, "log-level", cfg.App.LogLevel, "Log level")
	return cmd
}

func run(ctx context.Context, cfg *config.Config) error {
	logging.SetupFor(cfg.App.IsProduction(), cfg.App.LogLevel, os.Stderr)
	log := logging.Component("main")
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := repository.Open(cfg.Store.Driver, cfg.Store.Target())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer repo.Close()

	rec := metrics.New(nil)
	if cfg.App.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.App.MetricsAddr, Handler: rec.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Info().Str("addr", cfg.App.MetricsAddr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("metrics server error")
			}
		}()
		defer srv.Close()
	}

	log.Info().Str("transport", cfg.Broker.Transport).Str("broker", cfg.Broker.Address()).Msg("connecting")
	sub, err := newSubscriber(cfg)
	if err != nil {
		return err
	}
	defer sub.Close()

	if err := service.NewIngestor(repo, rec).Run(ctx, sub, cfg.Broker.Topic); err != nil {
		return err
	}
	log.Info().Msg("stopped")
	return nil
}

func newSubscriber(cfg *config.Config) (transport.Subscriber, error) {
	switch cfg.Broker.Transport {
	case "nats":
		return transport.NewNATSSubscriber(transport.NATSURL(cfg.Broker.Host, cfg.Broker.Port),
			transport.NATSCredentials(cfg.Broker.User, cfg.Broker.Password)...)
	default:
		return transport.NewMQTTSubscriber(transport.MQTTConfig{
			Host:           cfg.Broker.Host,
			Port:           cfg.Broker.Port,
			Username:       cfg.Broker.User,
			Password:       cfg.Broker.Password,
			ClientID:       cfg.Broker.ClientID,
			KeepAlive:      cfg.Broker.KeepAlive,
			ConnectTimeout: cfg.Broker.Timeout,
		})
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := newRootCmd(cfg).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, transport.ErrConnect) {
			fmt.Fprintln(os.Stderr, "Connection Failure")
		}
		os.Exit(1)
	}
}
