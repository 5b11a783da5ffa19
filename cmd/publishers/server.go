package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/hotlabel/publishers/pkg/api"
	"github.com/hotlabel/publishers/pkg/auth"
	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/hotlabel/publishers/pkg/stats"
	"github.com/hotlabel/publishers/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newServerCmd(log *logrus.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the publishers server",
		Long:  `Start the HTTP API server and the publisher event stream hub.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), log, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "config.yaml",
		"Path to configuration file")

	return cmd
}

func runServer(ctx context.Context, log *logrus.Logger, configPath string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Load configuration.
	log.WithField("path", configPath).Info("Loading configuration")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log.Info("Configuration loaded:\n" + cfg.String())

	// Create, start and migrate store.
	st, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}

	defer st.Stop()

	// Statistics backend.
	recorder := stats.Open(ctx, log, cfg)

	defer recorder.Close()

	// Create metrics.
	m := metrics.New(prometheus.DefaultRegisterer)
	m.SetBuildInfo(Version, GitCommit, BuildDate)

	// Create and start auth service.
	authSvc, err := auth.NewService(log, cfg, st, m)
	if err != nil {
		return err
	}

	if err := authSvc.Start(ctx); err != nil {
		return err
	}

	defer authSvc.Stop()

	// Event stream hub doubles as the publisher service's notifier.
	hub := api.NewHub(log, m)

	pubSvc := publisher.NewService(log, cfg, st, recorder, tasks.NewProxy(log, cfg, m), m, hub)

	// Create and start API server.
	srv := api.NewServer(log, cfg, st, recorder, authSvc, pubSvc, hub, m, prometheus.DefaultGatherer)

	if err := srv.Start(ctx); err != nil {
		return err
	}

	defer srv.Stop()

	// Wait for shutdown signal.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	log.Info("Server is running. Press Ctrl+C to stop.")

	select {
	case sig := <-sigCh:
		log.WithField("signal", sig).Info("Received shutdown signal")
	case <-ctx.Done():
		log.Info("Context cancelled")
	}

	log.Info("Shutting down...")

	return nil
}
