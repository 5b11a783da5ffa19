package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/hotlabel/publishers/pkg/config"
	"github.com/hotlabel/publishers/pkg/metrics"
	"github.com/hotlabel/publishers/pkg/publisher"
	"github.com/hotlabel/publishers/pkg/stats"
	"github.com/hotlabel/publishers/pkg/store"
	"github.com/hotlabel/publishers/pkg/tasks"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newPublishersCmd(log *logrus.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "publishers",
		Short: "Administer registered publishers",
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml",
		"Path to configuration file")

	var limit, offset int

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List registered publishers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPublisherService(cmd.Context(), log, configPath, func(svc publisher.Service) error {
				return listPublishers(cmd.Context(), cmd.OutOrStdout(), svc, store.ListOpts{Limit: limit, Offset: offset})
			})
		},
	}

	listCmd.Flags().IntVar(&limit, "limit", publisher.DefaultPageSize, "Maximum publishers to list")
	listCmd.Flags().IntVar(&offset, "offset", 0, "Publishers to skip")

	rotateCmd := &cobra.Command{
		Use:   "rotate-key <publisher-id>",
		Short: "Issue a new API key for a publisher",
		Long:  `Issue a new API key for a publisher. The previous key stops working immediately.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withPublisherService(cmd.Context(), log, configPath, func(svc publisher.Service) error {
				return rotateKey(cmd.Context(), cmd.OutOrStdout(), svc, args[0])
			})
		},
	}

	cmd.AddCommand(listCmd, rotateCmd)

	return cmd
}

// withPublisherService runs fn against a publisher service backed by the
// configured store. Event streams are not reachable from here, so no
// notifier is attached.
func withPublisherService(
	ctx context.Context,
	log logrus.FieldLogger,
	configPath string,
	fn func(svc publisher.Service) error,
) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}

	defer st.Stop()

	recorder := stats.Open(ctx, log, cfg)

	defer recorder.Close()

	m := metrics.New(prometheus.NewRegistry())
	svc := publisher.NewService(log, cfg, st, recorder, tasks.NewProxy(log, cfg, m), m, nil)

	return fn(svc)
}

func listPublishers(ctx context.Context, out io.Writer, svc publisher.Service, opts store.ListOpts) error {
	publishers, total, err := svc.List(ctx, opts)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "ID\tCOMPANY\tEMAIL\tKEY PREFIX\tACTIVE\tCREATED")

	for _, p := range publishers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
			p.ID, p.CompanyName, p.ContactEmail, p.APIKeyPrefix, p.IsActive, p.CreatedAt.Format("2006-01-02"))
	}

	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n%d of %d publishers\n", len(publishers), total)

	return nil
}

func rotateKey(ctx context.Context, out io.Writer, svc publisher.Service, id string) error {
	p, err := svc.RegenerateAPIKey(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "New API key for %s (%s):\n%s\n", p.CompanyName, p.ID, p.APIKey)

	return nil
}
