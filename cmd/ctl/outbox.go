package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"freelancehub/pkg/mq"
	"freelancehub/pkg/outbox"
)

var outboxLimit int

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and replay outbox events",
}

var outboxFailedCmd = &cobra.Command{
	Use:   "failed",
	Short: "List events that exhausted their publish retries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openDB()
		if err != nil {
			return err
		}
		defer pool.Close()

		events, err := outbox.NewRepository(pool).GetFailedEvents(cmd.Context(), outboxLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no failed events")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tROUTING KEY\tAGGREGATE\tRETRIES\tUPDATED")
		for _, e := range events {
			fmt.Fprintf(w, "%s\t%s\t%s/%s\t%d\t%s\n",
				e.ID, e.RoutingKey, e.AggregateType, e.AggregateID, e.RetryCount,
				e.UpdatedAt.Format(time.RFC3339))
		}
		return w.Flush()
	},
}

var replayAll bool

var outboxReplayCmd = &cobra.Command{
	Use:   "replay [event-id]",
	Short: "Publish an event again",
	Long: `Publish one outbox event again by id, or every failed event with --all.

Examples:
  ctl outbox replay 0b6f6a0e-5d0c-4a53-9a57-3f5c1d1b2e11
  ctl outbox replay --all --limit 500`,
	Args: func(cmd *cobra.Command, args []string) error {
		if replayAll && len(args) > 0 {
			return fmt.Errorf("pass an event id or --all, not both")
		}
		if !replayAll && len(args) != 1 {
			return fmt.Errorf("requires an event id (or --all)")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		pool, err := openDB()
		if err != nil {
			return err
		}
		defer pool.Close()

		publisher, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			return err
		}
		defer publisher.Close()

		replay := outbox.NewReplayService(outbox.NewRepository(pool), publisher, log)
		if replayAll {
			n, err := replay.ReplayFailedEvents(cmd.Context(), outboxLimit)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "replayed %d event(s)\n", n)
			return nil
		}

		if err := replay.ReplayEvent(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %s\n", args[0])
		return nil
	},
}

func init() {
	outboxCmd.PersistentFlags().IntVar(&outboxLimit, "limit", 100, "maximum number of events")
	outboxReplayCmd.Flags().BoolVar(&replayAll, "all", false, "replay every failed event")

	outboxCmd.AddCommand(outboxFailedCmd, outboxReplayCmd)
	rootCmd.AddCommand(outboxCmd)
}
