package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"runqueue/internal/domain"
)

func newPauseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pause <queue>",
		Short: "Stop ticks from claiming entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			return setRunning(cmd.Context(), args[0], svc.Pause, "paused")
		},
	}
}

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <queue>",
		Short: "Re-enable ticking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			return setRunning(cmd.Context(), args[0], svc.Resume, "resumed")
		},
	}
}

func setRunning(ctx context.Context, queueName string, op func(context.Context, string) error, verb string) error {
	if err := op(ctx, queueName); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Queue %s %s\n", queueName, verb)
	return nil
}

func newCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <queue> <entry-id>",
		Short: "Cancel a non-terminal entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			entry, err := svc.Cancel(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, entry)
			}
			printEntries([]*domain.JobEntry{entry})
			return nil
		},
	}
}

func newRequeueStaleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "requeue-stale <queue>",
		Short: "Return wedged LAUNCHING entries to PENDING",
		Long: "Return entries stuck in LAUNCHING past the staleness threshold to " +
			"PENDING so a later tick retries them. Verify the wedged launch is " +
			"actually dead first; the engine never does this automatically.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			requeued, err := svc.RequeueStale(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				if requeued == nil {
					requeued = []string{}
				}
				return printJSON(os.Stdout, map[string]any{"requeued": requeued})
			}
			if len(requeued) == 0 {
				fmt.Fprintln(os.Stdout, "No stale entries")
				return nil
			}
			for _, id := range requeued {
				fmt.Fprintf(os.Stdout, "Requeued %s\n", id)
			}
			return nil
		},
	}
}
