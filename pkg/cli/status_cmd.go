package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"runqueue/internal/domain"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status <queue>",
		Short: "Show per-state counts and stale entries",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, status)
			}

			state := "running"
			if !status.Running {
				state = "paused"
			}
			fmt.Fprintf(os.Stdout, "Queue %s (%s), %d entries, generation %d\n",
				status.Name, state, status.Total, status.Generation)

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, s := range []string{
				domain.StatusPending, domain.StatusLaunching, domain.StatusRunning,
				domain.StatusSucceeded, domain.StatusFailed, domain.StatusCancelled,
			} {
				if n := status.Counts[s]; n > 0 {
					fmt.Fprintf(w, "  %s\t%d\n", s, n)
				}
			}
			_ = w.Flush()

			if len(status.Stale) > 0 {
				fmt.Fprintf(os.Stdout, "Stale claims (consider requeue-stale):\n")
				w = tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
				for _, s := range status.Stale {
					fmt.Fprintf(w, "  %s\t%s\t%s\t%s\n", s.ID, s.Status, s.ExecutionRef, s.UpdatedAt.Format(time.RFC3339))
				}
				_ = w.Flush()
			}
			return nil
		},
	}
}
