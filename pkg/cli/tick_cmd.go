package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"runqueue/internal/domain"
)

func newTickCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tick <queue>",
		Short: "Advance the queue by at most one entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			res, err := svc.Tick(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, res)
			}
			fmt.Fprintf(os.Stdout, "Tick: %s\n", res.Reason)
			if res.Entry != nil {
				printEntries([]*domain.JobEntry{res.Entry})
			}
			return nil
		},
	}
}
