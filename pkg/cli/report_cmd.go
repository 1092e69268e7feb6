package cli

import (
	"os"

	"github.com/spf13/cobra"

	"runqueue/internal/domain"
)

func newReportCmd() *cobra.Command {
	var succeeded, failed bool
	var message string

	cmd := &cobra.Command{
		Use:   "report <queue> <entry-id>",
		Short: "Report completion of a running entry",
		Long: "Record the outcome of a RUNNING entry. The training job (or " +
			"whatever watches it) calls this when the run finishes; the engine " +
			"never polls the backend.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if succeeded == failed {
				return domain.ErrValidation("exactly one of --succeeded or --failed is required")
			}
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			entry, err := svc.Report(cmd.Context(), args[0], args[1], succeeded, message)
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

	cmd.Flags().BoolVar(&succeeded, "succeeded", false, "The run completed successfully")
	cmd.Flags().BoolVar(&failed, "failed", false, "The run failed")
	cmd.Flags().StringVarP(&message, "message", "m", "", "Failure message to record")
	return cmd
}
