// Package cli implements the runqueue command-line interface. Every command
// builds the tick engine directly against the queue bucket: the CLI, the
// HTTP server, and the cron scheduler are interchangeable callers
// coordinating only through conditional writes on the queue document.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		bucket   string
		prefix   string
		output   string
		logLevel string
	)

	rootCmd := &cobra.Command{
		Use:           "runqueue",
		Short:         "Training run queue CLI",
		Long:          "Command-line interface for the blob-backed training run queue engine.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Precedence: flag > env > default.
			if !cmd.Flags().Changed("bucket") {
				if v := os.Getenv("QUEUE_BUCKET"); v != "" {
					bucket = v
				}
			}
			if !cmd.Flags().Changed("prefix") {
				if v := os.Getenv("QUEUE_PREFIX"); v != "" {
					prefix = v
				}
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			// Resolved values feed buildService via the environment, the
			// same path the server takes.
			if bucket != "" {
				if err := os.Setenv("QUEUE_BUCKET", bucket); err != nil {
					return err
				}
			}
			if prefix != "" {
				if err := os.Setenv("QUEUE_PREFIX", prefix); err != nil {
					return err
				}
			}
			if logLevel != "" {
				if err := os.Setenv("LOG_LEVEL", logLevel); err != nil {
					return err
				}
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&bucket, "bucket", "", "GCS bucket holding queue documents (env QUEUE_BUCKET)")
	rootCmd.PersistentFlags().StringVar(&prefix, "prefix", "", "object prefix inside the bucket (env QUEUE_PREFIX)")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newTickCmd())
	rootCmd.AddCommand(newDrainCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newPauseCmd())
	rootCmd.AddCommand(newResumeCmd())
	rootCmd.AddCommand(newCancelCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newRequeueStaleCmd())
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
