package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

func newDrainCmd() *cobra.Command {
	var maxTicks int
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "drain <queue>",
		Short: "Tick until the queue is empty",
		Long: "Tick repeatedly until the queue reports empty, paused, or the tick " +
			"bound is hit. With --interval the drain repeats on that cadence as a " +
			"long-running worker loop until interrupted.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}

			drainOnce := func() error {
				res, err := svc.DrainToEmpty(cmd.Context(), args[0], maxTicks)
				if err != nil {
					return err
				}
				if getOutputFormat(cmd) == "json" {
					return printJSON(os.Stdout, res)
				}
				fmt.Fprintf(os.Stdout, "Drained: %d launched in %d ticks (%s)\n", res.Launched, res.Ticks, res.LastReason)
				return nil
			}

			if interval <= 0 {
				return drainOnce()
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				if err := drainOnce(); err != nil {
					return err
				}
				select {
				case <-cmd.Context().Done():
					// Clean exit on SIGINT/SIGTERM.
					if errors.Is(cmd.Context().Err(), context.Canceled) {
						fmt.Fprintln(os.Stderr, "drain loop stopped")
						return nil
					}
					return cmd.Context().Err()
				case <-ticker.C:
				}
			}
		},
	}

	cmd.Flags().IntVar(&maxTicks, "max-ticks", 0, "Tick bound per drain (0 uses the configured default)")
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the drain on this cadence (e.g. 30s); 0 drains once")
	return cmd
}
