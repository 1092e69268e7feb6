package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newSubmitCmd() *cobra.Command {
	var params []string
	var count int

	cmd := &cobra.Command{
		Use:   "submit <queue>",
		Short: "Append pending training runs to the queue",
		Long: "Append one or more PENDING entries with the given params. " +
			"With --count N the same param set is enqueued N times.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("count must be at least 1")
			}
			paramSet, err := parseParams(params)
			if err != nil {
				return err
			}
			paramSets := make([]map[string]string, count)
			for i := range paramSets {
				paramSets[i] = paramSet
			}

			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			added, err := svc.Submit(cmd.Context(), args[0], paramSets)
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, added)
			}
			printEntries(added)
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Run parameter as key=value (repeatable)")
	cmd.Flags().IntVar(&count, "count", 1, "Number of entries to enqueue with this param set")
	return cmd
}
