package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init <queue>",
		Short: "Create a new empty queue document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := buildService(cmd)
			if err != nil {
				return err
			}
			doc, err := svc.InitQueue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(os.Stdout, doc)
			}
			fmt.Fprintf(os.Stdout, "Queue %s created\n", doc.Name)
			return nil
		},
	}
}
