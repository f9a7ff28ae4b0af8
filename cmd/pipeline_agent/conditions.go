package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jonathan/process-pipelines/internal/processes"
)

var conditionsCmd = &cobra.Command{
	Use:   "conditions [process]",
	Short: "Print the phase condition table of a process",
	Long:  "Lists every phase of a process with the condition that decides whether it runs.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConditions,
}

func init() {
	rootCmd.AddCommand(conditionsCmd)
}

func runConditions(cmd *cobra.Command, args []string) error {
	names := processes.Names()
	if len(args) == 1 {
		names = args
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, process := range names {
		entries, err := processes.Conditions(process)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(w, "%s\n", process)
		_, _ = fmt.Fprintln(w, "  PHASE\tCONDITION\tNAME\tCHECKPOINT\tREVISION")
		for _, e := range entries {
			kind := string(e.Kind)
			if e.Computed {
				kind += " (computed)"
			}
			_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", e.Phase, kind, dash(e.Name), dash(e.Checkpoint), dash(e.Revision))
		}
		_, _ = fmt.Fprintln(w)
	}
	return w.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
