package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/renewal/internal/store"
)

// RunSummary is the output shape of a recorded run.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
	Stats      store.RunStats `json:"stats"`
}

// NewRunsCommand creates the runs command group.
func NewRunsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}

	var limit int
	list := &cobra.Command{
		Use:           "list",
		Short:         "List recent runs, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return NewExitError(ExitCommandError, "limit must be positive")
			}
			cfg, err := rootOpts.loadConfig()
			if err != nil {
				return err
			}
			if err := requireTenant(cfg); err != nil {
				return err
			}
			st, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			records, err := st.ListRuns(cmd.Context(), cfg.Tenant, limit)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to list runs", err)
			}
			out := make([]RunSummary, len(records))
			for i, r := range records {
				out[i] = RunSummary{
					RunID:      r.RunID,
					StartedAt:  r.StartedAt.UTC().Format(time.RFC3339),
					FinishedAt: r.FinishedAt.UTC().Format(time.RFC3339),
					Stats:      r.Stats,
				}
			}
			return rootOpts.formatter(cmd).Success(out, func(w io.Writer) { printRuns(w, out) })
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "maximum number of runs")
	cmd.AddCommand(list)
	return cmd
}

func printRuns(w io.Writer, runs []RunSummary) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSCANNED\tTRIGGERED\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", r.RunID, r.StartedAt, r.Stats.Scanned, r.Stats.Triggered, r.Stats.Failed)
	}
	tw.Flush()
}
