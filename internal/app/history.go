package app

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/c9install/internal/output"
	"github.com/blackwell-systems/c9install/internal/store"
)

var (
	historyLimit int
	historyTasks bool
	historyPrune time.Duration

	historyCmd = &cobra.Command{
		Use:   "history",
		Short: "Show past install runs",
		Long: `List install runs, newest first. Every session that stops is recorded with
its run id, package, version, outcome and timing. Sessions that ran in the
same batch share a run id.`,
		Example: `  # Last 20 runs
  c9install history

  # Include the tasks each run started
  c9install history --tasks --limit 5

  # Forget runs older than 30 days
  c9install history --prune 720h`,
		RunE: runHistory,
	}
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")
	historyCmd.Flags().BoolVar(&historyTasks, "tasks", false, "list the tasks of each run")
	historyCmd.Flags().DurationVar(&historyPrune, "prune", 0, "delete runs that stopped longer ago than this")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	st, err := store.New(cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to open install history: %w", err)
	}
	defer st.Close()

	out := cmd.OutOrStdout()

	if historyPrune > 0 {
		n, err := st.PruneRuns(time.Now().Add(-historyPrune))
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d runs\n", n)
		return nil
	}

	runs, err := st.ListRuns(historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(out, output.RenderHistoryTable(runs))

	if !historyTasks {
		return nil
	}
	for _, run := range runs {
		tasks, err := st.GetRunTasks(run.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "\n%s %d (%s)\n", run.Package, run.Version, run.Status)
		if len(tasks) == 0 {
			fmt.Fprintln(out, "  no tasks started")
			continue
		}
		for _, t := range tasks {
			fmt.Fprintf(out, "  %s  %-24s %s\n", t.StartedAt.Local().Format(time.TimeOnly), t.Task, t.Manager)
		}
	}
	return nil
}
