package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/talgya/surnamesim/internal/persistence"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs or one run's stats history",
		Long: `Without a run id, list the runs recorded in the history database.
With a run id, print that run's reports and its largest surviving surnames.

Examples:
  surnamesim history --db runs.db
  surnamesim history --db runs.db 2f1c...`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, _ := cmd.Flags().GetString("db")
			top, _ := cmd.Flags().GetInt("top")
			jsonOut, _ := cmd.Flags().GetBool("json")

			db, err := persistence.Open(path)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			if len(args) == 0 {
				runs, err := db.Runs()
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				if jsonOut {
					return json.NewEncoder(out).Encode(runs)
				}
				tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "RUN\tSEED\tSTARTED\tYEARS\tEXTINCT")
				for _, r := range runs {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%d\t%t\n", r.ID, r.Seed, humanize.Time(r.StartedAt), r.YearsRun, r.Extinct)
				}
				return tw.Flush()
			}

			runID := args[0]
			snaps, err := db.History(runID)
			if err != nil {
				return err
			}
			lineages, err := db.TopLineages(runID, top)
			if err != nil {
				return fmt.Errorf("top lineages: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]any{
					"run":          runID,
					"history":      snaps,
					"top_lineages": lineages,
				})
			}

			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "YEAR\tPOPULATION\tSURNAMES\tLARGEST\tNEW\tDEATHS\tNET/YEAR")
			for _, s := range snaps {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%+.2f\n",
					s.Year,
					humanize.Comma(int64(s.Population)),
					humanize.Comma(int64(s.Lineages)),
					humanize.Comma(int64(s.LargestLineage)),
					humanize.Comma(int64(s.NewPeopleDelta)),
					humanize.Comma(int64(s.DeathsDelta)),
					s.NetPerYear,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(lineages) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Largest surnames at the end of the run:")
				for i, l := range lineages {
					fmt.Fprintf(out, "  %-4s #%d  %s members\n", humanize.Ordinal(i+1), l.Lineage, humanize.Comma(int64(l.Members)))
				}
			}
			return nil
		},
	}

	cmd.Flags().String("db", "surnamesim.db", "SQLite history database")
	cmd.Flags().Int("top", 10, "Largest surnames to show")
	return cmd
}
