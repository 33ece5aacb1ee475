package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"derpisync/internal/journal"
	"derpisync/internal/syncer"
)

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var failedOnly bool
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded sync runs and their outcomes",
		Long: `Without flags, list recent runs. With --run, list the outcomes of one run
(an id prefix is enough). --failed shows only fetch and tag failures, from the
given run or else from the most recent one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := journal.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			out := cmd.OutOrStdout()
			if runID == "" && !failedOnly {
				runs, err := store.RecentRuns(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				printRuns(out, runs)
				return nil
			}

			var run *journal.Run
			if runID != "" {
				if run, err = store.FindRun(cmd.Context(), runID); err != nil {
					return err
				}
			} else {
				runs, err := store.RecentRuns(cmd.Context(), 1)
				if err != nil {
					return err
				}
				if len(runs) == 0 {
					return errors.New("no runs recorded")
				}
				run = &runs[0]
			}

			var states []syncer.State
			if failedOnly {
				states = []syncer.State{syncer.StateFetchFailed, syncer.StateTagFailed}
			}
			entries, err := store.Outcomes(cmd.Context(), run.ID, states...)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s (%s)\n", run.ID, runStatus(*run))
			if len(entries) == 0 {
				fmt.Fprintln(out, "No matching outcomes")
				return nil
			}
			printEntries(out, entries)
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "Run id or unique prefix")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only show failed items")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of runs to list")
	return cmd
}

func printRuns(out io.Writer, runs []journal.Run) {
	headers := []string{"Run", "Started", "Duration", "Files", "Tagged", "No tags", "Failed", "Status"}
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		duration := "-"
		if run.Finished() {
			duration = run.FinishedAt.Sub(run.StartedAt).Round(time.Second).String()
		}
		failed := run.Counts[syncer.StateFetchFailed] + run.Counts[syncer.StateTagFailed]
		rows = append(rows, []string{
			shortID(run.ID),
			run.StartedAt.Local().Format(time.DateTime),
			duration,
			strconv.Itoa(run.Total()),
			strconv.Itoa(run.Counts[syncer.StateTagged]),
			strconv.Itoa(run.Counts[syncer.StateNoTags]),
			strconv.Itoa(failed),
			runStatus(run),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	fmt.Fprintln(out, renderTable(headers, rows, aligns))
}

func printEntries(out io.Writer, entries []journal.Entry) {
	headers := []string{"#", "State", "Image", "Path", "Detail"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.Itoa(e.Seq),
			string(e.State),
			formatImage(e),
			e.Path,
			truncate(e.Detail, 80),
		})
	}
	fmt.Fprintln(out, renderTable(headers, rows, []columnAlignment{alignRight}))
}

func runStatus(run journal.Run) string {
	switch {
	case !run.Finished():
		return "incomplete"
	case run.Cancelled:
		return "stopped"
	default:
		return "finished"
	}
}

func formatImage(e journal.Entry) string {
	if e.ImageID == nil {
		return "-"
	}
	id := strconv.FormatUint(*e.ImageID, 10)
	if e.ResolvedID != nil && *e.ResolvedID != *e.ImageID {
		id += " -> " + strconv.FormatUint(*e.ResolvedID, 10)
	}
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(value string, max int) string {
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	return value[:max-3] + "..."
}
