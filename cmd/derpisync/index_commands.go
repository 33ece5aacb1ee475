package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"derpisync/internal/workindex"
)

func newIndexCommand(ctx *commandContext) *cobra.Command {
	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect or edit the work index",
	}

	indexCmd.AddCommand(newIndexListCommand(ctx))
	indexCmd.AddCommand(newIndexStatsCommand(ctx))
	indexCmd.AddCommand(newIndexForgetCommand(ctx))

	return indexCmd
}

func newIndexListCommand(ctx *commandContext) *cobra.Command {
	var contains string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print every completed path",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := workindex.Load(afero.NewOsFs(), cfg.Paths.IndexFile)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, path := range index.Paths() {
				if contains != "" && !strings.Contains(path, contains) {
					continue
				}
				fmt.Fprintln(out, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&contains, "contains", "", "Only print paths containing this substring")
	return cmd
}

func newIndexStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show index location and size",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			index, err := workindex.Load(afero.NewOsFs(), cfg.Paths.IndexFile)
			if err != nil {
				return err
			}

			locked := false
			if lock, err := workindex.AcquireLock(cfg.LockPath()); err == nil {
				_ = lock.Release()
			} else if errors.Is(err, workindex.ErrLocked) {
				locked = true
			}

			rows := [][]string{
				{"Index file", index.Path()},
				{"Entries", fmt.Sprintf("%d", index.Len())},
				{"Sync running", yesNo(locked)},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Field", "Value"}, rows, nil))
			return nil
		},
	}
}

func newIndexForgetCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "forget PATH...",
		Short: "Remove paths so the next sync processes them again",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			lock, err := workindex.AcquireLock(cfg.LockPath())
			if err != nil {
				return err
			}
			defer lock.Release()

			index, err := workindex.Load(afero.NewOsFs(), cfg.Paths.IndexFile)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			removed := 0
			for _, path := range args {
				if index.Remove(path) {
					removed++
					continue
				}
				fmt.Fprintf(out, "Not indexed: %s\n", path)
			}
			if removed > 0 {
				if err := index.Save(); err != nil {
					return err
				}
			}
			fmt.Fprintf(out, "Removed %d of %d paths\n", removed, len(args))
			return nil
		},
	}
}
