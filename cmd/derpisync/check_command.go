package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"derpisync/internal/preflight"
)

var errPreflightFailed = errors.New("preflight checks failed")

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var network bool
	var probeID uint64

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify tmsu, the index location and (optionally) the API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{
				Network:      network,
				ProbeImageID: probeID,
			})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderSectionHeader("Preflight", colorize) {
				fmt.Fprintln(out, line)
			}
			for _, r := range results {
				kind := statusOK
				if !r.Passed {
					kind = statusError
				}
				fmt.Fprintln(out, renderStatusLine(r.Name, kind, r.Detail, colorize))
			}
			if !network {
				fmt.Fprintln(out, renderStatusLine("Image API", statusInfo, "skipped (use --network)", colorize))
			}

			if preflight.Failed(results) {
				return errPreflightFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&network, "network", false, "Also probe the image API")
	cmd.Flags().Uint64Var(&probeID, "probe-id", 0, "Image id requested by the API probe")
	return cmd
}
