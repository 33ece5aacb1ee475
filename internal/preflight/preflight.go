package preflight

import (
	"context"
	"path/filepath"

	"derpisync/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects optional checks.
type Options struct {
	// Network enables the API reachability probe.
	Network bool
	// ProbeImageID is the image requested by the API probe. Image 0 exists on
	// derpibooru, so the zero value works there.
	ProbeImageID uint64
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckTMSUBinary(cfg.TMSU.Binary))
	results = append(results, CheckTMSUDatabase(ctx, cfg.TMSU.Binary, cfg.TMSU.Database))

	// The index file itself may not exist yet; its directory must.
	results = append(results, CheckDirectoryAccess("Index directory", filepath.Dir(cfg.Paths.IndexFile)))

	if cfg.Journal.Enabled {
		results = append(results, CheckCreatableDirectory("State directory", cfg.Paths.StateDir))
	}

	if opts.Network {
		results = append(results, CheckAPI(ctx, cfg, opts.ProbeImageID))
	}

	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
