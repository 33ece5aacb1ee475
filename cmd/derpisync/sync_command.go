package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"derpisync/internal/booru"
	"derpisync/internal/config"
	"derpisync/internal/journal"
	"derpisync/internal/logging"
	"derpisync/internal/syncer"
	"derpisync/internal/tmsu"
	"derpisync/internal/workindex"
)

func newSyncCommand(ctx *commandContext) *cobra.Command {
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "sync [FILE]",
		Short: "Tag every listed file with its booru tags",
		Long: `Read file paths (one per line) from FILE, or from stdin when FILE is
omitted or "-", and tag each file with tmsu using the tags of the booru image
named by its file name. Completed paths are recorded in the work index and
skipped on later runs.

Send SIGINT or SIGTERM once to stop after the current file; send it again to
abort the current file too. The index is saved either way.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger(cmd)
			if err != nil {
				return err
			}
			source := "-"
			if len(args) == 1 {
				source = args[0]
			}
			return runSync(cmd, cfg, logger, source, !noJournal && cfg.Journal.Enabled)
		},
	}

	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "Do not record this run in the history journal")
	return cmd
}

func runSync(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, source string, useJournal bool) error {
	// Nothing touches disk until tmsu is known to work. The lock creates the
	// index directory; the journal creates the state directory on open.
	tagger, err := tmsu.New(cfg.TMSU.Binary, tmsu.WithDatabase(cfg.TMSU.Database))
	if err != nil {
		return err
	}
	if err := tagger.CheckEnvironment(cmd.Context()); err != nil {
		return err
	}

	lock, err := workindex.AcquireLock(cfg.LockPath())
	if err != nil {
		return err
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("release index lock failed", logging.Error(err))
		}
	}()

	index, err := workindex.Load(afero.NewOsFs(), cfg.Paths.IndexFile)
	if err != nil {
		return err
	}
	logger.Info("work index loaded",
		logging.String("path", index.Path()),
		logging.Int("entries", index.Len()),
	)

	input, closeInput, err := openInput(cmd, source, logger)
	if err != nil {
		return err
	}
	defer closeInput()

	client, err := booru.New(cfg.API.BaseURL, cfg.RequestInterval(),
		booru.WithHTTPClient(&http.Client{Timeout: cfg.RequestTimeout()}),
		booru.WithAPIKey(cfg.API.APIKey),
		booru.WithFilterID(cfg.API.FilterID),
		booru.WithUserAgent(cfg.API.UserAgent),
		booru.WithRetryDelays(cfg.RetryDelay(), cfg.NotImplementedDelay()),
		booru.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	resolver := booru.NewResolver(client,
		booru.WithCacheTTL(cfg.CacheTTL()),
		booru.WithCacheCapacity(cfg.CacheCapacity()),
		booru.WithResolverLogger(logger),
	)
	defer resolver.Close()

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	stopper := syncer.NewStopper()

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)
	go watchSignals(runCtx, sigs, stopper, cancel, logger)

	opts := []syncer.Option{
		syncer.WithStopper(stopper),
		syncer.WithCheckpointEvery(cfg.Index.CheckpointEvery),
		syncer.WithLogger(logger),
	}

	var (
		store *journal.Store
		runID string
	)
	if useJournal {
		store, runID = beginJournal(cmd.Context(), cfg, source, logger)
		if store != nil {
			defer store.Close()
			opts = append(opts, syncer.WithRecorder(store.Recorder(runID)))
		}
	}

	engine, err := syncer.New(index, resolver, tagger, opts...)
	if err != nil {
		return err
	}

	summary, runErr := engine.Run(runCtx, input)

	if store != nil {
		if err := store.FinishRun(context.WithoutCancel(cmd.Context()), runID, summary); err != nil {
			logger.Warn("journal finish failed", logging.Error(err))
		}
	}

	stats := client.Stats()
	printSyncSummary(cmd.OutOrStdout(), summary, stats, index.Len(), runID)
	return runErr
}

// watchSignals turns the first signal into a graceful stop and the second
// into cancellation of the in-flight item.
func watchSignals(ctx context.Context, sigs <-chan os.Signal, stopper *syncer.Stopper, cancel context.CancelFunc, logger *slog.Logger) {
	received := 0
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			received++
			if received == 1 {
				logger.Info("stop requested; finishing current file",
					logging.String("signal", sig.String()))
				stopper.Request()
				continue
			}
			logger.Warn("second stop request; aborting current file",
				logging.String("signal", sig.String()))
			cancel()
			return
		}
	}
}

func openInput(cmd *cobra.Command, source string, logger *slog.Logger) (io.Reader, func(), error) {
	if source == "" || source == "-" {
		in := cmd.InOrStdin()
		if file, ok := in.(*os.File); ok {
			fd := file.Fd()
			if isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd) {
				logger.Warn("reading paths from a terminal; end input with Ctrl-D")
			}
		}
		return in, func() {}, nil
	}
	file, err := os.Open(source)
	if err != nil {
		return nil, nil, fmt.Errorf("open input: %w", err)
	}
	return file, func() { _ = file.Close() }, nil
}

func beginJournal(ctx context.Context, cfg *config.Config, source string, logger *slog.Logger) (*journal.Store, string) {
	store, err := journal.Open(cfg)
	if err != nil {
		logger.Warn("journal unavailable; continuing without history", logging.Error(err))
		return nil, ""
	}
	runID, err := store.BeginRun(ctx, source)
	if err != nil {
		logger.Warn("journal unavailable; continuing without history", logging.Error(err))
		_ = store.Close()
		return nil, ""
	}
	return store, runID
}

func printSyncSummary(out io.Writer, summary syncer.Summary, stats booru.Stats, indexed int, runID string) {
	rows := make([][]string, 0, len(syncer.AllStates))
	for _, state := range syncer.AllStates {
		rows = append(rows, []string{string(state), strconv.Itoa(summary.Count(state))})
	}
	fmt.Fprintln(out, renderTable([]string{"Outcome", "Files"}, rows,
		[]columnAlignment{alignLeft, alignRight}, "total", strconv.Itoa(summary.Total())))

	lines := []string{
		fmt.Sprintf("Requests: %d (%d retries)", stats.Requests, stats.Retries),
		fmt.Sprintf("Index entries: %d", indexed),
		fmt.Sprintf("Stopped early: %s", yesNo(summary.Cancelled)),
	}
	if runID != "" {
		lines = append(lines, fmt.Sprintf("Run: %s", runID))
	}
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}
