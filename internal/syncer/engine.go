package syncer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"derpisync/internal/booru"
	"derpisync/internal/imageid"
	"derpisync/internal/logging"
	"derpisync/internal/workindex"
)

const maxLineBytes = 1 << 20

// TagResolver finds the tag list for an image id.
type TagResolver interface {
	Resolve(ctx context.Context, id uint64) (*booru.Resolution, error)
}

// Tagger applies tags to a file.
type Tagger interface {
	Tag(ctx context.Context, path string, tags []string) error
}

// Recorder receives every outcome. Errors are logged and otherwise ignored.
type Recorder interface {
	Record(ctx context.Context, outcome Outcome) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder attaches a Recorder.
func WithRecorder(recorder Recorder) Option {
	return func(e *Engine) {
		e.recorder = recorder
	}
}

// WithStopper attaches the Stopper polled between items.
func WithStopper(stopper *Stopper) Option {
	return func(e *Engine) {
		if stopper != nil {
			e.stopper = stopper
		}
	}
}

// WithCheckpointEvery saves the index after every n newly indexed items.
// Zero saves only when the run ends.
func WithCheckpointEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.checkpointEvery = n
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine drives one sync run.
type Engine struct {
	index           *workindex.Index
	resolver        TagResolver
	tagger          Tagger
	recorder        Recorder
	stopper         *Stopper
	checkpointEvery int
	logger          *slog.Logger
}

// New constructs an Engine.
func New(index *workindex.Index, resolver TagResolver, tagger Tagger, opts ...Option) (*Engine, error) {
	if index == nil {
		return nil, errors.New("work index required")
	}
	if resolver == nil {
		return nil, errors.New("tag resolver required")
	}
	if tagger == nil {
		return nil, errors.New("tagger required")
	}
	e := &Engine{
		index:    index,
		resolver: resolver,
		tagger:   tagger,
		stopper:  NewStopper(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = logging.NewComponentLogger(e.logger, "sync")
	return e, nil
}

// Stopper returns the stopper polled by Run.
func (e *Engine) Stopper() *Stopper {
	return e.stopper
}

// Run processes input until it is exhausted, a stop is requested, or ctx is
// cancelled, then saves the index. The returned error reports an input read
// failure or a failed save; per-item failures only show up in the Summary.
func (e *Engine) Run(ctx context.Context, input io.Reader) (Summary, error) {
	summary := newSummary()

	done := make(chan struct{})
	defer close(done)
	lines, readErr := readLines(input, done)

	var (
		seq         int
		sinceSave   int
		inputFailed error
	)

loop:
	for {
		if e.stopper.Requested() || ctx.Err() != nil {
			summary.Cancelled = true
			break
		}
		select {
		case <-e.stopper.Done():
			summary.Cancelled = true
			break loop
		case <-ctx.Done():
			summary.Cancelled = true
			break loop
		case line, ok := <-lines:
			if !ok {
				if err := <-readErr; err != nil {
					inputFailed = fmt.Errorf("read input: %w", err)
					e.logger.Error("input read failed", logging.Error(err))
				}
				break loop
			}
			// A stop raced with the read; leave the line for the next run.
			if e.stopper.Requested() || ctx.Err() != nil {
				summary.Cancelled = true
				break loop
			}
			path := strings.TrimRightFunc(line, unicode.IsSpace)
			if path == "" {
				continue
			}
			seq++
			outcome := e.process(ctx, seq, path)
			summary.add(outcome.State)
			e.record(ctx, outcome)

			if outcome.State.Indexed() {
				sinceSave++
				if e.checkpointEvery > 0 && sinceSave >= e.checkpointEvery {
					if err := e.index.Save(); err != nil {
						e.logger.Warn("index checkpoint failed", logging.Error(err))
					} else {
						e.logger.Debug("index checkpoint saved", logging.Int("entries", e.index.Len()))
						sinceSave = 0
					}
				}
			}
		}
	}

	if summary.Cancelled {
		e.logger.Info("stop requested; saving index")
	}
	if err := e.index.Save(); err != nil {
		return summary, errors.Join(inputFailed, fmt.Errorf("save index: %w", err))
	}
	e.logger.Info("sync finished",
		logging.String("summary", summary.String()),
		logging.Int("indexed", e.index.Len()),
	)
	return summary, inputFailed
}

func (e *Engine) process(ctx context.Context, seq int, path string) Outcome {
	outcome := Outcome{Seq: seq, Path: path}

	if e.index.Contains(path) {
		outcome.State = StateAlreadyDone
		e.logger.Debug("already indexed", logging.String("path", path))
		return outcome
	}

	id, ok := imageid.FromPath(path)
	if !ok {
		outcome.State = StateSkipped
		e.logger.Info("no image id in file name; skipping", logging.String("path", path))
		return outcome
	}
	outcome.Identified = true
	outcome.ImageID = id

	res, err := e.resolver.Resolve(ctx, id)
	if err != nil {
		outcome.State = StateFetchFailed
		outcome.Err = err
		e.logger.Error("fetch failed",
			logging.String("path", path),
			logging.Uint64("image_id", id),
			logging.Error(err),
		)
		return outcome
	}
	outcome.ResolvedID = res.ResolvedID()

	if !res.Found() || len(res.Tags) == 0 {
		outcome.State = StateNoTags
		e.index.Add(path)
		e.logger.Info("no tags available",
			logging.String("path", path),
			logging.Uint64("image_id", id),
			logging.Uint64("resolved_id", outcome.ResolvedID),
		)
		return outcome
	}
	outcome.Tags = res.Tags

	if err := e.tagger.Tag(ctx, path, res.Tags); err != nil {
		outcome.State = StateTagFailed
		outcome.Err = err
		e.logger.Error("tagging failed",
			logging.String("path", path),
			logging.Uint64("image_id", id),
			logging.Error(err),
		)
		return outcome
	}

	outcome.State = StateTagged
	e.index.Add(path)
	e.logger.Info("tagged",
		logging.String("path", path),
		logging.Uint64("image_id", id),
		logging.Uint64("resolved_id", outcome.ResolvedID),
		logging.Int("tags", len(res.Tags)),
	)
	return outcome
}

func (e *Engine) record(ctx context.Context, outcome Outcome) {
	if e.recorder == nil {
		return
	}
	// Outcomes of a cancelled run are still worth keeping.
	if err := e.recorder.Record(context.WithoutCancel(ctx), outcome); err != nil {
		e.logger.Warn("record outcome failed",
			logging.String("path", outcome.Path),
			logging.Error(err),
		)
	}
}

// readLines feeds lines from r into an unbuffered channel until r is
// exhausted or done is closed. The error channel receives the scanner error,
// possibly nil, right before lines is closed. A reader blocked in Read is
// abandoned when done closes.
func readLines(r io.Reader, done <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-done:
				errc <- nil
				return
			}
		}
		errc <- scanner.Err()
	}()
	return lines, errc
}
