package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"derpisync/internal/syncer"
)

var (
	// ErrRunNotFound is returned when no run matches an id or prefix.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when a prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

const runColumns = `id, started_at, finished_at, input, cancelled,
        tagged, no_tags, already_done, skipped, fetch_failed, tag_failed`

// BeginRun inserts a new run and returns its id.
func (s *Store) BeginRun(ctx context.Context, input string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, input) VALUES (?, ?, ?)`,
		id, formatTime(time.Now()), input,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Record stores one item outcome for runID.
func (s *Store) Record(ctx context.Context, runID string, outcome syncer.Outcome) error {
	var tagsJSON any
	if outcome.Tags != nil {
		encoded, err := json.Marshal(outcome.Tags)
		if err != nil {
			return fmt.Errorf("marshal tags: %w", err)
		}
		tagsJSON = string(encoded)
	}
	var imageID, resolvedID any
	if outcome.Identified {
		imageID = int64(outcome.ImageID)
		if outcome.State != syncer.StateFetchFailed && outcome.State != syncer.StateAlreadyDone {
			resolvedID = int64(outcome.ResolvedID)
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO outcomes (
            run_id, seq, path, image_id, resolved_id, state, tags_json, detail, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID,
		outcome.Seq,
		outcome.Path,
		imageID,
		resolvedID,
		string(outcome.State),
		tagsJSON,
		nullableString(outcome.Detail()),
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("insert outcome: %w", err)
	}
	return nil
}

// FinishRun stores the summary counts for runID.
func (s *Store) FinishRun(ctx context.Context, runID string, summary syncer.Summary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET
            finished_at = ?, cancelled = ?,
            tagged = ?, no_tags = ?, already_done = ?, skipped = ?, fetch_failed = ?, tag_failed = ?
        WHERE id = ?`,
		formatTime(time.Now()),
		boolToInt(summary.Cancelled),
		summary.Count(syncer.StateTagged),
		summary.Count(syncer.StateNoTags),
		summary.Count(syncer.StateAlreadyDone),
		summary.Count(syncer.StateSkipped),
		summary.Count(syncer.StateFetchFailed),
		summary.Count(syncer.StateTagFailed),
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// FindRun resolves a full run id or a unique prefix of one.
func (s *Store) FindRun(ctx context.Context, idPrefix string) (*Run, error) {
	idPrefix = strings.ToLower(strings.TrimSpace(idPrefix))
	if idPrefix == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE substr(id, 1, ?) = ? LIMIT 2`,
		len(idPrefix), idPrefix)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer rows.Close()

	var matches []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, idPrefix)
	case 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrAmbiguousRun, idPrefix)
	}
}

// Outcomes lists the entries of runID in input order, optionally filtered
// to the given states.
func (s *Store) Outcomes(ctx context.Context, runID string, states ...syncer.State) ([]Entry, error) {
	query := `SELECT run_id, seq, path, image_id, resolved_id, state, tags_json, detail, recorded_at
        FROM outcomes WHERE run_id = ?`
	args := []any{runID}
	if len(states) > 0 {
		placeholders := make([]string, len(states))
		for i, state := range states {
			placeholders[i] = "?"
			args = append(args, string(state))
		}
		query += " AND state IN (" + strings.Join(placeholders, ", ") + ")"
	}
	query += " ORDER BY seq"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query outcomes: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry      Entry
			imageID    sql.NullInt64
			resolvedID sql.NullInt64
			state      string
			tagsJSON   sql.NullString
			detail     sql.NullString
			recordedAt string
		)
		if err := rows.Scan(&entry.RunID, &entry.Seq, &entry.Path, &imageID, &resolvedID,
			&state, &tagsJSON, &detail, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		entry.State = syncer.State(state)
		entry.ImageID = nullableUint64(imageID)
		entry.ResolvedID = nullableUint64(resolvedID)
		entry.Detail = detail.String
		if tagsJSON.Valid {
			if err := json.Unmarshal([]byte(tagsJSON.String), &entry.Tags); err != nil {
				return nil, fmt.Errorf("decode tags for %s: %w", entry.Path, err)
			}
		}
		entry.RecordedAt = parseTime(recordedAt)
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return entries, nil
}

// Recorder binds the store to one run so it can be handed to the sync engine.
func (s *Store) Recorder(runID string) syncer.Recorder {
	return runRecorder{store: s, runID: runID}
}

type runRecorder struct {
	store *Store
	runID string
}

func (r runRecorder) Record(ctx context.Context, outcome syncer.Outcome) error {
	return r.store.Record(ctx, r.runID, outcome)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run        Run
		startedAt  string
		finishedAt sql.NullString
		cancelled  int
		counts     [6]int
	)
	if err := row.Scan(&run.ID, &startedAt, &finishedAt, &run.Input, &cancelled,
		&counts[0], &counts[1], &counts[2], &counts[3], &counts[4], &counts[5]); err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	run.StartedAt = parseTime(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTime(finishedAt.String)
	}
	run.Cancelled = cancelled != 0
	run.Counts = map[syncer.State]int{
		syncer.StateTagged:      counts[0],
		syncer.StateNoTags:      counts[1],
		syncer.StateAlreadyDone: counts[2],
		syncer.StateSkipped:     counts[3],
		syncer.StateFetchFailed: counts[4],
		syncer.StateTagFailed:   counts[5],
	}
	return run, nil
}

// timeLayout keeps a fixed fraction width so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableUint64(value sql.NullInt64) *uint64 {
	if !value.Valid {
		return nil
	}
	v := uint64(value.Int64)
	return &v
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
