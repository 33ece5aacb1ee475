// Package journal keeps a SQLite history of sync runs and their per-item
// outcomes.
//
// The journal is advisory. The work index alone decides what a run skips;
// the journal answers "what happened last time" for the history command.
// A run row is created before the first item and finalized with the run's
// summary counts when the loop exits, including cancelled runs.
package journal
