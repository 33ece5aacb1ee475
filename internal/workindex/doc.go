// Package workindex persists the set of input paths that need no further work.
//
// The index is a newline-delimited text file, one path per line, written in
// ascending order so diffs between runs stay small. It is loaded once when a
// run starts, mutated in memory as items complete, and rewritten in full when
// the run ends. A missing file is an empty index. Saves go through a sibling
// temporary file and a rename, so a crash mid-save leaves the previous index
// intact.
//
// Lock guards an index file against a second concurrent run.
package workindex
