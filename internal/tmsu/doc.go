// Package tmsu wraps the tmsu command line tool.
//
// Every invocation goes through an Executor so tests can replace the real
// binary. Standard output is discarded; success is judged by exit status and
// standard error is kept for diagnostics.
package tmsu
