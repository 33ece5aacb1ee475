// Package logging assembles structured slog loggers used across derpisync.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and provides attribute helpers plus a no-op logger for tests and
// wiring code that cannot fail. Console output is line oriented:
//
//	2024-05-01 12:00:00 INFO  sync: tagged path=/pics/1234.png tags=3
//
// Prefer these constructors over hand-rolled slog setup so every component
// emits the same shape.
package logging
