// Package main hosts the derpisync CLI entrypoint and command graph.
//
// The Cobra command tree wires configuration, logging, the run lock and the
// internal packages together: sync drives the tagging loop, check renders
// preflight results, index and history inspect local state, and config
// scaffolds a configuration file. Command output goes to stdout; logs go to
// stderr.
package main
