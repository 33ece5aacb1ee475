// Package preflight provides readiness checks for the external tool, the
// filesystem paths and the remote API that derpisync depends on.
//
// The CLI "derpisync check" command renders RunAll as a table. The sync
// command does not use this package; it gates on tmsu.CheckEnvironment so a
// broken environment aborts before any input is read.
//
// Network probes only run when requested.
package preflight
