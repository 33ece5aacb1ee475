// Package syncer runs the tagging loop: read paths, resolve tags, apply them,
// and record completed paths in the work index.
//
// Items are processed strictly one at a time in input order. A path enters
// the index only once nothing more needs to be done for it: either its tags
// were applied or the remote service has no tags to give. Every other
// outcome leaves the path out so a later run retries it.
//
// Stopping is cooperative. A Stopper request lets the in-flight item finish
// and then ends the run; cancelling the run context aborts the in-flight item
// as well. In both cases Run saves the index before returning.
package syncer
