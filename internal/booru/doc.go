// Package booru talks to a Philomena-style image board API (derpibooru by
// default).
//
// Client fetches one image record per call and owns the request pacing: every
// outbound request, retries and duplicate hops included, starts at least one
// interval after the previous one started. Non-success statuses are retried
// without limit after a fixed delay (six seconds for 501, one second for
// anything else); transport failures and undecodable bodies are returned to
// the caller. Resolver follows duplicate_of links until an image with a tag
// list turns up.
//
// Neither type locks internally. The sync loop is their only caller.
package booru
