// Package events applies the external tree-change event stream to the
// node cache and fans updates out to subscribers of folder child-sets,
// the shared-by-me/shared-with-me collections, and per-volume trash
// listings.
//
// Event application is idempotent and never aborts the stream: a single
// event's failure is reported to the caller, which is expected to log
// and move on to the next event rather than stop the feed.
package events
