// Package apiservice is the stateless adapter between the out-of-scope
// wire transport and this module's internal record types: it turns
// Transport calls into typed results, maps per-UID backend response codes
// to UIDResult, and exposes the paginated listings as streamutil.Stream
// values so callers never deal with anchors or page numbers directly.
package apiservice
