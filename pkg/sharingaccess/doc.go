// Package sharingaccess lists the shared-by-me and shared-with-me node
// collections, caching each as a full list rather than per-node entries.
// A list is only trusted once it has been fully walked from the backend;
// until then, iterators fall through to the API every time.
package sharingaccess
