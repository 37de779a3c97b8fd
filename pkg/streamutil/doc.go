// Package streamutil provides the lazy, finite, non-restartable,
// cancelable iterator shape used by every listing operation in this
// module (folder children, trashed nodes, batch node lookups, sharing
// listings). It generalizes the teacher's channel-based publish/subscribe
// idiom with generics instead of a single concrete event type.
package streamutil
