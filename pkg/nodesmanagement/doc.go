// Package nodesmanagement mutates the node tree: rename, move, trash,
// restore, permanent delete, and folder creation. It orchestrates the
// crypto and API services already built for reading nodes, then pushes
// the resulting cache invalidation through nodesaccess so the next read
// picks up the change.
package nodesmanagement
