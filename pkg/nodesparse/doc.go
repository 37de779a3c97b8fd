// Package nodesparse normalizes crypto-service output into the final
// DecryptedNode shape: name validation, extended-attributes merging, and
// the bookkeeping fields (isStale, treeEventScopeId) that don't depend on
// any cryptographic material.
package nodesparse
