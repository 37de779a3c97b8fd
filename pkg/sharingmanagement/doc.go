// Package sharingmanagement reads and mutates a node's share: its
// invitations, external invitations, members, and public link. It sits
// above the API and nodes-access services, wrapping outgoing key material
// and diffing desired settings against whatever the backend already has
// before issuing only the calls needed to reconcile the difference.
package sharingmanagement
