// Package accountdirectory defines the boundary to the out-of-scope
// account/key directory: address and public-key lookup, and proton vs.
// non-proton address classification for sharing.
package accountdirectory

import (
	"context"

	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
)

// Directory resolves email addresses to their public keys and reports
// whether an address belongs to this service.
type Directory interface {
	// PublicKeysForEmail returns the active public keys for email, empty
	// if none (e.g. an external, non-Proton address).
	PublicKeysForEmail(ctx context.Context, email string) ([]cryptoprimitives.Key, error)

	// IsProtonAddress reports whether email is a Proton account address,
	// used by sharing management to partition invitation targets.
	IsProtonAddress(ctx context.Context, email string) (bool, error)

	// OwnAddressKey returns the calling user's own private address key,
	// used to sign outgoing encrypted payloads.
	OwnAddressKey(ctx context.Context) (cryptoprimitives.Key, error)
}
