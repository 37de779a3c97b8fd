package drivecore

import (
	"context"
	"sync"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// shareKeyRegistry is the in-memory nodesaccess.ShareKeyResolver this
// package owns. Populating it is deliberately left to the caller:
// unwrapping an invitation's armored session key needs the invitee's own
// address private key, which belongs to the out-of-scope account/key
// directory, not this module. RegisterShareKey is how a caller that has
// already done that unwrap hands the resulting key to the node-decryption
// and rename/move pipelines that need it.
type shareKeyRegistry struct {
	mu   sync.RWMutex
	keys map[types.ShareID]cryptoprimitives.Key
}

func newShareKeyRegistry() *shareKeyRegistry {
	return &shareKeyRegistry{keys: make(map[types.ShareID]cryptoprimitives.Key)}
}

// SharePrivateKey implements nodesaccess.ShareKeyResolver.
func (r *shareKeyRegistry) SharePrivateKey(_ context.Context, shareID types.ShareID) (cryptoprimitives.Key, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.keys[shareID]
	if !ok {
		return cryptoprimitives.Key{}, apperror.NewNotFound("share", string(shareID))
	}
	return key, nil
}

func (r *shareKeyRegistry) set(shareID types.ShareID, key cryptoprimitives.Key) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[shareID] = key
}
