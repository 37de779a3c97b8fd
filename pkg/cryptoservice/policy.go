package cryptoservice

import (
	"fmt"

	"github.com/protonmail/drive-node-core/pkg/cryptoprimitives"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// resolveAuthor implements the signature policy helper of §4.6: given a
// verification status, any verification error, the claimed signer email,
// and whether verification keys were even available, it produces an
// Author that is never raised as an exception.
func resolveAuthor(status cryptoprimitives.VerificationStatus, verifyErr error, claimedAuthor *string, keysUnavailable bool) types.Author {
	if status == cryptoprimitives.SignatureAndValid {
		if claimedAuthor == nil {
			return types.AnonymousAuthor()
		}
		return types.AuthoredBy(*claimedAuthor)
	}
	if claimedAuthor == nil && keysUnavailable {
		return types.AnonymousAuthor()
	}

	reason := describeFailure(status, verifyErr)
	return types.Errored[types.AuthorEmail](fmt.Errorf("%s", reason))
}

func describeFailure(status cryptoprimitives.VerificationStatus, verifyErr error) string {
	switch status {
	case cryptoprimitives.SignatureNotPresent:
		return "signature missing"
	case cryptoprimitives.SignatureAndInvalid:
		return "signature did not verify against any known key"
	case cryptoprimitives.NoVerificationKeys:
		return "no verification keys available"
	default:
		if verifyErr != nil {
			return verifyErr.Error()
		}
		return "signature could not be verified"
	}
}

// worseAuthor picks the "worse" of two Author results per the priority
// {content-key, hash-key, folder-attrs} over the base key author: the
// first non-ok result wins, else the base ok result stands.
func worseAuthor(base types.Author, candidates ...types.Author) types.Author {
	for _, c := range candidates {
		if !c.OK() {
			return c
		}
	}
	return base
}
