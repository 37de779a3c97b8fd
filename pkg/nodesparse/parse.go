package nodesparse

import (
	"unicode/utf8"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/types"
	"github.com/protonmail/drive-node-core/pkg/uidcodec"
)

// maxNameLength mirrors the common filesystem path-component limit; the
// backend itself never accepts a longer name, so this is the practical
// ceiling regardless of host platform.
const maxNameLength = 255

// ValidateNodeName applies the name rules of the external interface: non
// empty, within the length limit, not "." or "..", and free of path
// separators.
func ValidateNodeName(name string) error {
	if name == "" {
		return &apperror.InvalidNameError{Name: name, Reason: "name must not be empty"}
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return &apperror.InvalidNameError{Name: name, Reason: "name exceeds the maximum length"}
	}
	if name == "." || name == ".." {
		return &apperror.InvalidNameError{Name: name, Reason: `name must not be "." or ".."`}
	}
	for _, r := range name {
		if r == '/' || r == '\\' {
			return &apperror.InvalidNameError{Name: name, Reason: "name must not contain a path separator"}
		}
	}
	return nil
}

// ParseNode normalizes a crypto-service decrypted node into its final
// shape: validates the name (if it decrypted successfully), clears the
// stale flag, and fills treeEventScopeId. Extended attributes and active-
// revision merging already happened in the crypto service, since parsing
// them requires the plaintext attributes blob produced there; this stage
// only re-validates the name against the plaintext the crypto service
// already recovered.
func ParseNode(node *types.DecryptedNode) *types.DecryptedNode {
	if name, ok := node.Name.Value(); ok {
		if err := ValidateNodeName(name); err != nil {
			node.Name = types.Errored[string](err)
		}
	}

	node.IsStale = false

	if volumeID, err := uidcodec.VolumeOf(string(node.UID)); err == nil {
		node.TreeEventScopeID = types.VolumeID(volumeID)
	}

	return node
}
