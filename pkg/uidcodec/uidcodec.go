package uidcodec

import (
	"fmt"
	"strings"
)

const delimiter = "~"

// FormatError is returned when a UID has the wrong arity or an empty
// component for the shape being decoded.
type FormatError struct {
	UID    string
	Kind   string
	Arity  int
	Actual int
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("uidcodec: %q is not a valid %s UID (want %d %s-delimited parts, got %d)",
		e.UID, e.Kind, e.Arity, delimiter, e.Actual)
}

func split(uid, kind string, arity int) ([]string, error) {
	parts := strings.Split(uid, delimiter)
	if len(parts) != arity {
		return nil, &FormatError{UID: uid, Kind: kind, Arity: arity, Actual: len(parts)}
	}
	for _, p := range parts {
		if p == "" {
			return nil, &FormatError{UID: uid, Kind: kind, Arity: arity, Actual: len(parts)}
		}
	}
	return parts, nil
}

func join(parts ...string) string {
	return strings.Join(parts, delimiter)
}

// MakeNodeUID encodes a volume id and node id into a node UID.
func MakeNodeUID(volumeID, nodeID string) string { return join(volumeID, nodeID) }

// SplitNodeUID decodes a node UID of the form <volumeId>~<nodeId>.
func SplitNodeUID(uid string) (volumeID, nodeID string, err error) {
	parts, err := split(uid, "node", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// MakeRevisionUID encodes a volume id, node id and revision id into a
// revision UID.
func MakeRevisionUID(volumeID, nodeID, revisionID string) string {
	return join(volumeID, nodeID, revisionID)
}

// SplitRevisionUID decodes a revision UID of the form
// <volumeId>~<nodeId>~<revisionId>.
func SplitRevisionUID(uid string) (volumeID, nodeID, revisionID string, err error) {
	parts, err := split(uid, "revision", 3)
	if err != nil {
		return "", "", "", err
	}
	return parts[0], parts[1], parts[2], nil
}

// MakeInvitationUID encodes a share id and invitation id into an
// invitation UID.
func MakeInvitationUID(shareID, invitationID string) string { return join(shareID, invitationID) }

// SplitInvitationUID decodes an invitation UID of the form
// <shareId>~<invitationId>.
func SplitInvitationUID(uid string) (shareID, invitationID string, err error) {
	parts, err := split(uid, "invitation", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// MakeMemberUID encodes a share id and member id into a member UID.
func MakeMemberUID(shareID, memberID string) string { return join(shareID, memberID) }

// SplitMemberUID decodes a member UID of the form <shareId>~<memberId>.
func SplitMemberUID(uid string) (shareID, memberID string, err error) {
	parts, err := split(uid, "member", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// MakePublicLinkUID encodes a share id and public link id into a public
// link UID.
func MakePublicLinkUID(shareID, publicLinkID string) string { return join(shareID, publicLinkID) }

// SplitPublicLinkUID decodes a public link UID of the form
// <shareId>~<publicLinkId>.
func SplitPublicLinkUID(uid string) (shareID, publicLinkID string, err error) {
	parts, err := split(uid, "public link", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// MakeDeviceUID encodes a volume id and device id into a device UID.
func MakeDeviceUID(volumeID, deviceID string) string { return join(volumeID, deviceID) }

// SplitDeviceUID decodes a device UID of the form <volumeId>~<deviceId>.
func SplitDeviceUID(uid string) (volumeID, deviceID string, err error) {
	parts, err := split(uid, "device", 2)
	if err != nil {
		return "", "", err
	}
	return parts[0], parts[1], nil
}

// VolumeOf extracts the leading volume id from any UID shape that begins
// with one (node, revision, device). It is used to compute a node's tree
// event scope without knowing which concrete shape the UID has.
func VolumeOf(uid string) (string, error) {
	parts := strings.SplitN(uid, delimiter, 2)
	if len(parts) < 2 || parts[0] == "" {
		return "", &FormatError{UID: uid, Kind: "volume-prefixed", Arity: 2, Actual: len(parts)}
	}
	return parts[0], nil
}
