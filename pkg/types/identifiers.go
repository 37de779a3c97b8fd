package types

// VolumeID identifies the top-level unit of ownership a node belongs to.
type VolumeID string

// ShareID identifies the access-control object attached to a node.
type ShareID string

// NodeUID is the composite "<volumeId>~<nodeId>" identifier. Use
// pkg/uidcodec to build and split it; this type exists so signatures read
// clearly and callers don't pass a share UID where a node UID belongs.
type NodeUID string

// RevisionUID is the composite "<volumeId>~<nodeId>~<revisionId>" identifier.
type RevisionUID string

// InvitationUID is the composite "<shareId>~<invitationId>" identifier.
type InvitationUID string

// MemberUID is the composite "<shareId>~<memberId>" identifier.
type MemberUID string

// PublicLinkUID is the composite "<shareId>~<publicLinkId>" identifier.
type PublicLinkUID string

// DeviceUID is the composite "<volumeId>~<deviceId>" identifier.
type DeviceUID string

// NodeType distinguishes the two kinds of node.
type NodeType int

const (
	NodeTypeFile NodeType = iota
	NodeTypeFolder
)

func (t NodeType) String() string {
	if t == NodeTypeFolder {
		return "folder"
	}
	return "file"
}

// Role is a membership's access level on a share.
type Role int

const (
	RoleViewer Role = iota
	RoleEditor
	RoleAdmin
)

// RevisionState distinguishes the single active revision of a file from
// its superseded history.
type RevisionState int

const (
	RevisionStateActive RevisionState = iota
	RevisionStateSuperseded
)
