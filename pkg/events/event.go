package events

import "github.com/protonmail/drive-node-core/pkg/types"

// Type discriminates the external event feed's event kinds.
type Type string

const (
	TreeRefresh         Type = "treeRefresh"
	TreeRemove          Type = "treeRemove"
	NodeCreated         Type = "nodeCreated"
	NodeUpdated         Type = "nodeUpdated"
	NodeDeleted         Type = "nodeDeleted"
	SharedWithMeUpdated Type = "sharedWithMeUpdated"
)

// Event is one entry of the external tree-change feed. Only the fields
// relevant to Type are populated; see each Type's comment above for which.
type Event struct {
	Type      Type
	VolumeID  types.VolumeID // TreeRefresh, TreeRemove
	NodeUID   types.NodeUID  // NodeCreated, NodeUpdated, NodeDeleted
	ParentUID *types.NodeUID // NodeCreated, NodeUpdated
	IsShared  bool           // NodeUpdated
	IsTrashed bool           // NodeUpdated
}
