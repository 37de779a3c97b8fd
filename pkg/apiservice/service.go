package apiservice

import (
	"context"

	"github.com/google/uuid"

	"github.com/protonmail/drive-node-core/pkg/apperror"
	"github.com/protonmail/drive-node-core/pkg/logging"
	"github.com/protonmail/drive-node-core/pkg/streamutil"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// Service wraps a Transport, attaching a correlation id to every call for
// log correlation and mapping transport failures to apperror.TransportError.
type Service struct {
	transport Transport
}

// New builds a Service over transport.
func New(transport Transport) *Service {
	return &Service{transport: transport}
}

func (s *Service) withCorrelation(ctx context.Context, op string) (context.Context, func(err error)) {
	id := uuid.New().String()
	logger := logging.WithCorrelationID(id)
	logger.Debug().Str("op", op).Msg("api call starting")
	return ctx, func(err error) {
		if err != nil {
			logger.Warn().Str("op", op).Err(err).Msg("api call failed")
		}
	}
}

// GetNode fetches a single node.
func (s *Service) GetNode(ctx context.Context, uid types.NodeUID) (types.EncryptedNode, error) {
	ctx, done := s.withCorrelation(ctx, "getNode")
	node, err := s.transport.GetNode(ctx, uid)
	done(err)
	if err != nil {
		return types.EncryptedNode{}, apperror.NewTransport("getNode", err)
	}
	return node, nil
}

// GetNodes fetches multiple nodes bounded to a single volume.
func (s *Service) GetNodes(ctx context.Context, volumeID types.VolumeID, uids []types.NodeUID) ([]types.EncryptedNode, error) {
	ctx, done := s.withCorrelation(ctx, "getNodes")
	nodes, err := s.transport.GetNodes(ctx, volumeID, uids)
	done(err)
	if err != nil {
		return nil, apperror.NewTransport("getNodes", err)
	}
	return nodes, nil
}

// IterateNodes yields each requested node in backend order via GetNodes,
// excluding uids the backend refuses. This does not page; callers
// requesting more than a reasonable batch should chunk uids themselves
// (nodesaccess does, at BATCH_LOADING_SIZE).
func (s *Service) IterateNodes(ctx context.Context, volumeID types.VolumeID, uids []types.NodeUID) *streamutil.Stream[types.EncryptedNode] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(types.EncryptedNode, error) bool) {
		nodes, err := s.GetNodes(ctx, volumeID, uids)
		if err != nil {
			emit(types.EncryptedNode{}, err)
			return
		}
		for _, n := range nodes {
			if !emit(n, nil) {
				return
			}
		}
	})
}

// IterateChildrenNodeUids pages through a folder's children by anchor.
func (s *Service) IterateChildrenNodeUids(ctx context.Context, parentUID types.NodeUID) *streamutil.Stream[types.NodeUID] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(types.NodeUID, error) bool) {
		anchor := ""
		for {
			ctx, done := s.withCorrelation(ctx, "getChildrenPage")
			page, err := s.transport.GetChildrenPage(ctx, parentUID, anchor)
			done(err)
			if err != nil {
				emit("", apperror.NewTransport("getChildrenPage", err))
				return
			}
			for _, uid := range page.NodeUIDs {
				if !emit(uid, nil) {
					return
				}
			}
			if !page.HasMore {
				return
			}
			anchor = page.NextAnchor
		}
	})
}

// IterateTrashedNodeUids pages through a volume's trash by page number,
// preserving the historical quirk that pagination stops on the first
// fully empty page rather than trusting HasMore.
func (s *Service) IterateTrashedNodeUids(ctx context.Context, volumeID types.VolumeID) *streamutil.Stream[types.NodeUID] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(types.NodeUID, error) bool) {
		page := 0
		for {
			ctx, done := s.withCorrelation(ctx, "getTrashedPage")
			result, err := s.transport.GetTrashedPage(ctx, volumeID, page)
			done(err)
			if err != nil {
				emit("", apperror.NewTransport("getTrashedPage", err))
				return
			}
			if len(result.NodeUIDs) == 0 {
				return
			}
			for _, uid := range result.NodeUIDs {
				if !emit(uid, nil) {
					return
				}
			}
			page++
		}
	})
}

func (s *Service) RenameNode(ctx context.Context, uid types.NodeUID, originalHash string, payload RenamePayload) error {
	ctx, done := s.withCorrelation(ctx, "renameNode")
	err := s.transport.RenameNode(ctx, uid, originalHash, payload)
	done(err)
	if err != nil {
		return apperror.NewTransport("renameNode", err)
	}
	return nil
}

func (s *Service) MoveNode(ctx context.Context, uid types.NodeUID, originalHash string, payload MovePayload) error {
	ctx, done := s.withCorrelation(ctx, "moveNode")
	err := s.transport.MoveNode(ctx, uid, originalHash, payload)
	done(err)
	if err != nil {
		return apperror.NewTransport("moveNode", err)
	}
	return nil
}

func (s *Service) TrashNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[UIDResult], error) {
	return s.batchNodeOp(ctx, "trashNodes", s.transport.TrashNodes, uids)
}

func (s *Service) RestoreNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[UIDResult], error) {
	return s.batchNodeOp(ctx, "restoreNodes", s.transport.RestoreNodes, uids)
}

func (s *Service) DeleteNodes(ctx context.Context, uids []types.NodeUID) (*streamutil.Stream[UIDResult], error) {
	return s.batchNodeOp(ctx, "deleteNodes", s.transport.DeleteNodes, uids)
}

func (s *Service) batchNodeOp(ctx context.Context, op string, call func(context.Context, []types.NodeUID) ([]UIDResult, error), uids []types.NodeUID) (*streamutil.Stream[UIDResult], error) {
	ctx, done := s.withCorrelation(ctx, op)
	results, err := call(ctx, uids)
	done(err)
	if err != nil {
		return nil, apperror.NewTransport(op, err)
	}
	return streamutil.New(ctx, func(ctx context.Context, emit func(UIDResult, error) bool) {
		for _, r := range results {
			if !emit(r, nil) {
				return
			}
		}
	}), nil
}

func (s *Service) CreateFolder(ctx context.Context, parentUID types.NodeUID, payload CreateFolderPayload) (types.NodeUID, error) {
	ctx, done := s.withCorrelation(ctx, "createFolder")
	uid, err := s.transport.CreateFolder(ctx, parentUID, payload)
	done(err)
	if err != nil {
		return "", apperror.NewTransport("createFolder", err)
	}
	return uid, nil
}

func (s *Service) GetRevisions(ctx context.Context, nodeUID types.NodeUID) ([]types.EncryptedActiveRevision, error) {
	ctx, done := s.withCorrelation(ctx, "getRevisions")
	revisions, err := s.transport.GetRevisions(ctx, nodeUID)
	done(err)
	if err != nil {
		return nil, apperror.NewTransport("getRevisions", err)
	}
	return revisions, nil
}

func (s *Service) RestoreRevision(ctx context.Context, revisionUID types.RevisionUID) error {
	ctx, done := s.withCorrelation(ctx, "restoreRevision")
	err := s.transport.RestoreRevision(ctx, revisionUID)
	done(err)
	if err != nil {
		return apperror.NewTransport("restoreRevision", err)
	}
	return nil
}

func (s *Service) DeleteRevision(ctx context.Context, revisionUID types.RevisionUID) error {
	ctx, done := s.withCorrelation(ctx, "deleteRevision")
	err := s.transport.DeleteRevision(ctx, revisionUID)
	done(err)
	if err != nil {
		return apperror.NewTransport("deleteRevision", err)
	}
	return nil
}

// IterateSharedByMe pages through the caller's shared-by-me listing.
func (s *Service) IterateSharedByMe(ctx context.Context) *streamutil.Stream[types.NodeUID] {
	return s.pagedNodeUIDs(ctx, "getSharedByMePage", s.transport.GetSharedByMePage)
}

// IterateSharedWithMe pages through the caller's shared-with-me listing.
func (s *Service) IterateSharedWithMe(ctx context.Context) *streamutil.Stream[types.NodeUID] {
	return s.pagedNodeUIDs(ctx, "getSharedWithMePage", s.transport.GetSharedWithMePage)
}

func (s *Service) pagedNodeUIDs(ctx context.Context, op string, call func(context.Context, string) ([]types.NodeUID, string, bool, error)) *streamutil.Stream[types.NodeUID] {
	return streamutil.New(ctx, func(ctx context.Context, emit func(types.NodeUID, error) bool) {
		anchor := ""
		for {
			ctx, done := s.withCorrelation(ctx, op)
			uids, next, hasMore, err := call(ctx, anchor)
			done(err)
			if err != nil {
				emit("", apperror.NewTransport(op, err))
				return
			}
			for _, uid := range uids {
				if !emit(uid, nil) {
					return
				}
			}
			if !hasMore {
				return
			}
			anchor = next
		}
	})
}

func (s *Service) GetInvitations(ctx context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error) {
	return s.transport.GetInvitations(ctx, shareID)
}

func (s *Service) GetExternalInvitations(ctx context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error) {
	return s.transport.GetExternalInvitations(ctx, shareID)
}

func (s *Service) GetMembers(ctx context.Context, shareID types.ShareID) ([]types.EncryptedMember, error) {
	return s.transport.GetMembers(ctx, shareID)
}

func (s *Service) GetPublicLinks(ctx context.Context, shareID types.ShareID) ([]types.EncryptedPublicLink, error) {
	return s.transport.GetPublicLinks(ctx, shareID)
}

func (s *Service) GetBookmarks(ctx context.Context) ([]types.EncryptedBookmark, error) {
	return s.transport.GetBookmarks(ctx)
}

func (s *Service) CreateShare(ctx context.Context, nodeUID types.NodeUID) (types.ShareID, error) {
	id, err := s.transport.CreateShare(ctx, nodeUID)
	if err != nil {
		return "", apperror.NewTransport("createShare", err)
	}
	return id, nil
}

func (s *Service) DeleteShare(ctx context.Context, shareID types.ShareID) error {
	if err := s.transport.DeleteShare(ctx, shareID); err != nil {
		return apperror.NewTransport("deleteShare", err)
	}
	return nil
}

func (s *Service) CreateInvitation(ctx context.Context, shareID types.ShareID, email string, role types.Role, armoredSessionKey string, external bool) (types.EncryptedInvitation, error) {
	inv, err := s.transport.CreateInvitation(ctx, shareID, email, role, armoredSessionKey, external)
	if err != nil {
		return types.EncryptedInvitation{}, apperror.NewTransport("createInvitation", err)
	}
	return inv, nil
}

func (s *Service) UpdateInvitation(ctx context.Context, invitationUID types.InvitationUID, role types.Role) error {
	if err := s.transport.UpdateInvitation(ctx, invitationUID, role); err != nil {
		return apperror.NewTransport("updateInvitation", err)
	}
	return nil
}

func (s *Service) DeleteInvitation(ctx context.Context, invitationUID types.InvitationUID) error {
	if err := s.transport.DeleteInvitation(ctx, invitationUID); err != nil {
		return apperror.NewTransport("deleteInvitation", err)
	}
	return nil
}

func (s *Service) ResendInvitation(ctx context.Context, invitationUID types.InvitationUID) error {
	if err := s.transport.ResendInvitation(ctx, invitationUID); err != nil {
		return apperror.NewTransport("resendInvitation", err)
	}
	return nil
}

func (s *Service) UpdateMember(ctx context.Context, memberUID types.MemberUID, role types.Role) error {
	if err := s.transport.UpdateMember(ctx, memberUID, role); err != nil {
		return apperror.NewTransport("updateMember", err)
	}
	return nil
}

func (s *Service) DeleteMember(ctx context.Context, memberUID types.MemberUID) error {
	if err := s.transport.DeleteMember(ctx, memberUID); err != nil {
		return apperror.NewTransport("deleteMember", err)
	}
	return nil
}

func (s *Service) CreatePublicLink(ctx context.Context, shareID types.ShareID, armoredPassword string, passwordLength int) (types.EncryptedPublicLink, error) {
	link, err := s.transport.CreatePublicLink(ctx, shareID, armoredPassword, passwordLength)
	if err != nil {
		return types.EncryptedPublicLink{}, apperror.NewTransport("createPublicLink", err)
	}
	return link, nil
}

func (s *Service) UpdatePublicLink(ctx context.Context, publicLinkUID types.PublicLinkUID, expirationTime *int64) error {
	if err := s.transport.UpdatePublicLink(ctx, publicLinkUID, expirationTime); err != nil {
		return apperror.NewTransport("updatePublicLink", err)
	}
	return nil
}

func (s *Service) DeletePublicLink(ctx context.Context, publicLinkUID types.PublicLinkUID) error {
	if err := s.transport.DeletePublicLink(ctx, publicLinkUID); err != nil {
		return apperror.NewTransport("deletePublicLink", err)
	}
	return nil
}
