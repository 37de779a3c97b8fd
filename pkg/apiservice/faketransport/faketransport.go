// Package faketransport is a hand-written Transport test double, in the
// style of the teacher's own hand-written fakes rather than a generated
// mock library. It keeps everything in memory and lets tests pre-seed
// nodes, pages, and failures.
package faketransport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/protonmail/drive-node-core/pkg/apiservice"
	"github.com/protonmail/drive-node-core/pkg/types"
)

// Transport is an in-memory apiservice.Transport double.
type Transport struct {
	mu sync.Mutex

	Nodes        map[types.NodeUID]types.EncryptedNode
	Children     map[types.NodeUID][]types.NodeUID
	Trashed      map[types.VolumeID][]types.NodeUID
	NextFolderID int

	SharedByMe   []types.NodeUID
	SharedWithMe []types.NodeUID

	Invitations map[types.ShareID][]types.EncryptedInvitation
	External    map[types.ShareID][]types.EncryptedInvitation
	Members     map[types.ShareID][]types.EncryptedMember
	PublicLinks map[types.ShareID][]types.EncryptedPublicLink
	Shares      map[types.NodeUID]types.ShareID
	NextShareID int
	NextSubID   int

	// FailNext, if set, is returned (and cleared) on the next call to any
	// method, to test error propagation.
	FailNext error
}

// New builds an empty Transport.
func New() *Transport {
	return &Transport{
		Nodes:       make(map[types.NodeUID]types.EncryptedNode),
		Children:    make(map[types.NodeUID][]types.NodeUID),
		Trashed:     make(map[types.VolumeID][]types.NodeUID),
		Invitations: make(map[types.ShareID][]types.EncryptedInvitation),
		External:    make(map[types.ShareID][]types.EncryptedInvitation),
		Members:     make(map[types.ShareID][]types.EncryptedMember),
		PublicLinks: make(map[types.ShareID][]types.EncryptedPublicLink),
		Shares:      make(map[types.NodeUID]types.ShareID),
	}
}

var _ apiservice.Transport = (*Transport)(nil)

func (t *Transport) takeFailure() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.FailNext
	t.FailNext = nil
	return err
}

func (t *Transport) GetNode(_ context.Context, uid types.NodeUID) (types.EncryptedNode, error) {
	if err := t.takeFailure(); err != nil {
		return types.EncryptedNode{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.Nodes[uid]
	if !ok {
		return types.EncryptedNode{}, fmt.Errorf("node %s not found", uid)
	}
	return node, nil
}

func (t *Transport) GetNodes(_ context.Context, _ types.VolumeID, uids []types.NodeUID) ([]types.EncryptedNode, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []types.EncryptedNode
	for _, uid := range uids {
		if node, ok := t.Nodes[uid]; ok {
			out = append(out, node)
		}
	}
	return out, nil
}

func (t *Transport) GetChildrenPage(_ context.Context, parentUID types.NodeUID, _ string) (apiservice.ChildrenPage, error) {
	if err := t.takeFailure(); err != nil {
		return apiservice.ChildrenPage{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return apiservice.ChildrenPage{NodeUIDs: t.Children[parentUID]}, nil
}

func (t *Transport) GetTrashedPage(_ context.Context, volumeID types.VolumeID, page int) (apiservice.TrashedPage, error) {
	if err := t.takeFailure(); err != nil {
		return apiservice.TrashedPage{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if page > 0 {
		return apiservice.TrashedPage{}, nil
	}
	return apiservice.TrashedPage{NodeUIDs: t.Trashed[volumeID]}, nil
}

func (t *Transport) RenameNode(_ context.Context, uid types.NodeUID, _ string, payload apiservice.RenamePayload) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.Nodes[uid]
	if !ok {
		return fmt.Errorf("node %s not found", uid)
	}
	node.EncryptedName = payload.EncryptedName
	node.Hash = payload.Hash
	node.Crypto.NameSignatureEmail = payload.NameSignatureEmail
	t.Nodes[uid] = node
	return nil
}

func (t *Transport) MoveNode(_ context.Context, uid types.NodeUID, _ string, payload apiservice.MovePayload) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	node, ok := t.Nodes[uid]
	if !ok {
		return fmt.Errorf("node %s not found", uid)
	}
	newParent := payload.NewParentUID
	node.ParentUID = &newParent
	node.EncryptedName = payload.EncryptedName
	node.Hash = payload.Hash
	t.Nodes[uid] = node
	return nil
}

func (t *Transport) batchResults(uids []types.NodeUID) []apiservice.UIDResult {
	out := make([]apiservice.UIDResult, len(uids))
	for i, uid := range uids {
		out[i] = apiservice.UIDResult{UID: uid, Code: apiservice.CodeOK}
	}
	return out
}

func (t *Transport) TrashNodes(_ context.Context, uids []types.NodeUID) ([]apiservice.UIDResult, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, uid := range uids {
		if node, ok := t.Nodes[uid]; ok {
			now := node.CreationTime
			node.TrashTime = &now
			t.Nodes[uid] = node
		}
	}
	return t.batchResults(uids), nil
}

func (t *Transport) RestoreNodes(_ context.Context, uids []types.NodeUID) ([]apiservice.UIDResult, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, uid := range uids {
		if node, ok := t.Nodes[uid]; ok {
			node.TrashTime = nil
			t.Nodes[uid] = node
		}
	}
	return t.batchResults(uids), nil
}

func (t *Transport) DeleteNodes(_ context.Context, uids []types.NodeUID) ([]apiservice.UIDResult, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, uid := range uids {
		delete(t.Nodes, uid)
	}
	return t.batchResults(uids), nil
}

func (t *Transport) CreateFolder(_ context.Context, parentUID types.NodeUID, payload apiservice.CreateFolderPayload) (types.NodeUID, error) {
	if err := t.takeFailure(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	volumeID, _, _ := splitVolume(parentUID)
	t.NextFolderID++
	uid := types.NodeUID(fmt.Sprintf("%s~folder%d", volumeID, t.NextFolderID))
	t.Nodes[uid] = types.EncryptedNode{
		UID:           uid,
		ParentUID:     &parentUID,
		Type:          types.NodeTypeFolder,
		Hash:          payload.Hash,
		EncryptedName: payload.EncryptedName,
		Crypto: types.EncryptedCrypto{
			ArmoredKey:                 payload.ArmoredKey,
			ArmoredPassphrase:          payload.ArmoredPassphrase,
			ArmoredPassphraseSignature: payload.ArmoredPassphraseSignature,
			SignatureEmail:             payload.SignatureEmail,
			NameSignatureEmail:         payload.NameSignatureEmail,
			Folder: &types.FolderCrypto{
				ArmoredHashKey:       payload.ArmoredHashKey,
				ArmoredExtendedAttrs: payload.ArmoredExtendedAttrs,
			},
		},
	}
	t.Children[parentUID] = append(t.Children[parentUID], uid)
	return uid, nil
}

func splitVolume(uid types.NodeUID) (string, string, bool) {
	s := string(uid)
	for i := 0; i < len(s); i++ {
		if s[i] == '~' {
			return s[:i], s[i+1:], true
		}
	}
	return s, "", false
}

func (t *Transport) GetRevisions(context.Context, types.NodeUID) ([]types.EncryptedActiveRevision, error) {
	return nil, nil
}
func (t *Transport) RestoreRevision(context.Context, types.RevisionUID) error { return nil }
func (t *Transport) DeleteRevision(context.Context, types.RevisionUID) error  { return nil }

// SharedPageSize bounds how many uids GetSharedByMePage/GetSharedWithMePage
// return per call, so tests can exercise multi-page iteration.
const SharedPageSize = 2

func (t *Transport) GetSharedByMePage(_ context.Context, anchor string) ([]types.NodeUID, string, bool, error) {
	if err := t.takeFailure(); err != nil {
		return nil, "", false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return pageUIDs(t.SharedByMe, anchor)
}

func (t *Transport) GetSharedWithMePage(_ context.Context, anchor string) ([]types.NodeUID, string, bool, error) {
	if err := t.takeFailure(); err != nil {
		return nil, "", false, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return pageUIDs(t.SharedWithMe, anchor)
}

func pageUIDs(all []types.NodeUID, anchor string) ([]types.NodeUID, string, bool, error) {
	start := 0
	if anchor != "" {
		if _, err := fmt.Sscanf(anchor, "%d", &start); err != nil {
			return nil, "", false, fmt.Errorf("invalid anchor %q", anchor)
		}
	}
	if start >= len(all) {
		return nil, "", false, nil
	}
	end := start + SharedPageSize
	if end > len(all) {
		end = len(all)
	}
	hasMore := end < len(all)
	next := ""
	if hasMore {
		next = fmt.Sprintf("%d", end)
	}
	return all[start:end], next, hasMore, nil
}

func (t *Transport) GetInvitations(_ context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.EncryptedInvitation(nil), t.Invitations[shareID]...), nil
}

func (t *Transport) GetExternalInvitations(_ context.Context, shareID types.ShareID) ([]types.EncryptedInvitation, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.EncryptedInvitation(nil), t.External[shareID]...), nil
}

func (t *Transport) GetMembers(_ context.Context, shareID types.ShareID) ([]types.EncryptedMember, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.EncryptedMember(nil), t.Members[shareID]...), nil
}

func (t *Transport) GetPublicLinks(_ context.Context, shareID types.ShareID) ([]types.EncryptedPublicLink, error) {
	if err := t.takeFailure(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]types.EncryptedPublicLink(nil), t.PublicLinks[shareID]...), nil
}

func (t *Transport) GetBookmarks(context.Context) ([]types.EncryptedBookmark, error) { return nil, nil }

func (t *Transport) CreateShare(_ context.Context, nodeUID types.NodeUID) (types.ShareID, error) {
	if err := t.takeFailure(); err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if shareID, ok := t.Shares[nodeUID]; ok {
		return shareID, nil
	}
	t.NextShareID++
	shareID := types.ShareID(fmt.Sprintf("share%d", t.NextShareID))
	t.Shares[nodeUID] = shareID
	if node, ok := t.Nodes[nodeUID]; ok {
		node.ShareID = &shareID
		node.IsShared = true
		t.Nodes[nodeUID] = node
	}
	return shareID, nil
}

func (t *Transport) DeleteShare(_ context.Context, shareID types.ShareID) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.Invitations, shareID)
	delete(t.External, shareID)
	delete(t.Members, shareID)
	delete(t.PublicLinks, shareID)
	for nodeUID, id := range t.Shares {
		if id == shareID {
			delete(t.Shares, nodeUID)
			if node, ok := t.Nodes[nodeUID]; ok {
				node.ShareID = nil
				node.IsShared = false
				t.Nodes[nodeUID] = node
			}
		}
	}
	return nil
}

func (t *Transport) nextSubID() int {
	t.NextSubID++
	return t.NextSubID
}

func (t *Transport) CreateInvitation(_ context.Context, shareID types.ShareID, email string, role types.Role, armoredSessionKey string, external bool) (types.EncryptedInvitation, error) {
	if err := t.takeFailure(); err != nil {
		return types.EncryptedInvitation{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	inv := types.EncryptedInvitation{
		UID:          types.InvitationUID(fmt.Sprintf("%s~invite%d", shareID, t.nextSubID())),
		InviteeEmail: email,
		InviterEmail: "alice@example.com",
		Role:         role,
		CreateTime:   time.Now(),
		Armored:      armoredSessionKey,
		External:     external,
	}
	if external {
		t.External[shareID] = append(t.External[shareID], inv)
	} else {
		t.Invitations[shareID] = append(t.Invitations[shareID], inv)
	}
	return inv, nil
}

func (t *Transport) UpdateInvitation(_ context.Context, invitationUID types.InvitationUID, role types.Role) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.Invitations {
		for i, inv := range list {
			if inv.UID == invitationUID {
				list[i].Role = role
				t.Invitations[shareID] = list
				return nil
			}
		}
	}
	for shareID, list := range t.External {
		for i, inv := range list {
			if inv.UID == invitationUID {
				list[i].Role = role
				t.External[shareID] = list
				return nil
			}
		}
	}
	return fmt.Errorf("invitation %s not found", invitationUID)
}

func (t *Transport) DeleteInvitation(_ context.Context, invitationUID types.InvitationUID) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.Invitations {
		for i, inv := range list {
			if inv.UID == invitationUID {
				t.Invitations[shareID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	for shareID, list := range t.External {
		for i, inv := range list {
			if inv.UID == invitationUID {
				t.External[shareID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (t *Transport) ResendInvitation(context.Context, types.InvitationUID) error { return nil }

func (t *Transport) UpdateMember(_ context.Context, memberUID types.MemberUID, role types.Role) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.Members {
		for i, member := range list {
			if member.UID == memberUID {
				list[i].Role = role
				t.Members[shareID] = list
				return nil
			}
		}
	}
	return fmt.Errorf("member %s not found", memberUID)
}

func (t *Transport) DeleteMember(_ context.Context, memberUID types.MemberUID) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.Members {
		for i, member := range list {
			if member.UID == memberUID {
				t.Members[shareID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}

func (t *Transport) CreatePublicLink(_ context.Context, shareID types.ShareID, armoredPassword string, passwordLength int) (types.EncryptedPublicLink, error) {
	if err := t.takeFailure(); err != nil {
		return types.EncryptedPublicLink{}, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	link := types.EncryptedPublicLink{
		UID:             types.PublicLinkUID(fmt.Sprintf("%s~link%d", shareID, t.nextSubID())),
		URL:             fmt.Sprintf("https://example.com/%s/link", shareID),
		ArmoredPassword: armoredPassword,
		PasswordType:    types.PublicLinkPasswordGenerated,
		PasswordLength:  passwordLength,
	}
	t.PublicLinks[shareID] = append(t.PublicLinks[shareID], link)
	return link, nil
}

func (t *Transport) UpdatePublicLink(_ context.Context, publicLinkUID types.PublicLinkUID, expirationTime *int64) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.PublicLinks {
		for i, link := range list {
			if link.UID == publicLinkUID {
				if expirationTime != nil {
					when := time.Unix(*expirationTime, 0)
					list[i].ExpirationTime = &when
				} else {
					list[i].ExpirationTime = nil
				}
				t.PublicLinks[shareID] = list
				return nil
			}
		}
	}
	return fmt.Errorf("public link %s not found", publicLinkUID)
}

func (t *Transport) DeletePublicLink(_ context.Context, publicLinkUID types.PublicLinkUID) error {
	if err := t.takeFailure(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for shareID, list := range t.PublicLinks {
		for i, link := range list {
			if link.UID == publicLinkUID {
				t.PublicLinks[shareID] = append(list[:i], list[i+1:]...)
				return nil
			}
		}
	}
	return nil
}
