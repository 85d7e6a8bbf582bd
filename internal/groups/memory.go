package groups

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store in process. A single lock makes every method
// atomic, which is what the Postgres store gets from transactions.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      uint64
	groups   map[string]*Group
	roles    map[string]*storedRole
	members  map[memberKey]*storedMember
	requests map[string]*storedRequest
	pending  map[memberKey]string // group+user -> pending request id
	now      func() time.Time
}

type memberKey struct{ groupID, userID string }

type storedRole struct {
	Role
	seq uint64
}

type storedMember struct {
	Membership
	seq uint64
}

type storedRequest struct {
	JoinRequest
	seq uint64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups:   make(map[string]*Group),
		roles:    make(map[string]*storedRole),
		members:  make(map[memberKey]*storedMember),
		requests: make(map[string]*storedRequest),
		pending:  make(map[memberKey]string),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryStore) next() uint64 {
	s.seq++
	return s.seq
}

func (s *MemoryStore) CreateGroup(ctx context.Context, ng NewGroup) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.groups[ng.Group.ID]; ok {
		return Group{}, ErrConflict
	}
	for _, r := range ng.Roles {
		if r.GroupID != ng.Group.ID {
			return Group{}, ErrCrossGroupRole
		}
	}
	var ownerRole *Role
	for i := range ng.Roles {
		if ng.Roles[i].ID == ng.Owner.RoleID {
			ownerRole = &ng.Roles[i]
		}
	}
	if ownerRole == nil || ng.Owner.GroupID != ng.Group.ID {
		return Group{}, ErrCrossGroupRole
	}

	g := ng.Group
	s.groups[g.ID] = &g
	for _, r := range ng.Roles {
		s.roles[r.ID] = &storedRole{Role: copyRole(r), seq: s.next()}
	}
	s.members[memberKey{g.ID, ng.Owner.UserID}] = &storedMember{Membership: ng.Owner, seq: s.next()}
	return g, nil
}

func (s *MemoryStore) GetGroup(ctx context.Context, groupID string) (Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[groupID]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	return *g, nil
}

func (s *MemoryStore) UpdateGroup(ctx context.Context, groupID string, upd GroupUpdate) (Group, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return Group{}, ErrGroupNotFound
	}
	if upd.Name == nil && upd.Description == nil {
		return *g, nil
	}
	if upd.Name != nil {
		g.Name = *upd.Name
	}
	if upd.Description != nil {
		g.Description = *upd.Description
	}
	g.UpdatedAt = s.now()
	return *g, nil
}

func (s *MemoryStore) DeleteGroup(ctx context.Context, groupID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupID]; !ok {
		return ErrGroupNotFound
	}
	for id, r := range s.requests {
		if r.GroupID == groupID {
			delete(s.requests, id)
		}
	}
	for k := range s.pending {
		if k.groupID == groupID {
			delete(s.pending, k)
		}
	}
	for k := range s.members {
		if k.groupID == groupID {
			delete(s.members, k)
		}
	}
	for id, r := range s.roles {
		if r.GroupID == groupID {
			delete(s.roles, id)
		}
	}
	delete(s.groups, groupID)
	return nil
}

func (s *MemoryStore) ListGroupsForUser(ctx context.Context, userID string) ([]UserGroup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ms []*storedMember
	for k, m := range s.members {
		if k.userID == userID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })
	out := make([]UserGroup, 0, len(ms))
	for _, m := range ms {
		g := s.groups[m.GroupID]
		r := s.roles[m.RoleID]
		if g == nil || r == nil {
			continue
		}
		out = append(out, UserGroup{Group: *g, RoleID: r.ID, RoleName: r.Name})
	}
	return out, nil
}

func (s *MemoryStore) CreateRole(ctx context.Context, role Role) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[role.GroupID]; !ok {
		return Role{}, ErrGroupNotFound
	}
	if _, ok := s.roles[role.ID]; ok {
		return Role{}, ErrConflict
	}
	if role.Owner {
		for _, r := range s.roles {
			if r.GroupID == role.GroupID && r.Owner {
				return Role{}, ErrOwnerRoleProtected
			}
		}
	}
	if s.nameTakenLocked(role.GroupID, "", role.Name) {
		return Role{}, ErrRoleNameTaken
	}
	if err := s.checkParentLocked(role.GroupID, role.ID, role.ParentRoleID); err != nil {
		return Role{}, err
	}
	s.roles[role.ID] = &storedRole{Role: copyRole(role), seq: s.next()}
	return copyRole(role), nil
}

// nameTakenLocked compares case-insensitively, skipping exceptID.
func (s *MemoryStore) nameTakenLocked(groupID, exceptID, name string) bool {
	for _, r := range s.roles {
		if r.GroupID == groupID && r.ID != exceptID && strings.EqualFold(r.Name, name) {
			return true
		}
	}
	return false
}

func (s *MemoryStore) checkParentLocked(groupID, roleID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == roleID {
		return ErrInvalidInput
	}
	parent, ok := s.roles[parentID]
	if !ok {
		return ErrRoleNotFound
	}
	if parent.GroupID != groupID {
		return ErrCrossGroupRole
	}
	return nil
}

func (s *MemoryStore) GetRole(ctx context.Context, roleID string) (Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.roles[roleID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	return copyRole(r.Role), nil
}

func (s *MemoryStore) UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return Role{}, ErrRoleNotFound
	}
	if upd.GroupID != nil && *upd.GroupID != r.GroupID {
		return Role{}, ErrGroupChange
	}
	if (upd.Permissions != nil || upd.Name != nil) && r.Owner {
		return Role{}, ErrOwnerRoleProtected
	}
	if upd.Name != nil && s.nameTakenLocked(r.GroupID, r.ID, *upd.Name) {
		return Role{}, ErrRoleNameTaken
	}
	if upd.ParentRoleID != nil {
		if err := s.checkParentLocked(r.GroupID, r.ID, *upd.ParentRoleID); err != nil {
			return Role{}, err
		}
	}
	if upd.empty() {
		return copyRole(r.Role), nil
	}
	if upd.Name != nil {
		r.Name = *upd.Name
	}
	if upd.Permissions != nil {
		r.Permissions = append([]Permission(nil), (*upd.Permissions)...)
	}
	if upd.Priority != nil {
		r.Priority = *upd.Priority
	}
	if upd.ParentRoleID != nil {
		r.ParentRoleID = *upd.ParentRoleID
	}
	r.UpdatedAt = s.now()
	return copyRole(r.Role), nil
}

func (s *MemoryStore) DeleteRole(ctx context.Context, roleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.roles[roleID]
	if !ok {
		return ErrRoleNotFound
	}
	if r.Owner {
		return ErrOwnerRoleProtected
	}
	for _, m := range s.members {
		if m.RoleID == roleID {
			return ErrRoleInUse
		}
	}
	for _, child := range s.roles {
		if child.ParentRoleID == roleID {
			child.ParentRoleID = ""
		}
	}
	delete(s.roles, roleID)
	return nil
}

func (s *MemoryStore) ListRoles(ctx context.Context, groupID string) ([]Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, ErrGroupNotFound
	}
	var rs []*storedRole
	for _, r := range s.roles {
		if r.GroupID == groupID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].Priority != rs[j].Priority {
			return rs[i].Priority > rs[j].Priority
		}
		return rs[i].seq < rs[j].seq
	})
	out := make([]Role, 0, len(rs))
	for _, r := range rs {
		out = append(out, copyRole(r.Role))
	}
	return out, nil
}

// roleForGroupLocked resolves roleID and checks it may be bound to a member
// of groupID.
func (s *MemoryStore) roleForGroupLocked(groupID, roleID string) (*storedRole, error) {
	r, ok := s.roles[roleID]
	if !ok {
		return nil, ErrRoleNotFound
	}
	if r.GroupID != groupID {
		return nil, ErrCrossGroupRole
	}
	return r, nil
}

func (s *MemoryStore) AddMember(ctx context.Context, m Membership) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[m.GroupID]
	if !ok {
		return Membership{}, ErrGroupNotFound
	}
	r, err := s.roleForGroupLocked(m.GroupID, m.RoleID)
	if err != nil {
		return Membership{}, err
	}
	if r.IsOwner() && m.UserID != g.OwnerID {
		return Membership{}, ErrOwnerRoleProtected
	}
	key := memberKey{m.GroupID, m.UserID}
	if _, ok := s.members[key]; ok {
		return Membership{}, ErrAlreadyMember
	}
	s.members[key] = &storedMember{Membership: m, seq: s.next()}
	return m, nil
}

func (s *MemoryStore) GetMember(ctx context.Context, groupID, userID string) (Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	r, ok := s.roles[m.RoleID]
	if !ok {
		return Member{}, ErrRoleNotFound
	}
	return Member{Membership: m.Membership, Role: copyRole(r.Role)}, nil
}

func (s *MemoryStore) UpdateMemberRole(ctx context.Context, groupID, userID, roleID string) (Membership, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return Membership{}, ErrGroupNotFound
	}
	m, ok := s.members[memberKey{groupID, userID}]
	if !ok {
		return Membership{}, ErrMemberNotFound
	}
	r, err := s.roleForGroupLocked(groupID, roleID)
	if err != nil {
		return Membership{}, err
	}
	switch {
	case userID == g.OwnerID && !r.IsOwner():
		return Membership{}, ErrOwnerProtected
	case userID != g.OwnerID && r.IsOwner():
		return Membership{}, ErrOwnerRoleProtected
	}
	m.RoleID = roleID
	m.UpdatedAt = s.now()
	return m.Membership, nil
}

func (s *MemoryStore) RemoveMember(ctx context.Context, groupID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	key := memberKey{groupID, userID}
	if _, ok := s.members[key]; !ok {
		return ErrMemberNotFound
	}
	if userID == g.OwnerID {
		return ErrOwnerProtected
	}
	delete(s.members, key)
	return nil
}

func (s *MemoryStore) ListMembers(ctx context.Context, groupID string) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, ErrGroupNotFound
	}
	var ms []*storedMember
	for k, m := range s.members {
		if k.groupID == groupID {
			ms = append(ms, m)
		}
	}
	sort.Slice(ms, func(i, j int) bool { return ms[i].seq < ms[j].seq })
	out := make([]Member, 0, len(ms))
	for _, m := range ms {
		r, ok := s.roles[m.RoleID]
		if !ok {
			continue
		}
		out = append(out, Member{Membership: m.Membership, Role: copyRole(r.Role)})
	}
	return out, nil
}

func (s *MemoryStore) PurgeUser(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.groups {
		if g.OwnerID == userID {
			return ErrOwnerProtected
		}
	}
	for k := range s.members {
		if k.userID == userID {
			delete(s.members, k)
		}
	}
	for id, r := range s.requests {
		if r.UserID == userID {
			delete(s.requests, id)
		}
	}
	for k := range s.pending {
		if k.userID == userID {
			delete(s.pending, k)
		}
	}
	return nil
}

func (s *MemoryStore) CreateJoinRequest(ctx context.Context, req JoinRequest) (JoinRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[req.GroupID]; !ok {
		return JoinRequest{}, ErrGroupNotFound
	}
	key := memberKey{req.GroupID, req.UserID}
	if _, ok := s.members[key]; ok {
		return JoinRequest{}, ErrAlreadyMember
	}
	if _, ok := s.pending[key]; ok {
		return JoinRequest{}, ErrAlreadyPending
	}
	req.Status = JoinPending
	s.requests[req.ID] = &storedRequest{JoinRequest: req, seq: s.next()}
	s.pending[key] = req.ID
	return req, nil
}

func (s *MemoryStore) GetJoinRequest(ctx context.Context, groupID, requestID string) (JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[requestID]
	if !ok || r.GroupID != groupID {
		return JoinRequest{}, ErrRequestNotFound
	}
	return r.JoinRequest, nil
}

func (s *MemoryStore) ListJoinRequests(ctx context.Context, groupID string) ([]JoinRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.groups[groupID]; !ok {
		return nil, ErrGroupNotFound
	}
	var rs []*storedRequest
	for _, r := range s.requests {
		if r.GroupID == groupID {
			rs = append(rs, r)
		}
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i].seq > rs[j].seq })
	out := make([]JoinRequest, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.JoinRequest)
	}
	return out, nil
}

func (s *MemoryStore) ResolveJoinRequest(ctx context.Context, d Decision) (Resolution, error) {
	if !d.Status.Terminal() {
		return Resolution{}, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[d.RequestID]
	if !ok || r.GroupID != d.GroupID {
		return Resolution{}, ErrRequestNotFound
	}
	if r.Status != JoinPending {
		return Resolution{}, ErrNotPending
	}
	key := memberKey{r.GroupID, r.UserID}

	var created *Membership
	if d.Status == JoinApproved {
		role := s.roleByNameLocked(r.GroupID, DefaultRoleName)
		if role == nil {
			return Resolution{}, ErrDefaultRoleMissing
		}
		if _, ok := s.members[key]; ok {
			return Resolution{}, ErrAlreadyMember
		}
		m := Membership{
			ID:        d.MembershipID,
			GroupID:   r.GroupID,
			UserID:    r.UserID,
			RoleID:    role.ID,
			JoinedAt:  d.At,
			UpdatedAt: d.At,
		}
		s.members[key] = &storedMember{Membership: m, seq: s.next()}
		created = &m
	}

	r.Status = d.Status
	r.ResolvedBy = d.ResolvedBy
	r.UpdatedAt = d.At
	delete(s.pending, key)
	return Resolution{Request: r.JoinRequest, Membership: created}, nil
}

// roleByNameLocked matches the name exactly, case included.
func (s *MemoryStore) roleByNameLocked(groupID, name string) *storedRole {
	var found *storedRole
	for _, r := range s.roles {
		if r.GroupID == groupID && r.Name == name {
			if found == nil || r.seq < found.seq {
				found = r
			}
		}
	}
	return found
}

func copyRole(r Role) Role {
	r.Permissions = append([]Permission{}, r.Permissions...)
	return r
}
