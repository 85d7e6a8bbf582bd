package groups

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// RoleInput describes a role to create.
type RoleInput struct {
	Name         string
	Permissions  []Permission
	Priority     int
	ParentRoleID string
}

// roleInGroup loads roleID and hides roles of other groups behind NotFound.
func (s *Service) roleInGroup(ctx context.Context, groupID, roleID string) (Role, error) {
	if err := requireIDs("role_id", roleID); err != nil {
		return Role{}, err
	}
	r, err := s.store.GetRole(ctx, roleID)
	if err != nil {
		return Role{}, err
	}
	if r.GroupID != groupID {
		return Role{}, ErrRoleNotFound
	}
	return r, nil
}

func (s *Service) checkParent(ctx context.Context, groupID, roleID, parentID string) error {
	if parentID == "" {
		return nil
	}
	if parentID == roleID {
		return fmt.Errorf("%w: a role cannot be its own parent", ErrInvalidInput)
	}
	parent, err := s.store.GetRole(ctx, parentID)
	if err != nil {
		return err
	}
	if parent.GroupID != groupID {
		return ErrCrossGroupRole
	}
	return nil
}

func (s *Service) ListRoles(ctx context.Context, actorID, groupID string) ([]Role, error) {
	trimAll(&actorID, &groupID)
	if _, err := s.Authorize(ctx, actorID, groupID, OpListRoles); err != nil {
		return nil, err
	}
	return s.store.ListRoles(ctx, groupID)
}

func (s *Service) GetRole(ctx context.Context, actorID, groupID, roleID string) (Role, error) {
	trimAll(&actorID, &groupID, &roleID)
	if _, err := s.Authorize(ctx, actorID, groupID, OpGetRole); err != nil {
		return Role{}, err
	}
	return s.roleInGroup(ctx, groupID, roleID)
}

func (s *Service) CreateRole(ctx context.Context, actorID, groupID string, in RoleInput) (r Role, err error) {
	trimAll(&actorID, &groupID, &in.ParentRoleID)
	ctx, span := s.start(ctx, OpCreateRole, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpCreateRole); err != nil {
		return Role{}, err
	}
	name, err := cleanName("role name", in.Name)
	if err != nil {
		return Role{}, err
	}
	if isOwnerName(name) {
		return Role{}, ErrReservedRoleName
	}
	perms, err := NormalizePermissions(in.Permissions)
	if err != nil {
		return Role{}, err
	}
	id := s.newID()
	if err := s.checkParent(ctx, groupID, id, in.ParentRoleID); err != nil {
		return Role{}, err
	}
	now := s.now()
	r, err = s.store.CreateRole(ctx, Role{
		ID:           id,
		GroupID:      groupID,
		Name:         name,
		Permissions:  perms,
		Priority:     in.Priority,
		ParentRoleID: in.ParentRoleID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return Role{}, err
	}
	s.emit(Event{Type: EventRoleCreated, GroupID: groupID, ActorID: actorID, RoleID: r.ID})
	return r, nil
}

// UpdateRole applies upd to a role of groupID. The owner role only accepts
// priority changes.
func (s *Service) UpdateRole(ctx context.Context, actorID, groupID, roleID string, upd RoleUpdate) (Role, error) {
	return s.updateRole(ctx, OpUpdateRole, actorID, groupID, roleID, upd)
}

func (s *Service) UpdatePermissions(ctx context.Context, actorID, groupID, roleID string, perms []Permission) (Role, error) {
	if perms == nil {
		perms = []Permission{}
	}
	return s.updateRole(ctx, OpUpdatePermissions, actorID, groupID, roleID, RoleUpdate{Permissions: &perms})
}

func (s *Service) UpdatePriority(ctx context.Context, actorID, groupID, roleID string, priority int) (Role, error) {
	return s.updateRole(ctx, OpUpdatePriority, actorID, groupID, roleID, RoleUpdate{Priority: &priority})
}

func (s *Service) updateRole(ctx context.Context, op Operation, actorID, groupID, roleID string, upd RoleUpdate) (r Role, err error) {
	trimAll(&actorID, &groupID, &roleID)
	ctx, span := s.start(ctx, op, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, op); err != nil {
		return Role{}, err
	}
	current, err := s.roleInGroup(ctx, groupID, roleID)
	if err != nil {
		return Role{}, err
	}
	if upd.GroupID != nil {
		if gid := strings.TrimSpace(*upd.GroupID); gid != "" && gid != current.GroupID {
			return Role{}, ErrGroupChange
		}
		upd.GroupID = nil
	}
	if current.IsOwner() && (upd.Name != nil || upd.Permissions != nil || upd.ParentRoleID != nil) {
		return Role{}, ErrOwnerRoleProtected
	}
	if upd.Name != nil {
		name, err := cleanName("role name", *upd.Name)
		if err != nil {
			return Role{}, err
		}
		if isOwnerName(name) {
			return Role{}, ErrReservedRoleName
		}
		upd.Name = &name
	}
	if upd.Permissions != nil {
		perms, err := NormalizePermissions(*upd.Permissions)
		if err != nil {
			return Role{}, err
		}
		upd.Permissions = &perms
	}
	if upd.ParentRoleID != nil {
		parent := strings.TrimSpace(*upd.ParentRoleID)
		if err := s.checkParent(ctx, groupID, roleID, parent); err != nil {
			return Role{}, err
		}
		upd.ParentRoleID = &parent
	}
	if upd.empty() {
		return current, nil
	}
	r, err = s.store.UpdateRole(ctx, roleID, upd)
	if err != nil {
		return Role{}, err
	}
	s.emit(Event{Type: EventRoleUpdated, GroupID: groupID, ActorID: actorID, RoleID: roleID})
	return r, nil
}

// DeleteRole removes a role nobody holds. The owner role is never deleted.
func (s *Service) DeleteRole(ctx context.Context, actorID, groupID, roleID string) (err error) {
	trimAll(&actorID, &groupID, &roleID)
	ctx, span := s.start(ctx, OpDeleteRole, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpDeleteRole); err != nil {
		return err
	}
	current, err := s.roleInGroup(ctx, groupID, roleID)
	if err != nil {
		return err
	}
	if current.IsOwner() {
		return ErrOwnerRoleProtected
	}
	if err := s.store.DeleteRole(ctx, roleID); err != nil {
		return err
	}
	s.log.Debug("role deleted", zap.String("group_id", groupID), zap.String("role_id", roleID))
	s.emit(Event{Type: EventRoleDeleted, GroupID: groupID, ActorID: actorID, RoleID: roleID})
	return nil
}
