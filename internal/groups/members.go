package groups

import (
	"context"

	"go.uber.org/zap"
)

func (s *Service) ListMembers(ctx context.Context, actorID, groupID string) ([]Member, error) {
	trimAll(&actorID, &groupID)
	if _, err := s.Authorize(ctx, actorID, groupID, OpListMembers); err != nil {
		return nil, err
	}
	return s.store.ListMembers(ctx, groupID)
}

// AddMember binds userID to roleID in groupID. The store's uniqueness
// constraint decides races between concurrent adds.
func (s *Service) AddMember(ctx context.Context, actorID, groupID, userID, roleID string) (m Membership, err error) {
	trimAll(&actorID, &groupID, &userID, &roleID)
	ctx, span := s.start(ctx, OpAddMember, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpAddMember); err != nil {
		return Membership{}, err
	}
	if err := requireIDs("user_id", userID, "role_id", roleID); err != nil {
		return Membership{}, err
	}
	now := s.now()
	m, err = s.store.AddMember(ctx, Membership{
		ID:        s.newID(),
		GroupID:   groupID,
		UserID:    userID,
		RoleID:    roleID,
		JoinedAt:  now,
		UpdatedAt: now,
	})
	if err != nil {
		return Membership{}, err
	}
	s.log.Info("member added",
		zap.String("group_id", groupID),
		zap.String("user_id", userID),
		zap.String("role_id", roleID),
		zap.String("actor_id", actorID),
	)
	s.emit(Event{Type: EventMemberAdded, GroupID: groupID, ActorID: actorID, UserID: userID, RoleID: roleID})
	return m, nil
}

func (s *Service) RemoveMember(ctx context.Context, actorID, groupID, userID string) (err error) {
	trimAll(&actorID, &groupID, &userID)
	ctx, span := s.start(ctx, OpRemoveMember, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpRemoveMember); err != nil {
		return err
	}
	if err := requireIDs("user_id", userID); err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.emit(Event{Type: EventMemberRemoved, GroupID: groupID, ActorID: actorID, UserID: userID})
	return nil
}

// UpdateMemberRole rebinds a member. The new role must belong to the same
// group; the owner keeps the owner role.
func (s *Service) UpdateMemberRole(ctx context.Context, actorID, groupID, userID, roleID string) (m Membership, err error) {
	trimAll(&actorID, &groupID, &userID, &roleID)
	ctx, span := s.start(ctx, OpUpdateMemberRole, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpUpdateMemberRole); err != nil {
		return Membership{}, err
	}
	if err := requireIDs("user_id", userID, "role_id", roleID); err != nil {
		return Membership{}, err
	}
	m, err = s.store.UpdateMemberRole(ctx, groupID, userID, roleID)
	if err != nil {
		return Membership{}, err
	}
	s.emit(Event{Type: EventMemberRoleChanged, GroupID: groupID, ActorID: actorID, UserID: userID, RoleID: roleID})
	return m, nil
}
