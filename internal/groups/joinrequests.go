package groups

import (
	"context"

	"go.uber.org/zap"
)

// CreateJoinRequest files a PENDING request for the actor to join groupID.
func (s *Service) CreateJoinRequest(ctx context.Context, actorID, groupID string) (req JoinRequest, err error) {
	trimAll(&actorID, &groupID)
	ctx, span := s.start(ctx, OpCreateJoinRequest, groupID)
	defer func() { finish(span, err) }()

	if err := requireIDs("actor_id", actorID, "group_id", groupID); err != nil {
		return JoinRequest{}, err
	}
	now := s.now()
	req, err = s.store.CreateJoinRequest(ctx, JoinRequest{
		ID:        s.newID(),
		GroupID:   groupID,
		UserID:    actorID,
		Status:    JoinPending,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return JoinRequest{}, err
	}
	s.emit(Event{Type: EventJoinRequestCreated, GroupID: groupID, ActorID: actorID, UserID: actorID, RequestID: req.ID})
	return req, nil
}

// ListJoinRequests returns the group's requests, newest first.
func (s *Service) ListJoinRequests(ctx context.Context, actorID, groupID string) ([]JoinRequest, error) {
	trimAll(&actorID, &groupID)
	if _, err := s.Authorize(ctx, actorID, groupID, OpListJoinRequests); err != nil {
		return nil, err
	}
	return s.store.ListJoinRequests(ctx, groupID)
}

// ApproveJoinRequest admits the requester with the group's default role.
// Of two concurrent resolutions exactly one wins; the other sees ErrNotPending.
func (s *Service) ApproveJoinRequest(ctx context.Context, actorID, groupID, requestID string) (Resolution, error) {
	res, err := s.resolve(ctx, OpApproveJoinRequest, actorID, groupID, requestID, JoinApproved)
	if err != nil {
		return Resolution{}, err
	}
	if res.Membership != nil {
		s.emit(Event{
			Type:    EventMemberAdded,
			GroupID: res.Request.GroupID,
			ActorID: res.Request.ResolvedBy,
			UserID:  res.Membership.UserID,
			RoleID:  res.Membership.RoleID,
		})
	}
	return res, nil
}

func (s *Service) RejectJoinRequest(ctx context.Context, actorID, groupID, requestID string) (JoinRequest, error) {
	res, err := s.resolve(ctx, OpRejectJoinRequest, actorID, groupID, requestID, JoinRejected)
	if err != nil {
		return JoinRequest{}, err
	}
	return res.Request, nil
}

func (s *Service) resolve(ctx context.Context, op Operation, actorID, groupID, requestID string, status JoinStatus) (res Resolution, err error) {
	trimAll(&actorID, &groupID, &requestID)
	ctx, span := s.start(ctx, op, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, op); err != nil {
		return Resolution{}, err
	}
	if err := requireIDs("request_id", requestID); err != nil {
		return Resolution{}, err
	}
	d := Decision{
		GroupID:    groupID,
		RequestID:  requestID,
		Status:     status,
		ResolvedBy: actorID,
		At:         s.now(),
	}
	if status == JoinApproved {
		d.MembershipID = s.newID()
	}
	res, err = s.store.ResolveJoinRequest(ctx, d)
	if err != nil {
		return Resolution{}, err
	}
	evt := EventJoinRequestRejected
	if status == JoinApproved {
		evt = EventJoinRequestApproved
	}
	s.log.Info("join request resolved",
		zap.String("group_id", groupID),
		zap.String("request_id", requestID),
		zap.String("status", string(status)),
		zap.String("actor_id", actorID),
	)
	s.emit(Event{Type: evt, GroupID: groupID, ActorID: actorID, UserID: res.Request.UserID, RequestID: requestID})
	return res, nil
}
