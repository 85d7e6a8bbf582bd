package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"groupgate.org/internal/ids"
)

const maxNameLength = 100

// Service is the actor-facing entry point. Every method authorizes the actor
// for the target group before touching the store.
type Service struct {
	store  Store
	gate   *Gate
	now    func() time.Time
	newID  func() string
	log    *zap.Logger
	pub    Publisher
	tracer trace.Tracer
	hook   DecisionHook
}

type ServiceOption func(*Service)

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) { s.now = now }
}

func WithIDs(newID func() string) ServiceOption {
	return func(s *Service) { s.newID = newID }
}

func WithLogger(log *zap.Logger) ServiceOption {
	return func(s *Service) { s.log = log }
}

func WithPublisher(pub Publisher) ServiceOption {
	return func(s *Service) { s.pub = pub }
}

func WithTracer(tracer trace.Tracer) ServiceOption {
	return func(s *Service) { s.tracer = tracer }
}

func WithDecisionHook(hook DecisionHook) ServiceOption {
	return func(s *Service) { s.hook = hook }
}

func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("groups store is required")
	}
	s := &Service{
		store:  store,
		now:    func() time.Time { return time.Now().UTC() },
		newID:  ids.New,
		log:    zap.NewNop(),
		tracer: otel.Tracer("groupgate.org/internal/groups"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = NewGate(store, s.hook)
	return s, nil
}

func (s *Service) Gate() *Gate { return s.gate }

// Authorize checks actorID against the requirement of op in groupID.
func (s *Service) Authorize(ctx context.Context, actorID, groupID string, op Operation) (Member, error) {
	return s.gate.Check(ctx, actorID, groupID, op.Required())
}

func (s *Service) start(ctx context.Context, op Operation, groupID string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "groups."+op.String(), trace.WithAttributes(
		attribute.String("group.id", groupID),
	))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *Service) emit(evt Event) {
	if s.pub == nil {
		return
	}
	if evt.At.IsZero() {
		evt.At = s.now()
	}
	s.pub.Publish(evt)
}

func cleanName(field, raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", fmt.Errorf("%w: %s exceeds %d characters", ErrInvalidInput, field, maxNameLength)
	}
	return name, nil
}

func trimAll(fields ...*string) {
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

func requireIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidInput, pairs[i])
		}
	}
	return nil
}

// CreateGroup founds a group owned by actorID, seeded with the Owner role
// (full catalog) and the default Member role.
func (s *Service) CreateGroup(ctx context.Context, actorID, name, description string) (g Group, err error) {
	ctx, span := s.start(ctx, OpCreateGroup, "")
	defer func() { finish(span, err) }()

	trimAll(&actorID)
	if err := requireIDs("actor_id", actorID); err != nil {
		return Group{}, err
	}
	name, err = cleanName("group name", name)
	if err != nil {
		return Group{}, err
	}
	now := s.now()
	g = Group{
		ID:          s.newID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		OwnerID:     actorID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	owner := Role{
		ID:          s.newID(),
		GroupID:     g.ID,
		Name:        OwnerRoleName,
		Permissions: Catalog(),
		Priority:    OwnerRolePriority,
		Owner:       true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	member := Role{
		ID:          s.newID(),
		GroupID:     g.ID,
		Name:        DefaultRoleName,
		Permissions: []Permission{PermViewGroupInfo},
		Priority:    DefaultRolePriority,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	g, err = s.store.CreateGroup(ctx, NewGroup{
		Group: g,
		Roles: []Role{owner, member},
		Owner: Membership{
			ID:        s.newID(),
			GroupID:   g.ID,
			UserID:    g.OwnerID,
			RoleID:    owner.ID,
			JoinedAt:  now,
			UpdatedAt: now,
		},
	})
	if err != nil {
		return Group{}, err
	}
	span.SetAttributes(attribute.String("group.id", g.ID))
	s.log.Info("group created", zap.String("group_id", g.ID), zap.String("owner_id", g.OwnerID))
	return g, nil
}

func (s *Service) GetGroup(ctx context.Context, actorID, groupID string) (Group, error) {
	trimAll(&actorID, &groupID)
	if err := requireIDs("actor_id", actorID, "group_id", groupID); err != nil {
		return Group{}, err
	}
	return s.store.GetGroup(ctx, groupID)
}

func (s *Service) ListGroupsForUser(ctx context.Context, actorID string) ([]UserGroup, error) {
	trimAll(&actorID)
	if err := requireIDs("actor_id", actorID); err != nil {
		return nil, err
	}
	return s.store.ListGroupsForUser(ctx, actorID)
}

func (s *Service) UpdateGroup(ctx context.Context, actorID, groupID string, upd GroupUpdate) (g Group, err error) {
	trimAll(&actorID, &groupID)
	ctx, span := s.start(ctx, OpUpdateGroup, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpUpdateGroup); err != nil {
		return Group{}, err
	}
	if upd.Name != nil {
		name, err := cleanName("group name", *upd.Name)
		if err != nil {
			return Group{}, err
		}
		upd.Name = &name
	}
	if upd.Description != nil {
		desc := strings.TrimSpace(*upd.Description)
		upd.Description = &desc
	}
	g, err = s.store.UpdateGroup(ctx, groupID, upd)
	if err != nil {
		return Group{}, err
	}
	s.emit(Event{Type: EventGroupUpdated, GroupID: groupID, ActorID: actorID})
	return g, nil
}

// DeleteGroup removes the group and everything scoped to it. Owner only.
func (s *Service) DeleteGroup(ctx context.Context, actorID, groupID string) (err error) {
	trimAll(&actorID, &groupID)
	ctx, span := s.start(ctx, OpDeleteGroup, groupID)
	defer func() { finish(span, err) }()

	if _, err := s.Authorize(ctx, actorID, groupID, OpDeleteGroup); err != nil {
		return err
	}
	if err := s.store.DeleteGroup(ctx, groupID); err != nil {
		return err
	}
	s.log.Info("group deleted", zap.String("group_id", groupID), zap.String("actor_id", actorID))
	s.emit(Event{Type: EventGroupDeleted, GroupID: groupID, ActorID: actorID})
	return nil
}

// LeaveGroup removes the actor's own membership. The owner cannot leave.
func (s *Service) LeaveGroup(ctx context.Context, actorID, groupID string) (err error) {
	trimAll(&actorID, &groupID)
	ctx, span := s.start(ctx, OpLeaveGroup, groupID)
	defer func() { finish(span, err) }()

	if err := requireIDs("actor_id", actorID, "group_id", groupID); err != nil {
		return err
	}
	if err := s.store.RemoveMember(ctx, groupID, actorID); err != nil {
		if errors.Is(err, ErrMemberNotFound) {
			return ErrNotAMember
		}
		return err
	}
	s.emit(Event{Type: EventMemberRemoved, GroupID: groupID, ActorID: actorID, UserID: actorID})
	return nil
}

// PurgeUser removes every trace of a deleted user from all groups. It is an
// administrative hook for the account collaborator and takes no actor.
func (s *Service) PurgeUser(ctx context.Context, userID string) error {
	trimAll(&userID)
	if err := requireIDs("user_id", userID); err != nil {
		return err
	}
	return s.store.PurgeUser(ctx, userID)
}
