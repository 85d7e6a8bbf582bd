package groups

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MemberReader is the slice of Store the gate needs.
type MemberReader interface {
	GetMember(ctx context.Context, groupID, userID string) (Member, error)
}

// Decision outcomes reported to a DecisionHook.
const (
	OutcomeAllowed   = "allowed"
	OutcomeNotMember = "not_member"
	OutcomeDenied    = "denied"
)

// DecisionHook observes every gate decision; requirement is a permission
// value or "owner".
type DecisionHook func(requirement, outcome string)

// Gate answers whether a user may act on a group. Resolution is flat: only
// the permissions of the member's own role count.
type Gate struct {
	members MemberReader
	hook    DecisionHook
}

func NewGate(members MemberReader, hook DecisionHook) *Gate {
	return &Gate{members: members, hook: hook}
}

// RequirePermission returns the caller's membership when their role grants p.
func (g *Gate) RequirePermission(ctx context.Context, userID, groupID string, p Permission) (Member, error) {
	m, err := g.member(ctx, userID, groupID, string(p))
	if err != nil {
		return Member{}, err
	}
	if !m.Role.Has(p) {
		g.observe(string(p), OutcomeDenied)
		return Member{}, fmt.Errorf("%w: %s required", ErrPermissionDenied, p)
	}
	g.observe(string(p), OutcomeAllowed)
	return m, nil
}

// RequireOwner returns the caller's membership when their role is the
// group's owner role.
func (g *Gate) RequireOwner(ctx context.Context, userID, groupID string) (Member, error) {
	m, err := g.member(ctx, userID, groupID, "owner")
	if err != nil {
		return Member{}, err
	}
	if !m.Role.IsOwner() {
		g.observe("owner", OutcomeDenied)
		return Member{}, ErrNotOwner
	}
	g.observe("owner", OutcomeAllowed)
	return m, nil
}

// Check enforces req. Open requirements return a zero Member and no error.
func (g *Gate) Check(ctx context.Context, userID, groupID string, req Requirement) (Member, error) {
	switch {
	case req.Open():
		return Member{}, nil
	case req.Owner():
		return g.RequireOwner(ctx, userID, groupID)
	default:
		return g.RequirePermission(ctx, userID, groupID, req.Permission)
	}
}

func (g *Gate) member(ctx context.Context, userID, groupID, requirement string) (Member, error) {
	userID = strings.TrimSpace(userID)
	groupID = strings.TrimSpace(groupID)
	if userID == "" || groupID == "" {
		return Member{}, fmt.Errorf("%w: user_id and group_id are required", ErrInvalidInput)
	}
	m, err := g.members.GetMember(ctx, groupID, userID)
	if errors.Is(err, ErrMemberNotFound) {
		g.observe(requirement, OutcomeNotMember)
		return Member{}, ErrNotAMember
	}
	if err != nil {
		return Member{}, err
	}
	return m, nil
}

func (g *Gate) observe(requirement, outcome string) {
	if g.hook != nil {
		g.hook(requirement, outcome)
	}
}
