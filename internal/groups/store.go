package groups

import (
	"context"
	"time"
)

// Store persists groups, roles, memberships and join requests. Every method
// is atomic; implementations enforce the uniqueness and same-group rules
// themselves rather than trusting callers to pre-check.
type Store interface {
	// CreateGroup persists the group, its seeded roles and the owner's
	// membership in one transaction.
	CreateGroup(ctx context.Context, ng NewGroup) (Group, error)
	GetGroup(ctx context.Context, groupID string) (Group, error)
	UpdateGroup(ctx context.Context, groupID string, upd GroupUpdate) (Group, error)
	// DeleteGroup removes the group with its join requests, memberships and
	// roles in one transaction.
	DeleteGroup(ctx context.Context, groupID string) error
	ListGroupsForUser(ctx context.Context, userID string) ([]UserGroup, error)

	CreateRole(ctx context.Context, role Role) (Role, error)
	GetRole(ctx context.Context, roleID string) (Role, error)
	UpdateRole(ctx context.Context, roleID string, upd RoleUpdate) (Role, error)
	// DeleteRole refuses the owner role and roles still bound to members.
	DeleteRole(ctx context.Context, roleID string) error
	// ListRoles orders by priority descending, then creation order.
	ListRoles(ctx context.Context, groupID string) ([]Role, error)

	AddMember(ctx context.Context, m Membership) (Membership, error)
	GetMember(ctx context.Context, groupID, userID string) (Member, error)
	UpdateMemberRole(ctx context.Context, groupID, userID, roleID string) (Membership, error)
	RemoveMember(ctx context.Context, groupID, userID string) error
	ListMembers(ctx context.Context, groupID string) ([]Member, error)
	// PurgeUser drops every membership and join request of a user.
	PurgeUser(ctx context.Context, userID string) error

	CreateJoinRequest(ctx context.Context, req JoinRequest) (JoinRequest, error)
	GetJoinRequest(ctx context.Context, groupID, requestID string) (JoinRequest, error)
	// ListJoinRequests returns newest first.
	ListJoinRequests(ctx context.Context, groupID string) ([]JoinRequest, error)
	// ResolveJoinRequest moves a PENDING request to its terminal status. For
	// approvals the membership is created in the same transaction, bound to
	// the group's DefaultRoleName role.
	ResolveJoinRequest(ctx context.Context, d Decision) (Resolution, error)
}

// Decision is a request to resolve one join request.
type Decision struct {
	GroupID    string
	RequestID  string
	Status     JoinStatus
	ResolvedBy string
	// MembershipID is used for the membership an approval creates.
	MembershipID string
	At           time.Time
}
