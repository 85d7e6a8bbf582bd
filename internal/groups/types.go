package groups

import (
	"strings"
	"time"
)

const (
	// OwnerRoleName and DefaultRoleName are the roles seeded into every new group.
	OwnerRoleName   = "Owner"
	DefaultRoleName = "Member"

	OwnerRolePriority   = 1000
	DefaultRolePriority = 100
)

// Group is a named collective owned by exactly one user.
type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Role is a named bundle of permissions scoped to one group.
//
// ParentRoleID is kept for display and future use; permission resolution
// never follows it. Priority only orders listings.
type Role struct {
	ID           string       `json:"id"`
	GroupID      string       `json:"group_id"`
	Name         string       `json:"name"`
	Permissions  []Permission `json:"permissions"`
	Priority     int          `json:"priority"`
	ParentRoleID string       `json:"parent_role_id,omitempty"`
	Owner        bool         `json:"is_owner"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// IsOwner reports whether the role confers ownership. Rows created before the
// explicit flag existed are recognized by name.
func (r Role) IsOwner() bool {
	return r.Owner || isOwnerName(r.Name)
}

// Has reports whether the role itself grants p.
func (r Role) Has(p Permission) bool {
	for _, have := range r.Permissions {
		if have == p {
			return true
		}
	}
	return false
}

func isOwnerName(name string) bool {
	return strings.EqualFold(strings.TrimSpace(name), "owner")
}

// Membership binds one user to one role inside one group.
type Membership struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	UserID    string    `json:"user_id"`
	RoleID    string    `json:"role_id"`
	JoinedAt  time.Time `json:"joined_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Member is a membership joined with its role.
type Member struct {
	Membership
	Role Role `json:"role"`
}

// UserGroup is one entry of a user's group listing.
type UserGroup struct {
	Group    Group  `json:"group"`
	RoleID   string `json:"role_id"`
	RoleName string `json:"role_name"`
}

type JoinStatus string

const (
	JoinPending  JoinStatus = "PENDING"
	JoinApproved JoinStatus = "APPROVED"
	JoinRejected JoinStatus = "REJECTED"
)

func (s JoinStatus) Terminal() bool { return s == JoinApproved || s == JoinRejected }

// JoinRequest asks for admission to a group. It leaves PENDING exactly once.
type JoinRequest struct {
	ID         string     `json:"id"`
	GroupID    string     `json:"group_id"`
	UserID     string     `json:"user_id"`
	Status     JoinStatus `json:"status"`
	ResolvedBy string     `json:"resolved_by,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// GroupUpdate carries optional group field changes.
type GroupUpdate struct {
	Name        *string
	Description *string
}

// RoleUpdate carries optional role field changes. GroupID, when set, must
// match the role's current group.
type RoleUpdate struct {
	GroupID      *string
	Name         *string
	Permissions  *[]Permission
	Priority     *int
	ParentRoleID *string
}

func (u RoleUpdate) empty() bool {
	return u.Name == nil && u.Permissions == nil && u.Priority == nil && u.ParentRoleID == nil
}

// NewGroup is everything the store persists when a group is founded.
type NewGroup struct {
	Group Group
	Roles []Role
	Owner Membership
}

// Resolution is the outcome of a join-request decision. Membership is set
// only for approvals.
type Resolution struct {
	Request    JoinRequest `json:"request"`
	Membership *Membership `json:"membership,omitempty"`
}
