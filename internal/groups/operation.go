package groups

import "fmt"

// Operation names an actor-facing action on a group.
type Operation int

const (
	OpViewGroup Operation = iota
	OpListMyGroups
	OpCreateGroup
	OpUpdateGroup
	OpDeleteGroup
	OpLeaveGroup
	OpListMembers
	OpAddMember
	OpRemoveMember
	OpUpdateMemberRole
	OpListRoles
	OpGetRole
	OpCreateRole
	OpUpdateRole
	OpDeleteRole
	OpUpdatePermissions
	OpUpdatePriority
	OpListJoinRequests
	OpCreateJoinRequest
	OpApproveJoinRequest
	OpRejectJoinRequest
	OpWatchEvents
)

type requirementKind int

const (
	// requireAuthenticated needs nothing beyond a known actor.
	requireAuthenticated requirementKind = iota
	requirePermission
	requireOwner
)

// Requirement is what the gate checks before an operation runs.
type Requirement struct {
	kind       requirementKind
	Permission Permission
}

func (r Requirement) Owner() bool { return r.kind == requireOwner }

// Open reports whether any authenticated actor may proceed.
func (r Requirement) Open() bool { return r.kind == requireAuthenticated }

func (r Requirement) String() string {
	switch r.kind {
	case requireOwner:
		return "owner"
	case requirePermission:
		return string(r.Permission)
	default:
		return "authenticated"
	}
}

func perm(p Permission) Requirement { return Requirement{kind: requirePermission, Permission: p} }

var operations = map[Operation]struct {
	name string
	req  Requirement
}{
	OpViewGroup:          {"view_group", Requirement{}},
	OpListMyGroups:       {"list_my_groups", Requirement{}},
	OpCreateGroup:        {"create_group", Requirement{}},
	OpUpdateGroup:        {"update_group", perm(PermManageGroup)},
	OpDeleteGroup:        {"delete_group", Requirement{kind: requireOwner}},
	OpLeaveGroup:         {"leave_group", Requirement{}},
	OpListMembers:        {"list_members", perm(PermViewGroupInfo)},
	OpAddMember:          {"add_member", perm(PermManageMembers)},
	OpRemoveMember:       {"remove_member", perm(PermManageMembers)},
	OpUpdateMemberRole:   {"update_member_role", perm(PermManageRoles)},
	OpListRoles:          {"list_roles", perm(PermViewRoles)},
	OpGetRole:            {"get_role", perm(PermViewRoles)},
	OpCreateRole:         {"create_role", perm(PermManageRoles)},
	OpUpdateRole:         {"update_role", perm(PermManageRoles)},
	OpDeleteRole:         {"delete_role", perm(PermManageRoles)},
	OpUpdatePermissions:  {"update_permissions", perm(PermManageRoles)},
	OpUpdatePriority:     {"update_priority", perm(PermManageRoles)},
	OpListJoinRequests:   {"list_join_requests", perm(PermApproveRequests)},
	OpCreateJoinRequest:  {"create_join_request", Requirement{}},
	OpApproveJoinRequest: {"approve_join_request", perm(PermApproveRequests)},
	OpRejectJoinRequest:  {"reject_join_request", perm(PermApproveRequests)},
	OpWatchEvents:        {"watch_events", perm(PermViewGroupInfo)},
}

// Required returns the gate requirement for op. Unknown operations panic:
// the table is closed and every Operation constant has an entry.
func (op Operation) Required() Requirement {
	e, ok := operations[op]
	if !ok {
		panic(fmt.Sprintf("groups: operation %d has no requirement", int(op)))
	}
	return e.req
}

func (op Operation) String() string {
	if e, ok := operations[op]; ok {
		return e.name
	}
	return fmt.Sprintf("operation(%d)", int(op))
}
