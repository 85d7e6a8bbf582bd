package groups

import (
	"fmt"
	"strings"
)

// Permission is a discrete capability a role may grant inside a group.
// Wire values are stable: add new values freely, never rename or remove one.
type Permission string

const (
	PermViewGroupInfo   Permission = "view-group-info"
	PermManageGroup     Permission = "manage-group"
	PermDeleteGroup     Permission = "delete-group"
	PermViewMembers     Permission = "view-members"
	PermManageMembers   Permission = "manage-members"
	PermInviteMembers   Permission = "invite-members"
	PermRemoveMembers   Permission = "remove-members"
	PermApproveRequests Permission = "approve-requests"
	PermViewRoles       Permission = "view-roles"
	PermManageRoles     Permission = "manage-roles"
	PermAssignRoles     Permission = "assign-roles"
	PermViewContent     Permission = "view-content"
	PermCreateContent   Permission = "create-content"
	PermEditContent     Permission = "edit-content"
	PermDeleteContent   Permission = "delete-content"
	PermViewSettings    Permission = "view-settings"
	PermManageSettings  Permission = "manage-settings"
)

var catalog = []Permission{
	PermViewGroupInfo,
	PermManageGroup,
	PermDeleteGroup,
	PermViewMembers,
	PermManageMembers,
	PermInviteMembers,
	PermRemoveMembers,
	PermApproveRequests,
	PermViewRoles,
	PermManageRoles,
	PermAssignRoles,
	PermViewContent,
	PermCreateContent,
	PermEditContent,
	PermDeleteContent,
	PermViewSettings,
	PermManageSettings,
}

var catalogIndex = func() map[Permission]int {
	idx := make(map[Permission]int, len(catalog))
	for i, p := range catalog {
		idx[p] = i
	}
	return idx
}()

// Catalog returns every known permission in declaration order.
func Catalog() []Permission {
	out := make([]Permission, len(catalog))
	copy(out, catalog)
	return out
}

func (p Permission) Valid() bool {
	_, ok := catalogIndex[p]
	return ok
}

func (p Permission) String() string { return string(p) }

// ParsePermission accepts the wire form, ignoring surrounding whitespace and case.
func ParsePermission(raw string) (Permission, error) {
	p := Permission(strings.ToLower(strings.TrimSpace(raw)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, raw)
	}
	return p, nil
}

// NormalizePermissions validates perms and returns them deduplicated in
// catalog order. A nil or empty input yields an empty, non-nil slice.
func NormalizePermissions(perms []Permission) ([]Permission, error) {
	seen := make([]bool, len(catalog))
	for _, p := range perms {
		i, ok := catalogIndex[p]
		if !ok {
			return nil, fmt.Errorf("%w: unknown permission %q", ErrInvalidInput, string(p))
		}
		seen[i] = true
	}
	out := make([]Permission, 0, len(perms))
	for i, ok := range seen {
		if ok {
			out = append(out, catalog[i])
		}
	}
	return out, nil
}

// ParsePermissions is NormalizePermissions over wire strings.
func ParsePermissions(raw []string) ([]Permission, error) {
	perms := make([]Permission, 0, len(raw))
	for _, r := range raw {
		p, err := ParsePermission(r)
		if err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return NormalizePermissions(perms)
}
