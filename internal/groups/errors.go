package groups

import (
	"errors"
	"fmt"
)

// Error kinds. Every specific error below wraps exactly one of these, so
// callers can branch on either level with errors.Is.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrForbidden     = errors.New("forbidden")
	ErrInvalidInput  = errors.New("invalid input")
	ErrConfiguration = errors.New("configuration error")
)

var (
	ErrGroupNotFound   = fmt.Errorf("%w: group", ErrNotFound)
	ErrRoleNotFound    = fmt.Errorf("%w: role", ErrNotFound)
	ErrMemberNotFound  = fmt.Errorf("%w: member", ErrNotFound)
	ErrRequestNotFound = fmt.Errorf("%w: join request", ErrNotFound)

	ErrAlreadyMember  = fmt.Errorf("%w: user is already a member of the group", ErrConflict)
	ErrAlreadyPending = fmt.Errorf("%w: a pending join request already exists", ErrConflict)
	ErrNotPending     = fmt.Errorf("%w: join request is no longer pending", ErrConflict)
	ErrRoleInUse      = fmt.Errorf("%w: role is still assigned to members", ErrConflict)
	ErrRoleNameTaken  = fmt.Errorf("%w: role name already used in this group", ErrConflict)

	ErrNotAMember         = fmt.Errorf("%w: not a member of the group", ErrForbidden)
	ErrPermissionDenied   = fmt.Errorf("%w: permission denied", ErrForbidden)
	ErrNotOwner           = fmt.Errorf("%w: only the group owner may do this", ErrForbidden)
	ErrOwnerProtected     = fmt.Errorf("%w: the group owner cannot be removed or reassigned", ErrForbidden)
	ErrOwnerRoleProtected = fmt.Errorf("%w: the owner role cannot be modified or deleted", ErrForbidden)

	ErrCrossGroupRole   = fmt.Errorf("%w: role belongs to a different group", ErrInvalidInput)
	ErrGroupChange      = fmt.Errorf("%w: a role cannot move to another group", ErrInvalidInput)
	ErrReservedRoleName = fmt.Errorf("%w: role name is reserved", ErrInvalidInput)

	ErrDefaultRoleMissing = fmt.Errorf("%w: group has no %q role", ErrConfiguration, DefaultRoleName)
)
