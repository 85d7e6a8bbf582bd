package groups

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogIsClosedAndOrdered(t *testing.T) {
	cat := Catalog()
	require.Len(t, cat, 17)
	assert.Equal(t, PermViewGroupInfo, cat[0])
	for _, p := range cat {
		assert.True(t, p.Valid(), p)
	}
	cat[0] = "tampered"
	assert.Equal(t, PermViewGroupInfo, Catalog()[0], "Catalog returns a copy")
	assert.False(t, Permission("fly").Valid())
}

func TestParsePermissions(t *testing.T) {
	got, err := ParsePermissions([]string{" Manage-Roles", "view-group-info", "manage-roles"})
	require.NoError(t, err)
	assert.Equal(t, []Permission{PermViewGroupInfo, PermManageRoles}, got)

	_, err = ParsePermissions([]string{"view-group-info", "MANAGE_ROLES"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	empty, err := ParsePermissions(nil)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestOperationTable(t *testing.T) {
	want := map[Operation]string{
		OpViewGroup:          "authenticated",
		OpCreateJoinRequest:  "authenticated",
		OpUpdateGroup:        "manage-group",
		OpDeleteGroup:        "owner",
		OpListMembers:        "view-group-info",
		OpAddMember:          "manage-members",
		OpRemoveMember:       "manage-members",
		OpUpdateMemberRole:   "manage-roles",
		OpListRoles:          "view-roles",
		OpCreateRole:         "manage-roles",
		OpDeleteRole:         "manage-roles",
		OpApproveJoinRequest: "approve-requests",
		OpRejectJoinRequest:  "approve-requests",
	}
	for op, req := range want {
		assert.Equal(t, req, op.Required().String(), op.String())
	}
	for op := OpViewGroup; op <= OpWatchEvents; op++ {
		assert.NotPanics(t, func() { op.Required() }, op.String())
	}
	assert.Panics(t, func() { Operation(999).Required() })
}
