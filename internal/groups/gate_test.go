package groups

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubMembers map[string]Member

func (s stubMembers) GetMember(ctx context.Context, groupID, userID string) (Member, error) {
	m, ok := s[groupID+"/"+userID]
	if !ok {
		return Member{}, ErrMemberNotFound
	}
	return m, nil
}

func TestGateDecisions(t *testing.T) {
	members := stubMembers{
		"g1/owner":  {Role: Role{Name: "Owner", Owner: true, Permissions: Catalog()}},
		"g1/legacy": {Role: Role{Name: "owner"}},
		"g1/mod":    {Role: Role{Name: "Moderator", Permissions: []Permission{PermManageRoles}, ParentRoleID: "r-owner"}},
		"g1/member": {Role: Role{Name: "Member", Permissions: []Permission{PermViewGroupInfo}, Priority: 5000}},
	}
	var decisions []string
	gate := NewGate(members, func(req, outcome string) {
		decisions = append(decisions, req+":"+outcome)
	})
	ctx := context.Background()

	tests := []struct {
		user string
		perm Permission
		want error
	}{
		{"owner", PermDeleteContent, nil},
		{"mod", PermManageRoles, nil},
		{"mod", PermApproveRequests, ErrPermissionDenied},
		{"member", PermViewGroupInfo, nil},
		{"member", PermManageRoles, ErrPermissionDenied},
		{"legacy", PermViewGroupInfo, ErrPermissionDenied},
		{"stranger", PermViewGroupInfo, ErrNotAMember},
	}
	for _, tc := range tests {
		t.Run(fmt.Sprintf("%s/%s", tc.user, tc.perm), func(t *testing.T) {
			_, err := gate.RequirePermission(ctx, tc.user, "g1", tc.perm)
			if tc.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.ErrorIs(t, err, ErrForbidden)
		})
	}
	assert.Contains(t, decisions, "manage-roles:denied")
	assert.Contains(t, decisions, "view-group-info:not_member")
}

func TestGateRequireOwner(t *testing.T) {
	members := stubMembers{
		"g1/owner":  {Role: Role{Name: "Founders", Owner: true}},
		"g1/legacy": {Role: Role{Name: "OWNER"}},
		"g1/member": {Role: Role{Name: "Member", Permissions: Catalog()}},
	}
	gate := NewGate(members, nil)
	ctx := context.Background()

	m, err := gate.RequireOwner(ctx, "owner", "g1")
	require.NoError(t, err)
	assert.Equal(t, "Founders", m.Role.Name, "the flag survives a rename")

	_, err = gate.RequireOwner(ctx, "legacy", "g1")
	assert.NoError(t, err)

	_, err = gate.RequireOwner(ctx, "member", "g1")
	assert.ErrorIs(t, err, ErrNotOwner, "holding every permission does not make a member the owner")

	_, err = gate.RequireOwner(ctx, "nobody", "g1")
	assert.ErrorIs(t, err, ErrNotAMember)

	_, err = gate.RequireOwner(ctx, "", "g1")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

type failingMembers struct{ err error }

func (f failingMembers) GetMember(context.Context, string, string) (Member, error) {
	return Member{}, f.err
}

func TestGatePassesStoreFailuresThrough(t *testing.T) {
	boom := errors.New("connection reset")
	gate := NewGate(failingMembers{err: boom}, nil)
	_, err := gate.RequirePermission(context.Background(), "u", "g", PermViewGroupInfo)
	assert.ErrorIs(t, err, boom)
	assert.False(t, errors.Is(err, ErrForbidden))
}

func TestGateCheckByRequirement(t *testing.T) {
	members := stubMembers{"g1/member": {Role: Role{Name: "Member", Permissions: []Permission{PermViewGroupInfo}}}}
	gate := NewGate(members, nil)
	ctx := context.Background()

	_, err := gate.Check(ctx, "stranger", "g1", OpCreateJoinRequest.Required())
	assert.NoError(t, err)
	_, err = gate.Check(ctx, "member", "g1", OpListMembers.Required())
	assert.NoError(t, err)
	_, err = gate.Check(ctx, "member", "g1", OpDeleteGroup.Required())
	assert.ErrorIs(t, err, ErrNotOwner)
	_, err = gate.Check(ctx, "member", "g1", OpApproveJoinRequest.Required())
	assert.ErrorIs(t, err, ErrPermissionDenied)
}
