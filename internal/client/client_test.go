package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupgate.org/internal/authn"
	"groupgate.org/internal/groups"
	"groupgate.org/internal/httpapi"
)

type fixture struct {
	client *Client
	tokens *authn.Tokens
}

func (f fixture) as(t *testing.T, user string) *Client {
	t.Helper()
	tok, err := f.tokens.Issue(user, time.Hour)
	require.NoError(t, err)
	return f.client.As(tok)
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	tokens, err := authn.New("client-secret")
	require.NoError(t, err)
	svc, err := groups.NewService(groups.NewMemoryStore())
	require.NoError(t, err)
	api, err := httpapi.New(svc, tokens, httpapi.WithVersion("test"))
	require.NoError(t, err)
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	c, err := New(srv.URL, WithTimeout(5*time.Second))
	require.NoError(t, err)
	return fixture{client: c, tokens: tokens}
}

func roleNamed(t *testing.T, roles []groups.Role, name string) groups.Role {
	t.Helper()
	for _, r := range roles {
		if r.Name == name {
			return r
		}
	}
	t.Fatalf("role %q missing", name)
	return groups.Role{}
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("not a url")
	require.Error(t, err)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	h, err := f.client.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "test", h.Version)
	require.NoError(t, f.client.Ready(ctx))
}

func TestMembershipScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u1, u2 := f.as(t, "u1"), f.as(t, "u2")

	g, err := u1.CreateGroup(ctx, "Eng", "engineering")
	require.NoError(t, err)
	assert.Equal(t, "u1", g.OwnerID)

	roles, err := u1.ListRoles(ctx, g.ID)
	require.NoError(t, err)
	member := roleNamed(t, roles, groups.DefaultRoleName)

	_, err = u1.AddMember(ctx, g.ID, "u2", member.ID)
	require.NoError(t, err)

	_, err = u2.UpdatePriority(ctx, g.ID, member.ID, 7)
	assert.ErrorIs(t, err, groups.ErrForbidden)
	assert.True(t, IsStatus(err, http.StatusForbidden))

	members, err := u2.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)

	mod, err := u1.CreateRole(ctx, g.ID, groups.RoleInput{
		Name:        "Moderator",
		Permissions: []groups.Permission{groups.PermViewGroupInfo, groups.PermManageMembers},
		Priority:    500,
	})
	require.NoError(t, err)

	_, err = u1.UpdateMemberRole(ctx, g.ID, "u2", mod.ID)
	require.NoError(t, err)

	_, err = u2.AddMember(ctx, g.ID, "u3", member.ID)
	require.NoError(t, err)
	_, err = u2.AddMember(ctx, g.ID, "u3", member.ID)
	assert.ErrorIs(t, err, groups.ErrConflict)

	err = u1.DeleteRole(ctx, g.ID, mod.ID)
	assert.ErrorIs(t, err, groups.ErrConflict)

	name := "Moderators"
	renamed, err := u1.UpdateRole(ctx, g.ID, mod.ID, groups.RoleUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Moderators", renamed.Name)

	updated, err := u1.UpdatePermissions(ctx, g.ID, mod.ID, []groups.Permission{groups.PermManageMembers, groups.PermViewRoles})
	require.NoError(t, err)
	assert.Equal(t, []groups.Permission{groups.PermManageMembers, groups.PermViewRoles}, updated.Permissions)

	got, err := u2.GetRole(ctx, g.ID, mod.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Permissions, got.Permissions)

	require.NoError(t, u1.RemoveMember(ctx, g.ID, "u3"))
	require.NoError(t, u2.LeaveGroup(ctx, g.ID))

	mine, err := u2.ListMyGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, mine)
}

func TestJoinRequestsOverClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner, alice, bob := f.as(t, "owner"), f.as(t, "alice"), f.as(t, "bob")

	g, err := owner.CreateGroup(ctx, "Ops", "")
	require.NoError(t, err)

	ja, err := alice.CreateJoinRequest(ctx, g.ID)
	require.NoError(t, err)
	jb, err := bob.CreateJoinRequest(ctx, g.ID)
	require.NoError(t, err)

	_, err = alice.ListJoinRequests(ctx, g.ID)
	assert.ErrorIs(t, err, groups.ErrForbidden)

	pending, err := owner.ListJoinRequests(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	res, err := owner.ApproveJoinRequest(ctx, g.ID, ja.ID)
	require.NoError(t, err)
	assert.Equal(t, groups.JoinApproved, res.Request.Status)
	require.NotNil(t, res.Membership)
	assert.Equal(t, "alice", res.Membership.UserID)

	rejected, err := owner.RejectJoinRequest(ctx, g.ID, jb.ID)
	require.NoError(t, err)
	assert.Equal(t, groups.JoinRejected, rejected.Status)

	_, err = owner.ApproveJoinRequest(ctx, g.ID, jb.ID)
	assert.ErrorIs(t, err, groups.ErrConflict)

	_, err = owner.ApproveJoinRequest(ctx, g.ID, "missing")
	assert.ErrorIs(t, err, groups.ErrNotFound)
}

func TestGroupAdministration(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.as(t, "owner")

	g, err := owner.CreateGroup(ctx, "Ops", "")
	require.NoError(t, err)

	desc := "pager rotation"
	g, err = owner.UpdateGroup(ctx, g.ID, groups.GroupUpdate{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, desc, g.Description)

	_, err = owner.CreateGroup(ctx, "", "")
	assert.ErrorIs(t, err, groups.ErrInvalidInput)

	require.NoError(t, owner.DeleteGroup(ctx, g.ID))
	_, err = owner.GetGroup(ctx, g.ID)
	assert.ErrorIs(t, err, groups.ErrNotFound)
}

func TestUnauthenticatedCalls(t *testing.T) {
	f := newFixture(t)
	_, err := f.client.ListMyGroups(context.Background())
	assert.ErrorIs(t, err, authn.ErrUnauthenticated)
}

func TestRetriesOnThrottle(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok", "service": "groupgate-api"})
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(2, 10*time.Millisecond))
	require.NoError(t, err)
	h, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 2, calls)
}

func TestAPIErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c, err := New(srv.URL)
	require.NoError(t, err)
	_, err = c.GetGroup(context.Background(), "g1")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "Not Found", apiErr.Message)
	assert.ErrorIs(t, err, groups.ErrNotFound)
}

func TestShouldRetry(t *testing.T) {
	transport := errors.New("connection reset by peer")
	respFor := func(method string) *resty.Response {
		return &resty.Response{Request: &resty.Request{Method: method}}
	}

	assert.True(t, shouldRetry(respFor(http.MethodGet), transport))
	assert.False(t, shouldRetry(respFor(http.MethodPost), transport))
	assert.False(t, shouldRetry(respFor(http.MethodPut), transport))
	assert.False(t, shouldRetry(respFor(http.MethodDelete), transport))
	assert.False(t, shouldRetry(nil, transport))
}

func TestWritesAreNotReplayedAfterTransportFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("hijack: %v", err)
			return
		}
		_ = conn.Close()
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithRetries(3, time.Millisecond))
	require.NoError(t, err)

	_, err = c.ApproveJoinRequest(context.Background(), "g1", "jr1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	_, err = c.GetGroup(context.Background(), "g1")
	require.Error(t, err)
	assert.Equal(t, int32(4), calls.Load())
}
