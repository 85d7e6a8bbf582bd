package groups

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestConcurrentAddMemberAdmitsExactlyOne(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "U1", "Eng", "")
	require.NoError(t, err)
	roles, err := store.ListRoles(ctx, g.ID)
	require.NoError(t, err)
	member := roleNamed(t, roles, DefaultRoleName)

	const n = 32
	var ok, dup atomic.Int32
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		eg.Go(func() error {
			_, err := svc.AddMember(ctx, "U1", g.ID, "U2", member.ID)
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, ErrAlreadyMember):
				dup.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.EqualValues(t, 1, ok.Load())
	assert.EqualValues(t, n-1, dup.Load())

	members, err := store.ListMembers(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestConcurrentResolutionsHaveOneWinner(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "U1", "Eng", "")
	require.NoError(t, err)
	req, err := svc.CreateJoinRequest(ctx, "U2", g.ID)
	require.NoError(t, err)

	const n = 16
	var won, lost atomic.Int32
	var eg errgroup.Group
	for i := 0; i < n; i++ {
		approve := i%2 == 0
		eg.Go(func() error {
			var err error
			if approve {
				_, err = svc.ApproveJoinRequest(ctx, "U1", g.ID, req.ID)
			} else {
				_, err = svc.RejectJoinRequest(ctx, "U1", g.ID, req.ID)
			}
			switch {
			case err == nil:
				won.Add(1)
			case errors.Is(err, ErrNotPending):
				lost.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())
	assert.EqualValues(t, 1, won.Load())
	assert.EqualValues(t, n-1, lost.Load())

	final, err := store.GetJoinRequest(ctx, g.ID, req.ID)
	require.NoError(t, err)
	require.True(t, final.Status.Terminal())

	_, err = store.GetMember(ctx, g.ID, "U2")
	if final.Status == JoinApproved {
		assert.NoError(t, err)
	} else {
		assert.ErrorIs(t, err, ErrMemberNotFound)
	}
}

func TestConcurrentJoinRequestsKeepOnePending(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	g, err := svc.CreateGroup(ctx, "U1", "Eng", "")
	require.NoError(t, err)

	var eg errgroup.Group
	for i := 0; i < 16; i++ {
		eg.Go(func() error {
			_, err := svc.CreateJoinRequest(ctx, "U2", g.ID)
			if err != nil && !errors.Is(err, ErrAlreadyPending) {
				return err
			}
			return nil
		})
	}
	require.NoError(t, eg.Wait())

	reqs, err := store.ListJoinRequests(ctx, g.ID)
	require.NoError(t, err)
	assert.Len(t, reqs, 1)
}
