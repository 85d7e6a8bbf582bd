package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"groupgate.org/internal/groups"
)

func TestHubDeliversToGroupSubscribersOnly(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx, "g1")
	b := hub.Subscribe(ctx, "g2")

	hub.Publish(groups.Event{Type: groups.EventMemberAdded, GroupID: "g1", UserID: "bob"})

	select {
	case evt := <-a:
		assert.Equal(t, groups.EventMemberAdded, evt.Type)
		assert.Equal(t, "bob", evt.UserID)
	case <-time.After(time.Second):
		t.Fatal("g1 subscriber did not receive the event")
	}
	select {
	case evt := <-b:
		t.Fatalf("g2 subscriber received %v", evt)
	default:
	}
}

func TestHubDropsForSlowSubscribers(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := hub.Subscribe(ctx, "g1")

	for i := 0; i < bufferSize*2; i++ {
		hub.Publish(groups.Event{Type: groups.EventRoleUpdated, GroupID: "g1"})
	}
	assert.Len(t, ch, bufferSize)
}

func TestHubClosesOnCancel(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx, "g1")
	require.Equal(t, 1, hub.Subscribers("g1"))

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	assert.Eventually(t, func() bool { return hub.Subscribers("g1") == 0 }, time.Second, 10*time.Millisecond)
}
