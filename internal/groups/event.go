package groups

import "time"

type EventType string

const (
	EventMemberAdded         EventType = "member.added"
	EventMemberRemoved       EventType = "member.removed"
	EventMemberRoleChanged   EventType = "member.role_changed"
	EventRoleCreated         EventType = "role.created"
	EventRoleUpdated         EventType = "role.updated"
	EventRoleDeleted         EventType = "role.deleted"
	EventJoinRequestCreated  EventType = "join_request.created"
	EventJoinRequestApproved EventType = "join_request.approved"
	EventJoinRequestRejected EventType = "join_request.rejected"
	EventGroupUpdated        EventType = "group.updated"
	EventGroupDeleted        EventType = "group.deleted"
)

// Event is a notification about a committed change in a group.
type Event struct {
	Type      EventType `json:"type"`
	GroupID   string    `json:"group_id"`
	ActorID   string    `json:"actor_id,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	RoleID    string    `json:"role_id,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	At        time.Time `json:"at"`
}

// Publisher receives events after the change they describe has committed.
// Publish must not block.
type Publisher interface {
	Publish(Event)
}

// Publishers fans each event out to every non-nil publisher in order.
type Publishers []Publisher

func (ps Publishers) Publish(evt Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(evt)
		}
	}
}

// PublisherFunc adapts a plain function to Publisher.
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(evt Event) { f(evt) }
