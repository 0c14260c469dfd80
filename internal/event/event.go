package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeSessionRevoked        Type = "session.revoked"
	TypeFriendRequestReceived Type = "friend.request.received"
	TypeFriendRequestAccepted Type = "friend.request.accepted"
	TypeUserBlocked           Type = "user.blocked"
	TypeUserDeleted           Type = "user.deleted"
)

type Event struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	UserID    int64     `json:"user_id"` // Recipient of the notification
	ActorID   int64     `json:"actor_id,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func New(t Type, userID int64, actorID int64, payload any) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		ActorID:   actorID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

type Bus interface {
	Publish(e Event)
	Subscribe() (<-chan Event, func()) // Returns channel and unsubscribe function
}
