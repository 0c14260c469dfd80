package model

import "time"

type FriendRequestStatus string

const (
	FriendRequestPending  FriendRequestStatus = "pending"
	FriendRequestAccepted FriendRequestStatus = "accepted"
	FriendRequestRejected FriendRequestStatus = "rejected"
)

func (s FriendRequestStatus) Valid() bool {
	switch s {
	case FriendRequestPending, FriendRequestAccepted, FriendRequestRejected:
		return true
	default:
		return false
	}
}

type FriendRequest struct {
	ID         int64               `json:"id" db:"id"`
	SenderID   int64               `json:"sender_id" db:"sender_id"`
	ReceiverID int64               `json:"receiver_id" db:"receiver_id"`
	Status     FriendRequestStatus `json:"status" db:"status"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

// FriendRequestView is a request with both parties resolved.
type FriendRequestView struct {
	ID        int64               `json:"id"`
	Status    FriendRequestStatus `json:"status"`
	Sender    PublicUser          `json:"sender"`
	Receiver  PublicUser          `json:"receiver"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt time.Time           `json:"updated_at"`
}

type Friend struct {
	PublicUser
	FriendSince time.Time `json:"friend_since" db:"friend_since"`
}

type Block struct {
	ID        int64     `json:"id" db:"id"`
	BlockerID int64     `json:"blocker_id" db:"blocker_id"`
	BlockedID int64     `json:"blocked_id" db:"blocked_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type BlockedUser struct {
	PublicUser
	BlockedAt time.Time `json:"blocked_at" db:"blocked_at"`
}
