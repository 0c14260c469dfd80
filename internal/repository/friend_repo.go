package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"go-accounts/internal/model"
)

const friendRequestColumns = `id, sender_id, receiver_id, status, created_at, updated_at`

type FriendRepository struct {
	db DB
}

func NewFriendRepository(db DB) *FriendRepository {
	return &FriendRepository{db: db}
}

func (r *FriendRepository) FindByID(ctx context.Context, id int64) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := pgxscan.Get(ctx, r.db, &req,
		`SELECT `+friendRequestColumns+` FROM friend_requests WHERE id = $1`, id)
	if err != nil {
		return model.FriendRequest{}, wrapNotFound(err, model.ErrFriendRequestNotFound, "find friend request")
	}
	return req, nil
}

// FindBetween returns the request between two users in either direction.
func (r *FriendRepository) FindBetween(ctx context.Context, a int64, b int64) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := pgxscan.Get(ctx, r.db, &req,
		`SELECT `+friendRequestColumns+` FROM friend_requests
		 WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)`, a, b)
	if err != nil {
		return model.FriendRequest{}, wrapNotFound(err, model.ErrFriendRequestNotFound, "find friend request between users")
	}
	return req, nil
}

func (r *FriendRepository) Create(ctx context.Context, req *model.FriendRequest) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO friend_requests (sender_id, receiver_id, status)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		req.SenderID, req.ReceiverID, string(req.Status)).Scan(&req.ID, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create friend request: %w", err)
	}
	return nil
}

// Reopen turns an existing request back into a pending one from senderID.
func (r *FriendRepository) Reopen(ctx context.Context, id int64, senderID int64, receiverID int64) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := pgxscan.Get(ctx, r.db, &req,
		`UPDATE friend_requests
		 SET sender_id = $2, receiver_id = $3, status = 'pending', updated_at = now()
		 WHERE id = $1
		 RETURNING `+friendRequestColumns, id, senderID, receiverID)
	if err != nil {
		return model.FriendRequest{}, wrapNotFound(err, model.ErrFriendRequestNotFound, "reopen friend request")
	}
	return req, nil
}

func (r *FriendRepository) UpdateStatus(ctx context.Context, id int64, status model.FriendRequestStatus) (model.FriendRequest, error) {
	var req model.FriendRequest
	err := pgxscan.Get(ctx, r.db, &req,
		`UPDATE friend_requests SET status = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+friendRequestColumns, id, string(status))
	if err != nil {
		return model.FriendRequest{}, wrapNotFound(err, model.ErrFriendRequestNotFound, "update friend request")
	}
	return req, nil
}

func (r *FriendRepository) ListRequests(ctx context.Context, userID int64, status model.FriendRequestStatus) ([]model.FriendRequestView, error) {
	rows, err := r.db.Query(ctx,
		`SELECT fr.id, fr.status, fr.created_at, fr.updated_at,
		        s.id, s.username, s.first_name, s.last_name, s.profile_image, s.bio,
		        rc.id, rc.username, rc.first_name, rc.last_name, rc.profile_image, rc.bio
		 FROM friend_requests fr
		 JOIN users s ON s.id = fr.sender_id
		 JOIN users rc ON rc.id = fr.receiver_id
		 WHERE (fr.sender_id = $1 OR fr.receiver_id = $1)
		   AND ($2::text = '' OR fr.status = $2::text)
		 ORDER BY fr.created_at DESC`, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("list friend requests: %w", err)
	}
	defer rows.Close()

	views := make([]model.FriendRequestView, 0)
	for rows.Next() {
		var v model.FriendRequestView
		if err := rows.Scan(
			&v.ID, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&v.Sender.ID, &v.Sender.Username, &v.Sender.FirstName, &v.Sender.LastName, &v.Sender.ProfileImage, &v.Sender.Bio,
			&v.Receiver.ID, &v.Receiver.Username, &v.Receiver.FirstName, &v.Receiver.LastName, &v.Receiver.ProfileImage, &v.Receiver.Bio,
		); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

func (r *FriendRepository) ListFriends(ctx context.Context, userID int64) ([]model.Friend, error) {
	friends := make([]model.Friend, 0)
	err := pgxscan.Select(ctx, r.db, &friends,
		`SELECT u.id, u.username, u.first_name, u.last_name, u.profile_image, u.bio,
		        fr.updated_at AS friend_since
		 FROM friend_requests fr
		 JOIN users u ON u.id = CASE WHEN fr.sender_id = $1 THEN fr.receiver_id ELSE fr.sender_id END
		 WHERE (fr.sender_id = $1 OR fr.receiver_id = $1) AND fr.status = 'accepted'
		 ORDER BY u.username`, userID)
	if err != nil {
		return nil, fmt.Errorf("list friends: %w", err)
	}
	return friends, nil
}

func (r *FriendRepository) DeleteAccepted(ctx context.Context, a int64, b int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM friend_requests
		 WHERE status = 'accepted'
		   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`, a, b)
	if err != nil {
		return 0, fmt.Errorf("delete friendship: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *FriendRepository) RejectPending(ctx context.Context, a int64, b int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE friend_requests SET status = 'rejected', updated_at = now()
		 WHERE status = 'pending'
		   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`, a, b)
	if err != nil {
		return fmt.Errorf("reject pending friend requests: %w", err)
	}
	return nil
}
