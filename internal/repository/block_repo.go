package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"go-accounts/internal/model"
)

type BlockRepository struct {
	db DB
}

func NewBlockRepository(db DB) *BlockRepository {
	return &BlockRepository{db: db}
}

func (r *BlockRepository) Exists(ctx context.Context, blockerID int64, blockedID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM blocklist WHERE blocker_id = $1 AND blocked_id = $2)`,
		blockerID, blockedID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block exists: %w", err)
	}
	return exists, nil
}

func (r *BlockRepository) Create(ctx context.Context, b *model.Block) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO blocklist (blocker_id, blocked_id) VALUES ($1, $2)
		 RETURNING id, created_at`,
		b.BlockerID, b.BlockedID).Scan(&b.ID, &b.CreatedAt)
	if err != nil {
		return fmt.Errorf("create block: %w", err)
	}
	return nil
}

func (r *BlockRepository) Delete(ctx context.Context, blockerID int64, blockedID int64) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM blocklist WHERE blocker_id = $1 AND blocked_id = $2`, blockerID, blockedID)
	if err != nil {
		return 0, fmt.Errorf("delete block: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *BlockRepository) List(ctx context.Context, blockerID int64) ([]model.BlockedUser, error) {
	blocked := make([]model.BlockedUser, 0)
	err := pgxscan.Select(ctx, r.db, &blocked,
		`SELECT u.id, u.username, u.first_name, u.last_name, u.profile_image, u.bio,
		        b.created_at AS blocked_at
		 FROM blocklist b
		 JOIN users u ON u.id = b.blocked_id
		 WHERE b.blocker_id = $1
		 ORDER BY b.created_at DESC`, blockerID)
	if err != nil {
		return nil, fmt.Errorf("list blocked users: %w", err)
	}
	return blocked, nil
}
