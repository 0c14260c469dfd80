package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"

	"go-accounts/internal/model"
)

type AuditRepository struct {
	db DB
}

func NewAuditRepository(db DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditRow struct {
	ID            int64     `db:"id"`
	Action        string    `db:"action"`
	OccurredAt    time.Time `db:"occurred_at"`
	ActorUserID   string    `db:"actor_user_id"`
	ActorUsername string    `db:"actor_username"`
	ActorIP       string    `db:"actor_ip"`
	Status        string    `db:"status"`
	Resource      string    `db:"resource"`
	ErrorText     string    `db:"error_text"`
}

func (row auditRow) entry() model.AuditEntry {
	return model.AuditEntry{
		ID:         row.ID,
		Action:     row.Action,
		OccurredAt: row.OccurredAt,
		Actor:      model.AuditActor{UserID: row.ActorUserID, Username: row.ActorUsername, IP: row.ActorIP},
		Status:     row.Status,
		Resource:   row.Resource,
		Error:      row.ErrorText,
	}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_user_id, actor_username, actor_ip, status, resource, error_text)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.Action, entry.OccurredAt,
		entry.Actor.UserID, entry.Actor.Username, entry.Actor.IP,
		entry.Status, entry.Resource, entry.Error)
	if err != nil {
		return fmt.Errorf("log audit entry: %w", err)
	}
	return nil
}

// Query returns one page of entries, newest first. From and To must already
// be RFC 3339 timestamps.
func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	page, limit, offset := pageBounds(query.Page, query.Limit, 50, 200)

	var f sqlFilter
	f.addIf(query.Action != "", "lower(action) = lower(?)", query.Action)
	f.addIf(query.ActorID != "", "actor_user_id = ?", query.ActorID)
	f.addIf(query.Status != "", "lower(status) = lower(?)", query.Status)
	f.addIf(query.From != "", "occurred_at >= ?::timestamptz", query.From)
	f.addIf(query.To != "", "occurred_at <= ?::timestamptz", query.To)

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM audit_entries"+f.where(), f.args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count audit entries: %w", err)
	}

	sql := `SELECT id, action, occurred_at, actor_user_id, actor_username, actor_ip,
	               status, resource, error_text
	        FROM audit_entries` + f.where() + `
	        ORDER BY occurred_at DESC, id DESC
	        ` + f.page(limit, offset)

	var rows []auditRow
	if err := pgxscan.Select(ctx, r.db, &rows, sql, f.args...); err != nil {
		return nil, model.Meta{}, fmt.Errorf("query audit entries: %w", err)
	}

	entries := make([]model.AuditEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, newMeta(page, limit, total), nil
}
