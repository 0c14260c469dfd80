package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"go-accounts/internal/model"
	"go-accounts/internal/repository"
	"go-accounts/pkg/apierror"
)

// AuditService records security-relevant actions. Logging never fails the
// caller; a lost entry is reported through slog instead.
type AuditService struct {
	store repository.Store
	now   func() time.Time
}

func NewAuditService(store repository.Store) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, errText string) {
	if s == nil {
		return
	}

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: s.now().UTC(),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Error:      errText,
	}

	if err := s.store.Audit().Log(context.WithoutCancel(ctx), entry); err != nil {
		slog.Error("write audit entry", "action", action, "actor", actor.UserID, "error", err)
	}
}

var (
	auditActions = []string{
		model.AuditActionLogin,
		model.AuditActionRegister,
		model.AuditActionRefresh,
		model.AuditActionLogout,
		model.AuditActionPasswordChange,
		model.AuditActionUserDelete,
	}
	auditStatuses = []string{model.AuditStatusSuccess, model.AuditStatusFailure}
)

// Query validates and normalizes the filters, then returns one page of the
// trail, newest first. Times accept RFC 3339 or a bare date, read as UTC
// midnight.
func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	query.Page = max(query.Page, 1)
	if query.Limit <= 0 {
		query.Limit = 50
	}
	query.Limit = min(query.Limit, 200)

	query.Action = strings.ToLower(strings.TrimSpace(query.Action))
	if query.Action != "" && !slices.Contains(auditActions, query.Action) {
		return nil, model.Meta{}, apierror.BadRequest("unknown audit action", query.Action)
	}

	query.Status = strings.ToLower(strings.TrimSpace(query.Status))
	if query.Status != "" && !slices.Contains(auditStatuses, query.Status) {
		return nil, model.Meta{}, apierror.BadRequest("status must be success or failure", query.Status)
	}

	query.ActorID = strings.TrimSpace(query.ActorID)
	if query.ActorID != "" {
		if id, err := strconv.ParseInt(query.ActorID, 10, 64); err != nil || id <= 0 {
			return nil, model.Meta{}, apierror.BadRequest("actor_id must be a user id", query.ActorID)
		}
	}

	from, err := parseAuditTime(query.From)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'from' datetime format", query.From)
	}
	to, err := parseAuditTime(query.To)
	if err != nil {
		return nil, model.Meta{}, apierror.BadRequest("invalid 'to' datetime format", query.To)
	}
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, model.Meta{}, apierror.BadRequest("'to' must not be before 'from'", "")
	}
	query.From = formatAuditTime(from)
	query.To = formatAuditTime(to)

	return s.store.Audit().Query(ctx, query)
}

func parseAuditTime(raw string) (time.Time, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return time.Time{}, nil
	}

	for _, layout := range []string{time.RFC3339Nano, time.DateOnly} {
		if value, err := time.Parse(layout, trimmed); err == nil {
			return value.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("parse audit time %q", trimmed)
}

func formatAuditTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}
