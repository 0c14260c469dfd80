package memstore

import (
	"context"
	"slices"
	"strings"
	"time"

	"go-accounts/internal/model"
)

type audit struct {
	s *Store
}

func (r audit) Log(_ context.Context, entry model.AuditEntry) error {
	st, err := r.s.lock("Audit.Log")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	st.nextAuditID++
	entry.ID = st.nextAuditID
	st.audit = append(st.audit, entry)
	return nil
}

func (r audit) Query(_ context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	st, err := r.s.lock("Audit.Query")
	defer r.s.unlock()
	if err != nil {
		return nil, model.Meta{}, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	page := max(query.Page, 1)

	from, _ := time.Parse(time.RFC3339, strings.TrimSpace(query.From))
	to, _ := time.Parse(time.RFC3339, strings.TrimSpace(query.To))

	items := make([]model.AuditEntry, 0)
	for _, e := range slices.Backward(st.audit) {
		if query.Action != "" && !strings.EqualFold(e.Action, query.Action) {
			continue
		}
		if query.Status != "" && !strings.EqualFold(e.Status, query.Status) {
			continue
		}
		if query.ActorID != "" && e.Actor.UserID != query.ActorID {
			continue
		}
		if !from.IsZero() && e.OccurredAt.Before(from) {
			continue
		}
		if !to.IsZero() && e.OccurredAt.After(to) {
			continue
		}
		items = append(items, e)
	}

	total := len(items)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)

	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return items[start:end], model.Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}, nil
}
