package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-accounts/internal/model"
	"go-accounts/pkg/apierror"
)

func TestAuditService_QueryFilters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.audit.Log(ctx, model.AuditActionLogin, model.AuditActor{UserID: "1", IP: "10.0.0.1"}, model.AuditStatusSuccess, "ada", "")
	env.clock.Advance(24 * time.Hour)
	env.audit.Log(ctx, model.AuditActionLogin, model.AuditActor{IP: "10.0.0.2"}, model.AuditStatusFailure, "mallory", "invalid credentials")
	env.audit.Log(ctx, model.AuditActionLogout, model.AuditActor{UserID: "1"}, model.AuditStatusSuccess, "ada", "")

	items, meta, err := env.audit.Query(ctx, model.AuditQuery{Action: " AUTH.LOGIN ", Status: "Failure"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "mallory", items[0].Resource)
	assert.Equal(t, 1, meta.Total)

	items, _, err = env.audit.Query(ctx, model.AuditQuery{ActorID: "1"})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, model.AuditActionLogout, items[0].Action, "newest first")

	items, _, err = env.audit.Query(ctx, model.AuditQuery{From: "2026-03-02"})
	require.NoError(t, err)
	assert.Len(t, items, 2)

	items, meta, err = env.audit.Query(ctx, model.AuditQuery{Limit: 1000, Page: -3})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, model.Meta{Page: 1, Limit: 200, Total: 3, TotalPages: 1}, meta)
}

func TestAuditService_QueryRejectsBadFilters(t *testing.T) {
	env := newTestEnv(t)

	tests := map[string]model.AuditQuery{
		"unknown action":  {Action: "files.delete"},
		"unknown status":  {Status: "maybe"},
		"actor not an id": {ActorID: "ada"},
		"bad from":        {From: "yesterday"},
		"bad to":          {To: "03/01/2026"},
		"inverted range":  {From: "2026-03-02T00:00:00Z", To: "2026-03-01T00:00:00Z"},
	}
	for name, query := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := env.audit.Query(context.Background(), query)
			apiErr, ok := apierror.As(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, 400, apiErr.HTTPStatus)
		})
	}
}

func TestAuditService_NilIsSafe(t *testing.T) {
	var audit *AuditService
	audit.Log(context.Background(), model.AuditActionLogin, model.AuditActor{}, model.AuditStatusSuccess, "", "")
}
