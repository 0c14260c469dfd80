package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-accounts/internal/model"
)

func TestUserRepository_IncrementTokenVersion(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`UPDATE users SET token_version = token_version \+ 1`).
		WithArgs(int64(4)).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(3))

	version, err := repo.IncrementTokenVersion(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestUserRepository_IncrementTokenVersion_MissingUser(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`UPDATE users SET token_version = token_version \+ 1`).
		WithArgs(int64(404)).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}))

	_, err := repo.IncrementTokenVersion(context.Background(), 404)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestUserRepository_TokenVersion(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`SELECT token_version FROM users WHERE id = \$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}).AddRow(0))
	mock.ExpectQuery(`SELECT token_version FROM users WHERE id = \$1`).
		WithArgs(int64(2)).
		WillReturnRows(pgxmock.NewRows([]string{"token_version"}))

	version, err := repo.TokenVersion(context.Background(), 1)
	require.NoError(t, err)
	assert.Zero(t, version)

	_, err = repo.TokenVersion(context.Background(), 2)
	require.ErrorIs(t, err, model.ErrUserNotFound)
}

func TestUserRepository_Create(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)
	now := time.Now().UTC()
	hash := "hash"

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", &hash, "", "", "", "").
		WillReturnRows(pgxmock.NewRows([]string{"id", "token_version", "created_at", "updated_at"}).
			AddRow(int64(1), 0, now, now))
	mock.ExpectExec(`INSERT INTO user_roles`).
		WithArgs(int64(1), []string{model.RoleUser}).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	u := &model.User{
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: &hash,
		Roles:        []string{model.RoleUser},
	}
	require.NoError(t, repo.Create(context.Background(), u))
	assert.Equal(t, int64(1), u.ID)
	assert.Zero(t, u.TokenVersion)
	assert.Equal(t, now, u.CreatedAt)
}

func TestUserRepository_Create_Conflict(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@example.com", (*string)(nil), "", "", "", "").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_lower_key"})

	err := repo.Create(context.Background(), &model.User{Username: "alice", Email: "alice@example.com"})
	require.ErrorIs(t, err, model.ErrUserAlreadyExists)
}

func TestUserRepository_Delete_NotFound(t *testing.T) {
	t.Parallel()

	mock := newMockPool(t)
	repo := NewUserRepository(mock)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.ErrorIs(t, repo.Delete(context.Background(), 9), model.ErrUserNotFound)
}
