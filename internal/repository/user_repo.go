package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"go-accounts/internal/model"
)

const userColumns = `u.id, u.username, u.email, u.password_hash, u.first_name, u.last_name,
	u.phone, u.profile_image, u.bio, u.token_version, u.created_at, u.updated_at,
	ARRAY(SELECT r.name FROM user_roles ur JOIN roles r ON r.id = ur.role_id
	      WHERE ur.user_id = u.id ORDER BY r.name)::text[] AS roles`

type UserRepository struct {
	db DB
}

func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByID(ctx context.Context, id int64) (model.User, error) {
	var u model.User
	err := pgxscan.Get(ctx, r.db, &u, `SELECT `+userColumns+` FROM users u WHERE u.id = $1`, id)
	if err != nil {
		return model.User{}, wrapNotFound(err, model.ErrUserNotFound, "find user by id")
	}
	return u, nil
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := pgxscan.Get(ctx, r.db, &u,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.username) = lower($1)`,
		strings.TrimSpace(username))
	if err != nil {
		return model.User{}, wrapNotFound(err, model.ErrUserNotFound, "find user by username")
	}
	return u, nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := pgxscan.Get(ctx, r.db, &u,
		`SELECT `+userColumns+` FROM users u WHERE lower(u.email) = lower($1)`,
		strings.TrimSpace(email))
	if err != nil {
		return model.User{}, wrapNotFound(err, model.ErrUserNotFound, "find user by email")
	}
	return u, nil
}

func (r *UserRepository) TokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.db.QueryRow(ctx, `SELECT token_version FROM users WHERE id = $1`, id).Scan(&version)
	if err != nil {
		return 0, wrapNotFound(err, model.ErrUserNotFound, "load token version")
	}
	return version, nil
}

// ExistsByUsername ignores the user with excludeID so renames can keep
// their own name. Pass 0 to check every user.
func (r *UserRepository) ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(username) = lower($1) AND id <> $2)`,
		strings.TrimSpace(username), excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check username exists: %w", err)
	}
	return exists, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE lower(email) = lower($1))`,
		strings.TrimSpace(email)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check email exists: %w", err)
	}
	return exists, nil
}

// Create inserts the user and its roles. ID, TokenVersion and the
// timestamps are filled from the database.
func (r *UserRepository) Create(ctx context.Context, u *model.User) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash, first_name, last_name, phone, bio)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, token_version, created_at, updated_at`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName, u.Phone, u.Bio).
		Scan(&u.ID, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}

	if len(u.Roles) == 0 {
		return nil
	}

	tag, err := r.db.Exec(ctx,
		`INSERT INTO user_roles (user_id, role_id)
		 SELECT $1, id FROM roles WHERE name = ANY($2)`,
		u.ID, u.Roles)
	if err != nil {
		return fmt.Errorf("assign user roles: %w", err)
	}
	if tag.RowsAffected() != int64(len(u.Roles)) {
		return fmt.Errorf("assign user roles: unknown role in %v", u.Roles)
	}
	return nil
}

func (r *UserRepository) Update(ctx context.Context, u model.User) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users
		 SET username = $2, first_name = $3, last_name = $4, phone = $5, bio = $6, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Username, u.FirstName, u.LastName, u.Phone, u.Bio)
	if isUniqueViolation(err) {
		return model.ErrUserAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) UpdateProfileImage(ctx context.Context, id int64, image string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE users SET profile_image = $2, updated_at = now() WHERE id = $1`,
		id, image)
	if err != nil {
		return fmt.Errorf("update profile image: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

// IncrementTokenVersion bumps the version in a single statement and returns
// the new value.
func (r *UserRepository) IncrementTokenVersion(ctx context.Context, id int64) (int, error) {
	var version int
	err := r.db.QueryRow(ctx,
		`UPDATE users SET token_version = token_version + 1, updated_at = now()
		 WHERE id = $1
		 RETURNING token_version`, id).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrUserNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment token version: %w", err)
	}
	return version, nil
}

func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrUserNotFound
	}
	return nil
}

func (r *UserRepository) Search(ctx context.Context, query model.UserSearchQuery) ([]model.PublicUser, int, error) {
	_, limit, offset := pageBounds(query.Page, query.Limit, 20, 100)
	pattern := "%" + escapeLike(strings.TrimSpace(query.Query)) + "%"

	const where = `WHERE username ILIKE $1 OR first_name ILIKE $1 OR last_name ILIKE $1`

	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users `+where, pattern).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	users := make([]model.PublicUser, 0)
	err := pgxscan.Select(ctx, r.db, &users,
		`SELECT id, username, first_name, last_name, profile_image, bio
		 FROM users `+where+`
		 ORDER BY username
		 LIMIT $2 OFFSET $3`, pattern, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("search users: %w", err)
	}
	return users, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
