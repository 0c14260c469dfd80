package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"go-accounts/internal/model"
)

// DB is the query surface shared by *pgxpool.Pool, pgx.Tx and pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Conn is a DB that can open transactions.
type Conn interface {
	DB
	Begin(ctx context.Context) (pgx.Tx, error)
}

type UserStore interface {
	FindByID(ctx context.Context, id int64) (model.User, error)
	FindByUsername(ctx context.Context, username string) (model.User, error)
	FindByEmail(ctx context.Context, email string) (model.User, error)
	TokenVersion(ctx context.Context, id int64) (int, error)
	ExistsByUsername(ctx context.Context, username string, excludeID int64) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Create(ctx context.Context, u *model.User) error
	Update(ctx context.Context, u model.User) error
	UpdatePassword(ctx context.Context, id int64, passwordHash string) error
	UpdateProfileImage(ctx context.Context, id int64, image string) error
	IncrementTokenVersion(ctx context.Context, id int64) (int, error)
	Delete(ctx context.Context, id int64) error
	Search(ctx context.Context, query model.UserSearchQuery) ([]model.PublicUser, int, error)
}

// TokenStore persists refresh tokens. Rotation goes through ClaimActive;
// FindActive and Revoke complete the storage contract with a plain lookup and
// a single-row revoke; no service path calls them.
type TokenStore interface {
	Create(ctx context.Context, t *model.RefreshToken) error
	FindActive(ctx context.Context, token string) (model.RefreshToken, error)
	ClaimActive(ctx context.Context, token string) (model.RefreshToken, error)
	Revoke(ctx context.Context, id int64) (int64, error)
	RevokeAllForUser(ctx context.Context, userID int64) (int64, error)
}

type FriendStore interface {
	FindByID(ctx context.Context, id int64) (model.FriendRequest, error)
	FindBetween(ctx context.Context, a int64, b int64) (model.FriendRequest, error)
	Create(ctx context.Context, req *model.FriendRequest) error
	Reopen(ctx context.Context, id int64, senderID int64, receiverID int64) (model.FriendRequest, error)
	UpdateStatus(ctx context.Context, id int64, status model.FriendRequestStatus) (model.FriendRequest, error)
	ListRequests(ctx context.Context, userID int64, status model.FriendRequestStatus) ([]model.FriendRequestView, error)
	ListFriends(ctx context.Context, userID int64) ([]model.Friend, error)
	DeleteAccepted(ctx context.Context, a int64, b int64) (int64, error)
	RejectPending(ctx context.Context, a int64, b int64) error
}

type BlockStore interface {
	Exists(ctx context.Context, blockerID int64, blockedID int64) (bool, error)
	Create(ctx context.Context, b *model.Block) error
	Delete(ctx context.Context, blockerID int64, blockedID int64) (int64, error)
	List(ctx context.Context, blockerID int64) ([]model.BlockedUser, error)
}

type AuditStore interface {
	Log(ctx context.Context, entry model.AuditEntry) error
	Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error)
}

// Store groups the repositories. Stores handed to a WithinTx callback share
// one transaction; the transaction commits when fn returns nil.
type Store interface {
	Users() UserStore
	RefreshTokens() TokenStore
	Friends() FriendStore
	Blocks() BlockStore
	Audit() AuditStore
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type PostgresStore struct {
	conn Conn
}

func NewPostgresStore(conn Conn) *PostgresStore {
	return &PostgresStore{conn: conn}
}

func (s *PostgresStore) Users() UserStore { return NewUserRepository(s.conn) }
func (s *PostgresStore) RefreshTokens() TokenStore { return NewTokenRepository(s.conn) }
func (s *PostgresStore) Friends() FriendStore { return NewFriendRepository(s.conn) }
func (s *PostgresStore) Blocks() BlockStore { return NewBlockRepository(s.conn) }
func (s *PostgresStore) Audit() AuditStore { return NewAuditRepository(s.conn) }

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	return pgx.BeginFunc(ctx, s.conn, func(tx pgx.Tx) error {
		return fn(&PostgresStore{conn: tx})
	})
}

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// sqlFilter accumulates AND-ed conditions. Each "?" in a condition becomes
// the next positional parameter.
type sqlFilter struct {
	conds []string
	args  []any
}

func (f *sqlFilter) addIf(ok bool, cond string, arg any) {
	if !ok {
		return
	}
	f.args = append(f.args, arg)
	f.conds = append(f.conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(f.args)), 1))
}

func (f *sqlFilter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

// page appends limit and offset to the arguments and returns the clause
// referring to them. Call it after where.
func (f *sqlFilter) page(limit int, offset int) string {
	f.args = append(f.args, limit, offset)
	n := len(f.args)
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", n-1, n)
}

func pageBounds(page int, limit int, defaultLimit int, maxLimit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return page, limit, (page - 1) * limit
}

func newMeta(page int, limit int, total int) model.Meta {
	totalPages := 0
	if total > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return model.Meta{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

func wrapNotFound(err error, notFound error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) || pgxscan.NotFound(err) {
		return notFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
