// Package memstore is an in-memory repository.Store for tests and local runs
// without Postgres.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"go-accounts/internal/model"
	"go-accounts/internal/repository"
)

type state struct {
	nextUserID    int64
	nextTokenID   int64
	nextRequestID int64
	nextBlockID   int64
	nextAuditID   int64
	users         map[int64]model.User
	tokens        map[int64]model.RefreshToken
	requests      map[int64]model.FriendRequest
	blocks        map[int64]model.Block
	audit         []model.AuditEntry
}

func (st *state) clone() *state {
	out := *st
	out.users = maps.Clone(st.users)
	out.tokens = maps.Clone(st.tokens)
	out.requests = maps.Clone(st.requests)
	out.blocks = maps.Clone(st.blocks)
	out.audit = slices.Clone(st.audit)
	return &out
}

type shared struct {
	mu     sync.Mutex
	txMu   sync.Mutex
	st     *state
	faults map[string]error
	now    func() time.Time
}

// Store keeps every table in maps guarded by one mutex. Transactions are
// serialized and roll back by restoring a snapshot; calls made outside a
// transaction wait for the running one to finish, so a rollback never drops
// their writes.
type Store struct {
	sh   *shared
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{sh: &shared{
		st: &state{
			users:    map[int64]model.User{},
			tokens:   map[int64]model.RefreshToken{},
			requests: map[int64]model.FriendRequest{},
			blocks:   map[int64]model.Block{},
		},
		faults: map[string]error{},
		now:    time.Now,
	}}
}

// Fail makes every call to op return err until cleared with a nil err.
// op names look like "RefreshTokens.Create" or "Users.FindByEmail".
func (s *Store) Fail(op string, err error) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	if err == nil {
		delete(s.sh.faults, op)
		return
	}
	s.sh.faults[op] = err
}

// SetClock overrides the time source used for row timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()
	s.sh.now = now
}

// RefreshTokensFor returns every refresh token row of a user, revoked or not.
func (s *Store) RefreshTokensFor(userID int64) []model.RefreshToken {
	s.sh.mu.Lock()
	defer s.sh.mu.Unlock()

	out := make([]model.RefreshToken, 0)
	for _, t := range s.sh.st.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Users() repository.UserStore { return users{s} }
func (s *Store) RefreshTokens() repository.TokenStore { return tokens{s} }
func (s *Store) Friends() repository.FriendStore { return friends{s} }
func (s *Store) Blocks() repository.BlockStore { return blocks{s} }
func (s *Store) Audit() repository.AuditStore { return audit{s} }

func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.sh.txMu.Lock()
	defer s.sh.txMu.Unlock()

	s.sh.mu.Lock()
	snapshot := s.sh.st.clone()
	s.sh.mu.Unlock()

	err := fn(&Store{sh: s.sh, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.sh.mu.Lock()
		s.sh.st = snapshot
		s.sh.mu.Unlock()
		return err
	}
	return nil
}

// lock acquires the data mutex and reports any injected fault for op.
// Outside a transaction it takes the transaction mutex first.
func (s *Store) lock(op string) (*state, error) {
	if !s.inTx {
		s.sh.txMu.Lock()
	}
	s.sh.mu.Lock()
	if err, ok := s.sh.faults[op]; ok {
		return nil, err
	}
	return s.sh.st, nil
}

func (s *Store) unlock() {
	s.sh.mu.Unlock()
	if !s.inTx {
		s.sh.txMu.Unlock()
	}
}

func (s *Store) now() time.Time {
	return s.sh.now().UTC()
}

func containsFold(haystack string, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
