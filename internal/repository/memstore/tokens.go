package memstore

import (
	"context"

	"go-accounts/internal/model"
)

type tokens struct {
	s *Store
}

func (r tokens) Create(_ context.Context, t *model.RefreshToken) error {
	st, err := r.s.lock("RefreshTokens.Create")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	if _, ok := st.users[t.UserID]; !ok {
		return model.ErrUserNotFound
	}

	st.nextTokenID++
	t.ID = st.nextTokenID
	t.Revoked = false
	t.CreatedAt = r.s.now()
	st.tokens[t.ID] = *t
	return nil
}

func (r tokens) FindActive(_ context.Context, token string) (model.RefreshToken, error) {
	st, err := r.s.lock("RefreshTokens.FindActive")
	defer r.s.unlock()
	if err != nil {
		return model.RefreshToken{}, err
	}

	for _, t := range st.tokens {
		if t.Token == token && !t.Revoked {
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrTokenNotFound
}

func (r tokens) ClaimActive(_ context.Context, token string) (model.RefreshToken, error) {
	st, err := r.s.lock("RefreshTokens.ClaimActive")
	defer r.s.unlock()
	if err != nil {
		return model.RefreshToken{}, err
	}

	for id, t := range st.tokens {
		if t.Token == token && !t.Revoked {
			t.Revoked = true
			st.tokens[id] = t
			return t, nil
		}
	}
	return model.RefreshToken{}, model.ErrTokenNotFound
}

func (r tokens) Revoke(_ context.Context, id int64) (int64, error) {
	st, err := r.s.lock("RefreshTokens.Revoke")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	t, ok := st.tokens[id]
	if !ok || t.Revoked {
		return 0, nil
	}
	t.Revoked = true
	st.tokens[id] = t
	return 1, nil
}

func (r tokens) RevokeAllForUser(_ context.Context, userID int64) (int64, error) {
	st, err := r.s.lock("RefreshTokens.RevokeAllForUser")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	var affected int64
	for id, t := range st.tokens {
		if t.UserID == userID && !t.Revoked {
			t.Revoked = true
			st.tokens[id] = t
			affected++
		}
	}
	return affected, nil
}
