package memstore

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"

	"go-accounts/internal/model"
)

var knownRoles = []string{model.RoleAdmin, model.RoleUser}

type users struct {
	s *Store
}

func (r users) FindByID(_ context.Context, id int64) (model.User, error) {
	st, err := r.s.lock("Users.FindByID")
	defer r.s.unlock()
	if err != nil {
		return model.User{}, err
	}

	u, ok := st.users[id]
	if !ok {
		return model.User{}, model.ErrUserNotFound
	}
	return copyUser(u), nil
}

func (r users) FindByUsername(_ context.Context, username string) (model.User, error) {
	st, err := r.s.lock("Users.FindByUsername")
	defer r.s.unlock()
	if err != nil {
		return model.User{}, err
	}

	for _, u := range st.users {
		if strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return copyUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r users) FindByEmail(_ context.Context, email string) (model.User, error) {
	st, err := r.s.lock("Users.FindByEmail")
	defer r.s.unlock()
	if err != nil {
		return model.User{}, err
	}

	for _, u := range st.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return copyUser(u), nil
		}
	}
	return model.User{}, model.ErrUserNotFound
}

func (r users) TokenVersion(_ context.Context, id int64) (int, error) {
	st, err := r.s.lock("Users.TokenVersion")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	u, ok := st.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	return u.TokenVersion, nil
}

func (r users) ExistsByUsername(_ context.Context, username string, excludeID int64) (bool, error) {
	st, err := r.s.lock("Users.ExistsByUsername")
	defer r.s.unlock()
	if err != nil {
		return false, err
	}

	for _, u := range st.users {
		if u.ID != excludeID && strings.EqualFold(u.Username, strings.TrimSpace(username)) {
			return true, nil
		}
	}
	return false, nil
}

func (r users) ExistsByEmail(_ context.Context, email string) (bool, error) {
	st, err := r.s.lock("Users.ExistsByEmail")
	defer r.s.unlock()
	if err != nil {
		return false, err
	}

	for _, u := range st.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return true, nil
		}
	}
	return false, nil
}

func (r users) Create(_ context.Context, u *model.User) error {
	st, err := r.s.lock("Users.Create")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	for _, existing := range st.users {
		if strings.EqualFold(existing.Username, u.Username) || strings.EqualFold(existing.Email, u.Email) {
			return model.ErrUserAlreadyExists
		}
	}
	for _, role := range u.Roles {
		if !slices.Contains(knownRoles, role) {
			return fmt.Errorf("assign user roles: unknown role in %v", u.Roles)
		}
	}

	st.nextUserID++
	now := r.s.now()
	u.ID = st.nextUserID
	u.TokenVersion = 0
	u.CreatedAt = now
	u.UpdatedAt = now
	u.Roles = sortedRoles(u.Roles)
	st.users[u.ID] = copyUser(*u)
	return nil
}

func (r users) Update(_ context.Context, u model.User) error {
	st, err := r.s.lock("Users.Update")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	current, ok := st.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	for _, existing := range st.users {
		if existing.ID != u.ID && strings.EqualFold(existing.Username, u.Username) {
			return model.ErrUserAlreadyExists
		}
	}

	current.Username = u.Username
	current.FirstName = u.FirstName
	current.LastName = u.LastName
	current.Phone = u.Phone
	current.Bio = u.Bio
	current.UpdatedAt = r.s.now()
	st.users[u.ID] = current
	return nil
}

func (r users) UpdatePassword(_ context.Context, id int64, passwordHash string) error {
	st, err := r.s.lock("Users.UpdatePassword")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	u, ok := st.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.PasswordHash = &passwordHash
	u.UpdatedAt = r.s.now()
	st.users[id] = u
	return nil
}

func (r users) UpdateProfileImage(_ context.Context, id int64, image string) error {
	st, err := r.s.lock("Users.UpdateProfileImage")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	u, ok := st.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	u.ProfileImage = image
	u.UpdatedAt = r.s.now()
	st.users[id] = u
	return nil
}

func (r users) IncrementTokenVersion(_ context.Context, id int64) (int, error) {
	st, err := r.s.lock("Users.IncrementTokenVersion")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	u, ok := st.users[id]
	if !ok {
		return 0, model.ErrUserNotFound
	}
	u.TokenVersion++
	u.UpdatedAt = r.s.now()
	st.users[id] = u
	return u.TokenVersion, nil
}

func (r users) Delete(_ context.Context, id int64) error {
	st, err := r.s.lock("Users.Delete")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	if _, ok := st.users[id]; !ok {
		return model.ErrUserNotFound
	}
	delete(st.users, id)
	for tid, t := range st.tokens {
		if t.UserID == id {
			delete(st.tokens, tid)
		}
	}
	for rid, req := range st.requests {
		if req.SenderID == id || req.ReceiverID == id {
			delete(st.requests, rid)
		}
	}
	for bid, b := range st.blocks {
		if b.BlockerID == id || b.BlockedID == id {
			delete(st.blocks, bid)
		}
	}
	return nil
}

func (r users) Search(_ context.Context, query model.UserSearchQuery) ([]model.PublicUser, int, error) {
	st, err := r.s.lock("Users.Search")
	defer r.s.unlock()
	if err != nil {
		return nil, 0, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := max(query.Page, 1)
	needle := strings.TrimSpace(query.Query)

	matches := make([]model.PublicUser, 0)
	for _, u := range st.users {
		if containsFold(u.Username, needle) || containsFold(u.FirstName, needle) || containsFold(u.LastName, needle) {
			matches = append(matches, u.Public())
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Username < matches[j].Username })

	total := len(matches)
	start := min((page-1)*limit, total)
	end := min(start+limit, total)
	return matches[start:end], total, nil
}

func copyUser(u model.User) model.User {
	u.Roles = slices.Clone(u.Roles)
	if u.PasswordHash != nil {
		hash := *u.PasswordHash
		u.PasswordHash = &hash
	}
	return u
}

func sortedRoles(roles []string) []string {
	out := slices.Clone(roles)
	slices.Sort(out)
	return slices.Compact(out)
}
