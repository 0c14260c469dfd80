package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"go-accounts/internal/event"
	"go-accounts/internal/model"
	"go-accounts/internal/repository"
	"go-accounts/pkg/apierror"
)

// AvatarStore keeps one processed image per user.
type AvatarStore interface {
	Save(userID int64, r io.Reader) error
	Open(userID int64) (*os.File, time.Time, error)
	Remove(userID int64) error
}

type UserService struct {
	store   repository.Store
	tokens  *TokenService
	avatars AvatarStore
	audit   *AuditService
	bus     event.Bus
}

func NewUserService(store repository.Store, tokens *TokenService, avatars AvatarStore, audit *AuditService, bus event.Bus) *UserService {
	return &UserService{store: store, tokens: tokens, avatars: avatars, audit: audit, bus: bus}
}

// GetProfile returns the public view of a user. A user who blocked the viewer
// is reported as not found.
func (s *UserService) GetProfile(ctx context.Context, viewerID int64, userID int64) (model.Profile, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.Profile{}, err
	}

	profile := model.Profile{PublicUser: user.Public()}
	if viewerID == 0 || viewerID == userID {
		return profile, nil
	}

	blocked, err := s.store.Blocks().Exists(ctx, userID, viewerID)
	if err != nil {
		return model.Profile{}, err
	}
	if blocked {
		return model.Profile{}, model.ErrUserNotFound
	}

	req, err := s.store.Friends().FindBetween(ctx, viewerID, userID)
	switch {
	case err == nil:
		profile.FriendStatus = req.Status
		profile.FriendRequestID = &req.ID
	case !errors.Is(err, model.ErrFriendRequestNotFound):
		return model.Profile{}, err
	}

	return profile, nil
}

func (s *UserService) Search(ctx context.Context, query model.UserSearchQuery) ([]model.PublicUser, model.Meta, error) {
	query.Query = strings.TrimSpace(query.Query)
	if query.Query == "" {
		return nil, model.Meta{}, apierror.BadRequest("search query is required", "q")
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	users, total, err := s.store.Users().Search(ctx, query)
	if err != nil {
		return nil, model.Meta{}, err
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	return users, model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}, nil
}

// Update applies patch to the caller's own profile.
func (s *UserService) Update(ctx context.Context, actor model.TokenUser, userID int64, patch model.UserPatch) (model.User, error) {
	if actor.ID != userID {
		return model.User{}, apierror.Forbidden("you can only update your own profile")
	}

	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}

	if patch.Username != nil {
		username, err := validateUsername(*patch.Username)
		if err != nil {
			return model.User{}, err
		}
		if !strings.EqualFold(username, user.Username) {
			taken, err := s.store.Users().ExistsByUsername(ctx, username, userID)
			if err != nil {
				return model.User{}, err
			}
			if taken {
				return model.User{}, model.ErrUserAlreadyExists
			}
		}
		user.Username = username
	}
	if patch.FirstName != nil {
		if user.FirstName, err = cleanText("first_name", *patch.FirstName, maxNameLength); err != nil {
			return model.User{}, err
		}
	}
	if patch.LastName != nil {
		if user.LastName, err = cleanText("last_name", *patch.LastName, maxNameLength); err != nil {
			return model.User{}, err
		}
	}
	if patch.Phone != nil {
		if user.Phone, err = validatePhone(*patch.Phone); err != nil {
			return model.User{}, err
		}
	}
	if patch.Bio != nil {
		if user.Bio, err = cleanText("bio", *patch.Bio, maxBioLength); err != nil {
			return model.User{}, err
		}
	}

	if err := s.store.Users().Update(ctx, user); err != nil {
		return model.User{}, err
	}

	updated, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return updated.Sanitized(), nil
}

// Delete removes an account. Users may delete themselves; admins may delete
// anyone. Every token of the account is invalidated first.
func (s *UserService) Delete(ctx context.Context, actor model.TokenUser, userID int64, auditActor model.AuditActor) error {
	if actor.ID != userID && !actor.HasRole(model.RoleAdmin) {
		return apierror.Forbidden("you can only delete your own account")
	}

	resource := strconv.FormatInt(userID, 10)
	if err := s.tokens.InvalidateAll(ctx, userID); err != nil {
		s.audit.Log(ctx, model.AuditActionUserDelete, auditActor, model.AuditStatusFailure, resource, err.Error())
		return err
	}
	if err := s.store.Users().Delete(ctx, userID); err != nil {
		s.audit.Log(ctx, model.AuditActionUserDelete, auditActor, model.AuditStatusFailure, resource, err.Error())
		return err
	}

	if s.avatars != nil {
		if err := s.avatars.Remove(userID); err != nil {
			slog.Warn("remove avatar of deleted user", "user_id", userID, "error", err)
		}
	}

	s.audit.Log(ctx, model.AuditActionUserDelete, auditActor, model.AuditStatusSuccess, resource, "")
	if s.bus != nil {
		s.bus.Publish(event.New(event.TypeUserDeleted, userID, actor.ID, nil))
	}
	return nil
}

func (s *UserService) SetAvatar(ctx context.Context, userID int64, r io.Reader) (model.User, error) {
	if s.avatars == nil {
		return model.User{}, apierror.New("NOT_CONFIGURED", "avatar storage is not configured", "", http.StatusServiceUnavailable)
	}
	if _, err := s.store.Users().FindByID(ctx, userID); err != nil {
		return model.User{}, err
	}

	if err := s.avatars.Save(userID, r); err != nil {
		return model.User{}, err
	}

	if err := s.store.Users().UpdateProfileImage(ctx, userID, avatarURL(userID)); err != nil {
		return model.User{}, err
	}

	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return user.Sanitized(), nil
}

func (s *UserService) OpenAvatar(_ context.Context, userID int64) (*os.File, time.Time, error) {
	if s.avatars == nil {
		return nil, time.Time{}, apierror.NotFound("avatar not found", strconv.FormatInt(userID, 10))
	}
	return s.avatars.Open(userID)
}

func avatarURL(userID int64) string {
	return fmt.Sprintf("/api/v1/users/%d/avatar", userID)
}
