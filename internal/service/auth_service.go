package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"go-accounts/internal/metrics"
	"go-accounts/internal/model"
	"go-accounts/internal/repository"
	"go-accounts/pkg/apierror"
)

// PasswordHasher turns plaintext passwords into salted digests and checks
// them. Compare must run in time independent of where the inputs differ.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(plain string, digest string) bool
}

type AuthService struct {
	store     repository.Store
	tokens    *TokenService
	hasher    PasswordHasher
	audit     *AuditService
	metrics   *metrics.Metrics
	dummyHash string
}

func NewAuthService(store repository.Store, tokens *TokenService, hasher PasswordHasher, audit *AuditService, m *metrics.Metrics) (*AuthService, error) {
	// Compared against when no real digest exists so that unknown users cost
	// as much as wrong passwords.
	dummyHash, err := hasher.Hash("not-a-real-password-7f3c")
	if err != nil {
		return nil, fmt.Errorf("prepare dummy password hash: %w", err)
	}

	return &AuthService{
		store:     store,
		tokens:    tokens,
		hasher:    hasher,
		audit:     audit,
		metrics:   m,
		dummyHash: dummyHash,
	}, nil
}

// ValidateCredentials looks a user up by email (when identifier is an
// address) or username and checks password. It returns (nil, nil) for any
// credential mismatch and an error only when the store fails.
func (s *AuthService) ValidateCredentials(ctx context.Context, identifier string, password string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		s.hasher.Compare(password, s.dummyHash)
		return nil, nil
	}

	var (
		user model.User
		err  error
	)
	if isEmail(strings.ToLower(identifier)) {
		user, err = s.store.Users().FindByEmail(ctx, strings.ToLower(identifier))
	} else {
		user, err = s.store.Users().FindByUsername(ctx, identifier)
	}
	if errors.Is(err, model.ErrUserNotFound) {
		s.hasher.Compare(password, s.dummyHash)
		return nil, nil
	}
	if err != nil {
		slog.Error("look up user for credential check", "error", err)
		return nil, fmt.Errorf("validate credentials: %w", err)
	}

	if user.PasswordHash == nil || *user.PasswordHash == "" {
		s.hasher.Compare(password, s.dummyHash)
		return nil, nil
	}
	if !s.hasher.Compare(password, *user.PasswordHash) {
		return nil, nil
	}

	sanitized := user.Sanitized()
	return &sanitized, nil
}

func (s *AuthService) Login(ctx context.Context, identifier string, password string, device *model.DeviceInfo, actor model.AuditActor) (model.TokenPair, error) {
	user, err := s.ValidateCredentials(ctx, identifier, password)
	if err != nil {
		s.metrics.AuthAttempt("login", false)
		s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusFailure, identifier, "credential lookup failed")
		return model.TokenPair{}, err
	}
	if user == nil {
		s.metrics.AuthAttempt("login", false)
		s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusFailure, identifier, model.ErrInvalidCredentials.Error())
		return model.TokenPair{}, model.Unauthorized(model.ErrInvalidCredentials)
	}

	actor = withUser(actor, user.ID, user.Username)

	pair, err := s.tokens.Issue(ctx, *user, device)
	if err != nil {
		s.metrics.AuthAttempt("login", false)
		s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusFailure, user.Username, "token issue failed")
		return model.TokenPair{}, err
	}

	s.metrics.AuthAttempt("login", true)
	s.audit.Log(ctx, model.AuditActionLogin, actor, model.AuditStatusSuccess, user.Username, "")
	pair.User = user
	return pair, nil
}

// Register creates a user with the default role and signs them in. The user
// row and the first refresh token are written in one transaction.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest, device *model.DeviceInfo, actor model.AuditActor) (model.TokenPair, error) {
	user, err := s.prepareUser(req, []string{model.RoleUser})
	if err != nil {
		return model.TokenPair{}, err
	}

	var pair model.TokenPair
	err = s.store.WithinTx(ctx, func(tx repository.Store) error {
		if err := createUser(ctx, tx, &user); err != nil {
			return err
		}

		var issueErr error
		pair, issueErr = s.tokens.issue(ctx, tx.RefreshTokens(), user, device)
		return issueErr
	})
	if err != nil {
		s.metrics.AuthAttempt("register", false)
		s.audit.Log(ctx, model.AuditActionRegister, actor, model.AuditStatusFailure, user.Username, err.Error())
		return model.TokenPair{}, err
	}

	s.metrics.AuthAttempt("register", true)
	s.audit.Log(ctx, model.AuditActionRegister, withUser(actor, user.ID, user.Username), model.AuditStatusSuccess, user.Username, "")

	sanitized := user.Sanitized()
	pair.User = &sanitized
	return pair, nil
}

// CreateUser provisions an account with explicit roles without signing in.
func (s *AuthService) CreateUser(ctx context.Context, req model.RegisterRequest, roles []string) (model.User, error) {
	user, err := s.prepareUser(req, roles)
	if err != nil {
		return model.User{}, err
	}

	if err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		return createUser(ctx, tx, &user)
	}); err != nil {
		return model.User{}, err
	}

	return user.Sanitized(), nil
}

func (s *AuthService) prepareUser(req model.RegisterRequest, roles []string) (model.User, error) {
	username, err := validateUsername(req.Username)
	if err != nil {
		return model.User{}, err
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return model.User{}, err
	}
	if err := validatePassword(req.Password); err != nil {
		return model.User{}, err
	}
	firstName, err := cleanText("first_name", req.FirstName, maxNameLength)
	if err != nil {
		return model.User{}, err
	}
	lastName, err := cleanText("last_name", req.LastName, maxNameLength)
	if err != nil {
		return model.User{}, err
	}
	if len(roles) == 0 {
		roles = []string{model.RoleUser}
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return model.User{}, fmt.Errorf("hash password: %w", err)
	}

	return model.User{
		Username:     username,
		Email:        email,
		PasswordHash: &hash,
		FirstName:    firstName,
		LastName:     lastName,
		Roles:        roles,
	}, nil
}

func createUser(ctx context.Context, tx repository.Store, user *model.User) error {
	taken, err := tx.Users().ExistsByUsername(ctx, user.Username, 0)
	if err != nil {
		return err
	}
	if !taken {
		taken, err = tx.Users().ExistsByEmail(ctx, user.Email)
		if err != nil {
			return err
		}
	}
	if taken {
		return model.ErrUserAlreadyExists
	}

	return tx.Users().Create(ctx, user)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string, device *model.DeviceInfo, actor model.AuditActor) (model.TokenPair, error) {
	pair, err := s.tokens.Refresh(ctx, refreshToken, device)
	if err != nil {
		s.metrics.AuthAttempt("refresh", false)
		s.audit.Log(ctx, model.AuditActionRefresh, actor, model.AuditStatusFailure, "", err.Error())
		return model.TokenPair{}, err
	}

	s.metrics.AuthAttempt("refresh", true)
	s.audit.Log(ctx, model.AuditActionRefresh, actor, model.AuditStatusSuccess, "", "")
	return pair, nil
}

// Logout signs the user out of every device.
func (s *AuthService) Logout(ctx context.Context, userID int64, actor model.AuditActor) error {
	if err := s.tokens.InvalidateAll(ctx, userID); err != nil {
		s.audit.Log(ctx, model.AuditActionLogout, actor, model.AuditStatusFailure, "", err.Error())
		return err
	}

	s.audit.Log(ctx, model.AuditActionLogout, actor, model.AuditStatusSuccess, "", "")
	return nil
}

func (s *AuthService) Me(ctx context.Context, userID int64) (model.User, error) {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return model.User{}, err
	}
	return user.Sanitized(), nil
}

// ChangePassword replaces the password after checking the current one and
// then invalidates every outstanding token of the user.
func (s *AuthService) ChangePassword(ctx context.Context, userID int64, req model.ChangePasswordRequest, actor model.AuditActor) error {
	user, err := s.store.Users().FindByID(ctx, userID)
	if err != nil {
		return err
	}

	if user.PasswordHash == nil || !s.hasher.Compare(req.CurrentPassword, *user.PasswordHash) {
		s.audit.Log(ctx, model.AuditActionPasswordChange, actor, model.AuditStatusFailure, user.Username, "current password mismatch")
		return apierror.BadRequest("current password is incorrect", "current_password")
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return err
	}
	if req.NewPassword == req.CurrentPassword {
		return apierror.BadRequest("new password must differ from the current one", "new_password")
	}

	hash, err := s.hasher.Hash(req.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.store.Users().UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}
	if err := s.tokens.InvalidateAll(ctx, userID); err != nil {
		return err
	}

	s.audit.Log(ctx, model.AuditActionPasswordChange, actor, model.AuditStatusSuccess, user.Username, "")
	return nil
}

func withUser(actor model.AuditActor, userID int64, username string) model.AuditActor {
	actor.UserID = strconv.FormatInt(userID, 10)
	actor.Username = username
	return actor
}
