package model

import (
	"errors"
	"fmt"
)

var (
	// User related errors
	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")

	// Token related errors
	ErrInvalidToken         = errors.New("invalid or expired token")
	ErrTokenVersionMismatch = errors.New("token version mismatch")
	ErrInvalidDevice        = errors.New("invalid device")
	ErrInvalidRefreshToken  = errors.New("invalid refresh token")
	ErrTokenNotFound        = errors.New("token not found")

	// Social graph errors
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrBlockNotFound         = errors.New("block not found")

	// Permission/Access related errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)

// Unauthorized marks reason as an authentication failure. Callers see a
// uniform 401 while errors.Is still matches the specific reason.
func Unauthorized(reason error) error {
	return fmt.Errorf("%w: %w", ErrUnauthorized, reason)
}
