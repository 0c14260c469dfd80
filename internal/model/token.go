package model

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type DeviceInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	IPAddress string `json:"ipAddress,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
}

// AccessClaims is the payload of a signed access token. ID carries the jti
// and Subject the decimal user id.
type AccessClaims struct {
	User         TokenUser   `json:"user"`
	TokenVersion int         `json:"tokenVersion"`
	DeviceInfo   *DeviceInfo `json:"deviceInfo,omitempty"`
	jwt.RegisteredClaims
}

type RefreshToken struct {
	ID        int64     `json:"id" db:"id"`
	Token     string    `json:"-" db:"token"`
	UserID    int64     `json:"user_id" db:"user_id"`
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`
	Revoked   bool      `json:"revoked" db:"revoked"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (t RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	User         *User  `json:"user,omitempty"`
}

// VerifyMode selects how much of a token is checked. Quick mode only checks
// the signature and registered claims; full mode also checks the token version
// against the store and, when both sides carry one, the device id.
// The zero value is full verification without a device binding.
type VerifyMode struct {
	quick  bool
	device *DeviceInfo
}

func QuickVerify() VerifyMode {
	return VerifyMode{quick: true}
}

func FullVerify(device *DeviceInfo) VerifyMode {
	return VerifyMode{device: device}
}

func (m VerifyMode) Full() bool {
	return !m.quick
}

func (m VerifyMode) Device() *DeviceInfo {
	return m.device
}
