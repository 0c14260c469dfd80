package handler

import (
	"net/http"
	"strconv"

	"go-accounts/internal/middleware"
	"go-accounts/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: middleware.ClientIP(r)}

	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return actor
	}

	actor.UserID = strconv.FormatInt(claims.User.ID, 10)
	actor.Username = claims.User.Username

	return actor
}

// requestDevice returns the caller's device info, or nil when the client did
// not identify a device.
func requestDevice(r *http.Request) *model.DeviceInfo {
	device := middleware.DeviceFromRequest(r)
	if device.DeviceID == "" && device.UserAgent == "" {
		return nil
	}
	return &device
}

func currentClaims(r *http.Request) (*model.AccessClaims, error) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return nil, model.Unauthorized(model.ErrInvalidToken)
	}
	return claims, nil
}
