package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	gorillaws "github.com/gorilla/websocket"

	"go-accounts/internal/middleware"
	"go-accounts/internal/model"
	"go-accounts/internal/websocket"
)

type tokenVerifier interface {
	Verify(ctx context.Context, tokenString string, mode model.VerifyMode) (*model.AccessClaims, error)
}

// WebsocketHandler upgrades authenticated requests onto the notification hub.
// Browsers cannot set headers on websocket requests, so the access token may
// also arrive as the access_token query parameter.
type WebsocketHandler struct {
	hub      *websocket.Hub
	verifier tokenVerifier
	upgrader gorillaws.Upgrader
}

func NewWebsocketHandler(hub *websocket.Hub, verifier tokenVerifier, allowedOrigins []string) *WebsocketHandler {
	return &WebsocketHandler{
		hub:      hub,
		verifier: verifier,
		upgrader: websocket.Upgrader(allowedOrigins),
	}
}

func (h *WebsocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		token = strings.TrimSpace(r.URL.Query().Get("access_token"))
	}
	if token == "" {
		writeError(w, model.Unauthorized(model.ErrInvalidToken))
		return
	}

	var device *model.DeviceInfo
	if d := middleware.DeviceFromRequest(r); d.DeviceID != "" {
		device = &d
	}

	claims, err := h.verifier.Verify(r.Context(), token, model.FullVerify(device))
	if err != nil {
		writeError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		slog.Debug("websocket upgrade failed", "user_id", claims.User.ID, "error", err)
		return
	}

	h.hub.Serve(conn, claims.User.ID)
}
