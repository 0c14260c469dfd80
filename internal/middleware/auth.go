package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"go-accounts/internal/model"
)

const DeviceIDHeader = "X-Device-ID"

type tokenVerifier interface {
	Verify(ctx context.Context, tokenString string, mode model.VerifyMode) (*model.AccessClaims, error)
}

type contextKey string

const authClaimsContextKey contextKey = "auth_claims"

type AuthMiddleware struct {
	verifier tokenVerifier
}

func NewAuthMiddleware(verifier tokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{verifier: verifier}
}

// RequireAuth admits requests carrying an access token that passes full
// verification: signature, expiry, token version and, when the request names
// one, the device id.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := BearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed")
			return
		}

		var device *model.DeviceInfo
		if d := DeviceFromRequest(r); d.DeviceID != "" {
			device = &d
		}

		claims, err := m.verifier.Verify(r.Context(), token, model.FullVerify(device))
		if err != nil {
			if errors.Is(err, model.ErrUnauthorized) {
				slog.Debug("access token rejected", "path", r.URL.Path, "reason", err)
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed")
				return
			}
			slog.Error("access token verification failed", "path", r.URL.Path, "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Unexpected server error")
			return
		}

		setLogUser(r.Context(), claims.User.ID)
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// OptionalAuth attaches claims when a valid token is present (quick
// verification only) and lets anonymous requests through otherwise.
func (m *AuthMiddleware) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token, ok := BearerToken(r); ok {
			if claims, err := m.verifier.Verify(r.Context(), token, model.QuickVerify()); err == nil {
				r = r.WithContext(WithClaims(r.Context(), claims))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// RequireRoles admits callers holding at least one of allowedRoles. It must
// run after RequireAuth.
func (m *AuthMiddleware) RequireRoles(allowedRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed")
				return
			}

			for _, role := range allowedRoles {
				if claims.User.HasRole(strings.TrimSpace(role)) {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
		})
	}
}

func WithClaims(ctx context.Context, claims *model.AccessClaims) context.Context {
	return context.WithValue(ctx, authClaimsContextKey, claims)
}

func ClaimsFromContext(ctx context.Context) (*model.AccessClaims, bool) {
	claims, ok := ctx.Value(authClaimsContextKey).(*model.AccessClaims)
	return claims, ok && claims != nil
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return "", false
	}

	token := strings.TrimSpace(header[7:])
	return token, token != ""
}

// DeviceFromRequest describes the calling device from request headers.
func DeviceFromRequest(r *http.Request) model.DeviceInfo {
	return model.DeviceInfo{
		UserAgent: r.UserAgent(),
		IPAddress: ClientIP(r),
		DeviceID:  strings.TrimSpace(r.Header.Get(DeviceIDHeader)),
	}
}
