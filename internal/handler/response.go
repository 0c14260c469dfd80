package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"go-accounts/internal/model"
	"go-accounts/pkg/apierror"
)

func writeSuccess(w http.ResponseWriter, status int, data any, meta *model.Meta) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	})
}

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

// errorMappings turns domain sentinels into envelope errors. The first match
// wins.
var errorMappings = []errorMapping{
	{model.ErrUnauthorized, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed"},
	{model.ErrInvalidCredentials, http.StatusUnauthorized, "UNAUTHORIZED", "Authentication failed"},
	{model.ErrUserAlreadyExists, http.StatusConflict, "ALREADY_EXISTS", "User already exists"},
	{model.ErrUserNotFound, http.StatusNotFound, "NOT_FOUND", "User not found"},
	{model.ErrFriendRequestNotFound, http.StatusNotFound, "NOT_FOUND", "Friend request not found"},
	{model.ErrBlockNotFound, http.StatusNotFound, "NOT_FOUND", "Block not found"},
	{model.ErrForbidden, http.StatusForbidden, "FORBIDDEN", "Access denied"},
	{model.ErrInvalidInput, http.StatusBadRequest, "BAD_REQUEST", "Invalid input"},
}

// writeError renders err as the error envelope. Authentication failures are
// reported uniformly so callers cannot tell which check rejected them.
func writeError(w http.ResponseWriter, err error) {
	status, body := classifyError(err)

	switch {
	case status == http.StatusUnauthorized:
		slog.Warn("authentication failed", "reason", err.Error())
	case status >= http.StatusInternalServerError:
		slog.Error("request failed", "error", err.Error())
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(model.APIResponse{
		Success: false,
		Error:   body,
	})
}

func classifyError(err error) (int, *model.APIError) {
	if apiErr, ok := apierror.As(err); ok {
		return apiErr.HTTPStatus, &model.APIError{Code: apiErr.Code, Message: apiErr.Message, Details: apiErr.Details}
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m.status, &model.APIError{Code: m.code, Message: m.message}
		}
	}

	return http.StatusInternalServerError, &model.APIError{Code: "INTERNAL_ERROR", Message: "Unexpected server error"}
}

func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierror.BadRequest("invalid JSON body", err.Error())
	}
	return nil
}

func parseIntOrDefault(raw string, fallback int) int {
	if strings.TrimSpace(raw) == "" {
		return fallback
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}

	return v
}

func idParam(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apierror.BadRequest("invalid "+name, raw)
	}
	return id, nil
}
