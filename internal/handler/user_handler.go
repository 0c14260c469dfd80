package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"go-accounts/internal/middleware"
	"go-accounts/internal/model"
	"go-accounts/internal/service"
	"go-accounts/pkg/apierror"
)

// multipartSlack covers multipart framing around an avatar upload.
const multipartSlack = 64 << 10

type UserHandler struct {
	service       *service.UserService
	maxAvatarSize int64
}

func NewUserHandler(service *service.UserService, maxAvatarSize int64) *UserHandler {
	return &UserHandler{service: service, maxAvatarSize: maxAvatarSize}
}

func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	users, meta, err := h.service.Search(r.Context(), model.UserSearchQuery{
		Query: strings.TrimSpace(query.Get("q")),
		Page:  parseIntOrDefault(query.Get("page"), 1),
		Limit: parseIntOrDefault(query.Get("limit"), 20),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, users, &meta)
}

// Get serves a public profile. Authenticated viewers also see their
// friendship status with the user.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var viewerID int64
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		viewerID = claims.User.ID
	}

	profile, err := h.service.GetProfile(r.Context(), viewerID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, profile, nil)
}

func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var patch model.UserPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}

	user, err := h.service.Update(r.Context(), claims.User, userID, patch)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	userID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Delete(r.Context(), claims.User, userID, actorFromRequest(r)); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"deleted": true}, nil)
}

// UploadAvatar accepts the image either as the "avatar" field of a multipart
// form or as the raw request body.
func (h *UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxAvatarSize+multipartSlack)
	defer r.Body.Close()

	var source io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		part, partErr := avatarPart(r)
		if partErr != nil {
			writeError(w, partErr)
			return
		}
		defer part.Close()
		source = part
	}

	user, err := h.service.SetAvatar(r.Context(), claims.User.ID, source)
	if err != nil {
		if isPayloadTooLarge(err) {
			writeError(w, payloadTooLarge())
			return
		}
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, user, nil)
}

func (h *UserHandler) Avatar(w http.ResponseWriter, r *http.Request) {
	userID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	file, modTime, err := h.service.OpenAvatar(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	defer file.Close()

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, "avatar.png", modTime, file)
}

func avatarPart(r *http.Request) (io.ReadCloser, error) {
	reader, err := r.MultipartReader()
	if err != nil {
		return nil, apierror.BadRequest("invalid multipart body", "")
	}

	for {
		part, nextErr := reader.NextPart()
		if nextErr == io.EOF {
			return nil, apierror.BadRequest("multipart field 'avatar' is required", "avatar")
		}
		if nextErr != nil {
			if isPayloadTooLarge(nextErr) {
				return nil, payloadTooLarge()
			}
			return nil, apierror.BadRequest("invalid multipart stream", nextErr.Error())
		}

		if part.FormName() == "avatar" {
			return part, nil
		}
		_ = part.Close()
	}
}

func isPayloadTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func payloadTooLarge() error {
	return apierror.New("PAYLOAD_TOO_LARGE", "request body exceeds AVATAR_MAX_BYTES", "AVATAR_MAX_BYTES", http.StatusRequestEntityTooLarge)
}
