package handler

import (
	"net/http"
	"strings"

	"go-accounts/internal/model"
	"go-accounts/internal/service"
	"go-accounts/pkg/apierror"
)

type FriendHandler struct {
	service *service.FriendService
}

func NewFriendHandler(service *service.FriendService) *FriendHandler {
	return &FriendHandler{service: service}
}

func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.FriendRequestCreate
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.ReceiverID <= 0 {
		writeError(w, apierror.BadRequest("receiver_id is required", "receiver_id"))
		return
	}

	request, err := h.service.SendRequest(r.Context(), claims.User.ID, payload.ReceiverID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, request, nil)
}

func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.FriendRequestResponse
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.RequestID <= 0 {
		writeError(w, apierror.BadRequest("request_id is required", "request_id"))
		return
	}

	status := model.FriendRequestStatus(strings.ToLower(strings.TrimSpace(string(payload.Status))))
	request, err := h.service.Respond(r.Context(), claims.User.ID, payload.RequestID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, request, nil)
}

func (h *FriendHandler) ListRequests(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	status := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("status")))
	requests, err := h.service.ListRequests(r.Context(), claims.User.ID, status)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, requests, nil)
}

func (h *FriendHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	friends, err := h.service.ListFriends(r.Context(), claims.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, friends, nil)
}

func (h *FriendHandler) RemoveFriend(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	friendID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.RemoveFriend(r.Context(), claims.User.ID, friendID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"removed": true}, nil)
}

func (h *FriendHandler) Block(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var payload model.BlockRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}
	if payload.UserID <= 0 {
		writeError(w, apierror.BadRequest("user_id is required", "user_id"))
		return
	}

	if err := h.service.Block(r.Context(), claims.User.ID, payload.UserID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, map[string]any{"blocked": true}, nil)
}

func (h *FriendHandler) Unblock(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	blockedID, err := idParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.service.Unblock(r.Context(), claims.User.ID, blockedID); err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, map[string]any{"unblocked": true}, nil)
}

func (h *FriendHandler) ListBlocked(w http.ResponseWriter, r *http.Request) {
	claims, err := currentClaims(r)
	if err != nil {
		writeError(w, err)
		return
	}

	blocked, err := h.service.ListBlocked(r.Context(), claims.User.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, blocked, nil)
}
