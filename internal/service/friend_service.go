package service

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"go-accounts/internal/event"
	"go-accounts/internal/model"
	"go-accounts/internal/repository"
	"go-accounts/pkg/apierror"
)

type FriendService struct {
	store repository.Store
	bus   event.Bus
}

func NewFriendService(store repository.Store, bus event.Bus) *FriendService {
	return &FriendService{store: store, bus: bus}
}

// SendRequest creates a pending request from senderID to receiverID. A
// previously rejected request between the pair is reopened.
func (s *FriendService) SendRequest(ctx context.Context, senderID int64, receiverID int64) (model.FriendRequest, error) {
	if senderID == receiverID {
		return model.FriendRequest{}, apierror.BadRequest("you cannot send a friend request to yourself", "receiver_id")
	}

	var result model.FriendRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, receiverID); err != nil {
			return err
		}

		blocked, err := isBlockedEitherWay(ctx, tx, senderID, receiverID)
		if err != nil {
			return err
		}
		if blocked {
			return apierror.Forbidden("you cannot send a friend request to this user")
		}

		existing, err := tx.Friends().FindBetween(ctx, senderID, receiverID)
		switch {
		case errors.Is(err, model.ErrFriendRequestNotFound):
			result = model.FriendRequest{SenderID: senderID, ReceiverID: receiverID, Status: model.FriendRequestPending}
			return tx.Friends().Create(ctx, &result)
		case err != nil:
			return err
		}

		switch existing.Status {
		case model.FriendRequestPending:
			return apierror.New("ALREADY_EXISTS", "a friend request is already pending", strconv.FormatInt(existing.ID, 10), http.StatusConflict)
		case model.FriendRequestAccepted:
			return apierror.New("ALREADY_EXISTS", "you are already friends", "", http.StatusConflict)
		}

		result, err = tx.Friends().Reopen(ctx, existing.ID, senderID, receiverID)
		return err
	})
	if err != nil {
		return model.FriendRequest{}, err
	}

	s.publish(event.New(event.TypeFriendRequestReceived, receiverID, senderID, map[string]int64{"request_id": result.ID}))
	return result, nil
}

// Respond accepts or rejects a pending request addressed to userID.
func (s *FriendService) Respond(ctx context.Context, userID int64, requestID int64, status model.FriendRequestStatus) (model.FriendRequest, error) {
	if status != model.FriendRequestAccepted && status != model.FriendRequestRejected {
		return model.FriendRequest{}, apierror.BadRequest("status must be 'accepted' or 'rejected'", string(status))
	}

	var result model.FriendRequest
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		req, err := tx.Friends().FindByID(ctx, requestID)
		if err != nil {
			return err
		}
		if req.ReceiverID != userID {
			return model.ErrFriendRequestNotFound
		}
		if req.Status != model.FriendRequestPending {
			return apierror.BadRequest("friend request is not pending", string(req.Status))
		}

		result, err = tx.Friends().UpdateStatus(ctx, requestID, status)
		return err
	})
	if err != nil {
		return model.FriendRequest{}, err
	}

	if status == model.FriendRequestAccepted {
		s.publish(event.New(event.TypeFriendRequestAccepted, result.SenderID, userID, map[string]int64{"request_id": result.ID}))
	}
	return result, nil
}

func (s *FriendService) ListRequests(ctx context.Context, userID int64, status string) ([]model.FriendRequestView, error) {
	filter := model.FriendRequestStatus(status)
	if filter != "" && !filter.Valid() {
		return nil, apierror.BadRequest("unknown friend request status", status)
	}
	return s.store.Friends().ListRequests(ctx, userID, filter)
}

func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]model.Friend, error) {
	return s.store.Friends().ListFriends(ctx, userID)
}

func (s *FriendService) RemoveFriend(ctx context.Context, userID int64, friendID int64) error {
	removed, err := s.store.Friends().DeleteAccepted(ctx, userID, friendID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return apierror.NotFound("friendship not found", strconv.FormatInt(friendID, 10))
	}
	return nil
}

// Block records that blockerID blocks blockedID, ends any friendship between
// them and rejects pending requests in either direction.
func (s *FriendService) Block(ctx context.Context, blockerID int64, blockedID int64) error {
	if blockerID == blockedID {
		return apierror.BadRequest("you cannot block yourself", "user_id")
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if _, err := tx.Users().FindByID(ctx, blockedID); err != nil {
			return err
		}

		exists, err := tx.Blocks().Exists(ctx, blockerID, blockedID)
		if err != nil {
			return err
		}
		if exists {
			return apierror.New("ALREADY_EXISTS", "user is already blocked", strconv.FormatInt(blockedID, 10), http.StatusConflict)
		}

		if err := tx.Blocks().Create(ctx, &model.Block{BlockerID: blockerID, BlockedID: blockedID}); err != nil {
			return err
		}
		if _, err := tx.Friends().DeleteAccepted(ctx, blockerID, blockedID); err != nil {
			return err
		}
		return tx.Friends().RejectPending(ctx, blockerID, blockedID)
	})
	if err != nil {
		return err
	}

	s.publish(event.New(event.TypeUserBlocked, blockerID, blockerID, map[string]int64{"blocked_id": blockedID}))
	return nil
}

func (s *FriendService) Unblock(ctx context.Context, blockerID int64, blockedID int64) error {
	removed, err := s.store.Blocks().Delete(ctx, blockerID, blockedID)
	if err != nil {
		return err
	}
	if removed == 0 {
		return model.ErrBlockNotFound
	}
	return nil
}

func (s *FriendService) ListBlocked(ctx context.Context, blockerID int64) ([]model.BlockedUser, error) {
	return s.store.Blocks().List(ctx, blockerID)
}

func (s *FriendService) publish(e event.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

func isBlockedEitherWay(ctx context.Context, tx repository.Store, a int64, b int64) (bool, error) {
	blocked, err := tx.Blocks().Exists(ctx, a, b)
	if err != nil || blocked {
		return blocked, err
	}
	return tx.Blocks().Exists(ctx, b, a)
}
