package memstore

import (
	"context"
	"fmt"
	"sort"

	"go-accounts/internal/model"
)

type friends struct {
	s *Store
}

func between(req model.FriendRequest, a int64, b int64) bool {
	return (req.SenderID == a && req.ReceiverID == b) || (req.SenderID == b && req.ReceiverID == a)
}

func (r friends) FindByID(_ context.Context, id int64) (model.FriendRequest, error) {
	st, err := r.s.lock("Friends.FindByID")
	defer r.s.unlock()
	if err != nil {
		return model.FriendRequest{}, err
	}

	req, ok := st.requests[id]
	if !ok {
		return model.FriendRequest{}, model.ErrFriendRequestNotFound
	}
	return req, nil
}

func (r friends) FindBetween(_ context.Context, a int64, b int64) (model.FriendRequest, error) {
	st, err := r.s.lock("Friends.FindBetween")
	defer r.s.unlock()
	if err != nil {
		return model.FriendRequest{}, err
	}

	for _, req := range st.requests {
		if between(req, a, b) {
			return req, nil
		}
	}
	return model.FriendRequest{}, model.ErrFriendRequestNotFound
}

func (r friends) Create(_ context.Context, req *model.FriendRequest) error {
	st, err := r.s.lock("Friends.Create")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	for _, existing := range st.requests {
		if between(existing, req.SenderID, req.ReceiverID) {
			return fmt.Errorf("create friend request: duplicate pair %d/%d", req.SenderID, req.ReceiverID)
		}
	}

	st.nextRequestID++
	now := r.s.now()
	req.ID = st.nextRequestID
	req.CreatedAt = now
	req.UpdatedAt = now
	st.requests[req.ID] = *req
	return nil
}

func (r friends) Reopen(_ context.Context, id int64, senderID int64, receiverID int64) (model.FriendRequest, error) {
	st, err := r.s.lock("Friends.Reopen")
	defer r.s.unlock()
	if err != nil {
		return model.FriendRequest{}, err
	}

	req, ok := st.requests[id]
	if !ok {
		return model.FriendRequest{}, model.ErrFriendRequestNotFound
	}
	req.SenderID = senderID
	req.ReceiverID = receiverID
	req.Status = model.FriendRequestPending
	req.UpdatedAt = r.s.now()
	st.requests[id] = req
	return req, nil
}

func (r friends) UpdateStatus(_ context.Context, id int64, status model.FriendRequestStatus) (model.FriendRequest, error) {
	st, err := r.s.lock("Friends.UpdateStatus")
	defer r.s.unlock()
	if err != nil {
		return model.FriendRequest{}, err
	}

	req, ok := st.requests[id]
	if !ok {
		return model.FriendRequest{}, model.ErrFriendRequestNotFound
	}
	req.Status = status
	req.UpdatedAt = r.s.now()
	st.requests[id] = req
	return req, nil
}

func (r friends) ListRequests(_ context.Context, userID int64, status model.FriendRequestStatus) ([]model.FriendRequestView, error) {
	st, err := r.s.lock("Friends.ListRequests")
	defer r.s.unlock()
	if err != nil {
		return nil, err
	}

	views := make([]model.FriendRequestView, 0)
	for _, req := range st.requests {
		if req.SenderID != userID && req.ReceiverID != userID {
			continue
		}
		if status != "" && req.Status != status {
			continue
		}
		views = append(views, model.FriendRequestView{
			ID:        req.ID,
			Status:    req.Status,
			Sender:    st.users[req.SenderID].Public(),
			Receiver:  st.users[req.ReceiverID].Public(),
			CreatedAt: req.CreatedAt,
			UpdatedAt: req.UpdatedAt,
		})
	}
	sort.Slice(views, func(i, j int) bool { return views[i].ID > views[j].ID })
	return views, nil
}

func (r friends) ListFriends(_ context.Context, userID int64) ([]model.Friend, error) {
	st, err := r.s.lock("Friends.ListFriends")
	defer r.s.unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.Friend, 0)
	for _, req := range st.requests {
		if req.Status != model.FriendRequestAccepted {
			continue
		}
		var other int64
		switch userID {
		case req.SenderID:
			other = req.ReceiverID
		case req.ReceiverID:
			other = req.SenderID
		default:
			continue
		}
		out = append(out, model.Friend{PublicUser: st.users[other].Public(), FriendSince: req.UpdatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (r friends) DeleteAccepted(_ context.Context, a int64, b int64) (int64, error) {
	st, err := r.s.lock("Friends.DeleteAccepted")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	var affected int64
	for id, req := range st.requests {
		if req.Status == model.FriendRequestAccepted && between(req, a, b) {
			delete(st.requests, id)
			affected++
		}
	}
	return affected, nil
}

func (r friends) RejectPending(_ context.Context, a int64, b int64) error {
	st, err := r.s.lock("Friends.RejectPending")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	now := r.s.now()
	for id, req := range st.requests {
		if req.Status == model.FriendRequestPending && between(req, a, b) {
			req.Status = model.FriendRequestRejected
			req.UpdatedAt = now
			st.requests[id] = req
		}
	}
	return nil
}

type blocks struct {
	s *Store
}

func (r blocks) Exists(_ context.Context, blockerID int64, blockedID int64) (bool, error) {
	st, err := r.s.lock("Blocks.Exists")
	defer r.s.unlock()
	if err != nil {
		return false, err
	}

	for _, b := range st.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			return true, nil
		}
	}
	return false, nil
}

func (r blocks) Create(_ context.Context, b *model.Block) error {
	st, err := r.s.lock("Blocks.Create")
	defer r.s.unlock()
	if err != nil {
		return err
	}

	for _, existing := range st.blocks {
		if existing.BlockerID == b.BlockerID && existing.BlockedID == b.BlockedID {
			return fmt.Errorf("create block: duplicate %d/%d", b.BlockerID, b.BlockedID)
		}
	}

	st.nextBlockID++
	b.ID = st.nextBlockID
	b.CreatedAt = r.s.now()
	st.blocks[b.ID] = *b
	return nil
}

func (r blocks) Delete(_ context.Context, blockerID int64, blockedID int64) (int64, error) {
	st, err := r.s.lock("Blocks.Delete")
	defer r.s.unlock()
	if err != nil {
		return 0, err
	}

	var affected int64
	for id, b := range st.blocks {
		if b.BlockerID == blockerID && b.BlockedID == blockedID {
			delete(st.blocks, id)
			affected++
		}
	}
	return affected, nil
}

func (r blocks) List(_ context.Context, blockerID int64) ([]model.BlockedUser, error) {
	st, err := r.s.lock("Blocks.List")
	defer r.s.unlock()
	if err != nil {
		return nil, err
	}

	out := make([]model.BlockedUser, 0)
	for _, b := range st.blocks {
		if b.BlockerID == blockerID {
			out = append(out, model.BlockedUser{PublicUser: st.users[b.BlockedID].Public(), BlockedAt: b.CreatedAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BlockedAt.After(out[j].BlockedAt) })
	return out, nil
}
