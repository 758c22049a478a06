package chat

import (
	"context"
	"encoding/json"
	"time"

	"topgun/internal/auth"
	"topgun/internal/shared/constants"
	"topgun/pkg/cache"
	"topgun/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

type Service interface {
	ListRooms(ctx context.Context, userID string) ([]RoomView, error)
	Enter(ctx context.Context, userID string, roomNo int64) error
	IsMember(ctx context.Context, roomNo int64, userID string) (bool, error)
	// History pages backwards: before is the oldest message number the
	// client already has, 0 for the newest page.
	History(ctx context.Context, userID string, roomNo int64, before int64, limit int) ([]RoomMessage, error)

	// Send delivers content to the room on behalf of the token's owner.
	// It reports whether the message was accepted; rejected sends are dropped silently.
	Send(ctx context.Context, accessToken string, roomNo int64, content string) bool
}

type service struct {
	repo         Repository
	hub          *Hub
	verifier     auth.Verifier
	cacheService cache.Service
	now          func() time.Time
}

// NewService builds the chat service. cacheService may be nil.
func NewService(repo Repository, hub *Hub, verifier auth.Verifier, cacheService cache.Service) Service {
	return &service{
		repo:         repo,
		hub:          hub,
		verifier:     verifier,
		cacheService: cacheService,
		now:          time.Now,
	}
}

func (s *service) ListRooms(ctx context.Context, userID string) ([]RoomView, error) {
	return s.repo.ListRooms(ctx, userID)
}

func (s *service) Enter(ctx context.Context, userID string, roomNo int64) error {
	if _, err := s.repo.FindRoom(ctx, roomNo); err != nil {
		return err
	}
	if err := s.repo.AddMember(ctx, roomNo, userID); err != nil {
		return err
	}

	if s.cacheService != nil {
		if err := s.cacheService.Delete(ctx, constants.BuildRoomMembersKey(roomNo)); err != nil {
			logger.GetDefault().WarnContext(ctx, "failed to invalidate room members", "room_no", roomNo, "error", err)
		}
	}
	return nil
}

func (s *service) IsMember(ctx context.Context, roomNo int64, userID string) (bool, error) {
	members, err := s.members(ctx, roomNo)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == userID {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) members(ctx context.Context, roomNo int64) ([]string, error) {
	if s.cacheService == nil {
		return s.repo.ListMembers(ctx, roomNo)
	}

	var members []string
	err := s.cacheService.GetOrSet(ctx, constants.BuildRoomMembersKey(roomNo), constants.TTL_ROOM_MEMBERS,
		func() (interface{}, error) {
			return s.repo.ListMembers(ctx, roomNo)
		}, &members)
	return members, err
}

func (s *service) History(ctx context.Context, userID string, roomNo int64, before int64, limit int) ([]RoomMessage, error) {
	if _, err := s.repo.FindRoom(ctx, roomNo); err != nil {
		return nil, err
	}
	ok, err := s.IsMember(ctx, roomNo, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if before < 0 {
		before = 0
	}
	return s.repo.ListMessages(ctx, roomNo, before, limit)
}

func (s *service) Send(ctx context.Context, accessToken string, roomNo int64, content string) bool {
	if accessToken == "" {
		return false
	}
	identity, err := s.verifier.Verify(accessToken)
	if err != nil {
		return false
	}
	ok, err := s.IsMember(ctx, roomNo, identity.UserID)
	if err != nil {
		logger.GetDefault().WarnContext(ctx, "membership check failed", "room_no", roomNo, "error", err)
		return false
	}
	if !ok {
		return false
	}

	sentAt := s.now()
	body, err := json.Marshal(ChatResponse{
		SenderUsersID:   identity.UserID,
		SenderUsersType: string(identity.UserType),
		Time:            sentAt,
		Content:         content,
		Type:            MessageTypeChat,
	})
	if err != nil {
		return false
	}

	delivered := s.hub.Publish(RoomTopic(roomNo), body)
	logger.GetDefault().LogChatMessage(ctx, roomNo, identity.UserID, delivered)

	// Delivery already happened; a failed insert only loses history
	err = s.repo.InsertMessage(ctx, &RoomMessage{
		RoomMessageType:    MessageTypeChat,
		RoomMessageSender:  identity.UserID,
		RoomMessageContent: content,
		RoomMessageTime:    sentAt,
		RoomNo:             roomNo,
	})
	if err != nil {
		logger.GetDefault().ErrorContext(ctx, "failed to persist chat message",
			"room_no", roomNo,
			"sender", identity.UserID,
			"error", err,
		)
	}
	return true
}
