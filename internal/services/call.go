package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redisc "heartlink/internal/redis"
	"heartlink/internal/websocket"

	"github.com/google/uuid"
)

var ErrCallNotFound = errors.New("call not found")

// CallService handles video-call signaling: room lifecycle and ringing.
// Rooms live in redis with a TTL so an abandoned call cleans itself up.
// Media transport is the client's concern; this only brokers who is in
// which room.
type CallService struct {
	cache *redisc.Client
	chat  *ChatService
	hub   *websocket.Hub
	ttl   time.Duration
}

type CallRoom struct {
	CallID    string `json:"call_id"`
	ChannelID string `json:"channel_id"`
	Members   []uint `json:"members"`
}

func NewCallService(cache *redisc.Client, chat *ChatService, hub *websocket.Hub, ttl time.Duration) *CallService {
	return &CallService{cache: cache, chat: chat, hub: hub, ttl: ttl}
}

// Start creates a call room for a chat channel and rings the partner.
func (s *CallService) Start(ctx context.Context, userID uint, channelID string) (*CallRoom, error) {
	partnerID, ok := s.chat.partnerInChannel(ctx, userID, channelID)
	if !ok {
		return nil, ErrChannelAccess
	}

	callID := uuid.New().String()
	key := callKey(callID)

	if err := s.cache.HSet(ctx, key, "channel_id", channelID, "caller_id", formatUint(userID)); err != nil {
		return nil, fmt.Errorf("failed to create call room: %w", err)
	}
	if err := s.cache.SAdd(ctx, memberKey(callID), formatUint(userID)); err != nil {
		return nil, fmt.Errorf("failed to join call room: %w", err)
	}
	s.cache.Expire(ctx, key, s.ttl)
	s.cache.Expire(ctx, memberKey(callID), s.ttl)

	if s.hub != nil {
		s.hub.NotifyUser(partnerID, websocket.Event{
			Type:      websocket.EventCallRing,
			ChannelID: channelID,
			CallID:    callID,
			UserID:    userID,
		})
	}

	return s.room(ctx, callID)
}

// Join adds the user to an existing room.
func (s *CallService) Join(ctx context.Context, userID uint, callID string) (*CallRoom, error) {
	channelID, err := s.cache.HGet(ctx, callKey(callID), "channel_id")
	if err != nil {
		return nil, ErrCallNotFound
	}
	if !s.chat.userInChannel(ctx, userID, channelID) {
		return nil, ErrChannelAccess
	}

	if err := s.cache.SAdd(ctx, memberKey(callID), formatUint(userID)); err != nil {
		return nil, fmt.Errorf("failed to join call room: %w", err)
	}
	return s.room(ctx, callID)
}

// Leave removes the user; the last participant leaving ends the call.
func (s *CallService) Leave(ctx context.Context, userID uint, callID string) error {
	channelID, err := s.cache.HGet(ctx, callKey(callID), "channel_id")
	if err != nil {
		return ErrCallNotFound
	}

	if err := s.cache.SRem(ctx, memberKey(callID), formatUint(userID)); err != nil {
		return fmt.Errorf("failed to leave call room: %w", err)
	}

	remaining, err := s.cache.SCard(ctx, memberKey(callID))
	if err == nil && remaining == 0 {
		s.cache.Del(ctx, callKey(callID), memberKey(callID))
	}

	if s.hub != nil {
		s.hub.NotifyChannel(channelID, websocket.Event{
			Type:      websocket.EventCallEnded,
			ChannelID: channelID,
			CallID:    callID,
			UserID:    userID,
		})
	}
	return nil
}

func (s *CallService) room(ctx context.Context, callID string) (*CallRoom, error) {
	channelID, err := s.cache.HGet(ctx, callKey(callID), "channel_id")
	if err != nil {
		return nil, ErrCallNotFound
	}

	memberStrs, err := s.cache.SMembers(ctx, memberKey(callID))
	if err != nil {
		return nil, fmt.Errorf("failed to list call members: %w", err)
	}

	members := make([]uint, 0, len(memberStrs))
	for _, m := range memberStrs {
		if id, err := strconv.ParseUint(m, 10, 32); err == nil {
			members = append(members, uint(id))
		}
	}

	return &CallRoom{CallID: callID, ChannelID: channelID, Members: members}, nil
}

func callKey(callID string) string   { return "call:" + callID }
func memberKey(callID string) string { return "call:" + callID + ":members" }

func formatUint(v uint) string { return strconv.FormatUint(uint64(v), 10) }
