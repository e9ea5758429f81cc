package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"heartlink/internal/models"
	"heartlink/internal/websocket"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrChannelAccess = errors.New("access denied to this channel")
	ErrNotSender     = errors.New("only the sender can recall a message")
)

// MessageService persists channel messages and fans events out to the
// websocket hub, mobile push and the chat aggregator.
type MessageService struct {
	db   *gorm.DB
	chat *ChatService
	hub  *websocket.Hub
	push *PushService
}

func NewMessageService(db *gorm.DB, chat *ChatService, hub *websocket.Hub, push *PushService) *MessageService {
	return &MessageService{db: db, chat: chat, hub: hub, push: push}
}

// History returns the channel's messages oldest first and marks the
// partner's messages read, mirroring a client opening the conversation.
// Recalled messages are returned with an empty body.
func (s *MessageService) History(ctx context.Context, userID uint, channelID string) ([]models.Message, error) {
	partnerID, ok := s.chat.partnerInChannel(ctx, userID, channelID)
	if !ok {
		return nil, ErrChannelAccess
	}

	var messages []models.Message
	if err := s.db.WithContext(ctx).
		Where("channel_id = ?", channelID).
		Preload("Sender").
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	for i := range messages {
		if messages[i].IsRecalled {
			messages[i].Content = ""
		}
	}

	if err := s.chat.MarkAsRead(ctx, userID, channelID); err != nil {
		// History itself succeeded; the read receipt will be retried by
		// the next explicit mark-read or aggregation pass.
		logrus.WithError(err).Warn("failed to mark history read")
	} else if s.hub != nil {
		s.hub.NotifyUser(partnerID, websocket.Event{
			Type:      websocket.EventReadReceipt,
			ChannelID: channelID,
			UserID:    userID,
		})
	}

	return messages, nil
}

// Send persists one message and notifies the channel and the partner.
func (s *MessageService) Send(ctx context.Context, userID uint, channelID, content, messageType string) (*models.Message, error) {
	partnerID, ok := s.chat.partnerInChannel(ctx, userID, channelID)
	if !ok {
		return nil, ErrChannelAccess
	}

	if messageType == "" {
		messageType = models.MessageTypeText
	}

	message := models.Message{
		ChannelID: channelID,
		SenderID:  userID,
		Content:   content,
		Type:      messageType,
	}
	if err := s.db.WithContext(ctx).Create(&message).Error; err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	s.db.WithContext(ctx).Preload("Sender").First(&message, message.ID)

	// Both views are stale now.
	s.chat.Invalidate(userID)
	s.chat.Invalidate(partnerID)

	if s.hub != nil {
		s.hub.NotifyChannel(channelID, websocket.Event{
			Type:      websocket.EventMessage,
			ChannelID: channelID,
			SenderID:  userID,
			Content:   content,
			Timestamp: message.CreatedAt.Format(time.RFC3339),
		})
		s.hub.NotifyUser(partnerID, websocket.Event{
			Type:      websocket.EventMessage,
			ChannelID: channelID,
			SenderID:  userID,
			Content:   preview(message),
			Timestamp: message.CreatedAt.Format(time.RFC3339),
		})
	}

	notification := models.Notification{
		UserID: partnerID,
		Type:   "message",
		Title:  "New Message",
		Body:   preview(message),
		Data:   fmt.Sprintf(`{"channel_id": %q}`, channelID),
	}
	if err := s.db.WithContext(ctx).Create(&notification).Error; err != nil {
		logrus.WithError(err).Warn("failed to store message notification")
	}
	if s.push != nil {
		s.push.SendToUser(ctx, partnerID, notification.Title, notification.Body,
			map[string]string{"channel_id": channelID})
	}

	return &message, nil
}

// Recall flips the recalled flag on the sender's own message. The row
// stays; readers see the recall placeholder from then on.
func (s *MessageService) Recall(ctx context.Context, userID uint, messageID uint) (*models.Message, error) {
	var message models.Message
	if err := s.db.WithContext(ctx).First(&message, messageID).Error; err != nil {
		return nil, fmt.Errorf("message not found: %w", err)
	}
	if message.SenderID != userID {
		return nil, ErrNotSender
	}

	if !message.IsRecalled {
		message.IsRecalled = true
		if err := s.db.WithContext(ctx).Save(&message).Error; err != nil {
			return nil, fmt.Errorf("failed to recall message: %w", err)
		}
	}

	if partnerID, ok := s.chat.partnerInChannel(ctx, userID, message.ChannelID); ok {
		s.chat.Invalidate(userID)
		s.chat.Invalidate(partnerID)
		if s.hub != nil {
			s.hub.NotifyChannel(message.ChannelID, websocket.Event{
				Type:      websocket.EventMessage,
				ChannelID: message.ChannelID,
				SenderID:  userID,
				Content:   PlaceholderRecalled,
			})
		}
	}

	message.Content = ""
	return &message, nil
}
