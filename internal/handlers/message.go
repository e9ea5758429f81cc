package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"heartlink/internal/models"
	"heartlink/internal/services"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	chat     *services.ChatService
	messages *services.MessageService
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	Type    string `json:"type" binding:"omitempty,oneof=text image attachment"`
}

func NewMessageHandler(chat *services.ChatService, messages *services.MessageService) *MessageHandler {
	return &MessageHandler{chat: chat, messages: messages}
}

// GetConversations serves the aggregated chat list: one entry per active
// match, sorted by last activity, with per-channel and total unread counts.
func (h *MessageHandler) GetConversations(c *gin.Context) {
	userID, _ := c.Get("user_id")

	snapshot, err := h.chat.ChatList(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch conversations"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": snapshot.Entries,
		"unread":        snapshot.Unread,
		"total_unread":  snapshot.TotalUnread,
	})
}

func (h *MessageHandler) GetUnreadTotal(c *gin.Context) {
	userID, _ := c.Get("user_id")

	total, err := h.chat.TotalUnread(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch unread count"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"total_unread": total})
}

func (h *MessageHandler) GetMessages(c *gin.Context) {
	userID, _ := c.Get("user_id")
	channelID := c.Param("channel_id")

	messages, err := h.messages.History(c.Request.Context(), userID.(uint), channelID)
	if err != nil {
		if errors.Is(err, services.ErrChannelAccess) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch messages"})
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

func (h *MessageHandler) SendMessage(c *gin.Context) {
	userID, _ := c.Get("user_id")
	channelID := c.Param("channel_id")

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.messages.Send(c.Request.Context(), userID.(uint), channelID, req.Content, req.Type)
	if err != nil {
		if errors.Is(err, services.ErrChannelAccess) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": message})
}

func (h *MessageHandler) MarkAsRead(c *gin.Context) {
	userID, _ := c.Get("user_id")
	channelID := c.Param("channel_id")

	if err := h.chat.MarkAsRead(c.Request.Context(), userID.(uint), channelID); err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Access denied to this channel"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to mark messages as read"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Messages marked as read"})
}

func (h *MessageHandler) RecallMessage(c *gin.Context) {
	userID, _ := c.Get("user_id")
	messageID, err := strconv.ParseUint(c.Param("message_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid message ID"})
		return
	}

	message, err := h.messages.Recall(c.Request.Context(), userID.(uint), uint(messageID))
	if err != nil {
		if errors.Is(err, services.ErrNotSender) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusNotFound, gin.H{"error": "Message not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": message})
}
