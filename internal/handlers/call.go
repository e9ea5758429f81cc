package handlers

import (
	"errors"
	"net/http"

	"heartlink/internal/services"

	"github.com/gin-gonic/gin"
)

type CallHandler struct {
	calls *services.CallService
}

type StartCallRequest struct {
	ChannelID string `json:"channel_id" binding:"required"`
}

func NewCallHandler(calls *services.CallService) *CallHandler {
	return &CallHandler{calls: calls}
}

func (h *CallHandler) StartCall(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var req StartCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.calls.Start(c.Request.Context(), userID.(uint), req.ChannelID)
	if err != nil {
		if errors.Is(err, services.ErrChannelAccess) {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start call"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"call": room})
}

func (h *CallHandler) JoinCall(c *gin.Context) {
	userID, _ := c.Get("user_id")
	callID := c.Param("call_id")

	room, err := h.calls.Join(c.Request.Context(), userID.(uint), callID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrCallNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, services.ErrChannelAccess):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to join call"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"call": room})
}

func (h *CallHandler) LeaveCall(c *gin.Context) {
	userID, _ := c.Get("user_id")
	callID := c.Param("call_id")

	if err := h.calls.Leave(c.Request.Context(), userID.(uint), callID); err != nil {
		if errors.Is(err, services.ErrCallNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to leave call"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left call"})
}
