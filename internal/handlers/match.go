package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"heartlink/internal/services"

	"github.com/gin-gonic/gin"
)

type MatchHandler struct {
	matches *services.MatchService
	deck    *services.DeckService
}

func NewMatchHandler(matches *services.MatchService, deck *services.DeckService) *MatchHandler {
	return &MatchHandler{matches: matches, deck: deck}
}

func (h *MatchHandler) LikeUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	result, err := h.matches.Like(c.Request.Context(), userID.(uint), uint(targetID))
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			status = http.StatusNotFound
		case errors.Is(err, services.ErrBlocked):
			status = http.StatusForbidden
		case errors.Is(err, services.ErrSelfLike):
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	if result.Matched {
		c.JSON(http.StatusCreated, gin.H{
			"message": "It's a match!",
			"match": gin.H{
				"id":         result.Match.ID,
				"user":       result.Partner,
				"created_at": result.Match.CreatedAt,
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User liked successfully"})
}

func (h *MatchHandler) PassUser(c *gin.Context) {
	userID, _ := c.Get("user_id")
	targetID, err := strconv.ParseUint(c.Param("user_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	if err := h.matches.Pass(c.Request.Context(), userID.(uint), uint(targetID)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to pass user"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "User passed"})
}

func (h *MatchHandler) GetMatches(c *gin.Context) {
	userID, _ := c.Get("user_id")

	profiles, err := h.matches.Matches(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch matches"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": profiles})
}

func (h *MatchHandler) Unmatch(c *gin.Context) {
	userID, _ := c.Get("user_id")
	matchID, err := strconv.ParseUint(c.Param("match_id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid match ID"})
		return
	}

	if _, err := h.matches.Unmatch(c.Request.Context(), userID.(uint), uint(matchID)); err != nil {
		if errors.Is(err, services.ErrMatchNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Match not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to unmatch"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Unmatched successfully"})
}

// --- swipe deck ---

func (h *MatchHandler) NewDeck(c *gin.Context) {
	userID, _ := c.Get("user_id")

	var filter services.DiscoverFilter
	if err := c.ShouldBindJSON(&filter); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	deck, err := h.deck.NewDeck(c.Request.Context(), userID.(uint), filter)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"deck": deck})
}

func (h *MatchHandler) CurrentCandidate(c *gin.Context) {
	userID, _ := c.Get("user_id")

	candidate, err := h.deck.Current(userID.(uint))
	if err != nil {
		h.deckError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"candidate": candidate})
}

func (h *MatchHandler) SwipeLike(c *gin.Context) {
	userID, _ := c.Get("user_id")

	result, err := h.deck.Like(c.Request.Context(), userID.(uint))
	if err != nil {
		h.deckError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *MatchHandler) SwipePass(c *gin.Context) {
	userID, _ := c.Get("user_id")

	result, err := h.deck.Pass(userID.(uint))
	if err != nil {
		h.deckError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"result": result})
}

func (h *MatchHandler) deckError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNoDeck):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrDeckExhausted):
		c.JSON(http.StatusGone, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
