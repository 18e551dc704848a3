package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainduel/backend/internal/queue"
)

// Enqueue places a player in the matchmaking queue for one bet tier. The
// response carries the fresh entry and, when the immediate pairing attempt
// succeeded, the created session.
func Enqueue(qsvc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID int64 `json:"player_id" binding:"required"`
			BetTier  int   `json:"bet_tier" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player_id and bet_tier are required"})
			return
		}
		if !authorizedFor(c, req.PlayerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "token does not match player_id"})
			return
		}

		entry, session, err := qsvc.Enqueue(c.Request.Context(), req.PlayerID, req.BetTier)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, queue.PollResult{Entry: entry, Session: session})
	}
}

// LeaveQueue removes the player's waiting entry. Leaving an already-advanced
// entry is a no-op, not an error.
func LeaveQueue(qsvc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID int64 `json:"player_id" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player_id is required"})
			return
		}
		if !authorizedFor(c, req.PlayerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "token does not match player_id"})
			return
		}

		if err := qsvc.Leave(c.Request.Context(), req.PlayerID); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"left": true})
	}
}

// PollQueue is the pull half of the sync layer: current entry plus session.
func PollQueue(qsvc *queue.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := qsvc.Poll(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}
