package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chainduel/backend/internal/session"
)

// GetSession returns a session by id.
func GetSession(ssvc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := ssvc.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}

// SubmitMove records a player's move for a session. A repeat submission from
// the same player returns a conflict and leaves the stored move untouched.
func SubmitMove(ssvc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			PlayerID  int64  `json:"player_id" binding:"required"`
			Move      string `json:"move" binding:"required"`
			Signature string `json:"signature"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "player_id and move are required"})
			return
		}
		if !authorizedFor(c, req.PlayerID) {
			c.JSON(http.StatusForbidden, gin.H{"error": "token does not match player_id"})
			return
		}

		sess, err := ssvc.SubmitMove(c.Request.Context(), c.Param("id"), req.PlayerID, req.Move, req.Signature)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, sess)
	}
}
