package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/chainduel/backend/internal/identity"
)

// GetPlayerProfile resolves a player's display profile. Resolution is
// best-effort; failures fall back to the bare numeric identifier.
func GetPlayerProfile(resolver *identity.Resolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil || playerID <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
			return
		}
		c.JSON(http.StatusOK, resolver.Resolve(c.Request.Context(), playerID))
	}
}
