package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"

	"github.com/chainduel/backend/internal/config"
)

const authFIDKey = "auth_fid"

// QuickAuth verifies the bearer token issued by the mini-app host and pins
// the authenticated player id on the context. When no secret is configured
// (local development) requests pass through unauthenticated.
func QuickAuth(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.QuickAuthSecret == "" {
			c.Next()
			return
		}

		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		token, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(cfg.QuickAuthSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid claims"})
			return
		}
		fid, ok := claims["fid"].(float64)
		if !ok || fid <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token carries no player id"})
			return
		}

		c.Set(authFIDKey, int64(fid))
		c.Next()
	}
}

// authorizedFor checks a body-supplied player id against the authenticated
// one. Unauthenticated contexts (no secret configured) trust the body.
func authorizedFor(c *gin.Context, playerID int64) bool {
	v, exists := c.Get(authFIDKey)
	if !exists {
		return true
	}
	fid, ok := v.(int64)
	return ok && fid == playerID
}
