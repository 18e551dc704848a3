package api

import (
	"github.com/gin-gonic/gin"

	"github.com/chainduel/backend/internal/api/handlers"
	"github.com/chainduel/backend/internal/config"
	"github.com/chainduel/backend/internal/identity"
	"github.com/chainduel/backend/internal/queue"
	"github.com/chainduel/backend/internal/session"
	"github.com/chainduel/backend/internal/ws"
)

// Deps bundles everything the route table needs.
type Deps struct {
	Cfg      *config.Config
	Queue    *queue.Service
	Session  *session.Service
	Hub      *ws.Hub
	Resolver *identity.Resolver
	Fees     handlers.FeeLedger
}

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, d Deps) {
	// CORS middleware for the mini-app frontend
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		// Matchmaking
		q := v1.Group("/queue")
		q.Use(handlers.QuickAuth(d.Cfg))
		{
			q.POST("", handlers.Enqueue(d.Queue))
			q.DELETE("", handlers.LeaveQueue(d.Queue))
			q.GET("/:id", handlers.PollQueue(d.Queue))
			q.GET("/:id/ws", ws.ServeQueue(d.Hub, d.Queue))
		}

		// Sessions
		s := v1.Group("/session")
		s.Use(handlers.QuickAuth(d.Cfg))
		{
			s.GET("/:id", handlers.GetSession(d.Session))
			s.POST("/:id/move", handlers.SubmitMove(d.Session))
			s.GET("/:id/ws", ws.ServeSession(d.Hub, d.Session))
		}

		// Players
		v1.GET("/player/:id/profile", handlers.GetPlayerProfile(d.Resolver))

		// Owner surface
		admin := v1.Group("/admin")
		{
			admin.GET("/fees", handlers.GetFeePool(d.Fees, d.Cfg))
			admin.POST("/fees/withdraw", handlers.WithdrawFees(d.Fees, d.Cfg))
		}
	}
}
