// internal/app/router.go
package app

import (
	"context"
	"net/http"
	"time"

	authHandler "cuscatlan-service/internal/handlers/auth"
	contentHandler "cuscatlan-service/internal/handlers/content"
	subscriptionHandler "cuscatlan-service/internal/handlers/subscription"
	wsHandler "cuscatlan-service/internal/handlers/websocket"
	"cuscatlan-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	ContentHandler      *contentHandler.ContentHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
	Entitlements        middleware.AccessReader
	Health              func(ctx context.Context) map[string]string
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		body := gin.H{"status": "ok", "version": "1.0.0"}
		if h.Health != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			deps := h.Health(ctx)
			for name, state := range deps {
				if state != "ok" {
					body["status"] = "degraded"
					logger.Warn("health check dependency failing", zap.String("dependency", name), zap.String("error", state))
				}
			}
			body["dependencies"] = deps
		}
		c.JSON(http.StatusOK, body)
	})

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Public Auth Routes ====================
	authPublic := api.Group("/auth")
	{
		authPublic.POST("/register", h.AuthHandler.Register)
		authPublic.POST("/login", h.AuthHandler.Login)
		authPublic.POST("/forgot-password", h.AuthHandler.ForgotPassword)
		authPublic.POST("/reset-password", h.AuthHandler.ResetPassword)
	}

	// ==================== Authenticated Auth Routes ====================
	authProtected := api.Group("/auth")
	authProtected.Use(h.AuthMiddleware.Auth())
	{
		authProtected.POST("/logout", h.AuthHandler.Logout)
		authProtected.POST("/logout-all", h.AuthHandler.LogoutAll)
		authProtected.GET("/me", h.AuthHandler.GetMe)
		authProtected.GET("/sessions", h.AuthHandler.GetActiveSessions)
	}

	// ==================== Subscription ====================
	sub := api.Group("/subscription")
	sub.Use(h.AuthMiddleware.Auth())
	{
		sub.GET("", h.SubscriptionHandler.GetSubscription)
		sub.GET("/access", h.SubscriptionHandler.GetAccess)
		sub.POST("/trial", h.SubscriptionHandler.StartTrial)
		sub.POST("/activate", h.SubscriptionHandler.Activate)
		sub.GET("/payments", h.SubscriptionHandler.ListPayments)
		sub.POST("/payments", h.SubscriptionHandler.AddPayment)
	}

	// ==================== Premium Content ====================
	premium := api.Group("/departamentos")
	premium.Use(h.AuthMiddleware.Auth(), middleware.RequireSubscription(h.Entitlements))
	{
		premium.GET("/:id/premium", h.ContentHandler.GetPremium)
	}

	// ==================== ADMIN ROUTES ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.PUT("/users/:email/role", h.AuthHandler.SetRole)
		admin.GET("/subscriptions", h.SubscriptionHandler.AdminLookup)
		admin.GET("/subscriptions/:identity", h.SubscriptionHandler.AdminGetSubscription)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
		admin.POST("/ws/alerts", h.WSHandler.BroadcastAlert)
		admin.DELETE("/ws/connections/:identity", h.WSHandler.Disconnect)
	}
}
