package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/quantachat/internal/api/handlers"
	"github.com/yoockh/quantachat/internal/api/middleware"
	"github.com/yoockh/quantachat/internal/auth"
)

type Deps struct {
	Issuer      *auth.Issuer
	ChatLimiter *middleware.RateLimiter // optional

	Auth         *handlers.AuthHandler
	User         *handlers.UserHandler
	Chat         *handlers.ChatHandler
	Heatmap      *handlers.HeatmapHandler
	Voice        *handlers.VoiceHandler
	VoiceSession *handlers.VoiceSessionHandler
	WS           *handlers.WSHandler // nil without redis
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	r.POST("/users/register", d.Auth.Register)
	r.POST("/auth/token", d.Auth.Token)
	r.POST("/auth/login", d.Auth.Login)

	// Protected routes (JWT)
	authed := r.Group("/")
	authed.Use(middleware.JWTAuth(d.Issuer))

	authed.GET("/users/me", d.User.Me)
	authed.PUT("/users/me/preferences", d.User.UpdatePreferences)
	authed.DELETE("/users/me", d.User.Delete)

	chat := authed.Group("/chat")
	if d.ChatLimiter != nil {
		chat.Use(d.ChatLimiter.Middleware())
	}
	chat.POST("", d.Chat.Chat)
	chat.GET("/history", d.Chat.History)
	chat.POST("/quantum-chat", d.Chat.QuantumChat)

	authed.GET("/heatmap/raw", d.Heatmap.Raw)
	authed.GET("/heatmap/summary", d.Heatmap.Summary)

	authed.POST("/voice/process", d.Voice.Process)
	authed.POST("/voice/session/start", d.VoiceSession.Start)
	authed.GET("/voice/session/:session_id", d.VoiceSession.Get)
	authed.POST("/voice/session/:session_id/end", d.VoiceSession.End)

	if d.WS != nil {
		authed.GET("/ws/voice/:session_id", d.WS.VoiceWS)
	}

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/heatmap/:user_id", d.Heatmap.Inspect)
	admin.POST("/heatmap/:user_id/rebuild", d.Heatmap.Rebuild)
}
