// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/antrikuy/antrikuy-backend/internal/config"
	"github.com/antrikuy/antrikuy-backend/internal/handler"
	"github.com/antrikuy/antrikuy-backend/internal/middleware"
)

// RegisterRoutes registers routes that require no authentication.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication endpoints.  Register and
// login sit behind the Redis token bucket so credential hammering is
// throttled per IP; the protected endpoints live under /v1.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, cfg config.Config, rdb *redis.Client) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group("/v1/auth", rl)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)

	auth := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))
	auth.POST("/auth/logout", a.Logout)
	auth.PUT("/me/push-token", a.UpdatePushToken)
}
