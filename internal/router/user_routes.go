package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/antrikuy/antrikuy-backend/internal/config"
	"github.com/antrikuy/antrikuy-backend/internal/handler"
	"github.com/antrikuy/antrikuy-backend/internal/middleware"
)

// RegisterUser registers the ticket-holder endpoints.  All of them need
// a valid JWT; any role may hold a ticket.  The join endpoint carries
// the token bucket so one device cannot spam registrations, and the
// browse listing is served from the Redis response cache.
func RegisterUser(e *echo.Echo, q *handler.QueueUserHandler, ev *handler.EventHandler, cfg config.Config, rdb *redis.Client) {
	rl := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	g := e.Group("/v1", middleware.JWTAuth(cfg.JWTSecret))

	g.GET("/browse", ev.Browse, cache)
	g.GET("/events/code/:code", ev.GetByCode)

	g.POST("/events/:eventId/join", q.Join, rl)
	g.GET("/queues/me", q.MyQueues)
	g.GET("/queues/:id", q.Detail)
	g.POST("/queues/:id/refresh-token", q.RefreshTicketToken)
	g.POST("/queues/:id/postpone", q.PostponeRequest)
	g.DELETE("/queues/:id", q.Cancel)
}
