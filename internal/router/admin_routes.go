package router

import (
	"github.com/labstack/echo/v4"

	"github.com/antrikuy/antrikuy-backend/internal/handler"
	"github.com/antrikuy/antrikuy-backend/internal/middleware"
	"github.com/antrikuy/antrikuy-backend/internal/model"
)

// RegisterAdmin registers the school-operator endpoints under
// /v1/admin.  Every route requires a JWT with the ADMIN or SUPER_ADMIN
// role; per-school scoping happens inside the handlers.
func RegisterAdmin(e *echo.Echo, ev *handler.EventHandler, qa *handler.QueueAdminHandler, sc *handler.SchoolHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleSuperAdmin),
	)

	// ---- Schools ----
	// Only the platform operator may register new schools.
	e.POST("/v1/admin/schools", sc.Create,
		middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleSuperAdmin))
	g.GET("/schools", sc.List)
	g.GET("/schools/:id", sc.Get)

	// ---- Events ----
	g.POST("/events", ev.Create)
	g.GET("/events", ev.List)
	g.GET("/events/:id", ev.Get)
	g.PUT("/events/:id", ev.Update)
	g.PATCH("/events/:id", ev.Update)
	g.PATCH("/events/:id/lock", ev.SetLocked)
	g.DELETE("/events/:id", ev.Delete)

	// ---- Queue operation ----
	g.GET("/events/:id/dashboard", qa.Dashboard)
	g.GET("/events/:id/queues", qa.QueueList)
	g.POST("/events/:id/call-next", qa.CallNext)
	g.POST("/events/:id/skip", qa.Skip)
	g.POST("/events/:id/scan", qa.Scan)
	g.POST("/events/:id/reset", qa.ResetBatch)
	g.POST("/events/:id/finish", qa.Finish)

	// ---- Ticket-level actions ----
	g.POST("/queues/complete", qa.Complete)
	g.POST("/queues/serve", qa.ServeManual)
	g.POST("/queues/:id/postpone", qa.RespondPostpone)
	g.POST("/queues/cancel-all", qa.CancelAll)
}
