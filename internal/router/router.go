package router // package router defines how HTTP routes are registered for the API

import (
	"database/sql"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Nat-hsm/DragonRise/internal/handler"
	"github.com/Nat-hsm/DragonRise/internal/middleware"
	"github.com/Nat-hsm/DragonRise/internal/model"
)

// RegisterRoutes registers the probes and the Prometheus endpoint.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// RegisterAuth registers the token endpoints under /v1/auth and the
// protected profile endpoint /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout, middleware.JWTAuth(jwtSecret))

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole(model.RoleMember, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// RegisterPublic registers the unauthenticated read endpoints.  cache wraps
// the ranking endpoints whose totals only change when an entry is recorded.
func RegisterPublic(e *echo.Echo, p *handler.PublicHandler, cache echo.MiddlewareFunc) {
	e.GET("/v1/houses", p.HouseRankings, cache)
	e.GET("/v1/leaderboard", p.Leaderboard, cache)
	e.GET("/v1/peak-hours/current", p.CurrentPeak)
}

// MemberLimits carries the rate limiters of the write endpoints.
type MemberLimits struct {
	Activity echo.MiddlewareFunc
	Upload   echo.MiddlewareFunc
}

// RegisterMember registers the activity and stats endpoints for any
// signed-in user.
func RegisterMember(e *echo.Echo, act *handler.ActivityHandler, p *handler.PublicHandler, jwtSecret string, lim MemberLimits) {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleMember, model.RoleAdmin))

	g.POST("/activities/climb", act.Log(model.KindClimb), lim.Activity)
	g.POST("/activities/stand", act.Log(model.KindStand), lim.Activity)
	g.POST("/activities/steps", act.Log(model.KindSteps), lim.Activity)
	g.POST("/activities/:kind/screenshot", act.UploadScreenshot, lim.Upload)
	g.GET("/activities", act.List)
	g.GET("/users/:id/stats", p.UserStats)
}

// RegisterAdmin registers the ADMIN-only endpoints under /v1/admin.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, jwtSecret string) {
	g := e.Group("/v1/admin")
	g.Use(middleware.JWTAuth(jwtSecret))
	g.Use(middleware.RequireRole(model.RoleAdmin))

	g.GET("/overview", a.Overview)
	g.GET("/peak-hours", a.ListPeakHours)
	g.POST("/peak-hours", a.CreatePeakHour)
	g.PUT("/peak-hours/:id", a.UpdatePeakHour)
	g.POST("/peak-hours/:id/toggle", a.TogglePeakHour)
	g.DELETE("/users/:id", a.DeleteUser)
	g.POST("/houses/:id/reset", a.ResetHouse)
}
