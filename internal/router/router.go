package router // router wires handlers and middleware onto the echo instance

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/service-scheduling/internal/config"
    "github.com/iliyamo/service-scheduling/internal/handler"
    "github.com/iliyamo/service-scheduling/internal/middleware"
    "github.com/iliyamo/service-scheduling/internal/model"
)

// Deps bundles what the route groups need.  Redis may be nil; rate limiting
// and response caching then pass every request through.
type Deps struct {
    JWTSecret string
    Workers   *handler.WorkerAdminHandler
    Bookings  *handler.ReservationHandler
    Redis     *redis.Client
    RateLimit config.RateLimitConfig
    Cache     config.CacheConfig
}

// RegisterRoutes registers every route group on e.
func RegisterRoutes(e *echo.Echo, d Deps) {
    e.GET("/healthz", handler.Health)
    RegisterPublic(e, d)
    RegisterWorkerAdmin(e, d)
    RegisterBookings(e, d)
}

// RegisterPublic exposes slot availability without authentication.  The
// response is cached in redis per date; booking changes retire a date's
// entries through middleware.SlotCacheInvalidator.
func RegisterPublic(e *echo.Echo, d Deps) {
    e.GET("/v1/slots", d.Bookings.OccupiedSlots, middleware.NewRedisCache(d.Cache, d.Redis, middleware.QueryScope("date")))
}

// RegisterWorkerAdmin mounts worker management under /v1/admin for
// administrators, together with the booking delete override.
func RegisterWorkerAdmin(e *echo.Echo, d Deps) {
    g := e.Group("/v1/admin",
        middleware.JWTAuth(d.JWTSecret),
        middleware.RequireRole(model.RoleAdministrator),
    )
    g.POST("/workers", d.Workers.Promote)
    g.GET("/workers", d.Workers.List)
    g.GET("/workers/:id", d.Workers.Get)
    g.PATCH("/workers/:id", d.Workers.SetStatus)
    g.DELETE("/workers/:id", d.Workers.Remove)
    g.DELETE("/bookings/:id", d.Bookings.Delete)
}

// RegisterBookings mounts the booking endpoints.  Any authenticated role may
// reserve; ownership is checked per booking in the handler.  Mutations are
// rate limited per caller.
func RegisterBookings(e *echo.Echo, d Deps) {
    limit := middleware.NewTokenBucket(d.RateLimit, d.Redis)
    staff := middleware.RequireRole(model.RoleWorker, model.RoleAdministrator)
    anyone := middleware.RequireRole(model.RoleCustomer, model.RoleWorker, model.RoleAdministrator)

    g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret), anyone)
    g.POST("/bookings", d.Bookings.Reserve, limit)
    g.GET("/bookings", d.Bookings.ListByDate, staff)
    g.GET("/bookings/:id", d.Bookings.Get)
    g.GET("/my-bookings", d.Bookings.ListMine)
    g.PATCH("/bookings/:id", d.Bookings.Reschedule, limit)
    g.POST("/bookings/:id/cancel", d.Bookings.Cancel, limit)
    g.POST("/bookings/:id/status", d.Bookings.Advance, staff)
    g.POST("/bookings/:id/assign", d.Bookings.AssignWorker, middleware.RequireRole(model.RoleAdministrator))
}
