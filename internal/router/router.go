package router // package router defines how HTTP routes are registered for the API

import (
    "github.com/labstack/echo/v4"

    "haryali/internal/handler"
    "haryali/internal/httperr"
    "haryali/internal/middleware"
    "haryali/internal/model"
)

// RegisterRoutes installs the top-level error handler and the routes that do
// not require authentication.  Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
    e.HTTPErrorHandler = httperr.ErrorHandler
    e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the auth endpoints and the role-gated module entry
// points.  The pipeline order is fixed: the rate limiter fronts the
// anonymous endpoints, UserAuth resolves identity, and Authorize runs only
// behind UserAuth — never standalone.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, d *handler.DashboardHandler, users middleware.UserStore, limiter echo.MiddlewareFunc) {
    userAuth := middleware.UserAuth(a.Cfg.JWTSecret, users)

    // Anonymous session endpoints.  These are the credential-stuffing
    // surface, so the limiter applies here and only here.
    anon := e.Group("/api/auth", limiter)
    anon.POST("/signup", a.Signup)
    anon.POST("/login", a.Login)
    anon.POST("/refresh", a.Refresh)

    // Logout requires an authenticated request; it removes one refresh
    // record and clears both cookies.
    e.POST("/api/auth/logout", a.Logout, userAuth)
    e.GET("/api/auth/me", a.Me, userAuth)

    // Module entry points, one per role.  The marketplace CRUD (listings,
    // orders, transport jobs) mounts behind these same gate chains.
    api := e.Group("/api", userAuth)
    api.GET("/farmer/dashboard", d.Farmer, middleware.Authorize(model.RoleFarmer))
    api.GET("/buyer/dashboard", d.Buyer, middleware.Authorize(model.RoleBuyer))
    api.GET("/logistics/dashboard", d.Logistics, middleware.Authorize(model.RoleLogistics))
    api.GET("/admin/overview", d.Admin, middleware.Authorize(model.RoleAdmin))
    // Empty allow-set: any authenticated user.
    api.GET("/account", d.Account, middleware.Authorize())
}
