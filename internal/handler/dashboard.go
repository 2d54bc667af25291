package handler

// Role-gated entry points for the marketplace modules (listings, orders,
// transport).  The CRUD behind them lives elsewhere; these handlers exist so
// each module has an already-authenticated, role-checked identity to build
// on, and they double as the reference composition of the two gates.

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "haryali/internal/httperr"
    "haryali/internal/middleware"
)

// DashboardHandler serves the per-role landing endpoints.
type DashboardHandler struct{}

func NewDashboardHandler() *DashboardHandler { return &DashboardHandler{} }

func (h *DashboardHandler) identity(c echo.Context, scope string) error {
    u, ok := middleware.CurrentUser(c)
    if !ok {
        return httperr.New(httperr.KindUnauthenticated, "User not authenticated")
    }
    return c.JSON(http.StatusOK, echo.Map{
        "dashboard": scope,
        "user":      publicUser(u),
    })
}

// Farmer is allow-listed to the farmer role; the listings module hangs off it.
func (h *DashboardHandler) Farmer(c echo.Context) error { return h.identity(c, "farmer") }

// Buyer is allow-listed to the buyer role; the orders module hangs off it.
func (h *DashboardHandler) Buyer(c echo.Context) error { return h.identity(c, "buyer") }

// Logistics is allow-listed to the logistics role; transport jobs hang off it.
func (h *DashboardHandler) Logistics(c echo.Context) error { return h.identity(c, "logistics") }

// Admin is allow-listed to the admin role.
func (h *DashboardHandler) Admin(c echo.Context) error { return h.identity(c, "admin") }

// Account accepts any authenticated user regardless of role.
func (h *DashboardHandler) Account(c echo.Context) error { return h.identity(c, "account") }
