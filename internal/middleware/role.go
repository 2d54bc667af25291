package middleware

import (
    "github.com/labstack/echo/v4"

    "haryali/internal/httperr"
)

// Authorize returns the authorization gate: a role-set membership check
// composed strictly after UserAuth.  An empty allow-set admits any
// authenticated user.  When no authenticated user is present on the context
// the failure is Unauthenticated, not Forbidden; this gate must never be
// mounted standalone and a missing identity means the pipeline was cut
// short, not that a known user lacks permission.
func Authorize(roles ...string) echo.MiddlewareFunc {
    // Allow-set for constant-time membership checks.
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            u, ok := CurrentUser(c)
            if !ok {
                return httperr.New(httperr.KindUnauthenticated, "User not authenticated")
            }
            if len(allowed) > 0 && !allowed[u.Role] {
                return httperr.New(httperr.KindForbidden, "You are not authorized to access this resource")
            }
            return next(c)
        }
    }
}
