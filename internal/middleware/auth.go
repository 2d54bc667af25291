package middleware // middleware contains reusable HTTP middleware for the auth pipeline

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/labstack/echo/v4"

    "haryali/internal/httperr"
    "haryali/internal/model"
    "haryali/internal/session"
    "haryali/internal/utils"
)

// userKey is the echo context key under which the authenticated user is
// stored.  Handlers read it via CurrentUser rather than touching the key.
const userKey = "user"

// UserStore is the single lookup the authentication gate needs.  It is
// satisfied by *repository.UserRepo; tests substitute an in-memory fake.
type UserStore interface {
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// UserAuth returns the authentication gate.  It authenticates a request from
// its bearer credential (accessToken cookie, falling back to the
// Authorization header), resolves the current user from storage with the
// password hash projected out, and attaches the result to the request
// context.  It is read-only and enforces no role; compose Authorize after it
// for that.
//
// Failure modes are typed so the top-level error handler can map them:
// missing credential and vanished subject → Unauthenticated, elapsed window
// → TokenExpired, anything else → InvalidToken.
func UserAuth(secret string, users UserStore) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            raw, ok := session.ReadAccessToken(c)
            if !ok {
                return httperr.New(httperr.KindUnauthenticated, "Authentication token missing")
            }

            uid, _, err := utils.ParseAccess(secret, raw)
            if err != nil {
                if errors.Is(err, utils.ErrTokenExpired) {
                    return httperr.New(httperr.KindTokenExpired, "Access token expired")
                }
                return httperr.New(httperr.KindInvalidToken, "Invalid token")
            }

            ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
            defer cancel()

            // The token may outlive its subject; a deleted or disabled user
            // must not keep authenticating.
            u, err := users.GetByID(ctx, uid)
            if err != nil {
                if errors.Is(err, sql.ErrNoRows) {
                    return httperr.New(httperr.KindUnauthenticated, "User not found")
                }
                return err
            }

            c.Set(userKey, u)
            return next(c)
        }
    }
}

// CurrentUser returns the user attached by UserAuth, if any.
func CurrentUser(c echo.Context) (model.User, bool) {
    u, ok := c.Get(userKey).(model.User)
    return u, ok
}
