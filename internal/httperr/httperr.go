// Package httperr defines the typed, recoverable errors raised by the auth
// pipeline and the single top-level handler that maps them onto HTTP
// responses.  Handlers and middleware return these errors instead of writing
// responses themselves; anything unclassified surfaces as a generic 500 so
// internals are never leaked to clients.
package httperr

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"
)

// Kind classifies an auth failure.  The kind decides the HTTP status while
// the message carries the client-visible detail (for example distinguishing
// an expired access token from a tampered one, so clients know whether to
// call /refresh or force a re-login).
type Kind int

const (
    // KindUnauthenticated: no credential was presented, or the credential's
    // subject no longer exists.
    KindUnauthenticated Kind = iota
    // KindInvalidToken: an access credential failed signature verification.
    KindInvalidToken
    // KindTokenExpired: a valid access signature whose window has elapsed.
    KindTokenExpired
    // KindInvalidRefresh: a refresh credential failed verification or was
    // revoked from the store.
    KindInvalidRefresh
    // KindRefreshExpired: a valid refresh signature whose window has elapsed.
    KindRefreshExpired
    // KindForbidden: authenticated, but the role is not in the allow-set.
    KindForbidden
    // KindDuplicateEmail: signup with an already-registered email.
    KindDuplicateEmail
    // KindInvalidCredentials: login mismatch; unknown user and wrong
    // password are deliberately indistinguishable.
    KindInvalidCredentials
)

// Error is the canonical auth error.  It satisfies the error interface so it
// can flow through echo's normal error return path to the handler below.
type Error struct {
    Kind    Kind
    Message string
}

func (e *Error) Error() string { return e.Message }

// New builds a typed error for the given kind and client-safe message.
func New(kind Kind, message string) *Error {
    return &Error{Kind: kind, Message: message}
}

// Status maps a kind to its HTTP status code.
func Status(kind Kind) int {
    switch kind {
    case KindForbidden:
        return http.StatusForbidden
    case KindDuplicateEmail, KindInvalidCredentials:
        return http.StatusBadRequest
    default:
        return http.StatusUnauthorized
    }
}

// ErrorHandler is installed as the echo HTTPErrorHandler.  Typed errors are
// mapped kind→status with a {"message"} payload; echo's own HTTPErrors (404,
// 405, bind failures) pass through with the same payload shape; anything
// else becomes a generic 500.
func ErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }

    var ae *Error
    if errors.As(err, &ae) {
        _ = c.JSON(Status(ae.Kind), echo.Map{"message": ae.Message})
        return
    }

    var he *echo.HTTPError
    if errors.As(err, &he) {
        msg, ok := he.Message.(string)
        if !ok {
            msg = http.StatusText(he.Code)
        }
        _ = c.JSON(he.Code, echo.Map{"message": msg})
        return
    }

    c.Logger().Error(err)
    _ = c.JSON(http.StatusInternalServerError, echo.Map{"message": "Internal Server Error"})
}
