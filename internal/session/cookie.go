// Package session binds issued tokens to the client via secure cookies and
// reads them back on subsequent requests.  The cookie names are a contract
// with the frontend and must not change independently on either side.
package session

import (
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
)

// Cookie names shared with the frontend.
const (
    AccessCookie  = "accessToken"
    RefreshCookie = "refreshToken"
)

// Both cookies live on the root path.  Clearing them with any other path
// would leave a dangling cookie the browser refuses to overwrite.
const cookiePath = "/"

// SetAccessCookie attaches the access token as an HTTP-only, same-site-strict
// cookie whose MaxAge matches the token's lifetime.  The secure flag is set
// by the caller when the deployment environment is production.
func SetAccessCookie(c echo.Context, token string, ttl time.Duration, secure bool) {
    c.SetCookie(authCookie(AccessCookie, token, ttl, secure))
}

// SetRefreshCookie attaches the refresh token, long-lived counterpart of
// SetAccessCookie.
func SetRefreshCookie(c echo.Context, token string, ttl time.Duration, secure bool) {
    c.SetCookie(authCookie(RefreshCookie, token, ttl, secure))
}

// SetAuthCookies sets both credentials at once, each with its own expiry
// clock.  Used at signup and login; refresh resets only the access cookie.
func SetAuthCookies(c echo.Context, access, refresh string, accessTTL, refreshTTL time.Duration, secure bool) {
    SetAccessCookie(c, access, accessTTL, secure)
    SetRefreshCookie(c, refresh, refreshTTL, secure)
}

// ClearAuthCookies deletes both cookies.  The attributes must match the ones
// used when setting, path included, or the browser keeps the old cookie.
func ClearAuthCookies(c echo.Context, secure bool) {
    c.SetCookie(authCookie(AccessCookie, "", -time.Second, secure))
    c.SetCookie(authCookie(RefreshCookie, "", -time.Second, secure))
}

// ReadAccessToken extracts the access credential from the request, cookie
// first and then the Authorization bearer header.  Dual acceptance keeps
// both browser and non-browser clients working; the cookie wins when both
// are present.
func ReadAccessToken(c echo.Context) (string, bool) {
    if ck, err := c.Cookie(AccessCookie); err == nil && ck.Value != "" {
        return ck.Value, true
    }
    auth := c.Request().Header.Get(echo.HeaderAuthorization)
    if strings.HasPrefix(auth, "Bearer ") {
        if raw := strings.TrimPrefix(auth, "Bearer "); raw != "" {
            return raw, true
        }
    }
    return "", false
}

// ReadRefreshToken extracts the refresh credential from its cookie only.  A
// long-lived bearer secret is never accepted via header.
func ReadRefreshToken(c echo.Context) (string, bool) {
    ck, err := c.Cookie(RefreshCookie)
    if err != nil || ck.Value == "" {
        return "", false
    }
    return ck.Value, true
}

func authCookie(name, value string, ttl time.Duration, secure bool) *http.Cookie {
    maxAge := int(ttl.Seconds())
    if ttl < 0 {
        // Negative MaxAge deletes the cookie immediately.
        maxAge = -1
    }
    return &http.Cookie{
        Name:     name,
        Value:    value,
        Path:     cookiePath,
        MaxAge:   maxAge,
        HttpOnly: true,
        Secure:   secure,
        SameSite: http.SameSiteStrictMode,
    }
}
