package handler

import (
    "context"      // context with cancellation for DB calls
    "database/sql" // sentinel row-not-found error
    "errors"
    "net/http" // HTTP status codes
    "strings"  // input trimming
    "time"     // timeouts and cookie lifetimes

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "haryali/internal/config"     // app configuration
    "haryali/internal/httperr"    // typed auth errors
    "haryali/internal/middleware" // access to the authenticated user
    "haryali/internal/model"      // user record and role normalization
    "haryali/internal/queue"      // broker event payloads
    "haryali/internal/repository" // sentinel store errors
    "haryali/internal/session"    // cookie transport
    "haryali/internal/utils"      // hashing and token issuing
)

// UserStore is the slice of the user repository the auth endpoints need.
// *repository.UserRepo satisfies it; tests use an in-memory fake.
type UserStore interface {
    Create(ctx context.Context, fullName, email, passwordHash, role string) (uint64, error)
    GetByEmail(ctx context.Context, email string) (model.User, error)
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// TokenStore persists the per-user refresh-token collection.
type TokenStore interface {
    Append(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error
    Exists(ctx context.Context, userID uint64, tokenHash string) (bool, error)
    Remove(ctx context.Context, tokenHash string) (bool, error)
}

// EventPublisher feeds the out-of-process email/newsletter collaborator.
type EventPublisher interface {
    UserRegistered(ctx context.Context, ev queue.UserRegisteredEvent) error
}

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
    Cfg    config.Config
    Users  UserStore
    Tokens TokenStore
    Events EventPublisher // optional; nil disables signup events
}

func NewAuthHandler(cfg config.Config, u UserStore, t TokenStore, ev EventPublisher) *AuthHandler {
    return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Events: ev}
}

// ----- DTOs -----

type signupReq struct {
    FullName string `json:"fullName"`
    Email    string `json:"email"`
    Password string `json:"password"`
    Role     string `json:"role"` // farmer | buyer | logistics | admin
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}

type userPart struct {
    ID       uint64 `json:"id"`
    FullName string `json:"fullName"`
    Email    string `json:"email"`
    Role     string `json:"role"`
}

func publicUser(u model.User) userPart {
    return userPart{ID: u.ID, FullName: u.FullName, Email: u.Email, Role: u.Role}
}

func (h *AuthHandler) accessTTL() time.Duration {
    return time.Duration(h.Cfg.AccessTTLMin) * time.Minute
}
func (h *AuthHandler) refreshTTL() time.Duration {
    return time.Duration(h.Cfg.RefreshTTLDays) * 24 * time.Hour
}

// issueSession mints both tokens for a user, appends the refresh record to
// the store and binds the pair to the client via cookies.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, userID uint64, role string) error {
    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, userID, role, h.Cfg.AccessTTLMin)
    if err != nil {
        return err
    }
    refresh, err := utils.NewRefreshToken(h.Cfg.JWTRefreshSecret, userID, h.Cfg.RefreshTTLDays)
    if err != nil {
        return err
    }
    if err := h.Tokens.Append(ctx, userID, utils.HashToken(refresh.Raw), refresh.Exp); err != nil {
        return err
    }
    session.SetAuthCookies(c, access.Token, refresh.Raw, h.accessTTL(), h.refreshTTL(), h.Cfg.Production())
    return nil
}

// Signup creates a user and opens a session immediately.
func (h *AuthHandler) Signup(c echo.Context) error {
    var req signupReq
    if err := c.Bind(&req); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
    }
    req.FullName = strings.TrimSpace(req.FullName)
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.FullName == "" || req.Email == "" || req.Password == "" {
        return echo.NewHTTPError(http.StatusBadRequest, "Full name, email, and password are required")
    }
    // One canonical role representation, normalized here and nowhere else.
    role := model.NormalizeRole(req.Role)

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return err
    }
    uid, err := h.Users.Create(ctx, req.FullName, req.Email, hash, role)
    if err != nil {
        if errors.Is(err, repository.ErrEmailExists) {
            return httperr.New(httperr.KindDuplicateEmail, "User with this email already exists")
        }
        return err
    }

    if err := h.issueSession(ctx, c, uid, role); err != nil {
        return err
    }

    if h.Events != nil {
        // Best effort: a broker outage must not fail the signup.
        _ = h.Events.UserRegistered(ctx, queue.UserRegisteredEvent{
            UserID:       uid,
            FullName:     req.FullName,
            Email:        req.Email,
            Role:         role,
            RegisteredAt: time.Now().UTC().Format(time.RFC3339),
        })
    }

    return c.JSON(http.StatusCreated, echo.Map{
        "message": "User registered successfully",
        "user":    userPart{ID: uid, FullName: req.FullName, Email: req.Email, Role: role},
    })
}

// Login verifies credentials and opens a new session alongside any existing
// ones.  Unknown email and wrong password surface the same error so the
// endpoint cannot be used to enumerate accounts.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
    }
    req.Email = strings.ToLower(strings.TrimSpace(req.Email))
    if req.Email == "" || req.Password == "" {
        return echo.NewHTTPError(http.StatusBadRequest, "Email and password are required")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return httperr.New(httperr.KindInvalidCredentials, "Invalid email or password")
        }
        return err
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return httperr.New(httperr.KindInvalidCredentials, "Invalid email or password")
    }

    if err := h.issueSession(ctx, c, u.ID, u.Role); err != nil {
        return err
    }

    return c.JSON(http.StatusOK, echo.Map{
        "message": "Login successful",
        "user":    publicUser(u),
    })
}

// Refresh exchanges a valid refresh credential for a new access token.  The
// refresh token itself is not rotated; revocation happens purely through the
// store, so the record must still be present even when the signature checks
// out.  The credential is accepted from its cookie only.
func (h *AuthHandler) Refresh(c echo.Context) error {
    raw, ok := session.ReadRefreshToken(c)
    if !ok {
        return httperr.New(httperr.KindUnauthenticated, "Refresh token missing")
    }

    uid, err := utils.ParseRefresh(h.Cfg.JWTRefreshSecret, raw)
    if err != nil {
        if errors.Is(err, utils.ErrTokenExpired) {
            return httperr.New(httperr.KindRefreshExpired, "Refresh token expired")
        }
        return httperr.New(httperr.KindInvalidRefresh, "Invalid refresh token")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    // Role comes from the freshly loaded user, not from any token claim, so
    // a role change takes effect on the next refresh.
    u, err := h.Users.GetByID(ctx, uid)
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return httperr.New(httperr.KindUnauthenticated, "User not found")
        }
        return err
    }

    live, err := h.Tokens.Exists(ctx, uid, utils.HashToken(raw))
    if err != nil {
        return err
    }
    if !live {
        // Logged out or revoked before natural expiry.
        return httperr.New(httperr.KindInvalidRefresh, "Invalid refresh token")
    }

    access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Role, h.Cfg.AccessTTLMin)
    if err != nil {
        return err
    }
    session.SetAccessCookie(c, access.Token, h.accessTTL(), h.Cfg.Production())
    // Re-emit the unchanged refresh cookie so its clock keeps matching the
    // stored record.
    session.SetRefreshCookie(c, raw, h.refreshTTL(), h.Cfg.Production())

    return c.JSON(http.StatusOK, echo.Map{"message": "Token refreshed"})
}

// Logout removes the one refresh record matching the presented cookie and
// clears both cookies.  Other sessions of the same user stay valid; clearing
// happens even when no record matched, so repeating logout is harmless.
func (h *AuthHandler) Logout(c echo.Context) error {
    raw, ok := session.ReadRefreshToken(c)
    if !ok {
        return httperr.New(httperr.KindUnauthenticated, "Unauthorized: No refresh token")
    }

    ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
    defer cancel()

    if _, err := h.Tokens.Remove(ctx, utils.HashToken(raw)); err != nil {
        return err
    }

    session.ClearAuthCookies(c, h.Cfg.Production())
    return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me returns the identity resolved by the authentication gate.
func (h *AuthHandler) Me(c echo.Context) error {
    u, ok := middleware.CurrentUser(c)
    if !ok {
        return httperr.New(httperr.KindUnauthenticated, "User not authenticated")
    }
    return c.JSON(http.StatusOK, echo.Map{"user": publicUser(u)})
}
