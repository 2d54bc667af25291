package handler_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"haryali/internal/config"
	"haryali/internal/handler"
	"haryali/internal/model"
	"haryali/internal/repository"
	"haryali/internal/router"
	"haryali/internal/session"
	"haryali/internal/utils"
)

// ----- in-memory fakes -----

type fakeUsers struct {
	mu   sync.Mutex
	seq  uint64
	rows map[uint64]model.User
}

func newFakeUsers() *fakeUsers { return &fakeUsers{rows: map[uint64]model.User{}} }

func (f *fakeUsers) Create(_ context.Context, fullName, email, passwordHash, role string) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.rows {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	f.seq++
	now := time.Now().UTC()
	f.rows[f.seq] = model.User{
		ID: f.seq, FullName: fullName, Email: email,
		PasswordHash: passwordHash, Role: role,
		CreatedAt: now, UpdatedAt: now,
	}
	return f.seq, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.rows {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, sql.ErrNoRows
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.rows[id]
	if !ok {
		return model.User{}, sql.ErrNoRows
	}
	u.PasswordHash = "" // projected out, like the real repository
	return u, nil
}

func (f *fakeUsers) setRole(id uint64, role string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u := f.rows[id]
	u.Role = role
	f.rows[id] = u
}

type tokenRow struct {
	userID uint64
	hash   string
	exp    time.Time
}

type fakeTokens struct {
	mu   sync.Mutex
	rows []tokenRow
}

func (f *fakeTokens) Append(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows = append(f.rows, tokenRow{userID: userID, hash: tokenHash, exp: exp})
	return nil
}

func (f *fakeTokens) Exists(_ context.Context, userID uint64, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.userID == userID && r.hash == tokenHash && r.exp.After(time.Now().UTC()) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokens) Remove(_ context.Context, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.hash == tokenHash {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeTokens) countFor(userID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.rows {
		if r.userID == userID {
			n++
		}
	}
	return n
}

// ----- harness -----

func testConfig() config.Config {
	return config.Config{
		Env:              "test",
		JWTSecret:        "test-access-secret",
		JWTRefreshSecret: "test-refresh-secret",
		AccessTTLMin:     15,
		RefreshTTLDays:   7,
		BcryptCost:       bcrypt.MinCost,
	}
}

func noLimiter(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error { return next(c) }
}

func newTestApp() (*echo.Echo, *fakeUsers, *fakeTokens) {
	users := newFakeUsers()
	tokens := &fakeTokens{}
	a := handler.NewAuthHandler(testConfig(), users, tokens, nil)

	e := echo.New()
	router.RegisterRoutes(e)
	router.RegisterAuth(e, a, handler.NewDashboardHandler(), users, noLimiter)
	return e, users, tokens
}

func do(e *echo.Echo, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for _, ck := range cookies {
		if ck != nil {
			req.AddCookie(ck)
		}
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	// Last write wins, as it would in a browser.
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == name {
			found = ck
		}
	}
	return found
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func signup(t *testing.T, e *echo.Echo, fullName, email, password, role string) *httptest.ResponseRecorder {
	t.Helper()
	payload := `{"fullName":"` + fullName + `","email":"` + email + `","password":"` + password + `"`
	if role != "" {
		payload += `,"role":"` + role + `"`
	}
	payload += `}`
	return do(e, http.MethodPost, "/api/auth/signup", payload)
}

// ----- tests -----

/*
TestSignup_MeRoundTrip verifies the issued access cookie resolves back to the
submitted, case-normalized identity via /me, with no password anywhere in
the payload.
*/
func TestSignup_MeRoundTrip(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "A@x.com", "secret1", "farmer")
	require.Equal(t, http.StatusCreated, rec.Code)

	access := cookie(rec, session.AccessCookie)
	require.NotNil(t, access, "signup must set the access cookie")
	require.NotNil(t, cookie(rec, session.RefreshCookie), "signup must set the refresh cookie")

	me := do(e, http.MethodGet, "/api/auth/me", "", access)
	require.Equal(t, http.StatusOK, me.Code)

	user := decode(t, me)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "farmer", user["role"])
	assert.Equal(t, "Asha Patel", user["fullName"])
	assert.NotContains(t, me.Body.String(), "password")
}

/*
TestSignup_DuplicateEmail verifies the signup conflict path, including the
case-normalized collision.
*/
func TestSignup_DuplicateEmail(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = signup(t, e, "Imposter", "A@X.COM", "other", "buyer")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "User with this email already exists", decode(t, rec)["message"])
}

/*
TestSignup_DefaultsRole verifies an omitted role falls back to the
lowest-privilege value.
*/
func TestSignup_DefaultsRole(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "No Role", "norole@x.com", "secret1", "")
	require.Equal(t, http.StatusCreated, rec.Code)

	user := decode(t, rec)["user"].(map[string]any)
	assert.Equal(t, "farmer", user["role"])
}

/*
TestSignup_MissingFields verifies the required-field check.
*/
func TestSignup_MissingFields(t *testing.T) {
	e, _, _ := newTestApp()

	rec := do(e, http.MethodPost, "/api/auth/signup", `{"email":"a@x.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Full name, email, and password are required", decode(t, rec)["message"])
}

/*
TestLogin_InvalidCredentials verifies that an unknown email and a wrong
password are indistinguishable, closing the user-enumeration hole.
*/
func TestLogin_InvalidCredentials(t *testing.T) {
	e, _, _ := newTestApp()
	signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")

	wrongPass := do(e, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"nope"}`)
	noUser := do(e, http.MethodPost, "/api/auth/login", `{"email":"ghost@x.com","password":"nope"}`)

	require.Equal(t, http.StatusBadRequest, wrongPass.Code)
	require.Equal(t, http.StatusBadRequest, noUser.Code)
	assert.Equal(t, "Invalid email or password", decode(t, wrongPass)["message"])
	assert.Equal(t, decode(t, wrongPass)["message"], decode(t, noUser)["message"])
}

/*
TestLogin_AppendsOneRecordPerSession verifies that each successful login adds
exactly one refresh record: N logins leave N live, independently revocable
sessions.
*/
func TestLogin_AppendsOneRecordPerSession(t *testing.T) {
	e, _, tokens := newTestApp()

	signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	assert.Equal(t, 1, tokens.countFor(1))

	login := `{"email":"a@x.com","password":"secret1"}`
	for i := 0; i < 2; i++ {
		rec := do(e, http.MethodPost, "/api/auth/login", login)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 3, tokens.countFor(1))
}

/*
TestLogout_PerDevice verifies logout removes exactly the one record matching
the presented cookie: device B keeps refreshing after device A logs out,
while device A's refresh token is dead even though its signature still
verifies and it has not naturally expired.
*/
func TestLogout_PerDevice(t *testing.T) {
	e, _, tokens := newTestApp()
	cfg := testConfig()

	recA := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	require.Equal(t, http.StatusCreated, recA.Code)
	recB := do(e, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, recB.Code)
	require.Equal(t, 2, tokens.countFor(1))

	accessA, refreshA := cookie(recA, session.AccessCookie), cookie(recA, session.RefreshCookie)
	refreshB := cookie(recB, session.RefreshCookie)

	// 1. Device A logs out.
	out := do(e, http.MethodPost, "/api/auth/logout", "", accessA, refreshA)
	require.Equal(t, http.StatusOK, out.Code)
	assert.Equal(t, "Logged out successfully", decode(t, out)["message"])
	assert.Equal(t, 1, tokens.countFor(1))

	// 2. Device B still refreshes.
	refB := do(e, http.MethodPost, "/api/auth/refresh", "", refreshB)
	assert.Equal(t, http.StatusOK, refB.Code)

	// 3. Device A's refresh token still verifies cryptographically...
	_, err := utils.ParseRefresh(cfg.JWTRefreshSecret, refreshA.Value)
	require.NoError(t, err)

	// ...but the store no longer holds its record, so refresh fails.
	refA := do(e, http.MethodPost, "/api/auth/refresh", "", refreshA)
	require.Equal(t, http.StatusUnauthorized, refA.Code)
	assert.Equal(t, "Invalid refresh token", decode(t, refA)["message"])
}

/*
TestLogout_Idempotent verifies a second logout with the already-removed
cookie returns the same success shape and clears cookies again.
*/
func TestLogout_Idempotent(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	access, refresh := cookie(rec, session.AccessCookie), cookie(rec, session.RefreshCookie)

	first := do(e, http.MethodPost, "/api/auth/logout", "", access, refresh)
	second := do(e, http.MethodPost, "/api/auth/logout", "", access, refresh)

	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, decode(t, first)["message"], decode(t, second)["message"])

	// Both responses clear both cookies.
	for _, r := range []*httptest.ResponseRecorder{first, second} {
		assert.Empty(t, cookie(r, session.AccessCookie).Value)
		assert.Empty(t, cookie(r, session.RefreshCookie).Value)
	}
}

/*
TestLogout_NoRefreshCookie verifies logout without the refresh cookie is
rejected as unauthenticated even when the access token is fine.
*/
func TestLogout_NoRefreshCookie(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	access := cookie(rec, session.AccessCookie)

	out := do(e, http.MethodPost, "/api/auth/logout", "", access)
	require.Equal(t, http.StatusUnauthorized, out.Code)
	assert.Equal(t, "Unauthorized: No refresh token", decode(t, out)["message"])
}

/*
TestRefresh_IssuesNewAccessToken verifies the happy path: a later-issued
access cookie that authenticates, with the refresh cookie re-emitted
unchanged (no rotation).
*/
func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	oldAccess, refresh := cookie(rec, session.AccessCookie), cookie(rec, session.RefreshCookie)

	// The access token embeds issued-at with second precision; crossing a
	// second boundary guarantees the reissued token differs.
	time.Sleep(1100 * time.Millisecond)

	ref := do(e, http.MethodPost, "/api/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, ref.Code)
	assert.Equal(t, "Token refreshed", decode(t, ref)["message"])

	newAccess := cookie(ref, session.AccessCookie)
	require.NotNil(t, newAccess)
	assert.NotEqual(t, oldAccess.Value, newAccess.Value)

	sameRefresh := cookie(ref, session.RefreshCookie)
	require.NotNil(t, sameRefresh)
	assert.Equal(t, refresh.Value, sameRefresh.Value)

	me := do(e, http.MethodGet, "/api/auth/me", "", newAccess)
	assert.Equal(t, http.StatusOK, me.Code)
}

/*
TestRefresh_Failures covers the refresh validation ladder: missing cookie,
tampered token, and a token for a vanished user.
*/
func TestRefresh_Failures(t *testing.T) {
	e, _, _ := newTestApp()
	cfg := testConfig()

	// 1. Missing cookie.
	rec := do(e, http.MethodPost, "/api/auth/refresh", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Refresh token missing", decode(t, rec)["message"])

	// 2. Tampered token.
	rec = do(e, http.MethodPost, "/api/auth/refresh", "",
		&http.Cookie{Name: session.RefreshCookie, Value: "garbage.token.value"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid refresh token", decode(t, rec)["message"])

	// 3. Valid signature, unknown subject.
	ghost, err := utils.NewRefreshToken(cfg.JWTRefreshSecret, 9999, 7)
	require.NoError(t, err)
	rec = do(e, http.MethodPost, "/api/auth/refresh", "",
		&http.Cookie{Name: session.RefreshCookie, Value: ghost.Raw})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "User not found", decode(t, rec)["message"])
}

/*
TestRefresh_RoleChangePropagates verifies the role is re-resolved from
storage on refresh: after an upgrade the next access token opens the new
role's routes without re-login.
*/
func TestRefresh_RoleChangePropagates(t *testing.T) {
	e, users, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	refresh := cookie(rec, session.RefreshCookie)

	users.setRole(1, model.RoleBuyer)

	ref := do(e, http.MethodPost, "/api/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, ref.Code)
	access := cookie(ref, session.AccessCookie)

	dash := do(e, http.MethodGet, "/api/buyer/dashboard", "", access)
	assert.Equal(t, http.StatusOK, dash.Code)
}

/*
TestDashboards_RoleGates verifies the composed pipeline: a farmer passes the
farmer gate and the any-authenticated gate, is forbidden on the buyer gate,
and anonymous callers are unauthenticated everywhere.
*/
func TestDashboards_RoleGates(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	access := cookie(rec, session.AccessCookie)

	own := do(e, http.MethodGet, "/api/farmer/dashboard", "", access)
	assert.Equal(t, http.StatusOK, own.Code)

	other := do(e, http.MethodGet, "/api/buyer/dashboard", "", access)
	assert.Equal(t, http.StatusForbidden, other.Code)

	anyAuth := do(e, http.MethodGet, "/api/account", "", access)
	assert.Equal(t, http.StatusOK, anyAuth.Code)

	anon := do(e, http.MethodGet, "/api/account", "")
	assert.Equal(t, http.StatusUnauthorized, anon.Code)
}

/*
TestScenario_EndToEnd replays the documented example flow: signup, immediate
refresh, login with wrong password, then /me with the refreshed cookie.
*/
func TestScenario_EndToEnd(t *testing.T) {
	e, _, _ := newTestApp()

	rec := signup(t, e, "Asha Patel", "a@x.com", "secret1", "farmer")
	require.Equal(t, http.StatusCreated, rec.Code)
	refresh := cookie(rec, session.RefreshCookie)

	ref := do(e, http.MethodPost, "/api/auth/refresh", "", refresh)
	require.Equal(t, http.StatusOK, ref.Code)
	refreshed := cookie(ref, session.AccessCookie)
	require.NotNil(t, refreshed)

	bad := do(e, http.MethodPost, "/api/auth/login", `{"email":"a@x.com","password":"wrong"}`)
	require.Equal(t, http.StatusBadRequest, bad.Code)
	assert.Equal(t, "Invalid email or password", decode(t, bad)["message"])

	me := do(e, http.MethodGet, "/api/auth/me", "", refreshed)
	require.Equal(t, http.StatusOK, me.Code)
	user := decode(t, me)["user"].(map[string]any)
	assert.Equal(t, "a@x.com", user["email"])
	assert.Equal(t, "farmer", user["role"])
}
