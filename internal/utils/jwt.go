package utils // package utils provides helper functions for token creation, parsing and hashing

import (
    "crypto/sha256" // SHA-256 hashing for refresh tokens at rest
    "encoding/hex"  // hex encoding of digests
    "errors"        // sentinel errors and errors.Is
    "time"          // expiration arithmetic

    "github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

// Sentinel parse errors.  Callers use these to distinguish a token whose
// signature is fine but whose time window has elapsed from one that is
// malformed or tampered with; clients react differently to the two cases
// (refresh vs. re-login).
var (
    ErrTokenExpired = errors.New("token expired")
    ErrTokenInvalid = errors.New("token invalid")
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens are short-lived and travel in the accessToken cookie or the
// Authorization header on protected endpoints.
type AccessToken struct {
    Token string    // the serialized JWT string
    Exp   time.Time // the UTC expiration time
}

// RefreshToken represents a long-lived signed JWT used to obtain new access
// tokens.  The Raw string goes back to the client in the refreshToken
// cookie; the database stores only a SHA-256 hash of it.
type RefreshToken struct {
    Raw string    // raw signed token returned to the client
    Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  It takes the
// access-token signing secret, the user ID, the user's role, and a TTL in
// minutes.  The JWT carries subject (sub), role, expiration (exp) and
// issued-at (iat) claims and nothing else.
func NewAccessToken(secret string, userID uint64, role string, ttlMin int) (AccessToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
    claims := jwt.MapClaims{
        "sub":  userID,
        "role": role,
        "exp":  exp.Unix(),
        "iat":  time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}

// NewRefreshToken builds and signs an HS256 JWT refresh token.  It is signed
// with a secret independent from the access secret so the two token classes
// can never be replayed for one another.  Only the subject is embedded; the
// role is re-read from storage when the token is used, so a role change is
// honoured on the next refresh.
func NewRefreshToken(secret string, userID uint64, ttlDays int) (RefreshToken, error) {
    exp := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
    claims := jwt.MapClaims{
        "sub": userID,
        "exp": exp.Unix(),
        "iat": time.Now().UTC().Unix(),
    }
    t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
    signed, err := t.SignedString([]byte(secret))
    if err != nil {
        return RefreshToken{}, err
    }
    return RefreshToken{Raw: signed, Exp: exp}, nil
}

// ParseAccess verifies an access token against the access secret and returns
// the embedded user ID and role.  An elapsed time window maps to
// ErrTokenExpired; any other verification failure maps to ErrTokenInvalid.
func ParseAccess(secret, raw string) (uint64, string, error) {
    claims, err := parseHS256(secret, raw)
    if err != nil {
        return 0, "", err
    }
    uid, ok := subjectID(claims)
    if !ok {
        return 0, "", ErrTokenInvalid
    }
    role, ok := claims["role"].(string)
    if !ok || role == "" {
        return 0, "", ErrTokenInvalid
    }
    return uid, role, nil
}

// ParseRefresh verifies a refresh token against the refresh secret and
// returns the embedded user ID.  Error semantics match ParseAccess.
func ParseRefresh(secret, raw string) (uint64, error) {
    claims, err := parseHS256(secret, raw)
    if err != nil {
        return 0, err
    }
    uid, ok := subjectID(claims)
    if !ok {
        return 0, ErrTokenInvalid
    }
    return uid, nil
}

// parseHS256 parses and validates a token signed with the given secret.  The
// key callback rejects any signing method other than HMAC so a token cannot
// smuggle in an alternative algorithm.
func parseHS256(secret, raw string) (jwt.MapClaims, error) {
    tok, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
        if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
            return nil, ErrTokenInvalid
        }
        return []byte(secret), nil
    })
    if err != nil {
        // The jwt library wraps expiry in ErrTokenExpired; everything else
        // (bad signature, malformed segments, wrong secret) is invalid.
        if errors.Is(err, jwt.ErrTokenExpired) {
            return nil, ErrTokenExpired
        }
        return nil, ErrTokenInvalid
    }
    if !tok.Valid {
        return nil, ErrTokenInvalid
    }
    claims, ok := tok.Claims.(jwt.MapClaims)
    if !ok {
        return nil, ErrTokenInvalid
    }
    return claims, nil
}

// subjectID extracts the numeric subject claim.  JSON numbers decode as
// float64; a stringified ID is not accepted because this service never
// issues one.
func subjectID(claims jwt.MapClaims) (uint64, bool) {
    v, ok := claims["sub"].(float64)
    if !ok || v < 0 {
        return 0, false
    }
    return uint64(v), true
}

// HashToken returns the SHA-256 hash of a raw token as a hex string.  The
// database stores only this digest, so a leaked table cannot be replayed as
// live refresh credentials.
func HashToken(raw string) string {
    sum := sha256.Sum256([]byte(raw))
    return hex.EncodeToString(sum[:])
}
