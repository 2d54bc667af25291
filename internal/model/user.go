package model

import (
    "strings"
    "time"
)

// Role names are stored lowercase; NormalizeRole is the single place where
// client input is folded into the canonical form.  Every other layer may
// assume a role value is one of these four constants.
const (
    RoleFarmer    = "farmer"
    RoleBuyer     = "buyer"
    RoleLogistics = "logistics"
    RoleAdmin     = "admin"
)

// NormalizeRole lowercases and trims a client-supplied role and returns the
// canonical value.  Unknown or empty input falls back to the lowest-privilege
// role (farmer), matching the signup default.
func NormalizeRole(role string) string {
    switch strings.ToLower(strings.TrimSpace(role)) {
    case RoleBuyer:
        return RoleBuyer
    case RoleLogistics:
        return RoleLogistics
    case RoleAdmin:
        return RoleAdmin
    default:
        return RoleFarmer
    }
}

// User mirrors the `users` table.  PasswordHash is populated only by the
// lookups used for credential verification; everywhere else it stays empty
// and is never serialized to clients.
//
// Fields:
//  ID           – primary key identifier of the user.
//  FullName     – display name.
//  Email        – unique email address, stored lowercase.
//  PasswordHash – bcrypt hashed password (write-only from the API's view).
//  Role         – canonical role name (farmer, buyer, logistics or admin).
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    FullName     string    // users.full_name
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         string    // users.role
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models a row in the `refresh_tokens` table.  One row exists
// per live session; the plain token is never stored, only its SHA-256 hash.
// A token is honoured only while its row exists, which is what makes logout
// effective before the signed token naturally expires.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – owner of the token.
//  TokenHash – SHA-256 hex digest of the signed refresh token.
//  ExpiresAt – expiration timestamp of the token.
//  CreatedAt – timestamp of creation.
type RefreshToken struct {
    ID        uint64    // refresh_tokens.id
    UserID    uint64    // refresh_tokens.user_id
    TokenHash string    // refresh_tokens.token_hash
    ExpiresAt time.Time // refresh_tokens.expires_at
    CreatedAt time.Time // refresh_tokens.created_at
}
