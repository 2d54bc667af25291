package repository

import (
	"context"
	"database/sql"
	"time"
)

// maxTokensPerUser bounds the number of live sessions kept per user. On
// append, the oldest rows beyond the cap are evicted.
const maxTokensPerUser = 10

// TokenRepo persists refresh tokens as one row per live session, keyed by
// the SHA-256 hash of the signed token. Append and remove are single SQL
// statements, so two devices logging in or out concurrently never clobber
// each other's records.
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Append inserts a refresh token row for a user, then evicts the user's
// oldest rows beyond the per-user cap.
func (r *TokenRepo) Append(ctx context.Context, userID uint64, tokenHash string, exp time.Time) error {
	if _, err := r.DB.ExecContext(ctx,
		"INSERT INTO refresh_tokens (user_id, token_hash, expires_at) VALUES (?,?,?)",
		userID, tokenHash, exp); err != nil {
		return err
	}
	// MySQL cannot delete from a table it subselects, hence the derived table.
	_, err := r.DB.ExecContext(ctx,
		`DELETE FROM refresh_tokens WHERE id IN (
			SELECT id FROM (
				SELECT id FROM refresh_tokens WHERE user_id=? ORDER BY id DESC LIMIT 1000 OFFSET ?
			) AS stale
		)`,
		userID, maxTokensPerUser)
	return err
}

// Exists reports whether a live (stored and not yet expired) refresh token
// row is present for the user. A row that was removed by logout fails this
// check even though the signed token itself still verifies.
func (r *TokenRepo) Exists(ctx context.Context, userID uint64, tokenHash string) (bool, error) {
	var one int
	err := r.DB.QueryRowContext(ctx,
		"SELECT 1 FROM refresh_tokens WHERE user_id=? AND token_hash=? AND expires_at > UTC_TIMESTAMP() LIMIT 1",
		userID, tokenHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Remove deletes exactly the one row matching the token hash and reports
// whether a row was removed. Logout is per-device: other sessions of the
// same user keep their rows.
func (r *TokenRepo) Remove(ctx context.Context, tokenHash string) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=? LIMIT 1", tokenHash)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// DeleteExpired prunes rows whose tokens have passed their natural expiry.
// Called periodically from a background sweeper.
func (r *TokenRepo) DeleteExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at <= UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
