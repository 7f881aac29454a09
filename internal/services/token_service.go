package services

import (
	"context"
	"database/sql"
	"time"
)

// TokenServiceProvider defines the interface for the token deny-list.
type TokenServiceProvider interface {
	RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	PurgeExpired(ctx context.Context) (int64, error)
}

// TokenService persists revoked token ids until the tokens would have expired anyway.
type TokenService struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenService creates a new TokenService.
func NewTokenService(db *sql.DB) *TokenService {
	return &TokenService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// RevokeToken records tokenID as revoked. Revoking twice is a no-op.
func (s *TokenService) RevokeToken(ctx context.Context, tokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT OR IGNORE INTO revoked_tokens (jti, expires_at) VALUES (?, ?)", tokenID, expiresAt.UTC())
	return err
}

// IsRevoked reports whether tokenID was revoked.
func (s *TokenService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM revoked_tokens WHERE jti = ?", tokenID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// PurgeExpired drops entries whose tokens have expired and returns how many were removed.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM revoked_tokens WHERE expires_at <= ?", s.now())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
