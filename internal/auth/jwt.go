package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/isdelr/studshare-be/internal/models"
)

// DefaultTokenTTL is how long an issued credential stays valid.
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	// ErrMissingSecret is returned by Issue when no signing secret is configured.
	ErrMissingSecret = errors.New("jwt signing secret is not configured")
	// ErrInvalidCredential covers missing, malformed, expired, forged and revoked tokens.
	ErrInvalidCredential = errors.New("invalid or expired token")
)

// Claims defines the JWT claims structure.
type Claims struct {
	UserID   int64  `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Identity is the authenticated user as recorded in a verified token.
type Identity struct {
	ID        int64
	FullName  string
	Email     string
	TokenID   string
	ExpiresAt time.Time
}

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// TokenManager issues and verifies signed identity tokens.
type TokenManager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationChecker
	now     func() time.Time
}

// NewTokenManager creates a TokenManager. revoked may be nil.
func NewTokenManager(secret string, ttl time.Duration, revoked RevocationChecker) *TokenManager {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenManager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		now:     time.Now,
	}
}

// Ready returns ErrMissingSecret when no token can be issued.
func (m *TokenManager) Ready() error {
	if len(m.secret) == 0 {
		return ErrMissingSecret
	}
	return nil
}

// Issue creates a signed token for a given user.
func (m *TokenManager) Issue(user models.User) (string, time.Time, error) {
	if err := m.Ready(); err != nil {
		return "", time.Time{}, err
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		UserID:   user.ID,
		FullName: user.FullName,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify parses and validates a token string and checks it against the revocation list.
func (m *TokenManager) Verify(ctx context.Context, tokenStr string) (*Identity, error) {
	if tokenStr == "" || len(m.secret) == 0 {
		return nil, ErrInvalidCredential
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if claims.UserID <= 0 {
		return nil, fmt.Errorf("%w: token carries no user id", ErrInvalidCredential)
	}

	if m.revoked != nil && claims.ID != "" {
		revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("check token revocation: %w", err)
		}
		if revoked {
			return nil, fmt.Errorf("%w: token revoked", ErrInvalidCredential)
		}
	}

	return &Identity{
		ID:        claims.UserID,
		FullName:  claims.FullName,
		Email:     claims.Email,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
