package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/isdelr/studshare-be/internal/database"
	"github.com/isdelr/studshare-be/internal/models"
	"golang.org/x/crypto/bcrypt"
)

// UserServiceProvider defines the interface for user services.
type UserServiceProvider interface {
	GetUserByID(ctx context.Context, id int64) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	CreateUser(ctx context.Context, fullName, email, password string) (models.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (models.User, error)
	VerifyPassword(user models.User, password string) bool
}

// UserService provides business logic for user management.
type UserService struct {
	db       *sql.DB
	hashCost int
	now      func() time.Time

	dummyOnce sync.Once
	dummyHash []byte
}

// NewUserService creates a new UserService.
func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db:       db,
		hashCost: bcrypt.DefaultCost,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithHashCost overrides the bcrypt cost. Values outside bcrypt's range are ignored.
func (s *UserService) WithHashCost(cost int) *UserService {
	if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
		s.hashCost = cost
	}
	return s
}

// NormalizeEmail is the canonical form emails are stored and looked up in.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// GetUserByID retrieves a single user by their ID.
func (s *UserService) GetUserByID(ctx context.Context, id int64) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, full_name, email, created_at FROM users WHERE id = ?", id)
	err := row.Scan(&user.ID, &user.FullName, &user.Email, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %d: %w", id, models.ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// GetUserByEmail retrieves a single user by their email, including the password hash.
func (s *UserService) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	var user models.User
	row := s.db.QueryRowContext(ctx, "SELECT id, full_name, email, password_hash, created_at FROM users WHERE email = ?", NormalizeEmail(email))
	err := row.Scan(&user.ID, &user.FullName, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.User{}, fmt.Errorf("user with email %s: %w", email, models.ErrNotFound)
		}
		return models.User{}, err
	}
	return user, nil
}

// CreateUser registers a new user, hashing their password. Uniqueness of the email is
// left to the UNIQUE constraint so concurrent registrations cannot both succeed.
func (s *UserService) CreateUser(ctx context.Context, fullName, email, password string) (models.User, error) {
	fullName = strings.TrimSpace(fullName)
	email = NormalizeEmail(email)
	if fullName == "" || email == "" || password == "" {
		return models.User{}, fmt.Errorf("%w: full_name, email and password are required", models.ErrValidation)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := models.User{
		FullName:     fullName,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.now(),
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (full_name, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.FullName, user.Email, user.PasswordHash, user.CreatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return models.User{}, fmt.Errorf("%s: %w", email, models.ErrDuplicateEmail)
		}
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	if user.ID, err = res.LastInsertId(); err != nil {
		return models.User{}, err
	}

	// Return user without password hash
	user.PasswordHash = ""
	return user, nil
}

// VerifyPassword compares password against the stored bcrypt hash.
func (s *UserService) VerifyPassword(user models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) == nil
}

// AuthenticateUser verifies a user's credentials. Unknown emails still pay for a bcrypt
// comparison so both failure paths take the same time.
func (s *UserService) AuthenticateUser(ctx context.Context, email, password string) (models.User, error) {
	user, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return models.User{}, err
		}
		bcrypt.CompareHashAndPassword(s.dummy(), []byte(password))
		return models.User{}, fmt.Errorf("%w: unknown email", models.ErrInvalidCredentials)
	}

	if !s.VerifyPassword(user, password) {
		return models.User{}, fmt.Errorf("%w: wrong password", models.ErrInvalidCredentials)
	}

	// Don't send the password hash to the client
	user.PasswordHash = ""
	return user, nil
}

func (s *UserService) dummy() []byte {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("studshare-dummy-password"), s.hashCost)
	})
	return s.dummyHash
}
