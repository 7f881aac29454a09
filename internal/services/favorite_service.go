package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/isdelr/studshare-be/internal/database"
	"github.com/isdelr/studshare-be/internal/models"
)

// FavoriteServiceProvider defines the interface for favorite services.
type FavoriteServiceProvider interface {
	GetFavoriteListings(ctx context.Context, userID int64) ([]models.Listing, error)
	AddFavorite(ctx context.Context, userID, listingID int64) error
	RemoveFavorite(ctx context.Context, userID, listingID int64) error
}

// FavoriteService provides business logic for bookmarks.
type FavoriteService struct {
	db  *sql.DB
	now func() time.Time
}

// NewFavoriteService creates a new FavoriteService.
func NewFavoriteService(db *sql.DB) *FavoriteService {
	return &FavoriteService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// GetFavoriteListings returns the user's bookmarked listings, most recently added first.
func (s *FavoriteService) GetFavoriteListings(ctx context.Context, userID int64) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+listingColumns+`
		FROM favorite_listings f
		JOIN listings l ON l.id = f.listing_id
		WHERE f.user_id = ?
		ORDER BY f.created_at DESC, f.rowid DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// AddFavorite bookmarks a listing. Adding an existing bookmark refreshes its timestamp.
// A missing listing is detected by the foreign key rather than a separate lookup.
func (s *FavoriteService) AddFavorite(ctx context.Context, userID, listingID int64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO favorite_listings (user_id, listing_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, listing_id) DO UPDATE SET created_at = excluded.created_at`,
		userID, listingID, s.now(),
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return fmt.Errorf("listing %d: %w", listingID, models.ErrNotFound)
		}
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// RemoveFavorite deletes a bookmark. Removing a bookmark that does not exist succeeds.
func (s *FavoriteService) RemoveFavorite(ctx context.Context, userID, listingID int64) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM favorite_listings WHERE user_id = ? AND listing_id = ?", userID, listingID)
	if err != nil {
		return fmt.Errorf("remove favorite: %w", err)
	}
	return nil
}
