package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/database"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/rs/zerolog/log"
)

// Listing feed events.
const (
	EventListingCreated = "listing.created"
	EventListingUpdated = "listing.updated"
	EventListingDeleted = "listing.deleted"
)

// ListingServiceProvider defines the interface for listing services.
type ListingServiceProvider interface {
	GetAllListings(ctx context.Context) ([]models.Listing, error)
	GetListingByID(ctx context.Context, id int64) (models.Listing, error)
	GetListingsByOwner(ctx context.Context, ownerID int64) ([]models.Listing, error)
	FilterListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error)
	CreateListing(ctx context.Context, input models.ListingInput, ownerID int64) (models.Listing, error)
	UpdateListing(ctx context.Context, id int64, input models.ListingInput, requester *auth.Identity) (models.Listing, error)
	DeleteListing(ctx context.Context, id int64, requester *auth.Identity) error
}

// ListingCache is a read-through cache in front of the listings table.
// Reads report the key's version alongside the value; a fill carrying a
// version that Invalidate has since bumped must be discarded.
type ListingCache interface {
	GetFeed(ctx context.Context) (feed []models.Listing, version int64, ok bool, err error)
	SetFeed(ctx context.Context, listings []models.Listing, version int64) error
	GetListing(ctx context.Context, id int64) (*models.Listing, int64, error)
	SetListing(ctx context.Context, listing models.Listing, version int64) error
	Invalidate(ctx context.Context, ids ...int64) error
}

// EventPublisher receives listing mutations for live clients.
type EventPublisher interface {
	Publish(action string, payload interface{})
}

// ListingService provides business logic for listing management.
type ListingService struct {
	db     *sql.DB
	cache  ListingCache
	events EventPublisher
	now    func() time.Time
}

// NewListingService creates a new ListingService.
func NewListingService(db *sql.DB) *ListingService {
	return &ListingService{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// WithCache serves reads through cache.
func (s *ListingService) WithCache(cache ListingCache) *ListingService {
	s.cache = cache
	return s
}

// WithEvents publishes every successful mutation to events.
func (s *ListingService) WithEvents(events EventPublisher) *ListingService {
	s.events = events
	return s
}

const listingColumns = `l.id, l.owner_id, l.gender, l.faculty, l.course, l.specialty, l.district, l.address,
	l.rooms_count, l.people_count, l.price, l.utilities_included, l.additional_info,
	l.contact_phone, l.contact_telegram, l.contact_instagram, l.created_at`

// scanListing is a helper to scan a listing from a row or rows object.
func scanListing(scanner interface{ Scan(...interface{}) error }) (models.Listing, error) {
	var l models.Listing
	var additionalInfo, telegram, instagram sql.NullString

	err := scanner.Scan(
		&l.ID, &l.OwnerID, &l.Gender, &l.Faculty, &l.Course, &l.Specialty, &l.District, &l.Address,
		&l.RoomsCount, &l.PeopleCount, &l.Price, &l.UtilitiesIncluded, &additionalInfo,
		&l.ContactPhone, &telegram, &instagram, &l.CreatedAt,
	)
	if err != nil {
		return l, err
	}

	l.AdditionalInfo = additionalInfo.String
	l.ContactTelegram = telegram.String
	l.ContactInstagram = instagram.String
	l.StudentID = models.OwnerRef(l.OwnerID)
	return l, nil
}

func scanListings(rows *sql.Rows) ([]models.Listing, error) {
	listings := []models.Listing{}
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

func (s *ListingService) queryListings(ctx context.Context, query string, args ...interface{}) ([]models.Listing, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanListings(rows)
}

// GetAllListings returns every listing, newest first.
func (s *ListingService) GetAllListings(ctx context.Context) ([]models.Listing, error) {
	var version int64
	fill := false
	if s.cache != nil {
		feed, v, ok, err := s.cache.GetFeed(ctx)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("Listing cache read failed, falling back to database")
		case ok:
			return feed, nil
		default:
			version, fill = v, true
		}
	}

	listings, err := s.queryListings(ctx, "SELECT "+listingColumns+" FROM listings l ORDER BY l.created_at DESC, l.id DESC")
	if err != nil {
		return nil, err
	}

	if fill {
		if err := s.cache.SetFeed(ctx, listings, version); err != nil {
			log.Warn().Err(err).Msg("Failed to populate listing feed cache")
		}
	}
	return listings, nil
}

// GetListingByID retrieves a single listing.
func (s *ListingService) GetListingByID(ctx context.Context, id int64) (models.Listing, error) {
	var version int64
	fill := false
	if s.cache != nil {
		cached, v, err := s.cache.GetListing(ctx, id)
		switch {
		case err != nil:
			log.Warn().Err(err).Int64("listing_id", id).Msg("Listing cache read failed, falling back to database")
		case cached != nil:
			return *cached, nil
		default:
			version, fill = v, true
		}
	}

	l, err := s.loadListing(ctx, id)
	if err != nil {
		return models.Listing{}, err
	}

	if fill {
		if err := s.cache.SetListing(ctx, l, version); err != nil {
			log.Warn().Err(err).Int64("listing_id", id).Msg("Failed to cache listing")
		}
	}
	return l, nil
}

func (s *ListingService) loadListing(ctx context.Context, id int64) (models.Listing, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+listingColumns+" FROM listings l WHERE l.id = ?", id)
	l, err := scanListing(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Listing{}, fmt.Errorf("listing %d: %w", id, models.ErrNotFound)
		}
		return models.Listing{}, err
	}
	return l, nil
}

// GetListingsByOwner returns the listings posted by ownerID, newest first.
func (s *ListingService) GetListingsByOwner(ctx context.Context, ownerID int64) ([]models.Listing, error) {
	return s.queryListings(ctx,
		"SELECT "+listingColumns+" FROM listings l WHERE l.owner_id = ? ORDER BY l.created_at DESC, l.id DESC", ownerID)
}

// buildFilterQuery composes the conjunctive WHERE clause for filter.
func buildFilterQuery(filter models.ListingFilter) (string, []interface{}) {
	var sb strings.Builder
	var args []interface{}
	sb.WriteString("SELECT " + listingColumns + " FROM listings l WHERE 1=1")

	if filter.MaxPrice > 0 {
		sb.WriteString(" AND l.price <= ?")
		args = append(args, filter.MaxPrice)
	}
	if filter.District != "" {
		sb.WriteString(" AND l.district = ?")
		args = append(args, filter.District)
	}
	if filter.Faculty != "" {
		sb.WriteString(" AND l.faculty = ?")
		args = append(args, filter.Faculty)
	}
	if filter.Gender != "" {
		sb.WriteString(" AND l.gender = ?")
		args = append(args, filter.Gender)
	}

	sb.WriteString(" ORDER BY l.created_at DESC, l.id DESC")
	return sb.String(), args
}

// FilterListings returns the listings matching every present criterion, newest first.
// With a cache configured the predicate runs over the cached feed instead of SQL.
func (s *ListingService) FilterListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	if filter.IsEmpty() {
		return s.GetAllListings(ctx)
	}
	if s.cache != nil {
		feed, err := s.GetAllListings(ctx)
		if err != nil {
			return nil, err
		}
		return models.ApplyListingFilter(feed, filter), nil
	}

	query, args := buildFilterQuery(filter)
	return s.queryListings(ctx, query, args...)
}

// CreateListing stores a new listing owned by ownerID.
func (s *ListingService) CreateListing(ctx context.Context, input models.ListingInput, ownerID int64) (models.Listing, error) {
	if ownerID <= 0 {
		return models.Listing{}, models.ErrAuthenticationRequired
	}
	if err := input.Validate(); err != nil {
		return models.Listing{}, err
	}

	l := models.Listing{OwnerID: ownerID, CreatedAt: s.now()}
	input.Apply(&l)
	l.StudentID = models.OwnerRef(ownerID)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO listings (owner_id, gender, faculty, course, specialty, district, address,
		                      rooms_count, people_count, price, utilities_included, additional_info,
		                      contact_phone, contact_telegram, contact_instagram, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.OwnerID, l.Gender, l.Faculty, l.Course, l.Specialty, l.District, l.Address,
		l.RoomsCount, l.PeopleCount, l.Price, l.UtilitiesIncluded, l.AdditionalInfo,
		l.ContactPhone, l.ContactTelegram, l.ContactInstagram, l.CreatedAt,
	)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return models.Listing{}, fmt.Errorf("%w: account %d no longer exists", models.ErrAuthenticationRequired, ownerID)
		}
		return models.Listing{}, fmt.Errorf("insert listing: %w", err)
	}
	if l.ID, err = res.LastInsertId(); err != nil {
		return models.Listing{}, err
	}

	s.afterMutation(ctx, EventListingCreated, l, l.ID)
	return l, nil
}

// UpdateListing replaces every mutable attribute of a listing owned by requester.
func (s *ListingService) UpdateListing(ctx context.Context, id int64, input models.ListingInput, requester *auth.Identity) (models.Listing, error) {
	existing, err := s.loadListing(ctx, id)
	if err != nil {
		return models.Listing{}, err
	}
	if err := auth.AuthorizeListingMutation(requester, existing.OwnerID); err != nil {
		return models.Listing{}, err
	}
	if err := input.Validate(); err != nil {
		return models.Listing{}, err
	}

	// The owner condition is repeated in the statement so a concurrent delete or
	// ownership change between the check and the write cannot be overwritten.
	res, err := s.db.ExecContext(ctx, `
		UPDATE listings
		SET gender = ?, faculty = ?, course = ?, specialty = ?, district = ?, address = ?,
		    rooms_count = ?, people_count = ?, price = ?, utilities_included = ?,
		    additional_info = ?, contact_phone = ?, contact_telegram = ?, contact_instagram = ?
		WHERE id = ? AND owner_id = ?`,
		input.Gender, input.Faculty, input.Course, input.Specialty, input.District, input.Address,
		input.RoomsCount, input.PeopleCount, input.Price, input.UtilitiesIncluded,
		input.AdditionalInfo, input.ContactPhone, input.ContactTelegram, input.ContactInstagram,
		id, requester.ID,
	)
	if err != nil {
		return models.Listing{}, fmt.Errorf("update listing: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return models.Listing{}, err
	} else if n == 0 {
		return models.Listing{}, fmt.Errorf("listing %d: %w", id, models.ErrNotFound)
	}

	input.Apply(&existing)
	s.afterMutation(ctx, EventListingUpdated, existing, id)
	return existing, nil
}

// DeleteListing removes a listing owned by requester. Favorites pointing at it
// are removed by the foreign key cascade.
func (s *ListingService) DeleteListing(ctx context.Context, id int64, requester *auth.Identity) error {
	existing, err := s.loadListing(ctx, id)
	if err != nil {
		return err
	}
	if err := auth.AuthorizeListingMutation(requester, existing.OwnerID); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM listings WHERE id = ? AND owner_id = ?", id, requester.ID)
	if err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("listing %d: %w", id, models.ErrNotFound)
	}

	s.afterMutation(ctx, EventListingDeleted, map[string]int64{"id": id}, id)
	return nil
}

func (s *ListingService) afterMutation(ctx context.Context, action string, payload interface{}, id int64) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, id); err != nil {
			log.Error().Err(err).Int64("listing_id", id).Msg("Failed to invalidate listing cache")
		}
	}
	if s.events != nil {
		s.events.Publish(action, payload)
	}
}
