package services

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/database"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "test.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.Migrate(db))
	return db
}

// fakeClock hands out strictly increasing times so created_at ordering is deterministic.
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{cur: time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(time.Minute)
	return c.cur
}

type fixture struct {
	db        *sql.DB
	clock     *fakeClock
	users     *UserService
	listings  *ListingService
	favorites *FavoriteService
	tokens    *TokenService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	clock := newFakeClock()

	users := NewUserService(db).WithHashCost(bcrypt.MinCost)
	users.now = clock.Now
	listings := NewListingService(db)
	listings.now = clock.Now
	favorites := NewFavoriteService(db)
	favorites.now = clock.Now
	tokens := NewTokenService(db)
	tokens.now = clock.Now

	return &fixture{db: db, clock: clock, users: users, listings: listings, favorites: favorites, tokens: tokens}
}

func (f *fixture) user(t *testing.T, email string) models.User {
	t.Helper()
	u, err := f.users.CreateUser(context.Background(), "Test Student", email, "password123")
	require.NoError(t, err)
	return u
}

func (f *fixture) listing(t *testing.T, owner models.User, in models.ListingInput) models.Listing {
	t.Helper()
	l, err := f.listings.CreateListing(context.Background(), in, owner.ID)
	require.NoError(t, err)
	return l
}

func identityOf(u models.User) *auth.Identity {
	return &auth.Identity{ID: u.ID, FullName: u.FullName, Email: u.Email}
}

func listingInput(price float64, district, faculty, gender string) models.ListingInput {
	return models.ListingInput{
		Gender:       gender,
		Faculty:      faculty,
		Course:       2,
		Specialty:    "Computer Science",
		District:     district,
		Address:      "Shevchenka 1",
		RoomsCount:   2,
		PeopleCount:  1,
		Price:        price,
		ContactPhone: "+380501112233",
	}
}

func listingIDs(listings []models.Listing) []int64 {
	ids := make([]int64, len(listings))
	for i, l := range listings {
		ids[i] = l.ID
	}
	return ids
}
