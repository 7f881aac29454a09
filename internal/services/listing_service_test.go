package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/isdelr/studshare-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateListingAssignsOwner(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")

	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))
	assert.Positive(t, l.ID)
	assert.Equal(t, owner.ID, l.OwnerID)
	assert.Equal(t, models.OwnerRef(owner.ID), l.StudentID)

	got, err := f.listings.GetListingByID(context.Background(), l.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, fmt.Sprintf("user_%d", owner.ID), got.StudentID)
	assert.Equal(t, 5000.0, got.Price)
	assert.Equal(t, "Sykhiv", got.District)
	assert.False(t, got.UtilitiesIncluded)
	assert.True(t, got.CreatedAt.Equal(l.CreatedAt))
}

func TestCreateListingRejectsInvalidInput(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")

	in := listingInput(5000, "", "FEI", "female")
	in.ContactPhone = ""
	_, err := f.listings.CreateListing(context.Background(), in, owner.ID)
	require.ErrorIs(t, err, models.ErrValidation)
	assert.Contains(t, err.Error(), "district")
	assert.Contains(t, err.Error(), "contact_phone")

	_, err = f.listings.CreateListing(context.Background(), listingInput(5000, "Sykhiv", "FEI", "female"), 0)
	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)

	_, err = f.listings.CreateListing(context.Background(), listingInput(5000, "Sykhiv", "FEI", "female"), owner.ID+50)
	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)
}

func TestGetAllListingsNewestFirst(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")

	first := f.listing(t, owner, listingInput(1000, "Sykhiv", "FEI", "male"))
	second := f.listing(t, owner, listingInput(2000, "Lychakiv", "FEI", "male"))
	third := f.listing(t, owner, listingInput(3000, "Sykhiv", "FPM", "female"))

	all, err := f.listings.GetAllListings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int64{third.ID, second.ID, first.ID}, listingIDs(all))
}

func TestGetListingByIDNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.listings.GetListingByID(context.Background(), 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetListingsByOwner(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice@x.com")
	bob := f.user(t, "bob@x.com")

	a1 := f.listing(t, alice, listingInput(1000, "Sykhiv", "FEI", "female"))
	f.listing(t, bob, listingInput(2000, "Sykhiv", "FEI", "male"))
	a2 := f.listing(t, alice, listingInput(3000, "Sykhiv", "FEI", "female"))

	mine, err := f.listings.GetListingsByOwner(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{a2.ID, a1.ID}, listingIDs(mine))
}

func TestUpdateListingByOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	in := listingInput(4500, "Lychakiv", "FPM", "female")
	in.UtilitiesIncluded = true
	in.ContactTelegram = "@owner"
	updated, err := f.listings.UpdateListing(ctx, l.ID, in, identityOf(owner))
	require.NoError(t, err)
	assert.Equal(t, 4500.0, updated.Price)

	got, err := f.listings.GetListingByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lychakiv", got.District)
	assert.Equal(t, "FPM", got.Faculty)
	assert.True(t, got.UtilitiesIncluded)
	assert.Equal(t, "@owner", got.ContactTelegram)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.True(t, got.CreatedAt.Equal(l.CreatedAt))
}

func TestUpdateListingByNonOwnerIsForbidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@x.com")
	other := f.user(t, "other@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	_, err := f.listings.UpdateListing(ctx, l.ID, listingInput(1, "Hacked", "Hacked", "male"), identityOf(other))
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.listings.UpdateListing(ctx, l.ID, listingInput(1, "Hacked", "Hacked", "male"), nil)
	assert.ErrorIs(t, err, models.ErrAuthenticationRequired)

	got, err := f.listings.GetListingByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, 5000.0, got.Price)
	assert.Equal(t, "Sykhiv", got.District)
}

func TestUpdateListingChecksOwnershipBeforeValidation(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")
	other := f.user(t, "other@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	_, err := f.listings.UpdateListing(context.Background(), l.ID, models.ListingInput{}, identityOf(other))
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.listings.UpdateListing(context.Background(), l.ID, models.ListingInput{}, identityOf(owner))
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestUpdateListingNotFound(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")
	_, err := f.listings.UpdateListing(context.Background(), 42, listingInput(1, "a", "b", "c"), identityOf(owner))
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestDeleteListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@x.com")
	other := f.user(t, "other@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	assert.ErrorIs(t, f.listings.DeleteListing(ctx, l.ID, identityOf(other)), models.ErrForbidden)
	_, err := f.listings.GetListingByID(ctx, l.ID)
	require.NoError(t, err)

	require.NoError(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)))
	_, err = f.listings.GetListingByID(ctx, l.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)

	assert.ErrorIs(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)), models.ErrNotFound)
}

func TestDeleteListingCascadesToFavorites(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@x.com")
	fan := f.user(t, "fan@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))
	require.NoError(t, f.favorites.AddFavorite(ctx, fan.ID, l.ID))

	require.NoError(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)))

	favs, err := f.favorites.GetFavoriteListings(ctx, fan.ID)
	require.NoError(t, err)
	assert.Empty(t, favs)

	var n int
	require.NoError(t, f.db.QueryRow("SELECT COUNT(*) FROM favorite_listings").Scan(&n))
	assert.Zero(t, n)
}

func TestFilterListingsByMaxPrice(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner@x.com")
	cheap := f.listing(t, owner, listingInput(2000, "Sykhiv", "FEI", "female"))
	mid := f.listing(t, owner, listingInput(2500, "Sykhiv", "FEI", "female"))
	f.listing(t, owner, listingInput(3000, "Sykhiv", "FEI", "female"))

	got, err := f.listings.FilterListings(context.Background(), models.ListingFilter{MaxPrice: 2500})
	require.NoError(t, err)
	assert.Equal(t, []int64{mid.ID, cheap.ID}, listingIDs(got))
}

func TestFilterListingsAgreesWithPredicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner@x.com")

	districts := []string{"Sykhiv", "Lychakiv", "Frankivskyi"}
	faculties := []string{"FEI", "FPM"}
	genders := []string{"male", "female"}
	for i := 0; i < 18; i++ {
		f.listing(t, owner, listingInput(float64(1000+i*500), districts[i%3], faculties[i%2], genders[(i/2)%2]))
	}

	all, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 18)

	filters := []models.ListingFilter{
		{},
		{MaxPrice: 4000},
		{District: "Sykhiv"},
		{Faculty: "FPM", Gender: "female"},
		{MaxPrice: 6500, District: "Lychakiv", Faculty: "FEI"},
		{MaxPrice: 100000, District: "Frankivskyi", Faculty: "FPM", Gender: "male"},
		{District: "sykhiv"},
		{MaxPrice: 500},
	}
	for _, filter := range filters {
		got, err := f.listings.FilterListings(ctx, filter)
		require.NoError(t, err)

		want := models.ApplyListingFilter(all, filter)
		assert.Equal(t, listingIDs(want), listingIDs(got), "filter %+v", filter)
		for _, l := range got {
			assert.True(t, filter.Matches(l))
		}
	}
}

func TestBuildFilterQuery(t *testing.T) {
	query, args := buildFilterQuery(models.ListingFilter{})
	assert.NotContains(t, query, "AND")
	assert.Empty(t, args)

	query, args = buildFilterQuery(models.ListingFilter{MaxPrice: 5000, Gender: "female"})
	assert.Contains(t, query, "l.price <= ?")
	assert.Contains(t, query, "l.gender = ?")
	assert.NotContains(t, query, "l.district = ?")
	assert.NotContains(t, query, "l.faculty = ?")
	assert.Equal(t, []interface{}{5000.0, "female"}, args)
}

// memoryCache versions every key the way the redis cache does: a fill is
// dropped when an invalidation bumped the version after it was read.
type memoryCache struct {
	mu           sync.Mutex
	feed         []models.Listing
	hasFeed      bool
	feedVersion  int64
	items        map[int64]models.Listing
	itemVersions map[int64]int64
	invalidated  []int64

	// beforeFill runs outside the lock at the start of every fill.
	beforeFill func()
}

func newMemoryCache() *memoryCache {
	return &memoryCache{items: make(map[int64]models.Listing), itemVersions: make(map[int64]int64)}
}

func (c *memoryCache) GetFeed(context.Context) ([]models.Listing, int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.feed, c.feedVersion, c.hasFeed, nil
}

func (c *memoryCache) SetFeed(_ context.Context, listings []models.Listing, version int64) error {
	if c.beforeFill != nil {
		c.beforeFill()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if version == c.feedVersion {
		c.feed, c.hasFeed = listings, true
	}
	return nil
}

func (c *memoryCache) GetListing(_ context.Context, id int64) (*models.Listing, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l, ok := c.items[id]; ok {
		return &l, c.itemVersions[id], nil
	}
	return nil, c.itemVersions[id], nil
}

func (c *memoryCache) SetListing(_ context.Context, l models.Listing, version int64) error {
	if c.beforeFill != nil {
		c.beforeFill()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if version == c.itemVersions[l.ID] {
		c.items[l.ID] = l
	}
	return nil
}

func (c *memoryCache) Invalidate(_ context.Context, ids ...int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feed, c.hasFeed = nil, false
	c.feedVersion++
	for _, id := range ids {
		delete(c.items, id)
		c.itemVersions[id]++
	}
	c.invalidated = append(c.invalidated, ids...)
	return nil
}

type recordedEvent struct {
	action  string
	payload interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (p *recordingPublisher) Publish(action string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, recordedEvent{action, payload})
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.action
	}
	return out
}

func TestListingServiceCacheAndEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMemoryCache()
	events := &recordingPublisher{}
	f.listings.WithCache(cache).WithEvents(events)

	owner := f.user(t, "owner@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	all, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, cache.hasFeed)

	// Served from the cache: a row inserted behind the service's back is not visible.
	_, err = f.db.Exec(`INSERT INTO listings (owner_id, gender, faculty, course, specialty, district, address,
		rooms_count, people_count, price, contact_phone, created_at)
		VALUES (?, 'male', 'FEI', 1, 'CS', 'Sykhiv', 'Addr', 1, 1, 100, '123', '2025-01-01 00:00:00+00:00')`, owner.ID)
	require.NoError(t, err)
	cached, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	assert.Len(t, cached, 1)

	filtered, err := f.listings.FilterListings(ctx, models.ListingFilter{MaxPrice: 6000})
	require.NoError(t, err)
	assert.Equal(t, []int64{l.ID}, listingIDs(filtered))

	_, err = f.listings.GetListingByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Contains(t, cache.items, l.ID)

	_, err = f.listings.UpdateListing(ctx, l.ID, listingInput(4000, "Sykhiv", "FEI", "female"), identityOf(owner))
	require.NoError(t, err)
	assert.False(t, cache.hasFeed)
	assert.NotContains(t, cache.items, l.ID)

	refreshed, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)

	require.NoError(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)))
	assert.Equal(t, []string{EventListingCreated, EventListingUpdated, EventListingDeleted}, events.actions())
	assert.Equal(t, []int64{l.ID, l.ID, l.ID}, cache.invalidated)
}

func TestCacheFillRacingDeleteDoesNotResurrectListing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMemoryCache()
	f.listings.WithCache(cache)

	owner := f.user(t, "owner@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	// The delete commits after the read loaded the row but before it fills the cache.
	var once sync.Once
	cache.beforeFill = func() {
		once.Do(func() {
			require.NoError(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)))
		})
	}

	got, err := f.listings.GetListingByID(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.ID, got.ID)
	assert.NotContains(t, cache.items, l.ID)

	_, err = f.listings.GetListingByID(ctx, l.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestFeedFillRacingDeleteIsDiscarded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cache := newMemoryCache()
	f.listings.WithCache(cache)

	owner := f.user(t, "owner@x.com")
	l := f.listing(t, owner, listingInput(5000, "Sykhiv", "FEI", "female"))

	var once sync.Once
	cache.beforeFill = func() {
		once.Do(func() {
			require.NoError(t, f.listings.DeleteListing(ctx, l.ID, identityOf(owner)))
		})
	}

	stale, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	assert.Len(t, stale, 1)
	assert.False(t, cache.hasFeed)

	fresh, err := f.listings.GetAllListings(ctx)
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.True(t, cache.hasFeed)
}
