package client

import (
	"sync"

	"github.com/isdelr/studshare-be/internal/models"
)

// Session is the client-side view of who is signed in and what they bookmarked.
// It is safe for concurrent use.
type Session struct {
	mu          sync.RWMutex
	user        *models.User
	favoriteIDs map[int64]struct{}
}

// NewSession returns a signed-out session.
func NewSession() *Session {
	return &Session{favoriteIDs: make(map[int64]struct{})}
}

// User returns the signed-in user, or nil.
func (s *Session) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// LoggedIn reports whether a user is signed in.
func (s *Session) LoggedIn() bool {
	return s.User() != nil
}

// IsFavorite reports whether listingID is bookmarked.
func (s *Session) IsFavorite(listingID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.favoriteIDs[listingID]
	return ok
}

// FavoriteCount returns the number of bookmarks known to the session.
func (s *Session) FavoriteCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.favoriteIDs)
}

// OwnsListing reports whether the signed-in user posted l. Edit and delete
// actions are offered only for such listings.
func (s *Session) OwnsListing(l models.Listing) bool {
	u := s.User()
	return u != nil && l.StudentID == models.OwnerRef(u.ID)
}

func (s *Session) signIn(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = &u
	s.favoriteIDs = make(map[int64]struct{})
}

func (s *Session) signOut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.favoriteIDs = make(map[int64]struct{})
}

func (s *Session) setFavorites(listings []models.Listing) {
	ids := make(map[int64]struct{}, len(listings))
	for _, l := range listings {
		ids[l.ID] = struct{}{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.favoriteIDs = ids
}

func (s *Session) forgetFavorite(listingID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.favoriteIDs, listingID)
}
