package handlers

import (
	"net/http"

	"github.com/isdelr/studshare-be/internal/metrics"
	"github.com/isdelr/studshare-be/internal/services"
)

// FavoriteHandler handles the authenticated user's bookmarks.
type FavoriteHandler struct {
	service services.FavoriteServiceProvider
	metrics *metrics.Manager
}

// NewFavoriteHandler creates a new FavoriteHandler.
func NewFavoriteHandler(service services.FavoriteServiceProvider, m *metrics.Manager) *FavoriteHandler {
	return &FavoriteHandler{service: service, metrics: m}
}

// GetAll returns the caller's favorite listings, most recently added first.
func (h *FavoriteHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	listings, err := h.service.GetFavoriteListings(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, "Failed to retrieve favorites")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// Add bookmarks a listing. Bookmarking it again refreshes the timestamp.
func (h *FavoriteHandler) Add(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	listingID, ok := idParam(r, "listingId")
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	if err := h.service.AddFavorite(r.Context(), identity.ID, listingID); err != nil {
		writeError(w, r, err, "Failed to add favorite")
		return
	}
	h.metrics.FavoriteAdded()
	writeMessage(w, http.StatusCreated, "Listing added to favorites")
}

// Remove deletes a bookmark. Removing one that does not exist still succeeds.
func (h *FavoriteHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	listingID, ok := idParam(r, "listingId")
	if !ok {
		WriteErrorMessage(w, http.StatusBadRequest, "Invalid listing id")
		return
	}

	if err := h.service.RemoveFavorite(r.Context(), identity.ID, listingID); err != nil {
		writeError(w, r, err, "Failed to remove favorite")
		return
	}
	writeMessage(w, http.StatusOK, "Listing removed from favorites")
}
