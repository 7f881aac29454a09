package handlers

import (
	"net/http"

	"github.com/isdelr/studshare-be/internal/metrics"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/isdelr/studshare-be/internal/services"
)

// ListingHandler handles listing-related API requests.
type ListingHandler struct {
	service services.ListingServiceProvider
	metrics *metrics.Manager
}

// NewListingHandler creates a new ListingHandler.
func NewListingHandler(service services.ListingServiceProvider, m *metrics.Manager) *ListingHandler {
	return &ListingHandler{service: service, metrics: m}
}

// GetAll returns every listing, newest first.
func (h *ListingHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	listings, err := h.service.GetAllListings(r.Context())
	if err != nil {
		writeError(w, r, err, "Failed to retrieve listings")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// Get returns a single listing. Ids that are not positive integers cannot exist.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(r, "id")
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, "Listing not found")
		return
	}

	listing, err := h.service.GetListingByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Failed to retrieve listing")
		return
	}
	writeJSON(w, http.StatusOK, listing)
}

// Mine returns the caller's own listings.
func (h *ListingHandler) Mine(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	listings, err := h.service.GetListingsByOwner(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, "Failed to retrieve listings")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// Filter returns listings matching the price, district, faculty and gender query parameters.
func (h *ListingHandler) Filter(w http.ResponseWriter, r *http.Request) {
	filter, err := models.ParseListingFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err, "Failed to filter listings")
		return
	}

	listings, err := h.service.FilterListings(r.Context(), filter)
	if err != nil {
		writeError(w, r, err, "Failed to filter listings")
		return
	}
	writeJSON(w, http.StatusOK, listings)
}

// Create stores a listing owned by the authenticated user.
func (h *ListingHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var input models.ListingInput
	if !decodeJSON(w, r, &input) {
		return
	}

	listing, err := h.service.CreateListing(r.Context(), input, identity.ID)
	if err != nil {
		writeError(w, r, err, "Failed to create listing")
		return
	}
	h.metrics.ListingCreated()

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Listing created successfully",
		"id":      listing.ID,
	})
}

// Update replaces a listing's attributes. Only the owner may update it.
func (h *ListingHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, "Listing not found")
		return
	}

	var input models.ListingInput
	if !decodeJSON(w, r, &input) {
		return
	}

	if _, err := h.service.UpdateListing(r.Context(), id, input, identity); err != nil {
		writeError(w, r, err, "Failed to update listing")
		return
	}
	h.metrics.ListingUpdated()
	writeMessage(w, http.StatusOK, "Listing updated successfully")
}

// Delete removes a listing. Only the owner may delete it.
func (h *ListingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	id, ok := idParam(r, "id")
	if !ok {
		WriteErrorMessage(w, http.StatusNotFound, "Listing not found")
		return
	}

	if err := h.service.DeleteListing(r.Context(), id, identity); err != nil {
		writeError(w, r, err, "Failed to delete listing")
		return
	}
	h.metrics.ListingDeleted()
	writeMessage(w, http.StatusOK, "Listing deleted successfully")
}
