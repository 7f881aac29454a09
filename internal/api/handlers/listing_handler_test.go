package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockListingService struct {
	mock.Mock
}

func (m *MockListingService) GetAllListings(ctx context.Context) ([]models.Listing, error) {
	args := m.Called(ctx)
	listings, _ := args.Get(0).([]models.Listing)
	return listings, args.Error(1)
}

func (m *MockListingService) GetListingByID(ctx context.Context, id int64) (models.Listing, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(models.Listing), args.Error(1)
}

func (m *MockListingService) GetListingsByOwner(ctx context.Context, ownerID int64) ([]models.Listing, error) {
	args := m.Called(ctx, ownerID)
	listings, _ := args.Get(0).([]models.Listing)
	return listings, args.Error(1)
}

func (m *MockListingService) FilterListings(ctx context.Context, filter models.ListingFilter) ([]models.Listing, error) {
	args := m.Called(ctx, filter)
	listings, _ := args.Get(0).([]models.Listing)
	return listings, args.Error(1)
}

func (m *MockListingService) CreateListing(ctx context.Context, input models.ListingInput, ownerID int64) (models.Listing, error) {
	args := m.Called(ctx, input, ownerID)
	return args.Get(0).(models.Listing), args.Error(1)
}

func (m *MockListingService) UpdateListing(ctx context.Context, id int64, input models.ListingInput, requester *auth.Identity) (models.Listing, error) {
	args := m.Called(ctx, id, input, requester)
	return args.Get(0).(models.Listing), args.Error(1)
}

func (m *MockListingService) DeleteListing(ctx context.Context, id int64, requester *auth.Identity) error {
	return m.Called(ctx, id, requester).Error(0)
}

func newListingRouter(svc *MockListingService, identity *auth.Identity) http.Handler {
	h := NewListingHandler(svc, nil)
	r := chi.NewRouter()
	if identity != nil {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				next.ServeHTTP(w, r.WithContext(auth.WithIdentity(r.Context(), identity)))
			})
		})
	}
	r.Get("/listings", h.GetAll)
	r.Get("/listings/filter", h.Filter)
	r.Get("/listings/{id}", h.Get)
	r.Post("/listings", h.Create)
	r.Put("/listings/{id}", h.Update)
	r.Delete("/listings/{id}", h.Delete)
	return r
}

func serve(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestStoreFailuresAreGeneric500s(t *testing.T) {
	svc := &MockListingService{}
	svc.On("GetAllListings", mock.Anything).Return(nil, errors.New("disk I/O error: /var/lib/secret.db"))

	rr := serve(newListingRouter(svc, nil), http.MethodGet, "/listings", "")
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.JSONEq(t, `{"error":"Failed to retrieve listings"}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestDomainErrorsMapToStatusCodes(t *testing.T) {
	identity := &auth.Identity{ID: 7}
	valid := `{"gender":"f","faculty":"F","course":1,"specialty":"S","district":"D","address":"A",
		"rooms_count":1,"people_count":1,"price":10,"contact_phone":"1"}`

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"forbidden", models.ErrForbidden, http.StatusForbidden},
		{"not found", fmt.Errorf("listing 3: %w", models.ErrNotFound), http.StatusNotFound},
		{"validation", fmt.Errorf("%w: missing required fields: price", models.ErrValidation), http.StatusBadRequest},
		{"unauthenticated", models.ErrAuthenticationRequired, http.StatusUnauthorized},
		{"store", errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockListingService{}
			svc.On("UpdateListing", mock.Anything, int64(3), mock.Anything, identity).Return(models.Listing{}, tt.err)

			rr := serve(newListingRouter(svc, identity), http.MethodPut, "/listings/3", valid)
			assert.Equal(t, tt.want, rr.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestCreatePassesAuthenticatedOwner(t *testing.T) {
	identity := &auth.Identity{ID: 7}
	svc := &MockListingService{}
	svc.On("CreateListing", mock.Anything, mock.AnythingOfType("models.ListingInput"), int64(7)).
		Return(models.Listing{ID: 11, OwnerID: 7}, nil)

	rr := serve(newListingRouter(svc, identity), http.MethodPost, "/listings", `{"price": 10, "student_id": "user_1"}`)
	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.JSONEq(t, `{"message":"Listing created successfully","id":11}`, rr.Body.String())
	svc.AssertExpectations(t)
}

func TestMutationsWithoutIdentityAreRejected(t *testing.T) {
	svc := &MockListingService{}
	h := newListingRouter(svc, nil)

	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodPost, "/listings", `{}`).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, http.MethodDelete, "/listings/1", "").Code)
	svc.AssertNotCalled(t, "CreateListing", mock.Anything, mock.Anything, mock.Anything)
	svc.AssertNotCalled(t, "DeleteListing", mock.Anything, mock.Anything, mock.Anything)
}

func TestMalformedBodyAndIDs(t *testing.T) {
	identity := &auth.Identity{ID: 7}
	svc := &MockListingService{}
	h := newListingRouter(svc, identity)

	rr := serve(h, http.MethodPost, "/listings", `{"price": "a lot"`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"error":"Invalid request body"}`, rr.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/listings/abc", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodGet, "/listings/-4", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(h, http.MethodDelete, "/listings/abc", "").Code)
	svc.AssertExpectations(t)
}

func TestFilterRejectsBadPrice(t *testing.T) {
	svc := &MockListingService{}
	rr := serve(newListingRouter(svc, nil), http.MethodGet, "/listings/filter?price=-5", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	svc.AssertNotCalled(t, "FilterListings", mock.Anything, mock.Anything)
}

func TestFilterPassesParsedCriteria(t *testing.T) {
	svc := &MockListingService{}
	want := models.ListingFilter{MaxPrice: 5000, District: "Sykhiv"}
	svc.On("FilterListings", mock.Anything, want).Return([]models.Listing{{ID: 1}}, nil)

	rr := serve(newListingRouter(svc, nil), http.MethodGet, "/listings/filter?price=5000&district=Sykhiv", "")
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
