// Package client is a typed HTTP client for the StudShare API. It keeps the
// signed-in user and their bookmarks in an explicit Session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/studshare-be/internal/models"
)

// APIError is a non-2xx response. It unwraps to the matching models error so
// callers can use errors.Is(err, models.ErrForbidden) and friends.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusBadRequest:
		return models.ErrValidation
	case http.StatusUnauthorized:
		return models.ErrAuthenticationRequired
	case http.StatusForbidden:
		return models.ErrForbidden
	case http.StatusNotFound:
		return models.ErrNotFound
	case http.StatusConflict:
		return models.ErrDuplicateEmail
	}
	return nil
}

// Client talks to the API on behalf of one user. The token cookie is kept in the
// HTTP client's cookie jar.
type Client struct {
	baseURL string
	http    *http.Client
	session *Session
}

// New creates a Client for baseURL (for example "http://localhost:3000").
// If httpClient is nil, one with a cookie jar is created.
func New(baseURL string, httpClient *http.Client) (*Client, error) {
	if httpClient == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		httpClient = &http.Client{Jar: jar, Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		session: NewSession(),
	}, nil
}

// Session returns the client's session state.
func (c *Client) Session() *Session {
	return c.session
}

type authResponse struct {
	User models.User `json:"user"`
}

type createdResponse struct {
	ID int64 `json:"id"`
}

// Register creates an account and signs in as it.
func (c *Client) Register(ctx context.Context, fullName, email, password string) (models.User, error) {
	var resp authResponse
	body := map[string]string{"full_name": fullName, "email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, &resp); err != nil {
		return models.User{}, err
	}
	c.session.signIn(resp.User)
	return resp.User, nil
}

// Login signs in and loads the user's bookmarks into the session.
func (c *Client) Login(ctx context.Context, email, password string) (models.User, error) {
	var resp authResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &resp); err != nil {
		return models.User{}, err
	}
	c.session.signIn(resp.User)
	if _, err := c.Favorites(ctx); err != nil {
		return resp.User, err
	}
	return resp.User, nil
}

// Logout ends the server session. The local session is cleared even if the
// request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.session.signOut()
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

// Me restores the session from the stored cookie. A 401 signs the session out.
func (c *Client) Me(ctx context.Context) (models.User, error) {
	var resp authResponse
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized {
			c.session.signOut()
		}
		return models.User{}, err
	}
	c.session.signIn(resp.User)
	return resp.User, nil
}

// Listings returns every listing, newest first.
func (c *Client) Listings(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	err := c.do(ctx, http.MethodGet, "/api/listings", nil, &listings)
	return listings, err
}

// Listing returns a single listing.
func (c *Client) Listing(ctx context.Context, id int64) (models.Listing, error) {
	var l models.Listing
	err := c.do(ctx, http.MethodGet, listingPath(id), nil, &l)
	return l, err
}

// MyListings returns the signed-in user's listings.
func (c *Client) MyListings(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	err := c.do(ctx, http.MethodGet, "/api/listings/mine", nil, &listings)
	return listings, err
}

// Filter returns the listings matching f.
func (c *Client) Filter(ctx context.Context, f models.ListingFilter) ([]models.Listing, error) {
	path := "/api/listings/filter"
	if q := f.Query(); len(q) > 0 {
		path += "?" + q.Encode()
	}
	var listings []models.Listing
	err := c.do(ctx, http.MethodGet, path, nil, &listings)
	return listings, err
}

// CreateListing posts a listing and returns its id.
func (c *Client) CreateListing(ctx context.Context, input models.ListingInput) (int64, error) {
	var resp createdResponse
	if err := c.do(ctx, http.MethodPost, "/api/listings", input, &resp); err != nil {
		return 0, err
	}
	return resp.ID, nil
}

// UpdateListing replaces the attributes of a listing the user owns.
func (c *Client) UpdateListing(ctx context.Context, id int64, input models.ListingInput) error {
	return c.do(ctx, http.MethodPut, listingPath(id), input, nil)
}

// DeleteListing removes a listing the user owns.
func (c *Client) DeleteListing(ctx context.Context, id int64) error {
	if err := c.do(ctx, http.MethodDelete, listingPath(id), nil, nil); err != nil {
		return err
	}
	c.session.forgetFavorite(id)
	return nil
}

// Favorites returns the user's bookmarked listings and refreshes the session's
// bookmark set from them.
func (c *Client) Favorites(ctx context.Context) ([]models.Listing, error) {
	var listings []models.Listing
	if err := c.do(ctx, http.MethodGet, "/api/favorites", nil, &listings); err != nil {
		return nil, err
	}
	c.session.setFavorites(listings)
	return listings, nil
}

// ToggleFavorite adds or removes a bookmark depending on the session state and
// reports whether the listing is bookmarked afterwards.
func (c *Client) ToggleFavorite(ctx context.Context, listingID int64) (bool, error) {
	if !c.session.LoggedIn() {
		return false, models.ErrAuthenticationRequired
	}

	method := http.MethodPost
	if c.session.IsFavorite(listingID) {
		method = http.MethodDelete
	}
	path := "/api/favorites/" + strconv.FormatInt(listingID, 10)
	if err := c.do(ctx, method, path, nil, nil); err != nil {
		return c.session.IsFavorite(listingID), err
	}

	if _, err := c.Favorites(ctx); err != nil {
		return method == http.MethodPost, err
	}
	return c.session.IsFavorite(listingID), nil
}

func listingPath(id int64) string {
	return "/api/listings/" + strconv.FormatInt(id, 10)
}

// do sends a JSON request and decodes a JSON response into out, if non-nil.
func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error == "" {
			errBody.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: errBody.Error}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
