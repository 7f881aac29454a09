package handlers

import (
	"net/http"

	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/metrics"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/isdelr/studshare-be/internal/services"
	"github.com/rs/zerolog/log"
)

// UserHandler handles registration, login and session endpoints.
type UserHandler struct {
	service     services.UserServiceProvider
	revocations services.TokenServiceProvider
	tokens      *auth.TokenManager
	production  bool
	metrics     *metrics.Manager
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(service services.UserServiceProvider, revocations services.TokenServiceProvider, tokens *auth.TokenManager, production bool, m *metrics.Manager) *UserHandler {
	return &UserHandler{
		service:     service,
		revocations: revocations,
		tokens:      tokens,
		production:  production,
		metrics:     m,
	}
}

// AuthPayload defines the structure for login requests.
type AuthPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterPayload defines the structure for registration requests.
type RegisterPayload struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by register and login. Token is for clients that
// cannot use the cookie.
type AuthResponse struct {
	User  models.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// Register handles new user registration and signs the user in.
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload RegisterPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.FullName == "" || payload.Email == "" || payload.Password == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "full_name, email and password are required")
		return
	}
	// The account must not be created if the caller cannot be signed in afterwards.
	if err := h.tokens.Ready(); err != nil {
		log.Error().Err(err).Msg("Refusing registration without a token signing secret")
		WriteErrorMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}

	user, err := h.service.CreateUser(r.Context(), payload.FullName, payload.Email, payload.Password)
	if err != nil {
		writeError(w, r, err, "Failed to register user")
		return
	}
	h.metrics.UserRegistered()

	token, ok := h.signIn(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusCreated, AuthResponse{User: user, Token: token})
}

// Login handles user authentication and token issuance.
func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var payload AuthPayload
	if !decodeJSON(w, r, &payload) {
		return
	}
	if payload.Email == "" || payload.Password == "" {
		WriteErrorMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), payload.Email, payload.Password)
	if err != nil {
		log.Warn().Err(err).Str("email", payload.Email).Msg("Failed authentication attempt")
		writeError(w, r, err, "Failed to log in")
		return
	}

	token, ok := h.signIn(w, r, user)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{User: user, Token: token})
}

func (h *UserHandler) signIn(w http.ResponseWriter, r *http.Request, user models.User) (string, bool) {
	token, expiresAt, err := h.tokens.Issue(user)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to generate JWT")
		WriteErrorMessage(w, http.StatusInternalServerError, "Failed to generate token")
		return "", false
	}
	auth.SetTokenCookie(w, token, expiresAt, h.production)
	return token, true
}

// Logout revokes the presented token, if it is still valid, and clears the cookie.
// It always succeeds.
func (h *UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if tokenStr := auth.TokenFromRequest(r); tokenStr != "" {
		identity, err := h.tokens.Verify(r.Context(), tokenStr)
		if err == nil && identity.TokenID != "" {
			if err := h.revocations.RevokeToken(r.Context(), identity.TokenID, identity.ExpiresAt); err != nil {
				log.Error().Err(err).Int64("user_id", identity.ID).Msg("Failed to revoke token on logout")
			}
		}
	}

	auth.ClearTokenCookie(w, h.production)
	writeMessage(w, http.StatusOK, "Logged out")
}

// GetMe re-reads the authenticated user from the database.
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	user, err := h.service.GetUserByID(r.Context(), identity.ID)
	if err != nil {
		writeError(w, r, err, "Failed to load profile")
		return
	}
	writeJSON(w, http.StatusOK, map[string]models.User{"user": user})
}
