package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/studshare-be/internal/auth"
	"github.com/isdelr/studshare-be/internal/models"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response body")
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// WriteErrorMessage writes the {"error": msg} body every failure uses.
func WriteErrorMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeError maps domain errors onto status codes. Anything unrecognised is a store
// failure: it is logged in full and the client only sees internalMsg.
func writeError(w http.ResponseWriter, r *http.Request, err error, internalMsg string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		WriteErrorMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrInvalidCredentials):
		WriteErrorMessage(w, http.StatusUnauthorized, "Invalid credentials")
	case errors.Is(err, models.ErrAuthenticationRequired), errors.Is(err, auth.ErrInvalidCredential):
		WriteErrorMessage(w, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, models.ErrForbidden):
		WriteErrorMessage(w, http.StatusForbidden, "You can only modify your own listings")
	case errors.Is(err, models.ErrNotFound):
		WriteErrorMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrDuplicateEmail):
		WriteErrorMessage(w, http.StatusConflict, "A user with this email already exists")
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg(internalMsg)
		WriteErrorMessage(w, http.StatusInternalServerError, internalMsg)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func idParam(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// requireIdentity reads the identity RequireAuth stored; routes without the
// middleware get a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFrom(r.Context())
	if !ok {
		WriteErrorMessage(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	return identity, true
}
