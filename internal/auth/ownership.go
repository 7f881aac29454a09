package auth

import "github.com/isdelr/studshare-be/internal/models"

// AuthorizeListingMutation decides whether identity may update or delete a listing
// owned by ownerID. Reads and creation are never gated by it.
func AuthorizeListingMutation(identity *Identity, ownerID int64) error {
	if identity == nil {
		return models.ErrAuthenticationRequired
	}
	if identity.ID != ownerID {
		return models.ErrForbidden
	}
	return nil
}
