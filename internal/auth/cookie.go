package auth

import (
	"net/http"
	"time"
)

// SetTokenCookie stores the token in an HTTP-only cookie. Production deployments serve
// the frontend from another origin, so the cookie must be Secure with SameSite=None.
func SetTokenCookie(w http.ResponseWriter, token string, expires time.Time, production bool) {
	cookie := baseCookie(production)
	cookie.Value = token
	cookie.Expires = expires
	http.SetCookie(w, cookie)
}

// ClearTokenCookie expires the token cookie on the client.
func ClearTokenCookie(w http.ResponseWriter, production bool) {
	cookie := baseCookie(production)
	cookie.Expires = time.Unix(0, 0)
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
}

func baseCookie(production bool) *http.Cookie {
	sameSite := http.SameSiteLaxMode
	if production {
		sameSite = http.SameSiteNoneMode
	}
	return &http.Cookie{
		Name:     CookieName,
		Path:     "/",
		HttpOnly: true,
		Secure:   production,
		SameSite: sameSite,
	}
}
