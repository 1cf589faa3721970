package session

import (
	"net/http"
)

// CookieName is the name of the cookie carrying the admin session token.
const CookieName = "shortlink_admin_session"

// SetCookie writes the session token cookie. It lives as long as the session's absolute lifetime.
func (m *Manager) SetCookie(w http.ResponseWriter, plaintext string) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    plaintext,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(m.cfg.MaxLifetime.Seconds()),
	})
}

// ClearCookie expires the session token cookie in the browser.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})
}

// TokenFromRequest returns the session token from the request cookie, or "" if there is none.
func TokenFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
