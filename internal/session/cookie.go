package session

import (
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Cookies issues and reads the gateway session cookie that keys the
// registry. The cookie carries no identity, only an opaque session ID.
type Cookies struct {
	name   string
	ttl    time.Duration
	secure bool
}

// NewCookies constructs a cookie manager.
func NewCookies(name string, ttl time.Duration, secure bool) *Cookies {
	return &Cookies{name: name, ttl: ttl, secure: secure}
}

// SessionID reads the session ID from the request, if present.
func (c *Cookies) SessionID(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(c.name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// Ensure returns the request's session ID, issuing a fresh one when absent.
func (c *Cookies) Ensure(w http.ResponseWriter, r *http.Request) string {
	if id, ok := c.SessionID(r); ok {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(c.ttl),
	})
	return id
}

// Clear expires the session cookie.
func (c *Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
