package brunt

import (
	"net/http"
	"strings"
	"time"
)

const (
	// SessionCookieName is the cookie the vendor issues on login.
	SessionCookieName = "skySSEIONID"

	// DefaultCookieDomain is the domain the session cookie must be scoped to.
	DefaultCookieDomain = "brunt.co"
)

// cookieExpiresLayouts are tried in order when the transport could not parse
// a cookie's Expires attribute itself.
var cookieExpiresLayouts = []string{
	"Mon, 02-Jan-2006 15:04:05 MST",
	time.RFC1123,
	"Mon, 02 Jan 2006 15:04:05 -0700",
}

// Session is an authenticated vendor session. A Session is immutable; every
// successful login produces a new one that replaces the previous session in
// full.
type Session struct {
	id         string
	domain     string
	cookies    []*http.Cookie
	loggedInAt time.Time
}

// newSession records the cookies of a login response. domain is the cookie
// domain the session must be scoped to.
func newSession(cookies []*http.Cookie, domain string, now time.Time) *Session {
	s := &Session{
		domain:     normalizeDomain(domain),
		cookies:    make([]*http.Cookie, 0, len(cookies)),
		loggedInAt: now,
	}
	for _, c := range cookies {
		if c == nil {
			continue
		}
		cp := *c
		s.cookies = append(s.cookies, &cp)
		if cp.Name == SessionCookieName && cp.Value != "" {
			s.id = cp.Value
		}
	}
	return s
}

// ID returns the session token carried in the session cookie.
func (s *Session) ID() string {
	if s == nil {
		return ""
	}
	return s.id
}

// LoggedInAt returns when the login that produced this session completed.
func (s *Session) LoggedInAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.loggedInAt
}

// Cookies returns a copy of the cookies recorded at login.
func (s *Session) Cookies() []*http.Cookie {
	if s == nil {
		return nil
	}
	out := make([]*http.Cookie, len(s.cookies))
	for i, c := range s.cookies {
		cp := *c
		out[i] = &cp
	}
	return out
}

// IsValid reports whether a cookie scoped to the session domain is present
// and its expiry is strictly after now. Unparseable expiries are invalid.
func (s *Session) IsValid(now time.Time) bool {
	_, ok := s.validUntil(now)
	return ok
}

// ExpiresAt returns the latest expiry among the cookies in the session
// domain, or the zero time if none carries a usable expiry.
func (s *Session) ExpiresAt() time.Time {
	var latest time.Time
	if s == nil {
		return latest
	}
	for _, c := range s.cookies {
		if normalizeDomain(c.Domain) != s.domain {
			continue
		}
		if exp, ok := cookieExpiry(c, s.loggedInAt); ok && exp.After(latest) {
			latest = exp
		}
	}
	return latest
}

func (s *Session) validUntil(now time.Time) (time.Time, bool) {
	if s == nil {
		return time.Time{}, false
	}
	exp := s.ExpiresAt()
	if exp.IsZero() || !exp.After(now) {
		return time.Time{}, false
	}
	return exp, true
}

// cookieExpiry resolves a cookie's expiry. Max-Age wins over Expires.
func cookieExpiry(c *http.Cookie, issuedAt time.Time) (time.Time, bool) {
	switch {
	case c.MaxAge > 0:
		return issuedAt.Add(time.Duration(c.MaxAge) * time.Second), true
	case c.MaxAge < 0:
		return time.Time{}, false
	case !c.Expires.IsZero():
		return c.Expires, true
	case c.RawExpires != "":
		for _, layout := range cookieExpiresLayouts {
			if t, err := time.Parse(layout, c.RawExpires); err == nil {
				return t.UTC(), true
			}
		}
	}
	return time.Time{}, false
}

func normalizeDomain(d string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(d)), ".")
}

// SessionData is the persistable form of a Session.
type SessionData struct {
	ID         string    `toml:"id" json:"id"`
	Domain     string    `toml:"domain" json:"domain"`
	ExpiresAt  time.Time `toml:"expires_at" json:"expires_at"`
	LoggedInAt time.Time `toml:"logged_in_at" json:"logged_in_at"`
}

// Data exports the session for a SessionStore.
func (s *Session) Data() *SessionData {
	if s == nil {
		return nil
	}
	return &SessionData{
		ID:         s.id,
		Domain:     s.domain,
		ExpiresAt:  s.ExpiresAt(),
		LoggedInAt: s.loggedInAt,
	}
}

// sessionFromData rebuilds a Session from persisted data.
func sessionFromData(d *SessionData) *Session {
	if d == nil || d.ID == "" {
		return nil
	}
	cookie := &http.Cookie{
		Name:    SessionCookieName,
		Value:   d.ID,
		Domain:  d.Domain,
		Expires: d.ExpiresAt,
	}
	return newSession([]*http.Cookie{cookie}, d.Domain, d.LoggedInAt)
}
