package brunt

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSession_IsValid(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		cookie *http.Cookie
		domain string
		want   bool
	}{
		{
			name:   "future expiry",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", Expires: now.Add(time.Hour)},
			domain: "brunt.co",
			want:   true,
		},
		{
			name:   "leading dot and case are ignored",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: ".Brunt.CO", Expires: now.Add(time.Hour)},
			domain: "brunt.co",
			want:   true,
		},
		{
			name:   "max age",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", MaxAge: 60},
			domain: "brunt.co",
			want:   true,
		},
		{
			name:   "expiry equal to now",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", Expires: now},
			domain: "brunt.co",
			want:   false,
		},
		{
			name:   "expired",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", Expires: now.Add(-time.Second)},
			domain: "brunt.co",
			want:   false,
		},
		{
			name:   "deleted cookie",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", MaxAge: -1},
			domain: "brunt.co",
			want:   false,
		},
		{
			name:   "no expiry",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co"},
			domain: "brunt.co",
			want:   false,
		},
		{
			name:   "raw vendor expiry",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", RawExpires: "Sat, 02-Mar-2024 12:00:00 GMT"},
			domain: "brunt.co",
			want:   true,
		},
		{
			name:   "unparseable expiry",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", RawExpires: "tomorrow"},
			domain: "brunt.co",
			want:   false,
		},
		{
			name:   "no domain",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "a", Expires: now.Add(time.Hour)},
			domain: "brunt.co",
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newSession([]*http.Cookie{tt.cookie}, tt.domain, now)
			assert.Equal(t, tt.want, s.IsValid(now))
		})
	}

	t.Run("domain mismatch is never valid", func(t *testing.T) {
		for _, offset := range []time.Duration{-time.Hour, time.Second, time.Hour, 24 * 365 * time.Hour} {
			c := &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "evil.example", Expires: now.Add(offset)}
			s := newSession([]*http.Cookie{c}, "brunt.co", now)
			assert.False(t, s.IsValid(now), offset)
			assert.False(t, s.IsValid(now.Add(-48*time.Hour)), offset)
		}
	})

	t.Run("valid until expiry", func(t *testing.T) {
		c := &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", Expires: now.Add(time.Hour)}
		s := newSession([]*http.Cookie{c}, "brunt.co", now)
		assert.True(t, s.IsValid(now))
		assert.True(t, s.IsValid(now.Add(59*time.Minute)))
		assert.False(t, s.IsValid(now.Add(61*time.Minute)))
	})

	t.Run("nil session", func(t *testing.T) {
		var s *Session
		assert.False(t, s.IsValid(now))
		assert.Empty(t, s.ID())
		assert.True(t, s.ExpiresAt().IsZero())
		assert.Nil(t, s.Data())
	})
}

func TestSession_Cookies(t *testing.T) {
	now := time.Now()
	original := &http.Cookie{Name: SessionCookieName, Value: "a", Domain: "brunt.co", MaxAge: 60}
	s := newSession([]*http.Cookie{original, nil}, "brunt.co", now)

	original.Value = "changed"
	got := s.Cookies()
	assert.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Value)
	assert.Equal(t, "a", s.ID())

	got[0].Value = "mutated"
	assert.Equal(t, "a", s.Cookies()[0].Value)
}

func TestSession_ExpiresAt(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newSession([]*http.Cookie{
		{Name: SessionCookieName, Value: "a", Domain: "brunt.co", Expires: now.Add(time.Hour)},
		{Name: "aux", Value: "b", Domain: "brunt.co", Expires: now.Add(2 * time.Hour)},
		{Name: "other", Value: "c", Domain: "example.com", Expires: now.Add(9 * time.Hour)},
	}, "brunt.co", now)

	assert.Equal(t, now.Add(2*time.Hour), s.ExpiresAt())
}

func TestSessionData(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c := &http.Cookie{Name: SessionCookieName, Value: "abc", Domain: ".brunt.co", MaxAge: 3600}
	s := newSession([]*http.Cookie{c}, "brunt.co", now)

	data := s.Data()
	assert.Equal(t, &SessionData{
		ID:         "abc",
		Domain:     "brunt.co",
		ExpiresAt:  now.Add(time.Hour),
		LoggedInAt: now,
	}, data)

	restored := sessionFromData(data)
	assert.Equal(t, "abc", restored.ID())
	assert.Equal(t, now.Add(time.Hour), restored.ExpiresAt())
	assert.True(t, restored.IsValid(now))

	assert.Nil(t, sessionFromData(nil))
	assert.Nil(t, sessionFromData(&SessionData{}))
}
