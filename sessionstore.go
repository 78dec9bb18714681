package brunt

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// ErrNoSession is returned by a SessionStore holding no session.
var ErrNoSession = errors.New("brunt: no stored session")

// SessionStore persists the session between process runs so that short-lived
// callers, such as the CLI, do not log in on every invocation.
type SessionStore interface {
	SaveSession(ctx context.Context, data *SessionData) error
	LoadSession(ctx context.Context) (*SessionData, error)
}

// WithSessionStore restores a stored session at construction and saves every
// new session after login. A failed save is logged, not returned.
func WithSessionStore(store SessionStore) Option {
	return func(c *Client) {
		c.sessionStore = store
	}
}

func (c *Client) restoreSession(ctx context.Context) {
	data, err := c.sessionStore.LoadSession(ctx)
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			c.log(ctx, slog.LevelWarn, "session_restore_failed", slog.String("error", err.Error()))
		}
		return
	}
	sess := sessionFromData(data)
	if sess == nil || sess.domain != normalizeDomain(c.cookieDomain) || !sess.IsValid(c.now()) {
		c.log(ctx, slog.LevelDebug, "session_restore_skipped")
		return
	}

	c.mu.Lock()
	c.session = sess
	c.state = StateAuthenticated
	c.mu.Unlock()
	c.log(ctx, slog.LevelDebug, "session_restored", slog.Time("expires_at", sess.ExpiresAt()))
}

func (c *Client) persistSession(ctx context.Context, sess *Session) {
	if c.sessionStore == nil {
		return
	}
	if err := c.sessionStore.SaveSession(ctx, sess.Data()); err != nil {
		c.log(ctx, slog.LevelWarn, "session_save_failed", slog.String("error", err.Error()))
	}
}

// FileSessionStore stores the session in a TOML file readable only by the
// owner.
type FileSessionStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileSessionStore creates a FileSessionStore backed by path.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// SaveSession writes the session to the file.
func (f *FileSessionStore) SaveSession(ctx context.Context, data *SessionData) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if data == nil {
		return fmt.Errorf("session cannot be nil")
	}

	dir := filepath.Dir(f.path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create session directory: %w", err)
		}
	}

	out, err := toml.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to a temporary file first, then rename for atomicity
	tmpFile := f.path + ".tmp"
	if err := os.WriteFile(tmpFile, out, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmpFile, f.path); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to save session file: %w", err)
	}
	return nil
}

// LoadSession reads the session from the file. A missing file yields
// ErrNoSession.
func (f *FileSessionStore) LoadSession(ctx context.Context) (*SessionData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	raw, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var data SessionData
	if err := toml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return &data, nil
}

// Delete removes the session file
func (f *FileSessionStore) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session file: %w", err)
	}
	return nil
}

// MemorySessionStore keeps the session in memory (useful for testing)
type MemorySessionStore struct {
	data *SessionData
	mu   sync.RWMutex
}

// NewMemorySessionStore creates an empty in-memory store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

// SaveSession stores a copy of data.
func (m *MemorySessionStore) SaveSession(ctx context.Context, data *SessionData) error {
	if data == nil {
		return fmt.Errorf("session cannot be nil")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *data
	m.data = &cp
	return nil
}

// LoadSession returns a copy of the stored session.
func (m *MemorySessionStore) LoadSession(ctx context.Context) (*SessionData, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, ErrNoSession
	}
	cp := *m.data
	return &cp, nil
}
