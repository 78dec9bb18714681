package brunt

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// State is the authentication state of a Client.
type State int

const (
	StateUnauthenticated State = iota
	StateAuthenticating
	StateAuthenticated
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "unauthenticated"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	}
	return "State(" + strconv.Itoa(int(s)) + ")"
}

// Client is a Brunt API client.
//
// The client logs in lazily: every operation checks the session first and
// logs in with the stored credentials when the session is missing or
// expired. A Client is safe for concurrent use. Logins and directory
// refreshes are single-flighted, and shared state is only ever replaced
// whole, so no operation observes a half-updated session or directory.
type Client struct {
	accountHost  string
	thingsHost   string
	cookieDomain string
	username     string
	password     string

	httpClient   *http.Client
	transport    Transport
	logger       *slog.Logger
	now          func() time.Time
	sessionStore SessionStore
	pendingTTL   time.Duration
	limiter      *rate.Limiter
	ownsHTTP     bool

	flight  singleflight.Group
	pending *pendingPositions

	mu        sync.RWMutex
	state     State
	session   *Session
	dir       *directory
	observed  map[string]observation
	seq       uint64 // orders reads against commands
	closed    bool
	closeOnce sync.Once
	closeErr  error
}

// observation is the last fetched state of a thing.
type observation struct {
	thing Thing
	seq   uint64
}

// Option configures a Client.
type Option func(*Client)

// WithCredentials sets the account used for lazy logins.
func WithCredentials(username, password string) Option {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithAccountHost overrides the host serving login and the device list.
func WithAccountHost(host string) Option {
	return func(c *Client) {
		c.accountHost = host
	}
}

// WithThingsHost overrides the host serving per-thing reads and writes.
func WithThingsHost(host string) Option {
	return func(c *Client) {
		c.thingsHost = host
	}
}

// WithCookieDomain overrides the domain the session cookie must belong to.
func WithCookieDomain(domain string) Option {
	return func(c *Client) {
		c.cookieDomain = domain
	}
}

// WithHTTPClient sets a custom HTTP client for the default transport.
// It has no effect when WithTransport is also given.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
		c.ownsHTTP = false
	}
}

// WithTimeout sets the HTTP request timeout of the default transport.
// This option can be applied in any order relative to other options.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if c.httpClient == nil {
			c.httpClient = defaultHTTPClient()
			c.ownsHTTP = true
		}
		c.httpClient.Timeout = timeout
	}
}

// WithTransport replaces the HTTP transport. The client takes ownership and
// closes it on Close.
func WithTransport(t Transport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithClock sets the time source used for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// WithPendingTTL bounds how long a commanded position overrides fetched
// state when no newer read arrives. Zero keeps commands until superseded.
func WithPendingTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.pendingTTL = ttl
	}
}

// NewClient creates a new Brunt API client. Credentials may be given here
// with WithCredentials or later through Login.
func NewClient(opts ...Option) (*Client, error) {
	c := &Client{
		accountHost:  DefaultAccountHost,
		thingsHost:   DefaultThingsHost,
		cookieDomain: DefaultCookieDomain,
		now:          time.Now,
		observed:     make(map[string]observation),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		t := NewHTTPTransport(c.httpClient)
		if c.ownsHTTP {
			t.owned = true
		}
		c.transport = t
	}
	if c.limiter != nil {
		c.transport = &RateLimitedTransport{Base: c.transport, Limiter: c.limiter}
	}
	if c.logger != nil {
		c.transport = &LoggingTransport{Base: c.transport, Logger: c.logger}
	}
	c.pending = newPendingPositions(c.pendingTTL)

	if c.sessionStore != nil {
		c.restoreSession(context.Background())
	}

	return c, nil
}

func (c *Client) codec() codec {
	return codec{logger: c.logger}
}

func (c *Client) builder(sess *Session) requestBuilder {
	return requestBuilder{
		accountHost: c.accountHost,
		thingsHost:  c.thingsHost,
		sessionID:   sess.ID(),
	}
}

// State returns the client's current authentication state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Session returns the current session, or nil before the first login.
func (c *Client) Session() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Close releases the transport. Operations after Close fail with
// ErrClientClosed.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.closeErr = c.transport.Close()
	})
	return c.closeErr
}

func (c *Client) checkOpen() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClientClosed
	}
	return nil
}

// Login authenticates with the given credentials, replacing the stored
// ones. Empty arguments fall back to the stored credentials.
func (c *Client) Login(ctx context.Context, username, password string) error {
	if err := c.checkOpen(); err != nil {
		return err
	}
	_, err := c.login(ctx, username, password)
	return err
}

// ensureSession returns a valid session, logging in first when needed.
// Concurrent callers share a single login exchange.
func (c *Client) ensureSession(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	sess := c.session
	if sess.IsValid(c.now()) {
		c.mu.Unlock()
		return sess, nil
	}
	if c.state == StateAuthenticated {
		c.state = StateUnauthenticated
		c.log(ctx, slog.LevelInfo, "session_expired", slog.Time("expires_at", sess.ExpiresAt()))
	}
	c.mu.Unlock()

	v, err := c.shared(ctx, "login", func(ctx context.Context) (any, error) {
		c.mu.RLock()
		sess := c.session
		c.mu.RUnlock()
		if sess.IsValid(c.now()) {
			return sess, nil
		}
		return c.login(ctx, "", "")
	})
	if err != nil {
		return nil, err
	}
	return v.(*Session), nil
}

// shared runs fn once for all concurrent callers of key. fn does not see
// the first caller's cancellation; each caller stops waiting when its own
// ctx is done while fn keeps running for the others.
func (c *Client) shared(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error) {
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key, func() (any, error) {
		return fn(detached)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.Val, res.Err
	}
}

func (c *Client) login(ctx context.Context, username, password string) (*Session, error) {
	c.mu.Lock()
	if username != "" {
		c.username = username
	}
	if password != "" {
		c.password = password
	}
	req, err := c.builder(nil).login(c.username, c.password)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	prev := c.state
	c.state = StateAuthenticating
	c.mu.Unlock()

	sess, err := c.exchangeLogin(ctx, req)

	c.mu.Lock()
	if err != nil {
		if prev == StateAuthenticated && c.session.IsValid(c.now()) {
			c.state = StateAuthenticated
		} else {
			c.state = StateUnauthenticated
		}
		c.mu.Unlock()
		c.log(ctx, slog.LevelWarn, "login_failed", slog.String("error", err.Error()))
		return nil, err
	}
	c.session = sess
	c.state = StateAuthenticated
	c.mu.Unlock()

	c.log(ctx, slog.LevelInfo, "login", slog.Time("expires_at", sess.ExpiresAt()))
	c.persistSession(ctx, sess)
	return sess, nil
}

func (c *Client) exchangeLogin(ctx context.Context, req *Request) (*Session, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	now := c.now()
	sess, err := c.codec().decodeLoginResponse(resp.Body, resp.Cookies, c.cookieDomain, now)
	if err != nil {
		return nil, err
	}
	if !sess.IsValid(now) {
		return nil, newProtocolError("login cookie is expired or not scoped to "+c.cookieDomain, nil)
	}
	return sess, nil
}

// send dispatches a request and turns transport failures and non-2xx
// statuses into *TransportError.
func (c *Client) send(ctx context.Context, req *Request) (*Response, error) {
	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     req.Method,
			URL:        req.URL,
			StatusCode: resp.StatusCode,
			Message:    truncatePreview(resp.Body),
		}
	}
	return resp, nil
}

// ListDevices fetches the things registered to the account and replaces the
// cached directory with the result.
func (c *Client) ListDevices(ctx context.Context) ([]Thing, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return nil, err
	}
	dir, err := c.refresh(ctx, sess)
	if err != nil {
		return nil, err
	}
	return dir.list(), nil
}

// Things returns the cached directory, fetching it when it is empty or when
// force is set.
func (c *Client) Things(ctx context.Context, force bool) ([]Thing, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}
	if !force {
		c.mu.RLock()
		dir := c.dir
		c.mu.RUnlock()
		if dir.len() > 0 {
			return dir.list(), nil
		}
	}
	return c.ListDevices(ctx)
}

// Thing returns the directory entry for uri without touching the network.
func (c *Client) Thing(uri string) (Thing, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dir.get(uri)
}

// refresh fetches the device list and swaps in a new directory. Concurrent
// refreshes share one request.
func (c *Client) refresh(ctx context.Context, sess *Session) (*directory, error) {
	v, err := c.shared(ctx, "things", func(ctx context.Context) (any, error) {
		resp, err := c.send(ctx, c.builder(sess).listDevices())
		if err != nil {
			return nil, err
		}
		things, err := c.codec().decodeListResponse(ctx, resp.Body)
		if err != nil {
			return nil, err
		}

		now := c.now()
		dir := newDirectory(things, now)
		c.mu.Lock()
		c.dir = dir
		for _, t := range things {
			c.observeLocked(t)
		}
		c.mu.Unlock()

		c.log(ctx, slog.LevelDebug, "directory_refreshed", slog.Int("things", dir.len()))
		return dir, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*directory), nil
}

// directoryFor returns a directory able to resolve sel, refreshing an empty
// directory when sel needs a name lookup.
func (c *Client) directoryFor(ctx context.Context, sel Selector, sess *Session) (*directory, error) {
	c.mu.RLock()
	dir := c.dir
	c.mu.RUnlock()
	if sel.URI != "" || dir.len() > 0 {
		return dir, nil
	}
	return c.refresh(ctx, sess)
}

// GetState fetches the current state of a thing.
func (c *Client) GetState(ctx context.Context, sel Selector) (Thing, error) {
	if err := c.checkOpen(); err != nil {
		return Thing{}, err
	}
	if sel.empty() {
		return Thing{}, ErrMissingSelector
	}
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return Thing{}, err
	}
	dir, err := c.directoryFor(ctx, sel, sess)
	if err != nil {
		return Thing{}, err
	}

	req, uri, err := c.builder(sess).getState(sel, dir)
	if err != nil {
		return Thing{}, err
	}
	resp, err := c.send(ctx, req)
	if err != nil {
		return Thing{}, err
	}
	thing, err := c.codec().decodeStateResponse(ctx, resp.Body, uri)
	if err != nil {
		return Thing{}, err
	}

	c.mu.Lock()
	c.observeLocked(thing)
	if _, listed := c.dir.get(thing.URI); listed {
		c.dir = c.dir.with(thing)
	}
	c.mu.Unlock()
	return thing, nil
}

// ChangeKey sets a raw key on a thing. Values are sent as strings; keys
// naming a position must carry an integer in [0, 100].
func (c *Client) ChangeKey(ctx context.Context, key, value string, sel Selector) error {
	_, err := c.changeKey(ctx, key, value, sel)
	return err
}

func (c *Client) changeKey(ctx context.Context, key, value string, sel Selector) (string, error) {
	if err := c.checkOpen(); err != nil {
		return "", err
	}
	if err := validateChange(key, value); err != nil {
		return "", err
	}
	if sel.empty() {
		return "", ErrMissingSelector
	}
	sess, err := c.ensureSession(ctx)
	if err != nil {
		return "", err
	}
	dir, err := c.directoryFor(ctx, sel, sess)
	if err != nil {
		return "", err
	}

	req, uri, err := c.builder(sess).changeKey(key, value, sel, dir)
	if err != nil {
		return "", err
	}
	_, err = c.send(ctx, req)
	c.logCommand(ctx, uri, key, value, err)
	if err != nil {
		return "", err
	}
	return uri, nil
}

// ChangeRequestPosition commands a thing to move to position (0-100). The
// command is remembered so Position reflects it until a newer read arrives.
func (c *Client) ChangeRequestPosition(ctx context.Context, position int, sel Selector) error {
	if position < 0 || position > 100 {
		return ErrInvalidPosition
	}
	uri, err := c.changeKey(ctx, RequestPositionKey, strconv.Itoa(position), sel)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.seq++
	c.pending.record(uri, position, c.now(), c.seq)
	c.mu.Unlock()
	return nil
}

// observeLocked records a fetched thing. Reads completing after a command
// supersede it. c.mu must be held.
func (c *Client) observeLocked(t Thing) {
	c.seq++
	c.observed[t.URI] = observation{thing: t, seq: c.seq}
}

// Position returns the position of a thing as the caller should see it: a
// commanded position when it is newer than the last read, otherwise the
// last read position.
func (c *Client) Position(uri string) (int, bool) {
	c.mu.RLock()
	obs, fetched := c.observed[uri]
	pend, pending := c.pending.get(uri)
	c.mu.RUnlock()

	if pending && (!fetched || pend.seq > obs.seq) {
		return pend.position, true
	}
	if fetched {
		return obs.thing.Position()
	}
	return 0, false
}

// Positions returns Position for every thing with a read or a command.
func (c *Client) Positions() map[string]int {
	c.mu.RLock()
	uris := make([]string, 0, len(c.observed))
	for uri := range c.observed {
		uris = append(uris, uri)
	}
	c.mu.RUnlock()
	uris = append(uris, c.pending.uris()...)
	sort.Strings(uris)

	out := make(map[string]int, len(uris))
	for _, uri := range uris {
		if p, ok := c.Position(uri); ok {
			out[uri] = p
		}
	}
	return out
}
