package brunt

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

const (
	testUser     = "user@example.com"
	testPassword = "secret"
	testSession  = "sess-1"
)

// recordedRequest is a request as seen by the fake vendor.
type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeVendor serves both vendor hosts from one httptest server.
type fakeVendor struct {
	t      *testing.T
	server *httptest.Server

	mu          sync.Mutex
	requests    []recordedRequest
	logins      int
	things      []map[string]any
	states      map[string]map[string]any
	maxAge      int
	domain      string
	loginStatus int
	listBody    string
	stateBody   string
	putStatus   int

	// loginGate, when set, holds every login until it is closed.
	loginGate     chan struct{}
	loginsWaiting atomic.Int32
}

func newFakeVendor(t *testing.T) *fakeVendor {
	t.Helper()
	v := &fakeVendor{
		t:      t,
		states: make(map[string]map[string]any),
		maxAge: 3600,
		domain: ".brunt.co",
	}
	v.server = httptest.NewServer(http.HandlerFunc(v.handle))
	t.Cleanup(v.server.Close)
	return v
}

// addThing registers a blind in both the device list and the state map.
func (v *fakeVendor) addThing(name, serial string, position int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	entry := map[string]any{
		"NAME":            name,
		"SERIAL":          serial,
		"thingUri":        URIForSerial(serial),
		"MODEL":           "BE1",
		"currentPosition": strconv.Itoa(position),
		"requestPosition": strconv.Itoa(position),
		"moveState":       "0",
		"PERMISSION_TYPE": `"owner"`,
	}
	v.things = append(v.things, entry)
	state := make(map[string]any, len(entry))
	for k, val := range entry {
		state[k] = val
	}
	v.states[URIForSerial(serial)] = state
}

func (v *fakeVendor) handle(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	if v.loginGate != nil && r.URL.Path == "/session" {
		v.loginsWaiting.Add(1)
		<-v.loginGate
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.requests = append(v.requests, recordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Header: r.Header.Clone(),
		Body:   string(body),
	})

	if r.Method == http.MethodPost && r.URL.Path == "/session" {
		v.logins++
		if v.loginStatus != 0 {
			w.WriteHeader(v.loginStatus)
			return
		}
		var creds map[string]string
		if err := json.Unmarshal(body, &creds); err != nil || creds["ID"] != testUser || creds["PASS"] != testPassword {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:   SessionCookieName,
			Value:  testSession + "-" + strconv.Itoa(v.logins),
			Domain: v.domain,
			MaxAge: v.maxAge,
		})
		w.Write([]byte(`{"ID":"` + testUser + `","NAME":"Test User"}`))
		return
	}

	if !strings.HasPrefix(r.Header.Get("Cookie"), SessionCookieName+"=") {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/thing":
		if v.listBody != "" {
			w.Write([]byte(v.listBody))
			return
		}
		json.NewEncoder(w).Encode(v.things)

	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/thing/"):
		if v.stateBody != "" {
			w.Write([]byte(v.stateBody))
			return
		}
		state, ok := v.states[strings.TrimPrefix(r.URL.Path, "/thing")]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(state)

	case r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/thing/"):
		if v.putStatus != 0 {
			w.WriteHeader(v.putStatus)
			return
		}
		var change map[string]string
		if err := json.Unmarshal(body, &change); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if state, ok := v.states[strings.TrimPrefix(r.URL.Path, "/thing")]; ok {
			for k, val := range change {
				state[k] = val
			}
		}
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (v *fakeVendor) recorded() []recordedRequest {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]recordedRequest(nil), v.requests...)
}

func (v *fakeVendor) loginCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.logins
}

// calls returns "METHOD path" for each request, in order.
func (v *fakeVendor) calls() []string {
	reqs := v.recorded()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

func (v *fakeVendor) setState(uri, key string, value any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.states[uri][key] = value
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestClient returns a client pointed at the fake vendor.
func newTestClient(t *testing.T, v *fakeVendor, clock *fakeClock, opts ...Option) *Client {
	t.Helper()
	base := []Option{
		WithCredentials(testUser, testPassword),
		WithAccountHost(v.server.URL),
		WithThingsHost(v.server.URL),
		WithClock(clock.Now),
	}
	c, err := NewClient(append(base, opts...)...)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}
