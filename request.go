package brunt

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultAccountHost serves login and the device list.
	DefaultAccountHost = "https://sky.brunt.co"

	// DefaultThingsHost serves per-thing state reads and writes.
	DefaultThingsHost = "https://thing.brunt.co:8080"

	// RequestPositionKey is the key that commands a new position.
	RequestPositionKey = "requestPosition"

	sessionPath = "/session"
	thingPath   = "/thing"
)

// The vendor rejects requests that do not look like its mobile web app.
var defaultHeaders = [...][2]string{
	{"Content-Type", "application/x-www-form-urlencoded; charset=UTF-8"},
	{"Origin", "https://sky.brunt.co"},
	{"Accept-Language", "en-gb"},
	{"Accept", "application/vnd.brunt.v1+json"},
	{"User-Agent", "Mozilla/5.0 (iPhone; CPU iPhone OS 11_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Mobile/15E216"},
}

// Request is a fully assembled vendor request.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Selector identifies a thing by display name or by URI. When both are set
// the URI is used and the name is ignored.
type Selector struct {
	Name string
	URI  string
}

// ByName selects a thing by its display name.
func ByName(name string) Selector {
	return Selector{Name: name}
}

// ByURI selects a thing by its URI, e.g. "/hub/00140d6f1950f166".
func ByURI(uri string) Selector {
	return Selector{URI: uri}
}

func (s Selector) empty() bool {
	return s.Name == "" && s.URI == ""
}

// String implements fmt.Stringer.
func (s Selector) String() string {
	if s.URI != "" {
		return s.URI
	}
	return strconv.Quote(s.Name)
}

// requestBuilder assembles requests. It performs no I/O.
type requestBuilder struct {
	accountHost string
	thingsHost  string
	sessionID   string
}

func (b requestBuilder) login(username, password string) (*Request, error) {
	if username == "" || password == "" {
		return nil, ErrCredentialsMissing
	}
	payload := struct {
		ID   string `json:"ID"`
		Pass string `json:"PASS"`
	}{username, password}
	return b.newRequest(http.MethodPost, b.accountHost+sessionPath, payload)
}

func (b requestBuilder) listDevices() *Request {
	req, _ := b.newRequest(http.MethodGet, b.accountHost+thingPath, nil)
	return req
}

func (b requestBuilder) getState(sel Selector, dir *directory) (*Request, string, error) {
	uri, err := resolveSelector(sel, dir)
	if err != nil {
		return nil, "", err
	}
	req, err := b.newRequest(http.MethodGet, b.thingsHost+thingPath+uri, nil)
	return req, uri, err
}

func (b requestBuilder) changeKey(key, value string, sel Selector, dir *directory) (*Request, string, error) {
	if err := validateChange(key, value); err != nil {
		return nil, "", err
	}
	uri, err := resolveSelector(sel, dir)
	if err != nil {
		return nil, "", err
	}
	req, err := b.newRequest(http.MethodPut, b.thingsHost+thingPath+uri, map[string]string{key: value})
	return req, uri, err
}

func (b requestBuilder) newRequest(method, url string, body any) (*Request, error) {
	req := &Request{
		Method: method,
		URL:    url,
		Header: make(http.Header, len(defaultHeaders)+2),
	}
	for _, h := range defaultHeaders {
		req.Header.Set(h[0], h[1])
	}
	if b.sessionID != "" {
		req.Header.Set("Cookie", SessionCookieName+"="+b.sessionID)
	}

	if body != nil {
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		req.Body = bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
		req.Header.Set("Content-Length", strconv.Itoa(len(req.Body)))
	}
	return req, nil
}

// validateChange checks a key/value pair before any network traffic.
func validateChange(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if value == "" {
		return ErrEmptyValue
	}
	if isPositionKey(key) {
		p, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || p < 0 || p > 100 {
			return fmt.Errorf("%w (got %q)", ErrInvalidPosition, value)
		}
	}
	return nil
}

func isPositionKey(key string) bool {
	return strings.Contains(strings.ToLower(key), "position")
}

// resolveSelector maps a selector onto a thing URI. A URI short-circuits the
// name lookup.
func resolveSelector(sel Selector, dir *directory) (string, error) {
	if sel.URI != "" {
		return sel.URI, nil
	}
	if sel.Name == "" {
		return "", ErrMissingSelector
	}
	if uri, ok := dir.lookupName(sel.Name); ok {
		return uri, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownDevice, sel.Name)
}
