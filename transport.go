package brunt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Response is what a Transport returns for a request that reached the server.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cookies    []*http.Cookie
}

// Transport sends assembled requests. A Transport is owned by a single
// client and released through Close.
type Transport interface {
	// Do sends req and returns the response whatever its status. An error
	// means no response was received.
	Do(ctx context.Context, req *Request) (*Response, error)

	// Close releases the transport's resources.
	Close() error
}

// HTTPTransport is the net/http implementation of Transport. It keeps no
// cookie jar; the session cookie travels in the request headers.
type HTTPTransport struct {
	client    *http.Client
	owned     bool // client was built here, so Close may drop its pool
	closeOnce sync.Once
}

// NewHTTPTransport wraps an http.Client. A nil client gets the default
// pooled configuration.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		return &HTTPTransport{client: defaultHTTPClient(), owned: true}
	}
	return &HTTPTransport{client: client}
}

// defaultHTTPClient returns the default HTTP client configuration
func defaultHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Header {
		httpReq.Header[k] = append([]string(nil), v...)
	}
	httpReq.ContentLength = int64(len(req.Body))

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
		Cookies:    resp.Cookies(),
	}, nil
}

// Close implements Transport. It drops idle connections of a client the
// transport built itself; a caller-supplied client is left alone. Calling
// it more than once is harmless.
func (t *HTTPTransport) Close() error {
	if t.owned {
		t.closeOnce.Do(t.client.CloseIdleConnections)
	}
	return nil
}
