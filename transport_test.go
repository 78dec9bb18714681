package brunt

import (
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

// countingRoundTripper records CloseIdleConnections calls.
type countingRoundTripper struct {
	closes atomic.Int32
}

func (c *countingRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return http.DefaultTransport.RoundTrip(req)
}

func (c *countingRoundTripper) CloseIdleConnections() {
	c.closes.Add(1)
}

func TestHTTPTransport_CloseLeavesCallerClientAlone(t *testing.T) {
	rt := &countingRoundTripper{}
	client, err := NewClient(WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if n := rt.closes.Load(); n != 0 {
		t.Errorf("caller-supplied pool closed %d times, want 0", n)
	}
}

func TestHTTPTransport_Ownership(t *testing.T) {
	if tr := NewHTTPTransport(nil); !tr.owned {
		t.Error("transport with its own client should own it")
	}
	if tr := NewHTTPTransport(&http.Client{}); tr.owned {
		t.Error("transport should not own a caller-supplied client")
	}

	client, err := NewClient(WithTimeout(5 * time.Second))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	defer client.Close()
	lt, ok := client.transport.(*HTTPTransport)
	if !ok {
		t.Fatalf("transport = %T, want *HTTPTransport", client.transport)
	}
	if !lt.owned {
		t.Error("client built by WithTimeout should be owned by the transport")
	}

	rt := &countingRoundTripper{}
	tr := NewHTTPTransport(&http.Client{Transport: rt})
	tr.Close()
	tr.Close()
	if n := rt.closes.Load(); n != 0 {
		t.Errorf("closes = %d, want 0", n)
	}
}
