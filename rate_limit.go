package brunt

import (
	"context"

	"golang.org/x/time/rate"
)

// WithRateLimit caps the request rate towards the vendor. Requests wait for
// a token; a cancelled context aborts the wait.
//
// Example:
//
//	// at most two requests per second, bursts of four
//	client, _ := brunt.NewClient(brunt.WithRateLimit(2, 4))
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) {
		if r <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(r, burst)
	}
}

// RateLimitedTransport wraps a Transport with a token bucket.
type RateLimitedTransport struct {
	Base    Transport
	Limiter *rate.Limiter
}

// Do implements Transport.
func (t *RateLimitedTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return t.Base.Do(ctx, req)
}

// Close implements Transport.
func (t *RateLimitedTransport) Close() error {
	return t.Base.Close()
}
