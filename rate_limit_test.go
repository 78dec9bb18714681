package brunt

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestWithRateLimit(t *testing.T) {
	t.Run("sets a limiter", func(t *testing.T) {
		client, err := NewClient(WithRateLimit(2, 0))
		require.NoError(t, err)
		require.NotNil(t, client.limiter)
		assert.Equal(t, rate.Limit(2), client.limiter.Limit())
		assert.Equal(t, 1, client.limiter.Burst())
	})

	t.Run("non-positive rate disables limiting", func(t *testing.T) {
		client, err := NewClient(WithRateLimit(2, 1), WithRateLimit(0, 1))
		require.NoError(t, err)
		assert.Nil(t, client.limiter)
		assert.IsType(t, &HTTPTransport{}, client.transport)
	})
}

func TestRateLimitedTransport(t *testing.T) {
	req := &Request{Method: http.MethodGet, URL: "https://sky.brunt.co/thing"}

	t.Run("passes through within budget", func(t *testing.T) {
		base := &stubTransport{resp: &Response{StatusCode: http.StatusOK}}
		transport := &RateLimitedTransport{Base: base, Limiter: rate.NewLimiter(rate.Inf, 1)}

		for i := 0; i < 5; i++ {
			_, err := transport.Do(context.Background(), req)
			require.NoError(t, err)
		}
		assert.Len(t, base.sent, 5)
	})

	t.Run("waiting respects the context", func(t *testing.T) {
		base := &stubTransport{resp: &Response{StatusCode: http.StatusOK}}
		transport := &RateLimitedTransport{Base: base, Limiter: rate.NewLimiter(rate.Every(time.Hour), 1)}

		_, err := transport.Do(context.Background(), req)
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		defer cancel()
		_, err = transport.Do(ctx, req)
		assert.Error(t, err)
		assert.Len(t, base.sent, 1)
	})

	t.Run("client surfaces the wait as a transport error", func(t *testing.T) {
		base := &stubTransport{resp: &Response{StatusCode: http.StatusOK}}
		client, err := NewClient(
			WithTransport(base),
			WithCredentials(testUser, testPassword),
			WithRateLimit(rate.Every(time.Hour), 1),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err = client.Login(ctx, "", "")
		assert.True(t, IsTransport(err))
		assert.Empty(t, base.sent)
	})

	t.Run("close reaches the base transport", func(t *testing.T) {
		base := &stubTransport{}
		client, err := NewClient(WithTransport(base), WithRateLimit(1, 1), WithLogger(discardLogger()))
		require.NoError(t, err)
		require.NoError(t, client.Close())
		assert.Equal(t, 1, base.closed)
	})
}
