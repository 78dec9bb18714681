package brunt

import (
	"context"
	"log/slog"
	"time"
)

// WithLogger configures a structured logger for the client.
// When set, the client logs requests, responses, logins and commands, and
// the codec reports skipped or unknown fields. Bodies are never logged.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
//	client, _ := brunt.NewClient(brunt.WithCredentials(user, pass), brunt.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// LoggingTransport wraps a Transport and logs requests/responses.
type LoggingTransport struct {
	Base   Transport
	Logger *slog.Logger
}

// Do implements Transport with logging.
func (t *LoggingTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	start := time.Now()

	if t.Logger != nil {
		t.Logger.LogAttrs(ctx, slog.LevelDebug, "api_request",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
		)
	}

	resp, err := t.Base.Do(ctx, req)
	duration := time.Since(start)

	if t.Logger == nil {
		return resp, err
	}
	if err != nil {
		t.Logger.LogAttrs(ctx, slog.LevelError, "api_error",
			slog.String("method", req.Method),
			slog.String("url", req.URL),
			slog.Duration("duration", duration),
			slog.String("error", err.Error()),
		)
		return resp, err
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}
	if resp.StatusCode >= 500 {
		level = slog.LevelError
	}
	t.Logger.LogAttrs(ctx, level, "api_response",
		slog.String("method", req.Method),
		slog.String("url", req.URL),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	)
	return resp, err
}

// Close implements Transport.
func (t *LoggingTransport) Close() error {
	return t.Base.Close()
}

func (c *Client) log(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	if c.logger == nil {
		return
	}
	c.logger.LogAttrs(ctx, level, msg, attrs...)
}

// logCommand logs a key change sent to a thing.
func (c *Client) logCommand(ctx context.Context, uri, key, value string, err error) {
	if c.logger == nil {
		return
	}

	level := slog.LevelInfo
	attrs := []slog.Attr{
		slog.String("thing_uri", uri),
		slog.String("key", key),
		slog.String("value", value),
	}
	if err != nil {
		level = slog.LevelError
		attrs = append(attrs, slog.String("error", err.Error()))
	}

	c.logger.LogAttrs(ctx, level, "thing_command", attrs...)
}
