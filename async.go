package brunt

import (
	"context"
	"sync"
)

// Future is the pending result of an AsyncClient operation.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.val = val
	f.err = err
	close(f.done)
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the operation finishes or ctx is done. Cancelling ctx
// abandons the wait; the operation itself keeps its place in the queue.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// AsyncClient runs Client operations on a single background worker. Work is
// executed in submission order, one operation at a time, and each call
// returns immediately with a Future.
type AsyncClient struct {
	client *Client

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// NewAsyncClient creates an AsyncClient around a new Client built from opts.
func NewAsyncClient(opts ...Option) (*AsyncClient, error) {
	c, err := NewClient(opts...)
	if err != nil {
		return nil, err
	}
	return newAsyncClient(c), nil
}

func newAsyncClient(c *Client) *AsyncClient {
	a := &AsyncClient{
		client: c,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Client returns the underlying synchronous client.
func (a *AsyncClient) Client() *Client {
	return a.client
}

func (a *AsyncClient) run() {
	defer close(a.done)
	for {
		a.mu.Lock()
		if len(a.queue) == 0 {
			if a.closed {
				a.mu.Unlock()
				return
			}
			a.mu.Unlock()
			<-a.wake
			continue
		}
		job := a.queue[0]
		a.queue[0] = nil
		a.queue = a.queue[1:]
		a.mu.Unlock()

		job()
	}
}

func (a *AsyncClient) signal() {
	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// submit queues fn on the worker. After Close the future resolves at once
// with ErrClientClosed.
func submit[T any](a *AsyncClient, ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		var zero T
		f.resolve(zero, ErrClientClosed)
		return f
	}
	a.queue = append(a.queue, func() {
		if err := ctx.Err(); err != nil {
			var zero T
			f.resolve(zero, err)
			return
		}
		f.resolve(fn(ctx))
	})
	a.mu.Unlock()

	a.signal()
	return f
}

// Login queues Client.Login.
func (a *AsyncClient) Login(ctx context.Context, username, password string) *Future[struct{}] {
	return submit(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.client.Login(ctx, username, password)
	})
}

// ListDevices queues Client.ListDevices.
func (a *AsyncClient) ListDevices(ctx context.Context) *Future[[]Thing] {
	return submit(a, ctx, a.client.ListDevices)
}

// Things queues Client.Things.
func (a *AsyncClient) Things(ctx context.Context, force bool) *Future[[]Thing] {
	return submit(a, ctx, func(ctx context.Context) ([]Thing, error) {
		return a.client.Things(ctx, force)
	})
}

// GetState queues Client.GetState.
func (a *AsyncClient) GetState(ctx context.Context, sel Selector) *Future[Thing] {
	return submit(a, ctx, func(ctx context.Context) (Thing, error) {
		return a.client.GetState(ctx, sel)
	})
}

// ChangeKey queues Client.ChangeKey.
func (a *AsyncClient) ChangeKey(ctx context.Context, key, value string, sel Selector) *Future[struct{}] {
	return submit(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.client.ChangeKey(ctx, key, value, sel)
	})
}

// ChangeRequestPosition queues Client.ChangeRequestPosition.
func (a *AsyncClient) ChangeRequestPosition(ctx context.Context, position int, sel Selector) *Future[struct{}] {
	return submit(a, ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, a.client.ChangeRequestPosition(ctx, position, sel)
	})
}

// Position reports Client.Position. It reads cached state only and does not
// queue.
func (a *AsyncClient) Position(uri string) (int, bool) {
	return a.client.Position(uri)
}

// State reports the authentication state of the underlying client.
func (a *AsyncClient) State() State {
	return a.client.State()
}

// Close stops accepting work, waits for queued operations to finish and
// then closes the underlying client.
func (a *AsyncClient) Close() error {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.mu.Unlock()
		a.signal()
		<-a.done
		a.closeErr = a.client.Close()
	})
	return a.closeErr
}
