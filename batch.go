package brunt

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency bounds concurrent vendor calls in a batch.
const DefaultBatchConcurrency = 4

// BatchResult is the outcome of one selector in a batch.
type BatchResult struct {
	Selector Selector
	Thing    Thing // set by GetStateBatch on success
	Err      error
}

// BatchConfig configures batch execution.
type BatchConfig struct {
	// MaxConcurrent is the maximum number of in-flight vendor calls.
	// Defaults to DefaultBatchConcurrency.
	MaxConcurrent int

	// StopOnError skips selectors not yet started once one fails. Skipped
	// entries report context.Canceled.
	StopOnError bool
}

func (cfg *BatchConfig) limit() int {
	if cfg == nil || cfg.MaxConcurrent <= 0 {
		return DefaultBatchConcurrency
	}
	return cfg.MaxConcurrent
}

// ChangeRequestPositionBatch moves several things to the same position.
// Results are in selector order.
//
// Example:
//
//	results := client.ChangeRequestPositionBatch(ctx, 0, []brunt.Selector{
//	    brunt.ByName("Kitchen"),
//	    brunt.ByName("Bedroom"),
//	}, nil)
//	for _, r := range results {
//	    if r.Err != nil {
//	        log.Printf("%s: %v", r.Selector, r.Err)
//	    }
//	}
func (c *Client) ChangeRequestPositionBatch(ctx context.Context, position int, sels []Selector, cfg *BatchConfig) []BatchResult {
	if position < 0 || position > 100 {
		return failAll(sels, ErrInvalidPosition)
	}
	return c.runBatch(ctx, sels, cfg, func(ctx context.Context, sel Selector) (Thing, error) {
		return Thing{}, c.ChangeRequestPosition(ctx, position, sel)
	})
}

// GetStateBatch fetches the state of several things. Results are in
// selector order.
func (c *Client) GetStateBatch(ctx context.Context, sels []Selector, cfg *BatchConfig) []BatchResult {
	return c.runBatch(ctx, sels, cfg, c.GetState)
}

func (c *Client) runBatch(ctx context.Context, sels []Selector, cfg *BatchConfig, fn func(context.Context, Selector) (Thing, error)) []BatchResult {
	if len(sels) == 0 {
		return nil
	}

	results := make([]BatchResult, len(sels))
	var stopped atomic.Bool

	// Workers never return an error to the group so one failure does not
	// cancel the others unless StopOnError asks for it.
	var g errgroup.Group
	g.SetLimit(cfg.limit())

	for i, sel := range sels {
		results[i].Selector = sel
		g.Go(func() error {
			if stopped.Load() {
				results[i].Err = context.Canceled
				return nil
			}
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			thing, err := fn(ctx, sel)
			results[i].Thing, results[i].Err = thing, err
			if err != nil && cfg != nil && cfg.StopOnError {
				stopped.Store(true)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func failAll(sels []Selector, err error) []BatchResult {
	if len(sels) == 0 {
		return nil
	}
	results := make([]BatchResult, len(sels))
	for i, sel := range sels {
		results[i] = BatchResult{Selector: sel, Err: err}
	}
	return results
}
