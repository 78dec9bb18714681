package brunt

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// pendingPosition is a commanded position not yet confirmed by a read.
type pendingPosition struct {
	position    int
	commandedAt time.Time
	seq         uint64
}

// pendingPositions holds the last commanded position per thing URI.
//
// Entries expire lazily on read; no janitor goroutine is started.
type pendingPositions struct {
	store *cache.Cache
	ttl   time.Duration
}

func newPendingPositions(ttl time.Duration) *pendingPositions {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &pendingPositions{
		store: cache.New(ttl, 0),
		ttl:   ttl,
	}
}

func (p *pendingPositions) record(uri string, position int, at time.Time, seq uint64) {
	p.store.Set(uri, pendingPosition{position: position, commandedAt: at, seq: seq}, cache.DefaultExpiration)
}

func (p *pendingPositions) get(uri string) (pendingPosition, bool) {
	v, ok := p.store.Get(uri)
	if !ok {
		return pendingPosition{}, false
	}
	return v.(pendingPosition), true
}

func (p *pendingPositions) uris() []string {
	items := p.store.Items()
	out := make([]string, 0, len(items))
	for uri := range items {
		out = append(out, uri)
	}
	return out
}
