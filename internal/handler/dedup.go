package handler

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	dedupCacheSize = 4096
	dedupTTL       = 10 * time.Minute
)

// Deduper remembers recently seen webhook event ids so redeliveries are processed once.
// A nil Deduper never reports duplicates.
type Deduper struct {
	// mu makes the lookup and the insert one step.
	mu    sync.Mutex
	cache *expirable.LRU[string, struct{}]
}

// NewDeduper creates a Deduper holding the most recent event ids for ten minutes.
func NewDeduper() (*Deduper, error) {
	return newDeduper(dedupCacheSize, dedupTTL), nil
}

func newDeduper(size int, ttl time.Duration) *Deduper {
	return &Deduper{cache: expirable.NewLRU[string, struct{}](size, nil, ttl)}
}

// Seen records eventID and reports whether it was already recorded within the TTL.
func (d *Deduper) Seen(eventID string) bool {
	if d == nil || eventID == "" {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.cache.Get(eventID); ok {
		return true
	}
	d.cache.Add(eventID, struct{}{})
	return false
}
