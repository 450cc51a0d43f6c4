package core

import (
	"container/list"
	"context"
	"fmt"

	"MemeLedger/internal/observability"
	"MemeLedger/internal/state"
)

// IdempotencyChecker implements two-tier deduplication
type IdempotencyChecker struct {
	// Tier 1: In-memory LRU
	lru *IdempotencyLRU

	// Tier 2: durable processed-key store (Postgres, Redis or memory)
	processed state.ProcessedStore

	metrics *observability.Metrics
}

func NewIdempotencyChecker(capacity int, processed state.ProcessedStore, metrics *observability.Metrics) *IdempotencyChecker {
	return &IdempotencyChecker{
		lru:       NewIdempotencyLRU(capacity),
		processed: processed,
		metrics:   metrics,
	}
}

// IsDuplicate checks if event has been processed (two-tier lookup).
// A tier-2 failure is returned as a StoreError, never read as "not seen".
func (ic *IdempotencyChecker) IsDuplicate(ctx context.Context, eventType string, idempotencyKey string) (bool, error) {
	compositeKey := fmt.Sprintf("%s:%s", eventType, idempotencyKey)

	if ic.lru.Contains(compositeKey) {
		ic.recordDuplicate(eventType, "lru")
		return true, nil
	}

	if ic.processed == nil {
		return false, nil
	}

	isDup, err := ic.processed.IsProcessed(ctx, eventType, idempotencyKey)
	if err != nil {
		if ic.metrics != nil {
			ic.metrics.DedupTier2Errors.Inc()
		}
		return false, &state.StoreError{Op: "load", Kind: "ProcessedEvent", ID: compositeKey, Err: err}
	}
	if isDup {
		ic.recordDuplicate(eventType, "store")
		ic.add(compositeKey)
		return true, nil
	}
	return false, nil
}

// Remember records a key whose event was committed. The durable tier was
// written by the same commit, so only the LRU is updated here.
func (ic *IdempotencyChecker) Remember(eventType string, idempotencyKey string) {
	ic.add(fmt.Sprintf("%s:%s", eventType, idempotencyKey))
}

func (ic *IdempotencyChecker) add(compositeKey string) {
	evicted := ic.lru.Add(compositeKey)
	if ic.metrics != nil {
		ic.metrics.DedupLRUSize.Set(float64(ic.lru.Size()))
		if evicted {
			ic.metrics.DedupLRUEvictions.Inc()
		}
	}
}

func (ic *IdempotencyChecker) recordDuplicate(eventType, tier string) {
	if ic.metrics != nil {
		ic.metrics.IdempotencyDuplicates.WithLabelValues(eventType, tier).Inc()
	}
}

// --- LRU Implementation ---

// IdempotencyLRU is an LRU cache for idempotency keys.
// Not thread-safe; only accessed under the processor's lock.
type IdempotencyLRU struct {
	capacity int
	cache    map[string]*list.Element
	lruList  *list.List

	evictions int64
}

func NewIdempotencyLRU(capacity int) *IdempotencyLRU {
	if capacity <= 0 {
		capacity = 1
	}
	return &IdempotencyLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		lruList:  list.New(),
	}
}

// Contains checks if key exists (promotes to front)
func (lru *IdempotencyLRU) Contains(key string) bool {
	elem, exists := lru.cache[key]
	if exists {
		lru.lruList.MoveToFront(elem)
		return true
	}
	return false
}

// Add inserts a key (or promotes if exists). It reports whether an older key was evicted.
func (lru *IdempotencyLRU) Add(key string) bool {
	if elem, exists := lru.cache[key]; exists {
		lru.lruList.MoveToFront(elem)
		return false
	}

	lru.cache[key] = lru.lruList.PushFront(key)

	if lru.lruList.Len() > lru.capacity {
		lru.evictOldest()
		return true
	}
	return false
}

func (lru *IdempotencyLRU) evictOldest() {
	elem := lru.lruList.Back()
	if elem != nil {
		lru.lruList.Remove(elem)
		delete(lru.cache, elem.Value.(string))
		lru.evictions++
	}
}

// Size returns current number of entries
func (lru *IdempotencyLRU) Size() int {
	return lru.lruList.Len()
}

// Evictions returns total evictions
func (lru *IdempotencyLRU) Evictions() int64 {
	return lru.evictions
}
