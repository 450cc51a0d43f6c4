package core

import "MemeLedger/internal/event"

// OrderMonitor watches the (block, logIndex) order of applied events.
// Handlers trust upstream ordering; the monitor only reports regressions.
// Not thread-safe; only accessed under the processor's lock.
type OrderMonitor struct {
	last       event.LogRef
	seen       bool
	outOfOrder int64
}

func NewOrderMonitor() *OrderMonitor {
	return &OrderMonitor{}
}

// Observe records ref and reports whether it arrived behind the last one seen.
// Events without a block number (admin injections) are ignored.
func (om *OrderMonitor) Observe(ref event.LogRef) (outOfOrder bool) {
	if ref.BlockNumber == 0 {
		return false
	}
	if om.seen && ref.Before(om.last) {
		om.outOfOrder++
		return true
	}
	om.last = ref
	om.seen = true
	return false
}

// LastBlock returns the highest block observed.
func (om *OrderMonitor) LastBlock() uint64 {
	return om.last.BlockNumber
}

func (om *OrderMonitor) OutOfOrder() int64 {
	return om.outOfOrder
}
