package core_test

import (
	"testing"

	"MemeLedger/internal/core"
	"MemeLedger/internal/event"

	"github.com/stretchr/testify/assert"
)

func TestOrderMonitor(t *testing.T) {
	om := core.NewOrderMonitor()

	assert.False(t, om.Observe(event.LogRef{BlockNumber: 10, LogIndex: 4}))
	assert.False(t, om.Observe(event.LogRef{BlockNumber: 10, LogIndex: 5}))
	assert.True(t, om.Observe(event.LogRef{BlockNumber: 10, LogIndex: 1}))
	assert.True(t, om.Observe(event.LogRef{BlockNumber: 9, LogIndex: 9}))
	assert.False(t, om.Observe(event.LogRef{BlockNumber: 11}))

	// admin injections carry no block
	assert.False(t, om.Observe(event.LogRef{}))

	assert.Equal(t, uint64(11), om.LastBlock())
	assert.Equal(t, int64(2), om.OutOfOrder())
}
