package event

import (
	"errors"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType discriminator for event payloads
type EventType int32

const (
	EventTypeUnknown EventType = iota
	EventTypeNewToken
	EventTypeBonded
	EventTypeTrade
	EventTypePairCreated
	EventTypeTransfer
)

// ErrInvalidEvent is returned for payloads that fail field validation.
var ErrInvalidEvent = errors.New("invalid event")

// Event is the interface all event payloads must implement
type Event interface {
	// IdempotencyKey returns the stable dedup key
	IdempotencyKey() string

	// EventType returns the discriminator
	EventType() EventType

	// Ref returns the on-chain position of the log that produced the event
	Ref() LogRef
}

// LogRef locates an event on chain. Timestamp is the block timestamp and is
// the only clock any handler reads.
type LogRef struct {
	BlockNumber uint64
	TxHash      common.Hash
	LogIndex    uint
	Timestamp   time.Time
}

func (r LogRef) Ref() LogRef {
	return r
}

// LogID is "txHash-logIndex", the identity of a single on-chain log.
func (r LogRef) LogID() string {
	return LogID(r.TxHash, r.LogIndex)
}

// Before orders refs by (block, logIndex).
func (r LogRef) Before(o LogRef) bool {
	if r.BlockNumber != o.BlockNumber {
		return r.BlockNumber < o.BlockNumber
	}
	return r.LogIndex < o.LogIndex
}

func LogID(txHash common.Hash, logIndex uint) string {
	return txHash.Hex() + "-" + strconv.FormatUint(uint64(logIndex), 10)
}

// AddressID renders an address the way entity ids embed it (lower-case hex).
func AddressID(a common.Address) string {
	return "0x" + common.Bytes2Hex(a.Bytes())
}

func (et EventType) String() string {
	switch et {
	case EventTypeNewToken:
		return "NewToken"
	case EventTypeBonded:
		return "Bonded"
	case EventTypeTrade:
		return "Trade"
	case EventTypePairCreated:
		return "PairCreated"
	case EventTypeTransfer:
		return "Transfer"
	default:
		return "Unknown"
	}
}

// ParseEventType is the inverse of String.
func ParseEventType(s string) EventType {
	switch s {
	case "NewToken":
		return EventTypeNewToken
	case "Bonded":
		return EventTypeBonded
	case "Trade":
		return EventTypeTrade
	case "PairCreated":
		return EventTypePairCreated
	case "Transfer":
		return EventTypeTransfer
	default:
		return EventTypeUnknown
	}
}
