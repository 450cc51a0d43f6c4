package event

import (
	"fmt"
	"math/big"

	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// ZeroAddress is the mint source and burn sink of ERC20 transfers.
var ZeroAddress = common.Address{}

// Transfer is an ERC20 Transfer log. Token is the emitting contract.
type Transfer struct {
	LogRef
	Token    common.Address
	From     common.Address
	To       common.Address
	ValueRaw *big.Int
}

func (t *Transfer) IdempotencyKey() string {
	return t.LogID()
}

func (t *Transfer) EventType() EventType {
	return EventTypeTransfer
}

func (t *Transfer) Validate() error {
	if err := fpmath.ValidateRaw(t.ValueRaw); err != nil {
		return fmt.Errorf("%w: transfer value: %v", ErrInvalidEvent, err)
	}
	return nil
}

// IsMint reports a transfer out of the zero address.
func (t *Transfer) IsMint() bool {
	return t.From == ZeroAddress
}

// IsBurn reports a transfer into the zero address.
func (t *Transfer) IsBurn() bool {
	return t.To == ZeroAddress
}
