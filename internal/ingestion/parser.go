package ingestion

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"MemeLedger/internal/event"
	fpmath "MemeLedger/internal/math"

	"github.com/ethereum/go-ethereum/common"
)

// ParseRawEvent converts a RawEvent (JSON bytes + event type string) into a typed event.Event.
// Every parse failure wraps event.ErrInvalidEvent.
func ParseRawEvent(raw RawEvent, eventType event.EventType) (event.Event, error) {
	var (
		evt event.Event
		err error
	)
	switch eventType {
	case event.EventTypeNewToken:
		evt, err = parseNewToken(raw.Data)
	case event.EventTypeBonded:
		evt, err = parseBonded(raw.Data)
	case event.EventTypeTrade:
		evt, err = parseTrade(raw.Data)
	case event.EventTypePairCreated:
		evt, err = parsePairCreated(raw.Data)
	case event.EventTypeTransfer:
		evt, err = parseTransfer(raw.Data)
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", event.ErrInvalidEvent, raw.Subject)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", event.ErrInvalidEvent, eventType, err)
	}
	return evt, nil
}

// --- JSON wire formats ---
// These structs represent the JSON payloads received from NATS and the admin
// endpoint. Field names use snake_case to match upstream producers; amounts
// are decimal strings of raw base units.

type logRefJSON struct {
	BlockNumber uint64 `json:"block_number"`
	TxHash      string `json:"tx_hash"`
	LogIndex    uint   `json:"log_index"`
	Timestamp   int64  `json:"timestamp"` // block time, unix seconds
}

func (j logRefJSON) ref() (event.LogRef, error) {
	h, err := parseHash(j.TxHash)
	if err != nil {
		return event.LogRef{}, fmt.Errorf("tx_hash: %w", err)
	}
	return event.LogRef{
		BlockNumber: j.BlockNumber,
		TxHash:      h,
		LogIndex:    j.LogIndex,
		Timestamp:   time.Unix(j.Timestamp, 0).UTC(),
	}, nil
}

type newTokenJSON struct {
	logRefJSON
	Token        string `json:"token"`
	Creator      string `json:"creator"`
	BondingCurve string `json:"bonding_curve"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	Decimals     uint8  `json:"decimals"`
}

func parseNewToken(data []byte) (*event.NewToken, error) {
	var j newTokenJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	ref, err := j.ref()
	if err != nil {
		return nil, err
	}
	var a addrs
	e := &event.NewToken{
		LogRef:       ref,
		Token:        a.parse("token", j.Token),
		Creator:      a.parseOptional("creator", j.Creator),
		BondingCurve: a.parseOptional("bonding_curve", j.BondingCurve),
		Name:         j.Name,
		Symbol:       j.Symbol,
		Decimals:     j.Decimals,
	}
	if a.err != nil {
		return nil, a.err
	}
	return e, e.Validate()
}

type bondedJSON struct {
	logRefJSON
	Token string `json:"token"`
}

func parseBonded(data []byte) (*event.Bonded, error) {
	var j bondedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	ref, err := j.ref()
	if err != nil {
		return nil, err
	}
	var a addrs
	e := &event.Bonded{LogRef: ref, Token: a.parse("token", j.Token)}
	return e, a.err
}

type tradeJSON struct {
	logRefJSON
	Venue       string `json:"venue"` // "CURVE" or "DEX"
	Side        string `json:"side"`  // "BUY" or "SELL"
	User        string `json:"user"`
	Token       string `json:"token"`
	EthAmount   string `json:"eth_amount"`
	TokenAmount string `json:"token_amount"`
}

func parseTrade(data []byte) (*event.Trade, error) {
	var j tradeJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	ref, err := j.ref()
	if err != nil {
		return nil, err
	}
	venue, err := event.ParseVenue(strings.ToUpper(j.Venue))
	if err != nil {
		return nil, err
	}
	side, err := event.ParseSide(strings.ToUpper(j.Side))
	if err != nil {
		return nil, err
	}
	eth, err := parseAmount("eth_amount", j.EthAmount)
	if err != nil {
		return nil, err
	}
	tokens, err := parseAmount("token_amount", j.TokenAmount)
	if err != nil {
		return nil, err
	}

	var a addrs
	e := &event.Trade{
		LogRef:   ref,
		Venue:    venue,
		Side:     side,
		User:     a.parse("user", j.User),
		Token:    a.parse("token", j.Token),
		EthRaw:   eth,
		TokenRaw: tokens,
	}
	if a.err != nil {
		return nil, a.err
	}
	return e, e.Validate()
}

type pairCreatedJSON struct {
	logRefJSON
	Token0 string `json:"token0"`
	Token1 string `json:"token1"`
	Pair   string `json:"pair"`
}

func parsePairCreated(data []byte) (*event.PairCreated, error) {
	var j pairCreatedJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	ref, err := j.ref()
	if err != nil {
		return nil, err
	}
	var a addrs
	e := &event.PairCreated{
		LogRef: ref,
		Token0: a.parse("token0", j.Token0),
		Token1: a.parse("token1", j.Token1),
		Pair:   a.parse("pair", j.Pair),
	}
	return e, a.err
}

type transferJSON struct {
	logRefJSON
	Token string `json:"token"`
	From  string `json:"from"`
	To    string `json:"to"`
	Value string `json:"value"`
}

func parseTransfer(data []byte) (*event.Transfer, error) {
	var j transferJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, err
	}
	ref, err := j.ref()
	if err != nil {
		return nil, err
	}
	value, err := parseAmount("value", j.Value)
	if err != nil {
		return nil, err
	}
	var a addrs
	e := &event.Transfer{
		LogRef:   ref,
		Token:    a.parse("token", j.Token),
		From:     a.parse("from", j.From),
		To:       a.parse("to", j.To),
		ValueRaw: value,
	}
	if a.err != nil {
		return nil, a.err
	}
	return e, e.Validate()
}

// addrs collects the first address parse error.
type addrs struct {
	err error
}

func (a *addrs) parse(field, s string) common.Address {
	if a.err != nil {
		return common.Address{}
	}
	if !common.IsHexAddress(s) {
		a.err = fmt.Errorf("%s: invalid address %q", field, s)
		return common.Address{}
	}
	return common.HexToAddress(s)
}

func (a *addrs) parseOptional(field, s string) common.Address {
	if s == "" {
		return common.Address{}
	}
	return a.parse(field, s)
}

func parseHash(s string) (common.Hash, error) {
	hex := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(hex) != 2*common.HashLength {
		return common.Hash{}, fmt.Errorf("invalid hash %q", s)
	}
	return common.HexToHash(s), nil
}

func parseAmount(field, s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%s: missing", field)
	}
	v, err := fpmath.ParseRaw(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	return v, nil
}
