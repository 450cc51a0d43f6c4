package query

import (
	"time"

	fpmath "MemeLedger/internal/math"
)

// TokenResponse represents a token for API queries.
type TokenResponse struct {
	Address        string          `json:"address"`
	Creator        string          `json:"creator"`
	BondingCurve   string          `json:"bonding_curve"`
	Pair           *string         `json:"pair,omitempty"`
	Name           string          `json:"name"`
	Symbol         string          `json:"symbol"`
	Decimals       uint8           `json:"decimals"`
	Lifecycle      string          `json:"lifecycle"`
	Bonded         bool            `json:"bonded"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	BondedAt       *time.Time      `json:"bonded_at,omitempty"`
	LatestPriceEth *fpmath.Decimal `json:"latest_price_eth,omitempty"`
}

// TradeResponse represents a recorded trade for API queries.
type TradeResponse struct {
	ID          string         `json:"id"`
	TxHash      string         `json:"tx_hash"`
	LogIndex    uint           `json:"log_index"`
	BlockNumber uint64         `json:"block_number"`
	Timestamp   time.Time      `json:"timestamp"`
	User        string         `json:"user"`
	Token       string         `json:"token"`
	Side        string         `json:"side"`
	Venue       string         `json:"venue"`
	EthQty      fpmath.Decimal `json:"eth_qty"`
	TokenQty    fpmath.Decimal `json:"token_qty"`
}

// PositionResponse represents a position for API queries.
type PositionResponse struct {
	ID                 string         `json:"id"`
	User               string         `json:"user"`
	Token              string         `json:"token"`
	BalanceRaw         string         `json:"balance_raw"`
	Balance            fpmath.Decimal `json:"balance"`
	AvgCostEthPerToken fpmath.Decimal `json:"avg_cost_eth_per_token"`
	TotalEthBought     fpmath.Decimal `json:"total_eth_bought"`
	TotalTokensBought  fpmath.Decimal `json:"total_tokens_bought"`
	TotalEthSold       fpmath.Decimal `json:"total_eth_sold"`
	TotalTokensSold    fpmath.Decimal `json:"total_tokens_sold"`
	RealizedPnLEth     fpmath.Decimal `json:"realized_pnl_eth"`

	// Derived at query time; absent until the token has traded.
	UnrealizedPnLEth *fpmath.Decimal `json:"unrealized_pnl_eth,omitempty"`
	LatestPriceEth   *fpmath.Decimal `json:"latest_price_eth,omitempty"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// HolderResponse represents a transfer-driven token balance.
type HolderResponse struct {
	ID        string         `json:"id"`
	Token     string         `json:"token"`
	Holder    string         `json:"holder"`
	Balance   fpmath.Decimal `json:"balance"`
	UpdatedAt time.Time      `json:"updated_at"`
}

type UserResponse struct {
	Address     string    `json:"address"`
	FirstSeenAt time.Time `json:"first_seen_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
