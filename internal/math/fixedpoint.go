package math

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math/big"

	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits every Decimal carries.
const Scale int32 = 18

// MaxDecimals bounds the per-token decimals accepted by RawToDecimal.
const MaxDecimals uint8 = 36

var (
	ErrDivisionByZero  = errors.New("fixedpoint: division by zero")
	ErrNegativeRaw     = errors.New("fixedpoint: negative raw amount")
	ErrRawOverflow     = errors.New("fixedpoint: raw amount exceeds uint256")
	ErrNilRaw          = errors.New("fixedpoint: nil raw amount")
	ErrInvalidDecimals = errors.New("fixedpoint: invalid decimals")
)

// Decimal is an exact fixed-point quantity with Scale fractional digits.
// Results of Mul and Div are truncated toward zero at Scale.
// The zero value is 0.
type Decimal struct {
	d decimal.Decimal
}

func Zero() Decimal {
	return Decimal{}
}

func NewFromInt(v int64) Decimal {
	return Decimal{d: decimal.NewFromInt(v)}
}

// NewFromString parses a base-10 decimal string. Digits past Scale are truncated.
func NewFromString(s string) (Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Decimal{}, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return Decimal{d: d.Truncate(Scale)}, nil
}

// MustFromString is NewFromString for constants and tests.
func MustFromString(s string) Decimal {
	d, err := NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (x Decimal) Add(y Decimal) Decimal {
	return Decimal{d: x.d.Add(y.d)}
}

func (x Decimal) Sub(y Decimal) Decimal {
	return Decimal{d: x.d.Sub(y.d)}
}

func (x Decimal) Mul(y Decimal) Decimal {
	return Decimal{d: x.d.Mul(y.d).Truncate(Scale)}
}

// Div returns x / y truncated toward zero at Scale.
func (x Decimal) Div(y Decimal) (Decimal, error) {
	if y.d.IsZero() {
		return Decimal{}, ErrDivisionByZero
	}
	q, _ := x.d.QuoRem(y.d, Scale)
	return Decimal{d: q}, nil
}

func (x Decimal) Neg() Decimal {
	return Decimal{d: x.d.Neg()}
}

func (x Decimal) Cmp(y Decimal) int {
	return x.d.Cmp(y.d)
}

func (x Decimal) Equal(y Decimal) bool {
	return x.d.Equal(y.d)
}

func (x Decimal) Sign() int {
	return x.d.Sign()
}

func (x Decimal) IsZero() bool {
	return x.d.IsZero()
}

func (x Decimal) IsPositive() bool {
	return x.d.IsPositive()
}

func (x Decimal) IsNegative() bool {
	return x.d.IsNegative()
}

// Max returns the larger of x and y.
func Max(x, y Decimal) Decimal {
	if x.Cmp(y) >= 0 {
		return x
	}
	return y
}

// String renders the value without trailing zeros, e.g. "0.2".
func (x Decimal) String() string {
	return x.d.String()
}

// FixedString renders the value with all Scale digits.
func (x Decimal) FixedString() string {
	return x.d.StringFixed(Scale)
}

// Raw converts back to integer units with the given decimals.
// RawToDecimal(x.Raw(n), n) == x whenever x was produced from n-decimal units.
func (x Decimal) Raw(decimals uint8) *big.Int {
	return x.d.Shift(int32(decimals)).BigInt()
}

func (x Decimal) MarshalJSON() ([]byte, error) {
	return x.d.MarshalJSON()
}

func (x *Decimal) UnmarshalJSON(b []byte) error {
	if err := x.d.UnmarshalJSON(b); err != nil {
		return err
	}
	x.d = x.d.Truncate(Scale)
	return nil
}

// Value implements driver.Valuer for NUMERIC columns.
func (x Decimal) Value() (driver.Value, error) {
	return x.d.Value()
}

// Scan implements sql.Scanner for NUMERIC columns.
func (x *Decimal) Scan(src interface{}) error {
	if err := x.d.Scan(src); err != nil {
		return err
	}
	x.d = x.d.Truncate(Scale)
	return nil
}

// RawToDecimal divides an on-chain integer amount by 10^decimals exactly.
func RawToDecimal(raw *big.Int, decimals uint8) (Decimal, error) {
	if err := ValidateRaw(raw); err != nil {
		return Decimal{}, err
	}
	if decimals > MaxDecimals {
		return Decimal{}, fmt.Errorf("%w: %d", ErrInvalidDecimals, decimals)
	}
	return Decimal{d: decimal.NewFromBigInt(raw, -int32(decimals)).Truncate(Scale)}, nil
}

// ValidateRaw rejects amounts that cannot come from a uint256 event field.
func ValidateRaw(raw *big.Int) error {
	switch {
	case raw == nil:
		return ErrNilRaw
	case raw.Sign() < 0:
		return fmt.Errorf("%w: %s", ErrNegativeRaw, raw)
	case raw.Cmp(gethmath.MaxBig256) > 0:
		return ErrRawOverflow
	}
	return nil
}

// ParseRaw accepts decimal or 0x-prefixed hex uint256 strings.
func ParseRaw(s string) (*big.Int, error) {
	v, ok := gethmath.ParseBig256(s)
	if !ok {
		return nil, fmt.Errorf("parse raw amount %q: invalid uint256", s)
	}
	if err := ValidateRaw(v); err != nil {
		return nil, err
	}
	return v, nil
}

// AddRaw returns a + b as a new big.Int.
func AddRaw(a, b *big.Int) *big.Int {
	return new(big.Int).Add(a, b)
}

// SubRawFloor returns max(0, a - b). clamped reports whether the floor was hit.
func SubRawFloor(a, b *big.Int) (result *big.Int, clamped bool) {
	result = new(big.Int).Sub(a, b)
	if result.Sign() < 0 {
		return new(big.Int), true
	}
	return result, false
}
