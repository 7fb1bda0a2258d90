package types

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Price is a rational num/den, compared by cross-multiplication rather than
// truncated to floating point. num and den are checked 256-bit integers so
// that n_could_buy × old.amount_desired style products (§4.4.1) never wrap
// silently during matching.
type Price struct {
	Num *uint256.Int
	Den *uint256.Int
}

// NewPrice builds the price amountDesired/amountForSale. Constructing a
// price from a non-positive amountForSale is a programming error — callers
// must validate amounts before reaching here.
func NewPrice(amountDesired, amountForSale int64) (Price, error) {
	if amountForSale <= 0 {
		return Price{}, fmt.Errorf("price: amount_for_sale must be positive, got %d", amountForSale)
	}
	if amountDesired < 0 {
		return Price{}, fmt.Errorf("price: amount_desired cannot be negative, got %d", amountDesired)
	}
	return Price{
		Num: uint256.NewInt(uint64(amountDesired)),
		Den: uint256.NewInt(uint64(amountForSale)),
	}, nil
}

// Inverse returns the reciprocal price (for_sale/desired).
func (p Price) Inverse() Price {
	return Price{Num: p.Den.Clone(), Den: p.Num.Clone()}
}

// IsPositive reports whether the price is strictly greater than zero.
func (p Price) IsPositive() bool {
	return p.Num.Sign() > 0
}

// Cmp compares p and o by cross-multiplication: p.Num*o.Den vs o.Num*p.Den.
// Returns -1, 0, or 1. Uses 512-bit-safe intermediate products (two 256-bit
// operands multiply into at most 512 bits); since both operands here are
// built from bounded amounts (< 2^63) the 256-bit product space used by
// uint256.MulOverflow is ample headroom, checked rather than assumed.
func (p Price) Cmp(o Price) int {
	left, overflow1 := new(uint256.Int).MulOverflow(p.Num, o.Den)
	right, overflow2 := new(uint256.Int).MulOverflow(o.Num, p.Den)
	if overflow1 || overflow2 {
		// Amounts are bounded well under 2^63 so cross products fit in
		// 256 bits; overflow here indicates corrupted input upstream.
		panic("types: price comparison overflowed 256-bit intermediate")
	}
	return left.Cmp(right)
}

func (p Price) Equal(o Price) bool { return p.Cmp(o) == 0 }
func (p Price) Less(o Price) bool  { return p.Cmp(o) < 0 }

func (p Price) String() string {
	return fmt.Sprintf("%s/%s", p.Num.String(), p.Den.String())
}

// MulDivFloor computes floor(a*b/c) in 256-bit intermediate space, the
// rounding used for n_could_buy.
func MulDivFloor(a, b, c int64) (int64, error) {
	if c <= 0 {
		return 0, fmt.Errorf("types: MulDivFloor divisor must be positive")
	}
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
	if overflow {
		return 0, fmt.Errorf("types: MulDivFloor overflow")
	}
	q := new(uint256.Int).Div(prod, uint256.NewInt(uint64(c)))
	if !q.IsUint64() || q.Uint64() > uint64(MaxAmount) {
		return 0, fmt.Errorf("types: MulDivFloor result exceeds max amount")
	}
	return int64(q.Uint64()), nil
}

// MulDivCeil computes ceil(a*b/c) in 256-bit intermediate space, the
// rounding used for n_would_pay — always rounds in the maker's favor.
func MulDivCeil(a, b, c int64) (int64, error) {
	if c <= 0 {
		return 0, fmt.Errorf("types: MulDivCeil divisor must be positive")
	}
	prod, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(uint64(a)), uint256.NewInt(uint64(b)))
	if overflow {
		return 0, fmt.Errorf("types: MulDivCeil overflow")
	}
	divisor := uint256.NewInt(uint64(c))
	q, r := new(uint256.Int).DivMod(prod, divisor, new(uint256.Int))
	if !r.IsZero() {
		q.AddUint64(q, 1)
	}
	if !q.IsUint64() || q.Uint64() > uint64(MaxAmount) {
		return 0, fmt.Errorf("types: MulDivCeil result exceeds max amount")
	}
	return int64(q.Uint64()), nil
}
