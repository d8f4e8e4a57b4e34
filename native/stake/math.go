package stake

import (
	"math/big"

	"github.com/holiman/uint256"
)

// Stake amounts and rewards are unsigned 128-bit magnitudes. The helpers below
// perform the arithmetic in 256-bit space and fail hard when a result leaves
// the 128-bit domain: overflow here is a configuration or programming defect,
// never a value to wrap or truncate.

var max128 = func() *uint256.Int {
	one := uint256.NewInt(1)
	max := new(uint256.Int).Lsh(one, 128)
	return max.Sub(max, one)
}()

func to128(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return uint256.NewInt(0), nil
	}
	if v.Sign() < 0 {
		return nil, ErrArithmeticOverflow
	}
	u, overflow := uint256.FromBig(v)
	if overflow || u.Gt(max128) {
		return nil, ErrArithmeticOverflow
	}
	return u, nil
}

func from128(u *uint256.Int) (*big.Int, error) {
	if u.Gt(max128) {
		return nil, ErrArithmeticOverflow
	}
	return u.ToBig(), nil
}

func mul128(a, b *big.Int) (*big.Int, error) {
	ua, err := to128(a)
	if err != nil {
		return nil, err
	}
	ub, err := to128(b)
	if err != nil {
		return nil, err
	}
	product, overflow := new(uint256.Int).MulOverflow(ua, ub)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return from128(product)
}

func add128(a, b *big.Int) (*big.Int, error) {
	ua, err := to128(a)
	if err != nil {
		return nil, err
	}
	ub, err := to128(b)
	if err != nil {
		return nil, err
	}
	sum, overflow := new(uint256.Int).AddOverflow(ua, ub)
	if overflow {
		return nil, ErrArithmeticOverflow
	}
	return from128(sum)
}

func sub128(a, b *big.Int) (*big.Int, error) {
	ua, err := to128(a)
	if err != nil {
		return nil, err
	}
	ub, err := to128(b)
	if err != nil {
		return nil, err
	}
	if ua.Lt(ub) {
		return nil, ErrArithmeticOverflow
	}
	return from128(new(uint256.Int).Sub(ua, ub))
}

// percentOf computes floor(amount * percent / 100) with checked intermediates.
func percentOf(amount *big.Int, percent uint64) (*big.Int, error) {
	scaled, err := mul128(amount, new(big.Int).SetUint64(percent))
	if err != nil {
		return nil, err
	}
	return new(big.Int).Quo(scaled, big.NewInt(100)), nil
}

func minBig(a, b *big.Int) *big.Int {
	if a.Cmp(b) <= 0 {
		return new(big.Int).Set(a)
	}
	return new(big.Int).Set(b)
}
