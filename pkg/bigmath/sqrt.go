// Package bigmath provides the arbitrary-precision arithmetic the rest of
// the engine is built on: integer square root, V3 sqrtPriceX96 conversions,
// and decimal-normalized V2 pricing. Conversion to floating point happens
// only at the edges, after decimal normalization, per the BigInt-ubiquity
// design note: reserve/liquidity/sqrtPriceX96 math stays in *big.Int end to
// end.
package bigmath

import "math/big"

// Sqrt returns the integer square root of n via Newton's method, satisfying
// Sqrt(n)^2 <= n < (Sqrt(n)+1)^2 for all n >= 0. Go's math/big has no
// built-in integer sqrt, so this is hand-rolled the way the spec requires
// ("software integer sqrt is required because many target languages lack
// one in stdlib").
func Sqrt(n *big.Int) *big.Int {
	if n.Sign() <= 0 {
		return big.NewInt(0)
	}
	if n.Cmp(big.NewInt(4)) < 0 {
		return big.NewInt(1)
	}

	// Seed with a bit-length based estimate: 2^(bitlen/2) converges fast.
	x := new(big.Int).Lsh(big.NewInt(1), uint(n.BitLen()/2+1))
	two := big.NewInt(2)

	for {
		// x1 = (x + n/x) / 2
		quotient := new(big.Int).Div(n, x)
		sum := new(big.Int).Add(x, quotient)
		x1 := new(big.Int).Div(sum, two)
		if x1.Cmp(x) >= 0 {
			break
		}
		x = x1
	}

	// Newton's method can overshoot by one on the way down; correct it.
	for {
		sq := new(big.Int).Mul(x, x)
		if sq.Cmp(n) <= 0 {
			break
		}
		x = new(big.Int).Sub(x, big.NewInt(1))
	}
	next := new(big.Int).Add(x, big.NewInt(1))
	nextSq := new(big.Int).Mul(next, next)
	for nextSq.Cmp(n) <= 0 {
		x = next
		next = new(big.Int).Add(x, big.NewInt(1))
		nextSq = new(big.Int).Mul(next, next)
	}
	return x
}
