package bigmath

import "math/big"

// VirtualReserves converts a V3 pool's (sqrtPriceX96, liquidity) slot0 pair
// into the virtual token0/token1 reserves it behaves as at the current
// price — reserve0 = L*Q96/sqrtP, reserve1 = L*sqrtP/Q96 — the same
// constant-liquidity relationship amount0Delta/amount1Delta use, evaluated
// at the pool's own current price instead of between two tick boundaries.
// Unlike a V2 pool's reserves this is not a literal balance (most of a V3
// pool's tokens sit in other positions' ranges), but it is the standard
// reserve-equivalent used to size a liquidity-USD estimate the same way
// spec.md §4.3's 2*reserve*price floor does for V2.
func VirtualReserves(sqrtPriceX96, liquidity *big.Int) (reserve0, reserve1 *big.Int) {
	if sqrtPriceX96 == nil || liquidity == nil || sqrtPriceX96.Sign() <= 0 || liquidity.Sign() <= 0 {
		return big.NewInt(0), big.NewInt(0)
	}

	num0 := new(big.Int).Mul(liquidity, q96)
	reserve0 = new(big.Int).Div(num0, sqrtPriceX96)

	num1 := new(big.Int).Mul(liquidity, sqrtPriceX96)
	reserve1 = new(big.Int).Div(num1, q96)

	return reserve0, reserve1
}
