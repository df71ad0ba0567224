package bigmath

import "math/big"

// V2ForwardPrice computes the decimal-normalized forward price of pair
// (A,B) — token_b per token_a — from raw reserves and decimals, per
// spec.md §4.3: (reserveB * 10^dA) / (reserveA * 10^dB).
func V2ForwardPrice(reserveA, reserveB *big.Int, decimalsA, decimalsB uint8) float64 {
	if reserveA == nil || reserveB == nil || reserveA.Sign() == 0 || reserveB.Sign() == 0 {
		return 0
	}
	num := new(big.Float).SetPrec(256).SetInt(new(big.Int).Mul(reserveB, pow10(decimalsA)))
	den := new(big.Float).SetPrec(256).SetInt(new(big.Int).Mul(reserveA, pow10(decimalsB)))
	q := new(big.Float).SetPrec(256).Quo(num, den)
	f, _ := q.Float64()
	return f
}

// Normalize converts a raw integer amount to its decimal float value
// (amount / 10^decimals), used to express reserves in human-readable units
// for the liquidity-USD floor estimate.
func Normalize(amount *big.Int, decimals uint8) float64 {
	if amount == nil {
		return 0
	}
	f := new(big.Float).SetPrec(256).SetInt(amount)
	f.Quo(f, new(big.Float).SetPrec(256).SetInt(pow10(decimals)))
	out, _ := f.Float64()
	return out
}

// Denormalize is Normalize's inverse: a human-readable decimal amount back
// to its raw integer form (amount * 10^decimals), used to turn a USD-sized
// reference trade amount into the raw units a swap simulation operates on.
func Denormalize(amount float64, decimals uint8) *big.Int {
	if amount <= 0 {
		return big.NewInt(0)
	}
	f := new(big.Float).SetPrec(256).SetFloat64(amount)
	f.Mul(f, new(big.Float).SetPrec(256).SetInt(pow10(decimals)))
	out, _ := f.Int(nil)
	return out
}

// V2ReversePrice returns 1/forward_price, NOT a raw-reserve ratio computed
// independently — spec.md §4.3 and §9 both call out the raw-ratio
// computation as a bug class to avoid, since it silently diverges from
// the true reciprocal once either side's decimals differ.
func V2ReversePrice(forwardPrice float64) float64 {
	if forwardPrice <= 0 {
		return 0
	}
	return 1 / forwardPrice
}

// V2SwapOutput computes the output amount of a constant-product swap with
// fee, per spec.md §4.4's optimal-trade-size search:
// (amount_in * (1-fee) * reserveOut) / (reserveIn + amount_in * (1-fee)).
// Returns zero if either reserve is zero (MathDomain per spec.md §7 — never
// propagate Infinity/NaN).
func V2SwapOutput(amountIn, reserveIn, reserveOut *big.Int, feeFraction float64) *big.Int {
	if reserveIn == nil || reserveOut == nil || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return big.NewInt(0)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return big.NewInt(0)
	}

	// feeFraction as a fraction of 1e6 to stay in integer math until the
	// final division, matching the multicall/fee-tier convention elsewhere.
	const scale = 1_000_000
	feeScaled := big.NewInt(int64(feeFraction * scale))
	oneMinusFee := new(big.Int).Sub(big.NewInt(scale), feeScaled)

	amountInWithFee := new(big.Int).Mul(amountIn, oneMinusFee)
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, big.NewInt(scale)), amountInWithFee)
	if denominator.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(numerator, denominator)
}
