package bigmath

import "math/big"

// MinTick and MaxTick bound the valid V3 tick range.
const (
	MinTick = -887272
	MaxTick = 887272
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// ratioConstants are the Q128.128 fixed-point magic constants from
// Uniswap V3's TickMath.getSqrtRatioAtTick, one per bit of |tick|. Each
// constant encodes sqrt(1.0001)^(-2^i) so the ratio for any tick can be
// built by multiplying together the constants for the set bits of |tick|.
var ratioConstants = []string{
	"0xfffcb933bd6fad37aa2d162d1a594001",
	"0xfff97272373d413259a46990580e213a",
	"0xfff2e50f5f656932ef12357cf3c7fdcc",
	"0xffe5caca7e10e4e61c3624eaa0941cd0",
	"0xffcb9843d60f6159c9db58835c926644",
	"0xff973b41fa98c081472e6896dfb254c0",
	"0xff2ea16466c96a3843ec78b326b52861",
	"0xfe5dee046a99a2a811c461f1969c3053",
	"0xfcbe86c7900a88aedcffc83b479aa3a4",
	"0xf987a7253ac413176f2b074cf7815e54",
	"0xf3392b0822b70005940c7a398e4b70f3",
	"0xe7159475a2c29b7443b29c7fa6e889d9",
	"0xd097f3bdfd2022b8845ad8f792aa5825",
	"0xa9f746462d870fdf8a65dc1f90e061e5",
	"0x70d869a156d2a1b890bb3df62baf32f7",
	"0x31be135f97d08fd981231505542fcfa6",
	"0x9aa508b5b7a84e1c677de54f3e99bc9",
	"0x5d6af8dedb81196699c329225ee604",
	"0x2216e584f5fa1ea926041bedfe98",
	"0x48a170391f7dc42444e8fa2",
}

var ratioBig [20]*big.Int

func init() {
	for i, s := range ratioConstants {
		v, ok := new(big.Int).SetString(s[2:], 16)
		if !ok {
			panic("bigmath: bad ratio constant " + s)
		}
		ratioBig[i] = v
	}
}

var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// TickToSqrtPriceX96 computes sqrtPriceX96 = floor(sqrt(1.0001^tick) * 2^96)
// using the exact bit-decomposition algorithm Uniswap V3 pools use
// on-chain, reproduced here in *big.Int since no BigInt-safe fixed-point
// exponentiation exists in the standard library or anywhere in the
// retrieved example pack.
func TickToSqrtPriceX96(tick int) *big.Int {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	var ratio *big.Int
	if absTick&0x1 != 0 {
		ratio = new(big.Int).Set(ratioBig[0])
	} else {
		ratio = new(big.Int).Lsh(big.NewInt(1), 128)
	}

	for i := 1; i < len(ratioBig); i++ {
		if absTick&(1<<uint(i)) != 0 {
			ratio.Mul(ratio, ratioBig[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio = new(big.Int).Div(maxUint256, ratio)
	}

	// Downshift from Q128.128 to Q64.96, rounding up on a non-zero remainder.
	shifted := new(big.Int).Rsh(ratio, 32)
	remainder := new(big.Int).And(ratio, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 32), big.NewInt(1)))
	if remainder.Sign() != 0 {
		shifted.Add(shifted, big.NewInt(1))
	}
	return shifted
}

// SqrtPriceToPrice converts a sqrtPriceX96 into the raw (non-decimal-
// adjusted) price = (sqrtPriceX96 / 2^96)^2 as a big.Float, using BigInt
// precision through the squaring step. Returns 0 for zero input per the
// spec's explicit edge case.
func SqrtPriceToPrice(sqrtPriceX96 *big.Int) *big.Float {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return big.NewFloat(0)
	}
	squared := new(big.Int).Mul(sqrtPriceX96, sqrtPriceX96)
	q192 := new(big.Int).Mul(q96, q96)

	num := new(big.Float).SetPrec(256).SetInt(squared)
	den := new(big.Float).SetPrec(256).SetInt(q192)
	return new(big.Float).SetPrec(256).Quo(num, den)
}

// SqrtPriceToDecimalPrice converts a sqrtPriceX96 into the decimal-
// normalized price of token1 per token0, accounting for (decimals0,
// decimals1), and returns it as a float64 at the display boundary only.
func SqrtPriceToDecimalPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) float64 {
	raw := SqrtPriceToPrice(sqrtPriceX96)
	if raw.Sign() == 0 {
		return 0
	}
	scale := new(big.Float).SetPrec(256).SetInt(pow10(decimals0))
	inv := new(big.Float).SetPrec(256).SetInt(pow10(decimals1))
	adjusted := new(big.Float).SetPrec(256).Quo(new(big.Float).Mul(raw, scale), inv)
	f, _ := adjusted.Float64()
	return f
}

// PriceToSqrtPriceX96 is the inverse of SqrtPriceToDecimalPrice's raw step:
// given a decimal-normalized price (token1 per token0) and the pair's
// decimals, return the corresponding sqrtPriceX96, via BigInt sqrt. Used by
// property tests that round-trip price -> sqrtPriceX96 -> price.
func PriceToSqrtPriceX96(price float64, decimals0, decimals1 uint8) *big.Int {
	if price <= 0 {
		return big.NewInt(0)
	}
	bf := new(big.Float).SetPrec(256).SetFloat64(price)
	scale := new(big.Float).SetPrec(256).SetInt(pow10(decimals1))
	inv := new(big.Float).SetPrec(256).SetInt(pow10(decimals0))
	rawPrice := new(big.Float).SetPrec(256).Quo(new(big.Float).Mul(bf, scale), inv)

	// rawPrice * 2^192, then integer sqrt, matching sqrtPriceX96^2/2^192 = rawPrice.
	num := new(big.Float).SetPrec(256).Mul(rawPrice, new(big.Float).SetPrec(256).SetInt(new(big.Int).Mul(q96, q96)))
	numInt, _ := num.Int(nil)
	return Sqrt(numInt)
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
