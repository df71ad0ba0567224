package bigmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestTickToSqrtPriceX96 pins the exact on-chain fixture value the teacher
// repo's (missing) implementation was asserted against.
func TestTickToSqrtPriceX96(t *testing.T) {
	sqrtPrice := TickToSqrtPriceX96(-249428)

	expected, _ := new(big.Int).SetString("304011615425126403287043", 10)
	assert.Equal(t, expected, sqrtPrice)
}

func TestTickToSqrtPriceX96_ZeroTick(t *testing.T) {
	// At tick 0, price == 1, so sqrtPriceX96 should equal 2^96 exactly.
	sqrtPrice := TickToSqrtPriceX96(0)
	assert.Equal(t, q96, sqrtPrice)
}

func TestSqrtPriceToPrice_ZeroInput(t *testing.T) {
	assert.Equal(t, big.NewFloat(0), SqrtPriceToPrice(nil))
	assert.Equal(t, big.NewFloat(0), SqrtPriceToPrice(big.NewInt(0)))
}

// TestSqrt_Invariant checks universal invariant 3 from spec §8:
// sqrt(n)^2 <= n < (sqrt(n)+1)^2 for all n >= 0.
func TestSqrt_Invariant(t *testing.T) {
	cases := []string{
		"0", "1", "2", "3", "4", "1000000",
		"304011615425126403287043",
		"79228162514264337593543950336", // 2^96
	}
	for _, c := range cases {
		n, _ := new(big.Int).SetString(c, 10)
		root := Sqrt(n)
		rootSq := new(big.Int).Mul(root, root)
		assert.True(t, rootSq.Cmp(n) <= 0, "sqrt(%s)^2 should be <= n", c)

		next := new(big.Int).Add(root, big.NewInt(1))
		nextSq := new(big.Int).Mul(next, next)
		assert.True(t, nextSq.Cmp(n) > 0, "(sqrt(%s)+1)^2 should be > n", c)
	}
}

// TestPriceRoundTrip checks universal invariant 2 from spec §8:
// sqrtPriceX96ToPrice(priceToSqrtPriceX96(p, d0, d1), d0, d1) == p +/- eps.
func TestPriceRoundTrip(t *testing.T) {
	cases := []struct {
		price          float64
		decimals0, decimals1 uint8
	}{
		{price: 3000, decimals0: 18, decimals1: 6},
		{price: 0.00033, decimals0: 6, decimals1: 18},
		{price: 1.0005, decimals0: 18, decimals1: 18},
	}
	for _, c := range cases {
		sp := PriceToSqrtPriceX96(c.price, c.decimals0, c.decimals1)
		got := SqrtPriceToDecimalPrice(sp, c.decimals0, c.decimals1)
		assert.InEpsilon(t, c.price, got, 1e-4)
	}
}

func TestV2ForwardReverseInvariant(t *testing.T) {
	reserveA := big.NewInt(1_000_000_000000000000) // 1e6 * 1e18
	reserveB := big.NewInt(3_000_000_000000)        // 3e6 * 1e6

	forward := V2ForwardPrice(reserveA, reserveB, 18, 6)
	reverse := V2ReversePrice(forward)

	assert.InEpsilon(t, 1.0, forward*reverse, 1e-9)
}

func TestV2SwapOutput_ZeroReserves(t *testing.T) {
	out := V2SwapOutput(big.NewInt(100), big.NewInt(0), big.NewInt(100), 0.003)
	assert.Equal(t, big.NewInt(0), out)
}
