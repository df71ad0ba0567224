package bigmath

import "github.com/shopspring/decimal"

// USD wraps a USD-denominated value as a decimal.Decimal for the display
// boundary — every profit/liquidity/spread figure stays in decimal.Decimal
// until it crosses into the float64 wire contract of the Opportunity type,
// avoiding the float-accumulation error that compounds across the
// cross-dex/triangular/cross-chain profit calculators.
type USD struct {
	decimal.Decimal
}

// NewUSD wraps a float64 USD amount.
func NewUSD(v float64) USD {
	return USD{decimal.NewFromFloat(v)}
}

// Sub subtracts cost from a USD value, e.g. gross profit minus flash-loan
// fee minus gas cost minus slippage, without accumulating float error
// across the three-term subtraction a profit calculation performs.
func (u USD) Sub(cost USD) USD {
	return USD{u.Decimal.Sub(cost.Decimal)}
}

// Add sums two USD values.
func (u USD) Add(other USD) USD {
	return USD{u.Decimal.Add(other.Decimal)}
}

// Mul scales a USD value by a dimensionless factor (e.g. a percentage or
// fee fraction).
func (u USD) Mul(factor float64) USD {
	return USD{u.Decimal.Mul(decimal.NewFromFloat(factor))}
}

// Float64 returns the final float64 at the display/wire boundary.
func (u USD) Float64() float64 {
	f, _ := u.Decimal.Float64()
	return f
}
