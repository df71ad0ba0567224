package bigmath

import "testing"

func TestUSD_SubChainMatchesExactSubtraction(t *testing.T) {
	got := NewUSD(1000.50).
		Sub(NewUSD(950.00)).
		Sub(NewUSD(4.5)).
		Sub(NewUSD(1.0)).
		Float64()

	want := 45.0
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("USD subtraction chain = %v, want %v", got, want)
	}
}

func TestUSD_SubAvoidsFloatAccumulationOverManyTerms(t *testing.T) {
	// 0.1 repeated ten times under plain float64 subtraction accumulates
	// visible error; decimal.Decimal should not.
	v := NewUSD(1.0)
	for i := 0; i < 10; i++ {
		v = v.Sub(NewUSD(0.1))
	}
	got := v.Float64()
	if got != 0 {
		t.Fatalf("USD chain of ten 0.1 subtractions from 1.0 = %v, want exactly 0", got)
	}
}

func TestUSD_Mul(t *testing.T) {
	got := NewUSD(200).Mul(0.003).Float64()
	want := 0.6
	if diff := got - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("USD.Mul = %v, want %v", got, want)
	}
}

func TestUSD_Add(t *testing.T) {
	got := NewUSD(10.25).Add(NewUSD(5.75)).Float64()
	if got != 16.0 {
		t.Fatalf("USD.Add = %v, want 16.0", got)
	}
}
