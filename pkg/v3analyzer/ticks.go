package v3analyzer

// standardTickSpacings maps Uniswap-V3-style fee tiers (hundredths of a
// bip) to their pool's tick spacing, the fixed relationship every
// production V3 factory enforces between a tier and its pools' spacing.
var standardTickSpacings = map[uint32]int32{
	100:   1,
	500:   10,
	3000:  60,
	10000: 200,
}

// defaultTickSpacing is used for a fee tier this deployment doesn't
// recognize, matching the 3000 (0.3%) tier's spacing since it's the most
// commonly deployed one.
const defaultTickSpacing = 60

// TickSpacingForFee returns the tick spacing a pool at feeTier uses, so
// callers that only know a pool's fee (from PoolKey/V3State) can build the
// tickSpacing argument TickFetcher.FetchTicks and the cache bucket both
// require.
func TickSpacingForFee(feeTier uint32) int32 {
	if spacing, ok := standardTickSpacings[feeTier]; ok {
		return spacing
	}
	return defaultTickSpacing
}
