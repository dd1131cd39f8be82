package sim

// sizeFraction maps signal confidence to the fraction of current capital
// committed to a new position. Low-confidence entries risk minimal capital;
// only high-confidence ones approach the cap.
//
// Tiers: [0.5,0.6) → 5%; [0.6,0.8) → 5% rising linearly to 15%;
// [0.8,1.0] → 15% rising linearly to 20%. The result never exceeds
// maxPositionSize. Confidences below 0.5 (possible when the entry threshold
// is configured lower) stay on the minimum tier.
func sizeFraction(confidence, maxPositionSize float64) float64 {
	var frac float64
	switch {
	case confidence < 0.6:
		frac = 0.05
	case confidence < 0.8:
		frac = 0.05 + (confidence-0.6)/0.2*0.10
	default:
		frac = 0.15 + (confidence-0.8)/0.2*0.05
	}

	if frac > maxPositionSize {
		frac = maxPositionSize
	}
	return frac
}
