package sim

import (
	"math"
	"testing"
)

func TestSizeFractionTiers(t *testing.T) {
	cases := []struct {
		name       string
		confidence float64
		max        float64
		want       float64
	}{
		{"low tier", 0.55, 0.20, 0.05},
		{"low tier top", 0.59, 0.20, 0.05},
		{"mid tier start", 0.60, 0.20, 0.05},
		{"mid tier middle", 0.70, 0.20, 0.10},
		{"high tier start", 0.80, 0.20, 0.15},
		{"high tier middle", 0.90, 0.20, 0.175},
		{"full confidence", 1.00, 0.20, 0.20},
		{"below low tier stays minimal", 0.30, 0.20, 0.05},
		{"capped by max position size", 0.90, 0.10, 0.10},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := sizeFraction(tc.confidence, tc.max)
			if math.Abs(got-tc.want) > 1e-12 {
				t.Errorf("sizeFraction(%v, %v) = %v, want %v", tc.confidence, tc.max, got, tc.want)
			}
		})
	}
}

func TestSizeFractionMonotone(t *testing.T) {
	prev := 0.0
	for c := 0.5; c <= 1.0; c += 0.01 {
		frac := sizeFraction(c, 0.20)
		if frac < prev {
			t.Fatalf("sizeFraction not monotone at confidence %v: %v < %v", c, frac, prev)
		}
		prev = frac
	}
}
