package adjust

import (
	"math"

	"github.com/shopspring/decimal"
)

// Algorithm selects the shape used to redistribute a variance over future
// entries.
type Algorithm string

const (
	AlgorithmLinear      Algorithm = "linear"
	AlgorithmFrontLoaded Algorithm = "front-loaded"
	AlgorithmBackLoaded  Algorithm = "back-loaded"
	AlgorithmCustom      Algorithm = "custom"
)

// Valid reports whether the algorithm is one of the known values.
func (a Algorithm) Valid() bool {
	return a == AlgorithmLinear || a == AlgorithmFrontLoaded || a == AlgorithmBackLoaded || a == AlgorithmCustom
}

// weightSlots is the fixed number of future entries a weight set covers.
// When fewer future entries exist, only the first N weights are applied and
// the unused weight mass is dropped. See the note on WeightSet.
const weightSlots = 4

// weightSetCount is the number of graduated weight sets per algorithm.
const weightSetCount = 9

// frontLoadedSets are the graduated weight sets for front-loaded
// redistribution, strongest first. Every set sums to 1 and is
// non-increasing; the last set is even.
var frontLoadedSets = [weightSetCount][weightSlots]float64{
	{1.00, 0.00, 0.00, 0.00},
	{0.70, 0.20, 0.10, 0.00},
	{0.60, 0.25, 0.10, 0.05},
	{0.55, 0.25, 0.12, 0.08},
	{0.50, 0.25, 0.15, 0.10},
	{0.45, 0.25, 0.17, 0.13},
	{0.40, 0.25, 0.20, 0.15},
	{0.32, 0.26, 0.22, 0.20},
	{0.25, 0.25, 0.25, 0.25},
}

// WeightSet returns the four redistribution weights for an algorithm at the
// given intensity. Intensity 1 selects the strongest profile, intensity 0
// the even 25/25/25/25 profile.
//
// The sets are only indexed, never renormalized: with fewer than four
// future entries some weight mass is silently dropped and the redistribution
// is no longer zero-sum. Callers surface this as a warning instead of
// renormalizing.
func WeightSet(algorithm Algorithm, intensity float64) []decimal.Decimal {
	index := int(math.Round((1 - intensity) * float64(weightSetCount-1)))
	if index < 0 {
		index = 0
	}
	if index > weightSetCount-1 {
		index = weightSetCount - 1
	}

	weights := make([]decimal.Decimal, weightSlots)

	switch algorithm {
	case AlgorithmFrontLoaded:
		for i, w := range frontLoadedSets[index] {
			weights[i] = decimal.NewFromFloat(w)
		}
	case AlgorithmBackLoaded:
		// Mirror image of the front-loaded profile
		for i, w := range frontLoadedSets[index] {
			weights[weightSlots-1-i] = decimal.NewFromFloat(w)
		}
	default:
		// linear; custom without a distribution degrades to equal weighting
		equal := decimal.NewFromFloat(0.25)
		for i := range weights {
			weights[i] = equal
		}
	}

	return weights
}
