package analytics

import "math"

// Epsilon is the floor weight of a proposal. A proposal without tallied power
// still counts in weighted averages instead of vanishing from them.
const Epsilon = 0.01

// OpinionDispersion is the normalised Herfindahl-Hirschman complement of a
// tally, shifted by Epsilon: 0+Epsilon when all power sits in one option,
// 1+Epsilon when it is spread evenly over the four options.
func OpinionDispersion(t PowerTally) float64 {
	total := t.Total()
	if total <= 0 {
		return Epsilon
	}
	hhi := 0.0
	for _, v := range [4]float64{t.Yes, t.No, t.Veto, t.Abstain} {
		share := v / total
		hhi += share * share
	}
	odi := (1 - hhi) / (1 - 1.0/4)
	// float rounding can leave hhi a hair outside [1/4, 1]
	odi = math.Max(0, math.Min(1, odi))
	return odi + Epsilon
}
