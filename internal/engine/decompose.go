package engine

import (
	"sort"

	"github.com/polyfir/resample/internal/fraction"
)

// decompositionPrimes are the factors tried when splitting a conversion
// ratio into cascaded stages. Factoring lets each stage use far fewer taps
// than a single direct L/M polyphase conversion would need, at the cost of
// extra passes through the data.
var decompositionPrimes = []int{2, 3, 5, 7}

// relaxedTransitionFactor widens the transition band of every non-final
// stage, since a non-final stage's own passband/stopband edges only need to
// suppress aliasing that the later stages will further attenuate.
const relaxedTransitionFactor = 4.0

// stagePlan describes one cascaded stage's local ratio and filter design
// parameters, before the prototype filter itself has been designed.
type stagePlan struct {
	ratio        float64 // this stage's own output/input ratio
	cutoff       float64 // normalized cutoff (0, 0.5)
	transitionBW float64 // normalized transition width
	final        bool
	upsampling   bool
}

// PlanStages factors frac.L/frac.M into a cascade of stages using
// decompositionPrimes, largest-ratio-first, each non-final stage widened by
// relaxedTransitionFactor. passbandEnd/stopbandBegin are normalized to the
// final output Nyquist (0, 0.5), matching the caller's quality setting.
func PlanStages(frac fraction.Fraction, passbandEnd, stopbandBegin float64) []stagePlan {
	upMultiplicities, upRemainder := factorSorted(frac.L)
	downMultiplicities, downRemainder := factorSorted(frac.M)

	type factor struct {
		prime int
		up    bool
	}
	var factors []factor
	for i, p := range decompositionPrimes {
		for k := 0; k < upMultiplicities[i]; k++ {
			factors = append(factors, factor{prime: p, up: true})
		}
		for k := 0; k < downMultiplicities[i]; k++ {
			factors = append(factors, factor{prime: p, up: false})
		}
	}
	// Largest ratio first: within up-factors descending, then down-factors
	// ascending by prime (smallest decimation first, largest decimation
	// last).
	sort.SliceStable(factors, func(i, j int) bool {
		if factors[i].up != factors[j].up {
			return factors[i].up // upsampling stages before downsampling stages
		}
		if factors[i].up {
			return factors[i].prime > factors[j].prime
		}
		return factors[i].prime < factors[j].prime
	})

	var plans []stagePlan
	for _, f := range factors {
		plans = append(plans, stagePlan{
			ratio:      ratioFor(f.up, f.prime),
			upsampling: f.up,
		})
	}

	// Any leftover irrational-ish remainder (coprime to all decomposition
	// primes) becomes one final arbitrary-ratio stage.
	if upRemainder > 1 || downRemainder > 1 || len(plans) == 0 {
		plans = append(plans, stagePlan{
			ratio:      float64(upRemainder) / float64(downRemainder),
			upsampling: upRemainder >= downRemainder,
		})
	}

	cutoff := passbandEnd
	transition := stopbandBegin - passbandEnd
	if transition <= 0 {
		transition = 0.05
	}
	for i := range plans {
		plans[i].final = i == len(plans)-1
		plans[i].cutoff = cutoff
		if plans[i].final {
			plans[i].transitionBW = transition
		} else {
			plans[i].transitionBW = transition * relaxedTransitionFactor
		}
	}
	return plans
}

func factorSorted(n int) (multiplicities []int, remainder int) {
	return fraction.FactorsIn(n, decompositionPrimes)
}

func ratioFor(up bool, prime int) float64 {
	if up {
		return float64(prime)
	}
	return 1.0 / float64(prime)
}
