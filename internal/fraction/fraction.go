// Package fraction reduces an input/output sample-rate pair to the smallest
// rational conversion ratio L/M, optionally scaled by an oversampling factor
// used internally by the engine before decimation back down.
package fraction

import "fmt"

// Fraction is a reduced rational number L/M with gcd(L, M) == 1.
type Fraction struct {
	L int // numerator: output-side steps
	M int // denominator: input-side steps
}

// Ratio returns L/M as a float64.
func (f Fraction) Ratio() float64 {
	return float64(f.L) / float64(f.M)
}

// Reduce computes the reduced conversion ratio outputRate/inputRate,
// optionally pre-multiplying the numerator by overSampling (used when the
// engine wants to run its first stage at an integer multiple of the final
// output rate before a later decimation stage brings it back down).
func Reduce(inputRate, outputRate, overSampling int) (Fraction, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return Fraction{}, fmt.Errorf("fraction: sample rates must be positive (got %d, %d)", inputRate, outputRate)
	}
	if overSampling <= 0 {
		overSampling = 1
	}

	l := outputRate * overSampling
	m := inputRate

	g := gcd(l, m)
	return Fraction{L: l / g, M: m / g}, nil
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	if a < 0 {
		return -a
	}
	return a
}

// FactorsIn reports the multiplicity of each prime in primes dividing n,
// used by the engine to decide how many cascaded half-band-style stages a
// conversion ratio factors into. Primes not present get multiplicity 0.
// The remaining, non-factorable part of n (after dividing out every given
// prime as many times as possible) is returned separately as remainder.
func FactorsIn(n int, primes []int) (multiplicities []int, remainder int) {
	multiplicities = make([]int, len(primes))
	remainder = n
	for i, p := range primes {
		if p <= 1 {
			continue
		}
		for remainder%p == 0 {
			remainder /= p
			multiplicities[i]++
		}
	}
	return multiplicities, remainder
}
