package engine

import (
	"fmt"
	"math"

	"github.com/polyfir/resample/internal/filter"
	"github.com/polyfir/resample/internal/simdops"
)

// PolyphaseStage resamples a single channel through a polyphase filter
// bank designed by internal/filter. It tracks the output sample's
// fractional position in the input stream with a float64 accumulator:
// position p advances by step = inputRate/outputRate for every output
// sample produced. The fractional part of p selects a polyphase branch
// (and, via the bank's cubic/linear interpolation coefficients, a
// sub-phase position within that branch).
type PolyphaseStage struct {
	bank *filter.PolyphaseFilterBank
	step float64 // input samples advanced per output sample = 1/ratio

	tail    []float64 // samples carried over from the previous Process call
	posFrac float64   // fractional position of the next output sample within tail+input

	ratio   float64
	latency int

	coeffs []float64 // scratch tap-coefficient buffer, reused across Process calls
	ops    *simdops.Ops[float64]
}

// NewPolyphaseStage builds a stage that resamples by ratio = outputRate/inputRate
// using the given filter bank.
func NewPolyphaseStage(bank *filter.PolyphaseFilterBank, ratio float64) (*PolyphaseStage, error) {
	if bank == nil {
		return nil, fmt.Errorf("engine: nil polyphase filter bank")
	}
	if ratio <= 0 {
		return nil, fmt.Errorf("engine: invalid stage ratio %g", ratio)
	}
	latency := int(math.Round(float64(bank.TapsPerPhase-1) / 2 * ratio))
	return &PolyphaseStage{
		bank:    bank,
		step:    1.0 / ratio,
		ratio:   ratio,
		latency: latency,
		coeffs:  make([]float64, bank.TapsPerPhase),
		ops:     simdops.Float64Ops(),
	}, nil
}

// Process implements Stage.
func (s *PolyphaseStage) Process(input []float64) ([]float64, error) {
	buf := make([]float64, 0, len(s.tail)+len(input))
	buf = append(buf, s.tail...)
	buf = append(buf, input...)

	taps := s.bank.TapsPerPhase
	numPhases := float64(s.bank.NumPhases)

	estimate := int(float64(len(input))*s.ratio) + 1
	out := make([]float64, 0, max(estimate, 0))

	p := s.posFrac
	for {
		idx := int(math.Floor(p))
		if idx < 0 || idx+taps > len(buf) {
			break
		}
		frac := p - float64(idx)
		phaseF := frac * numPhases
		phase := int(phaseF)
		if phase >= s.bank.NumPhases {
			phase = s.bank.NumPhases - 1
		}
		subFrac := phaseF - float64(phase)

		for tap := range taps {
			s.coeffs[tap] = s.bank.GetCoefficient(tap, phase, subFrac)
		}
		out = append(out, s.ops.DotProductUnsafe(s.coeffs, buf[idx:idx+taps]))
		p += s.step
	}

	newBase := int(math.Floor(p))
	if newBase < 0 {
		newBase = 0
	}
	if newBase > len(buf) {
		newBase = len(buf)
	}
	s.tail = append(s.tail[:0:0], buf[newBase:]...)
	s.posFrac = p - float64(newBase)

	return out, nil
}

// Flush implements Stage: pads with enough trailing zeros to release all
// samples still pending in the history tail.
func (s *PolyphaseStage) Flush() ([]float64, error) {
	pad := make([]float64, s.bank.TapsPerPhase+1)
	return s.Process(pad)
}

// Reset implements Stage.
func (s *PolyphaseStage) Reset() {
	s.tail = nil
	s.posFrac = 0
}

// GetRatio implements Stage.
func (s *PolyphaseStage) GetRatio() float64 { return s.ratio }

// GetLatency implements Stage.
func (s *PolyphaseStage) GetLatency() int { return s.latency }

// GetFilterLength implements Stage.
func (s *PolyphaseStage) GetFilterLength() int { return s.bank.TapsPerPhase }

// GetPhases implements Stage.
func (s *PolyphaseStage) GetPhases() int { return s.bank.NumPhases }
