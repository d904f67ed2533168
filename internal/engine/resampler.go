package engine

import (
	"fmt"

	"github.com/polyfir/resample/internal/filter"
	"github.com/polyfir/resample/internal/fraction"
)

// Quality selects the attenuation/transition-width tradeoff used when
// designing every stage's prototype filter.
type Quality int

const (
	// QualityQuick skips filter design entirely and uses cubic Hermite
	// interpolation (internal/engine's CubicStage) — fast, but with no
	// stopband control and significant aliasing on downsampling.
	QualityQuick Quality = iota
	QualityLow
	QualityMedium
	QualityHigh
	QualityVeryHigh
)

// attenuationDB returns the stopband attenuation target, in dB, for q.
func (q Quality) attenuationDB() float64 {
	switch q {
	case QualityLow:
		return 60
	case QualityMedium:
		return 96
	case QualityHigh:
		return 120
	case QualityVeryHigh:
		return 144
	default:
		return 96
	}
}

// passbandStopband returns the normalized (0, 0.5) passband-end and
// stopband-begin frequencies for the final stage's filter.
func (q Quality) passbandStopband() (passbandEnd, stopbandBegin float64) {
	switch q {
	case QualityLow:
		return 0.40, 0.48
	case QualityMedium:
		return 0.45, 0.49
	case QualityHigh:
		return 0.47, 0.495
	case QualityVeryHigh:
		return 0.48, 0.4975
	default:
		return 0.45, 0.49
	}
}

// Resampler converts a single channel's sample stream from inputRate to
// outputRate by chaining one or more polyphase Stages, each handling one
// prime factor of the reduced L/M conversion ratio.
type Resampler struct {
	stages []Stage
	ratio  float64
}

// Options configures filter design for a Resampler.
type Options struct {
	Quality   Quality
	Phase     filter.PhaseMode
	NumPhases int // polyphase branch count per stage; 0 selects a default
}

const defaultNumPhases = 256

// New builds a Resampler for the given integer sample rates.
func New(inputRate, outputRate int, opts Options) (*Resampler, error) {
	frac, err := fraction.Reduce(inputRate, outputRate, 1)
	if err != nil {
		return nil, err
	}
	if opts.Quality == QualityQuick {
		return &Resampler{stages: []Stage{NewCubicStage(frac.Ratio())}, ratio: frac.Ratio()}, nil
	}

	numPhases := opts.NumPhases
	if numPhases <= 0 {
		numPhases = defaultNumPhases
	}

	passbandEnd, stopbandBegin := opts.Quality.passbandStopband()
	plans := PlanStages(frac, passbandEnd, stopbandBegin)

	stages := make([]Stage, 0, len(plans))
	for i, p := range plans {
		bank, err := filter.DesignPolyphaseFilterBank(filter.PolyphaseParams{
			NumPhases:    numPhases,
			Cutoff:       p.cutoff,
			TransitionBW: p.transitionBW,
			Attenuation:  opts.Quality.attenuationDB(),
			InterpOrder:  filter.InterpCubic,
			Gain:         1.0,
			Phase:        opts.Phase,
		})
		if err != nil {
			return nil, fmt.Errorf("engine: designing stage %d: %w", i, err)
		}
		stage, err := NewPolyphaseStage(bank, p.ratio)
		if err != nil {
			return nil, fmt.Errorf("engine: building stage %d: %w", i, err)
		}
		stages = append(stages, stage)
	}

	return &Resampler{stages: stages, ratio: frac.Ratio()}, nil
}

// Process resamples input through every cascaded stage in order.
func (r *Resampler) Process(input []float64) ([]float64, error) {
	buf := input
	for i, s := range r.stages {
		var err error
		buf, err = s.Process(buf)
		if err != nil {
			return nil, fmt.Errorf("engine: stage %d: %w", i, err)
		}
	}
	return buf, nil
}

// Flush drains every stage's internal history in cascade order, forwarding
// each stage's flushed tail through the remaining downstream stages.
func (r *Resampler) Flush() ([]float64, error) {
	var pending []float64
	for i, s := range r.stages {
		var out []float64
		if len(pending) > 0 {
			processed, err := s.Process(pending)
			if err != nil {
				return nil, fmt.Errorf("engine: flush stage %d: %w", i, err)
			}
			out = processed
		}
		flushed, err := s.Flush()
		if err != nil {
			return nil, fmt.Errorf("engine: flush stage %d: %w", i, err)
		}
		out = append(out, flushed...)
		pending = out
	}
	return pending, nil
}

// Reset clears every stage's internal state.
func (r *Resampler) Reset() {
	for _, s := range r.stages {
		s.Reset()
	}
}

// GetRatio returns the overall outputRate/inputRate ratio.
func (r *Resampler) GetRatio() float64 { return r.ratio }

// GetLatency returns the cascade's total group delay in final output
// samples, accounting for each upstream stage's delay being scaled by every
// downstream stage's ratio.
func (r *Resampler) GetLatency() int {
	total := 0.0
	trailingRatio := 1.0
	for i := len(r.stages) - 1; i >= 0; i-- {
		s := r.stages[i]
		total += float64(s.GetLatency()) * trailingRatio
		trailingRatio *= s.GetRatio()
	}
	return int(total)
}

// NumStages returns how many cascaded stages this Resampler uses.
func (r *Resampler) NumStages() int { return len(r.stages) }
