package dither

import "math/rand/v2"

// autoBlankSilenceThreshold is the input magnitude below which samples
// count toward the auto-blanking silence run.
const autoBlankSilenceThreshold = 1e-8

// autoBlankRunLength is how many consecutive near-silent samples must be
// seen before dither noise is blanked (muted) to avoid an audible noise
// floor during passages of true digital silence.
const autoBlankRunLength = 64

// Ditherer adds triangular-PDF dither, optionally noise-shaped by an
// error-feedback filter, ahead of quantization to a target bit depth. One
// Ditherer instance handles exactly one channel; its PRNG is seeded
// per-channel so that stereo/multichannel material doesn't get correlated
// dither noise across channels.
type Ditherer struct {
	bits         int
	amplitude    float64 // TPDF half-width in quantization steps
	scale        float64 // quantization step size, 2^-(bits-1)
	autoBlanking bool
	profile      Profile
	rng          *rand.Rand

	errHistory  []float64
	silenceRun  int
	blanked     bool
	gain        float64
}

// New creates a Ditherer quantizing to outputBits, dithered at ditherAmount
// bits of TPDF amplitude, shaped by profile, seeded from seed (callers pass
// baseSeed+channelIndex so each channel gets an independent noise stream).
func New(outputBits int, ditherAmount float64, autoBlanking bool, profile Profile, seed uint64) *Ditherer {
	if outputBits < 1 {
		outputBits = 16
	}
	d := &Ditherer{
		bits:         outputBits,
		amplitude:    ditherAmount,
		scale:        1.0 / float64(int64(1)<<(outputBits-1)),
		autoBlanking: autoBlanking,
		profile:      profile,
		rng:          rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		gain:         1.0,
	}
	if n := len(profile.Coeffs); n > 0 {
		d.errHistory = make([]float64, n)
	}
	return d
}

// AdjustGain rescales the TPDF amplitude proportionally to a signal gain
// change (used by the pipeline's clipping-retry protocol, which re-runs a
// pass at a lower gain and must re-derive a consistent dither amplitude for
// it relative to the new full-scale headroom).
func (d *Ditherer) AdjustGain(gain float64) {
	if gain <= 0 {
		gain = 1
	}
	d.gain = gain
}

// Dither quantizes x to the configured bit depth, adding TPDF dither
// (scaled by the error-feedback filter's prediction, if any) before
// rounding, and folding the rounding error back into the feedback history.
func (d *Ditherer) Dither(x float64) float64 {
	shapedErr := 0.0
	for i, c := range d.profile.Coeffs {
		shapedErr += c * d.errHistory[i]
	}

	d.updateBlanking(x)

	noise := 0.0
	if !d.blanked {
		noise = (d.rng.Float64() - d.rng.Float64()) * d.amplitude * d.scale * d.gain
	}

	dithered := x + noise + shapedErr*d.scale

	quantized := roundToStep(dithered, d.scale)

	errSample := (dithered - quantized) / d.scale
	if len(d.errHistory) > 0 {
		copy(d.errHistory[1:], d.errHistory[:len(d.errHistory)-1])
		d.errHistory[0] = errSample
	}

	return quantized
}

func (d *Ditherer) updateBlanking(x float64) {
	if !d.autoBlanking {
		d.blanked = false
		return
	}
	if x > -autoBlankSilenceThreshold && x < autoBlankSilenceThreshold {
		d.silenceRun++
	} else {
		d.silenceRun = 0
	}
	d.blanked = d.silenceRun >= autoBlankRunLength
}

// Reset clears feedback history and the silence-run counter, but preserves
// the PRNG stream (a retried pass should not repeat the exact same dither
// sequence sample-for-sample).
func (d *Ditherer) Reset() {
	for i := range d.errHistory {
		d.errHistory[i] = 0
	}
	d.silenceRun = 0
	d.blanked = false
}

func roundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	n := v / step
	if n >= 0 {
		n += 0.5
	} else {
		n -= 0.5
	}
	return float64(int64(n)) * step
}
