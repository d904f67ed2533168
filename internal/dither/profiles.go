// Package dither implements triangular-PDF dithering with optional
// error-feedback noise shaping (component C4).
package dither

// Profile is an error-feedback FIR used to shape quantization noise away
// from the most audible part of the spectrum. Coeffs[0] weights the most
// recent quantization error, Coeffs[1] the one before it, and so on.
type Profile struct {
	Name   string
	Coeffs []float64
}

// FlatProfile applies no noise shaping: plain TPDF dither.
var FlatProfile = Profile{Name: "flat"}

// standardProfile is a short 3rd-order high-pass error-feedback filter that
// pushes quantization noise above roughly 0.3x Nyquist, a reasonable
// general-purpose default for rates at or below 48kHz.
var standardProfile = Profile{
	Name:   "standard",
	Coeffs: []float64{1.50, -0.80, 0.15},
}

// wideProfile uses a longer feedback filter tuned to push noise higher into
// the band, appropriate once there is more ultrasonic headroom above
// 48kHz to push it into.
var wideProfile = Profile{
	Name:   "wide",
	Coeffs: []float64{2.033, -2.165, 1.959, -1.590, 0.6149},
}

// DefaultProfileFor picks a noise-shaping profile sized to the sample rate
// being dithered to, mirroring the per-rate default noise-shape selection
// of the original converter this was modeled on: higher rates get a
// longer, more aggressive shaping filter because there is more inaudible
// band above the audio passband to push quantization noise into.
func DefaultProfileFor(sampleRate int) Profile {
	switch {
	case sampleRate <= 0:
		return FlatProfile
	case sampleRate <= 48000:
		return standardProfile
	default:
		return wideProfile
	}
}
