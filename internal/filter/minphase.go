package filter

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// PhaseMode selects how a designed FIR prototype's phase response is
// constructed.
type PhaseMode int

const (
	// LinearPhase keeps the symmetric windowed-sinc impulse response
	// (constant group delay, zero-phase after delay compensation).
	LinearPhase PhaseMode = iota
	// MinimumPhase reflects the prototype's zeros inside the unit circle
	// via the complex cepstrum, halving group delay at the cost of phase
	// distortion. Magnitude response is preserved.
	MinimumPhase
)

// minPhaseFFTMargin multiplies the prototype length to pick an FFT size
// large enough that circular-convolution wraparound in the cepstral
// transform doesn't corrupt the causal part of the result.
const minPhaseFFTMargin = 8

// ToMinimumPhase converts a linear-phase (symmetric) FIR prototype into a
// minimum-phase filter with the same magnitude response, using the
// homomorphic (complex cepstrum) method:
//
//  1. Zero-pad h to a long FFT size and take H = FFT(h).
//  2. Compute the complex log spectrum log|H| + j*0 (discard phase).
//  3. IFFT to get the real cepstrum c.
//  4. Fold c causally: keep c[0] and c[N/2], double c[1:N/2], zero the rest
//     (this is the minimum-phase cepstral window).
//  5. FFT the folded cepstrum, exponentiate, IFFT to get the minimum-phase
//     impulse response; truncate to the original length.
func ToMinimumPhase(h []float64) []float64 {
	n := len(h)
	if n <= 1 {
		out := make([]float64, n)
		copy(out, h)
		return out
	}

	fftSize := 1
	for fftSize < n*minPhaseFFTMargin {
		fftSize *= 2
	}
	scale := 1.0 / float64(fftSize)

	cfft := fourier.NewCmplxFFT(fftSize)

	padded := make([]complex128, fftSize)
	for i, v := range h {
		padded[i] = complex(v, 0)
	}
	spectrum := cfft.Coefficients(nil, padded)

	const magnitudeFloor = 1e-20
	logSpectrum := make([]complex128, len(spectrum))
	for i, c := range spectrum {
		mag := cmplx.Abs(c)
		if mag < magnitudeFloor {
			mag = magnitudeFloor
		}
		logSpectrum[i] = complex(math.Log(mag), 0)
	}

	cepstrum := cfft.Sequence(nil, logSpectrum)
	for i := range cepstrum {
		cepstrum[i] *= complex(scale, 0)
	}

	half := fftSize / 2
	for i := range cepstrum {
		switch {
		case i == 0, i == half:
			// unchanged: DC and Nyquist bins are not folded
		case i < half:
			cepstrum[i] *= 2
		default:
			cepstrum[i] = 0
		}
	}

	foldedSpectrum := cfft.Coefficients(nil, cepstrum)
	minPhaseSpectrum := make([]complex128, len(foldedSpectrum))
	for i, c := range foldedSpectrum {
		minPhaseSpectrum[i] = cmplx.Exp(c)
	}

	minPhaseFull := cfft.Sequence(nil, minPhaseSpectrum)

	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = real(minPhaseFull[i]) * scale
	}
	return out
}
