package filter

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyfir/resample/internal/testutil"
)

func magnitudeSpectrum(t *testing.T, h []float64, n int) []float64 {
	t.Helper()
	mags := make([]float64, n)
	for k := 0; k < n; k++ {
		var re, im float64
		for i, v := range h {
			angle := -2 * math.Pi * float64(k*i) / float64(n)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		mags[k] = math.Hypot(re, im)
	}
	return mags
}

func TestToMinimumPhasePreservesMagnitudeResponse(t *testing.T) {
	h, err := DesignLowPassFilterAuto(0.25, 0.05, 80, 1.0)
	require.NoError(t, err)

	minPhase := ToMinimumPhase(h)
	require.Equal(t, len(h), len(minPhase))
	testutil.AssertNoNaNOrInf(t, minPhase)

	n := 512
	orig := magnitudeSpectrum(t, h, n)
	got := magnitudeSpectrum(t, minPhase, n)
	for k := 0; k < n/2; k++ {
		assert.InDelta(t, orig[k], got[k], 0.05*orig[k]+1e-3, "bin %d", k)
	}
}

func TestToMinimumPhaseShortInputPassesThrough(t *testing.T) {
	assert.Equal(t, []float64{}, ToMinimumPhase(nil))
	assert.Equal(t, []float64{1}, ToMinimumPhase([]float64{1}))
}

func TestToMinimumPhaseFrontLoadsEnergy(t *testing.T) {
	h, err := DesignLowPassFilterAuto(0.25, 0.05, 80, 1.0)
	require.NoError(t, err)
	minPhase := ToMinimumPhase(h)

	energyIn := func(samples []float64, frac float64) float64 {
		n := int(float64(len(samples)) * frac)
		var sum float64
		for _, v := range samples[:n] {
			sum += v * v
		}
		return sum
	}

	linearFront := energyIn(h, 0.25)
	minPhaseFront := energyIn(minPhase, 0.25)
	assert.Greater(t, minPhaseFront, linearFront, "minimum-phase impulse response should concentrate energy earlier")
}
