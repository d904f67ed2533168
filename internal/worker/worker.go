// Package worker implements the per-channel processing step (component
// C5): deinterleaving one channel's worth of samples out of an interleaved
// buffer, running it through a resampler and ditherer, tracking peak
// amplitude for the pipeline's clipping-retry protocol, and writing the
// result back into a caller-owned interleaved output buffer.
package worker

import (
	"math"

	"github.com/polyfir/resample/internal/dither"
	"github.com/polyfir/resample/internal/engine"
)

// Options controls per-channel processing behavior.
type Options struct {
	// ApplyDither enables dithering/quantization of the resampled signal.
	// Disabled on the first pass of a clipping-retry sequence when the
	// pipeline defers dither to a second pass over a spilled temp file.
	ApplyDither bool
}

// Channel holds one channel's resampler and ditherer, reused across blocks
// for the lifetime of a conversion pass.
type Channel struct {
	Resampler *engine.Resampler
	Ditherer  *dither.Ditherer // nil if ApplyDither is false for this pass
}

// Reset clears both the resampler's and ditherer's internal state, used
// when a clipping-retry protocol restarts a pass from the beginning.
func (c *Channel) Reset() {
	if c.Resampler != nil {
		c.Resampler.Reset()
	}
	if c.Ditherer != nil {
		c.Ditherer.Reset()
	}
}

// ProcessChannel resamples in through ch.Resampler, applies gain, and
// (if ch.Ditherer is non-nil and opts.ApplyDither) dithers the result,
// writing samples into out at the given stride/offset (out is a caller-
// owned interleaved multichannel buffer). It returns how many samples were
// written and the peak absolute sample value produced, for the pipeline's
// clipping-detection feedback loop.
func ProcessChannel(in []float64, ch *Channel, gain float64, opts Options, out []float64, offset, stride int) (n int, peak float64) {
	resampled, err := ch.Resampler.Process(in)
	if err != nil {
		return 0, 0
	}
	return writeChannel(resampled, ch, gain, opts, out, offset, stride)
}

// FlushChannel drains ch.Resampler's remaining history, writing the result
// the same way ProcessChannel does.
func FlushChannel(ch *Channel, gain float64, opts Options, out []float64, offset, stride int) (n int, peak float64) {
	resampled, err := ch.Resampler.Flush()
	if err != nil {
		return 0, 0
	}
	return writeChannel(resampled, ch, gain, opts, out, offset, stride)
}

func writeChannel(resampled []float64, ch *Channel, gain float64, opts Options, out []float64, offset, stride int) (n int, peak float64) {
	pos := offset
	for _, s := range resampled {
		v := s * gain
		if opts.ApplyDither && ch.Ditherer != nil {
			v = ch.Ditherer.Dither(v)
		}
		if pos >= len(out) {
			break
		}
		out[pos] = v
		if a := math.Abs(v); a > peak {
			peak = a
		}
		pos += stride
		n++
	}
	return n, peak
}

// Deinterleave extracts channel ch (0-based) out of an interleaved buffer
// with the given channel count, appending to dst.
func Deinterleave(dst []float64, interleaved []float64, channels, ch int) []float64 {
	for i := ch; i < len(interleaved); i += channels {
		dst = append(dst, interleaved[i])
	}
	return dst
}

// Interleave writes channels' worth of per-channel buffers into a single
// interleaved buffer of len(dst[0])*len(dst) samples.
func Interleave(dst [][]float64) []float64 {
	if len(dst) == 0 {
		return nil
	}
	n := len(dst[0])
	channels := len(dst)
	out := make([]float64, n*channels)
	for ch, buf := range dst {
		for i, v := range buf {
			if i >= n {
				break
			}
			out[i*channels+ch] = v
		}
	}
	return out
}
