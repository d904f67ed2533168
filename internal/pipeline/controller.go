// Package pipeline implements the block loop, fork-join channel worker
// pool, clipping-detection retry protocol, and temp-file spill strategy
// that tie components C1-C5 and C7-C8 together into one conversion pass
// (component C6).
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/polyfir/resample/internal/codec"
	"github.com/polyfir/resample/internal/convconfig"
	"github.com/polyfir/resample/internal/dither"
	"github.com/polyfir/resample/internal/engine"
	"github.com/polyfir/resample/internal/report"
	"github.com/polyfir/resample/internal/worker"
)

// blockFrames is how many input frames each fork-join round processes.
const blockFrames = 8192

// clippingTrim backs off the computed gain slightly below the exact
// peak-to-limit ratio, so floating-point rounding in the retried pass
// doesn't immediately re-clip by a hair.
const clippingTrim = 0.995

// Result summarizes a completed conversion.
type Result struct {
	FramesIn        int64
	FramesOut       int64
	Peak            float64
	GainApplied     float64
	ClippingRetries int
}

// Controller drives one conversion from a codec.Reader to a codec.Writer.
type Controller struct {
	cfg      convconfig.Info
	reader   codec.Reader
	newWriter func() (codec.Writer, error)
	reporter report.Reporter
}

// New builds a Controller. newWriter is called once per attempt, so it is
// called again on every clipping retry, with or without a temp-file spill
// (without one, a retry also re-does the whole resampling pass from scratch).
func New(cfg convconfig.Info, reader codec.Reader, newWriter func() (codec.Writer, error), reporter report.Reporter) *Controller {
	if reporter == nil {
		reporter = report.NopReporter{}
	}
	return &Controller{cfg: cfg, reader: reader, newWriter: newWriter, reporter: reporter}
}

// Run executes the configured conversion, returning once the output is
// fully written (or a clipping-retry budget is exhausted, or ctx is
// canceled between blocks).
func (c *Controller) Run(ctx context.Context) (Result, error) {
	channels := c.reader.Channels()
	if channels <= 0 {
		return Result{}, ErrNoChannels
	}

	if c.cfg.UseTempFile {
		return c.runWithTempFile(ctx, channels)
	}
	return c.runDirect(ctx, channels)
}

// runDirect resamples and dithers in a single pass. If the pass clips, the
// same resamplers and ditherers are reset (not rebuilt — their PRNGs are
// not reseeded, per the no-reseed-on-reset dithering contract) and the
// whole pass is re-run at a reduced gain, up to cfg.MaxClippingProtectionTries
// times.
func (c *Controller) runDirect(ctx context.Context, channels int) (Result, error) {
	gain, err := c.initialGain(channels)
	if err != nil {
		return Result{}, err
	}
	chans := c.newChannels(channels, true)
	var last Result

	for attempt := 0; attempt <= c.cfg.MaxClippingProtectionTries; attempt++ {
		for _, ch := range chans {
			if ch.Ditherer != nil {
				ch.Ditherer.AdjustGain(gain)
			}
		}

		writer, err := c.newWriter()
		if err != nil {
			return Result{}, err
		}

		res, err := c.runPass(ctx, chans, worker.Options{ApplyDither: true}, gain, writer)
		closeErr := writer.Close()
		if err != nil {
			return Result{}, err
		}
		if closeErr != nil {
			return Result{}, closeErr
		}
		res.GainApplied = gain
		last = res

		if res.Peak <= c.cfg.Limit || attempt == c.cfg.MaxClippingProtectionTries {
			last.ClippingRetries = attempt
			if res.Peak > c.cfg.Limit {
				return last, ErrClippingUnresolved
			}
			return last, nil
		}

		gain *= clippingTrim * c.cfg.Limit / res.Peak
		c.reporter.Warnf("clipping detected (peak %.4f), retrying pass %d at gain %.4f", res.Peak, attempt+1, gain)
		if err := seekStart(c.reader); err != nil {
			return last, fmt.Errorf("pipeline: rewinding input for clipping retry: %w", err)
		}
		for _, ch := range chans {
			ch.Reset()
		}
	}
	return last, ErrClippingUnresolved
}

// runWithTempFile resamples once (no gain, no dither) to a spill file,
// then makes a second pass over the spill applying gain and dither. Only
// the (cheap) second pass needs to be redone on a clipping retry, and it
// reuses the same ditherers across retries (reset, not reseeded).
func (c *Controller) runWithTempFile(ctx context.Context, channels int) (Result, error) {
	gain, err := c.initialGain(channels)
	if err != nil {
		return Result{}, err
	}

	chans := c.newChannels(channels, false)
	spill, err := newTempSpill(channels)
	if err != nil {
		return Result{}, err
	}
	defer spill.close()

	passA, err := c.runPass(ctx, chans, worker.Options{ApplyDither: false}, 1.0, spillWriter{spill})
	if err != nil {
		return Result{}, err
	}
	if err := spill.rewind(); err != nil {
		return Result{}, err
	}

	secondChans := c.secondPassChannels(channels)
	var last Result
	for attempt := 0; attempt <= c.cfg.MaxClippingProtectionTries; attempt++ {
		for _, ch := range secondChans {
			if ch.Ditherer != nil {
				ch.Ditherer.AdjustGain(gain)
			}
		}

		writer, err := c.newWriter()
		if err != nil {
			return Result{}, err
		}
		res, err := c.runSecondPass(secondChans, spill, channels, gain, writer)
		closeErr := writer.Close()
		if err != nil {
			return Result{}, err
		}
		if closeErr != nil {
			return Result{}, closeErr
		}
		res.GainApplied = gain
		res.FramesIn = passA.FramesIn
		last = res

		if res.Peak <= c.cfg.Limit || attempt == c.cfg.MaxClippingProtectionTries {
			last.ClippingRetries = attempt
			if res.Peak > c.cfg.Limit {
				return last, ErrClippingUnresolved
			}
			return last, nil
		}

		gain *= clippingTrim * c.cfg.Limit / res.Peak
		c.reporter.Warnf("clipping detected (peak %.4f), redithering pass %d at gain %.4f", res.Peak, attempt+1, gain)
		if err := spill.rewind(); err != nil {
			return last, err
		}
		for _, ch := range secondChans {
			ch.Reset()
		}
	}
	return last, ErrClippingUnresolved
}

// runSecondPass reads spilled resampled-but-undithered samples and applies
// gain + dither, writing through to writer.
func (c *Controller) runSecondPass(chans []*worker.Channel, spill *tempSpill, channels int, gain float64, writer codec.Writer) (Result, error) {
	buf := make([]float64, blockFrames*channels)
	out := make([]float64, blockFrames*channels)
	var res Result
	for {
		n, err := spill.ReadFloat64(buf)
		frames := n / channels
		for f := 0; f < frames; f++ {
			for ch := 0; ch < channels; ch++ {
				v := buf[f*channels+ch] * gain
				if chans[ch].Ditherer != nil {
					v = chans[ch].Ditherer.Dither(v)
				}
				out[f*channels+ch] = v
				if a := absF(v); a > res.Peak {
					res.Peak = a
				}
			}
		}
		if frames > 0 {
			if werr := writer.WriteFloat64(out[:frames*channels]); werr != nil {
				return res, werr
			}
			res.FramesOut += int64(frames)
		}
		if err != nil {
			break
		}
	}
	return res, nil
}

// secondPassChannels builds fresh ditherers (no resamplers needed, since
// the spill file is already at the final sample rate) for the second pass.
func (c *Controller) secondPassChannels(channels int) []*worker.Channel {
	out := make([]*worker.Channel, channels)
	for i := range out {
		out[i] = &worker.Channel{Ditherer: c.newDitherer(i)}
	}
	return out
}

// runPass drives the fork-join block loop over c.reader using chans,
// writing resampled (and optionally dithered/gained) output through w.
func (c *Controller) runPass(ctx context.Context, chans []*worker.Channel, opts worker.Options, gain float64, w writerLike) (Result, error) {
	channels := len(chans)
	inBuf := make([]float64, blockFrames*channels)
	perChannelIn := make([][]float64, channels)

	var res Result
	var totalFrames int64
	if estimator, ok := c.reader.(interface{ FrameCount() int64 }); ok {
		totalFrames = estimator.FrameCount()
	}

	// Every stage's filtering introduces group delay; trim that many
	// leading output frames so the output stays time-aligned with the
	// input, per spec's Pass-A step 2. --no-delay-trim disables this for
	// callers who want the raw filter-delayed output instead.
	var trimRemaining int
	if !c.cfg.NoDelayTrim && len(chans) > 0 && chans[0].Resampler != nil {
		trimRemaining = chans[0].Resampler.GetLatency()
	}
	trimOutput := func(interleaved []float64) []float64 {
		if trimRemaining <= 0 || len(interleaved) == 0 {
			return interleaved
		}
		framesHere := len(interleaved) / channels
		skip := trimRemaining
		if skip > framesHere {
			skip = framesHere
		}
		trimRemaining -= skip
		return interleaved[skip*channels:]
	}

	for {
		select {
		case <-ctx.Done():
			return res, ErrCanceled
		default:
		}

		n, readErr := c.reader.ReadFloat64(inBuf)
		if n > 0 {
			for ch := range perChannelIn {
				perChannelIn[ch] = perChannelIn[ch][:0]
				perChannelIn[ch] = worker.Deinterleave(perChannelIn[ch], inBuf[:n*channels], channels, ch)
			}

			outPerChannel := make([][]float64, channels)
			peaks := make([]float64, channels)
			var wg sync.WaitGroup
			wg.Add(channels)
			for ch := range chans {
				ch := ch
				work := func() {
					defer wg.Done()
					outCap := int(float64(len(perChannelIn[ch]))*chans[ch].Resampler.GetRatio()) + 64
					outBuf := make([]float64, outCap)
					written, peak := worker.ProcessChannel(perChannelIn[ch], chans[ch], gain, opts, outBuf, 0, 1)
					outPerChannel[ch] = outBuf[:written]
					peaks[ch] = peak
				}
				if c.cfg.Parallel {
					go work()
				} else {
					work()
				}
			}
			wg.Wait()

			for _, p := range peaks {
				if p > res.Peak {
					res.Peak = p
				}
			}
			interleaved := trimOutput(worker.Interleave(outPerChannel))
			if len(interleaved) > 0 {
				if err := w.WriteFloat64(interleaved); err != nil {
					return res, err
				}
				res.FramesOut += int64(len(interleaved) / channels)
			}
			res.FramesIn += int64(n)
			c.reporter.Progress(res.FramesIn, totalFrames)
		}
		if readErr != nil {
			break
		}
	}

	// Flush every channel's resampler tail.
	outPerChannel := make([][]float64, channels)
	for ch := range chans {
		outBuf := make([]float64, chans[ch].Resampler.GetLatency()+blockFrames)
		written, peak := worker.FlushChannel(chans[ch], gain, opts, outBuf, 0, 1)
		outPerChannel[ch] = outBuf[:written]
		if peak > res.Peak {
			res.Peak = peak
		}
	}
	tail := trimOutput(worker.Interleave(outPerChannel))
	if len(tail) > 0 {
		if err := w.WriteFloat64(tail); err != nil {
			return res, err
		}
		res.FramesOut += int64(len(tail) / channels)
	}

	return res, nil
}

// writerLike is satisfied by both codec.Writer and the internal spill
// writer, letting runPass feed either a real codec output or the temp
// spill file through the same block loop.
type writerLike interface {
	WriteFloat64(buf []float64) error
}

type spillWriter struct{ spill *tempSpill }

func (s spillWriter) WriteFloat64(buf []float64) error { return s.spill.WriteFloat64(buf) }

func (c *Controller) newChannels(channels int, withDither bool) []*worker.Channel {
	out := make([]*worker.Channel, channels)
	for i := range out {
		r, err := engine.New(c.reader.SampleRate(), c.outputRate(), engine.Options{
			Quality:   c.cfg.Quality,
			Phase:     c.cfg.Phase,
			NumPhases: 0,
		})
		if err != nil {
			// Validated configs shouldn't fail here; fall back to a
			// pass-through ratio-1 resampler rather than panic.
			r, _ = engine.New(c.reader.SampleRate(), c.reader.SampleRate(), engine.Options{Quality: engine.QualityQuick})
		}
		var d *dither.Ditherer
		if withDither && c.cfg.DitherAmount > 0 {
			d = c.newDitherer(i)
		}
		out[i] = &worker.Channel{Resampler: r, Ditherer: d}
	}
	return out
}

func (c *Controller) newDitherer(channelIndex int) *dither.Ditherer {
	if c.cfg.DitherAmount <= 0 {
		return nil
	}
	bits := c.cfg.QuantizeBits
	if bits <= 0 {
		bits = 16
	}
	seed := c.cfg.DitherSeed + uint64(channelIndex)
	return dither.New(bits, c.cfg.DitherAmount, c.cfg.AutoBlanking, c.cfg.DitherProfile, seed)
}

// initialGain derives the starting gain for a conversion, per spec's gain
// formula. The filter bank itself is always designed for unity passband
// gain (filter.DesignPolyphaseFilterBank is called with Gain: 1.0
// regardless of the interpolation factor L), so the stage0_gain_compensation
// and L factors from the formula are already folded into the resampler and
// don't need to be reapplied here; what's left is the user-supplied gain
// times either the normalization ratio or the plain clipping limit.
func (c *Controller) initialGain(channels int) (float64, error) {
	gain := c.cfg.Gain
	if gain <= 0 {
		gain = 1.0
	}
	if !c.cfg.NormalizeEnabled {
		return gain * c.cfg.Limit, nil
	}

	peakIn, err := c.prePassPeak(channels)
	if err != nil {
		return 0, err
	}
	if peakIn <= 0 {
		peakIn = 1.0
	}
	target := c.cfg.NormalizeTarget
	if target <= 0 {
		target = 1.0
	}
	return gain * target / peakIn, nil
}

// prePassPeak scans the entire input once to find the peak absolute
// sample value, used to derive the normalization ratio before any
// resampling begins. DSD input (1-bit) is never scanned sample-by-sample;
// its nominal peak is taken as 0.5 full scale, matching the DSD design
// note in spec's normalization section.
func (c *Controller) prePassPeak(channels int) (float64, error) {
	if c.reader.BitDepth() == 1 {
		return 0.5, nil
	}

	buf := make([]float64, blockFrames*channels)
	peak := 0.0
	for {
		n, err := c.reader.ReadFloat64(buf)
		for _, v := range buf[:n*channels] {
			if a := absF(v); a > peak {
				peak = a
			}
		}
		if err != nil {
			break
		}
	}
	if err := seekStart(c.reader); err != nil {
		return 0, fmt.Errorf("pipeline: rewinding input after pre-pass peak scan: %w", err)
	}
	return peak, nil
}

func (c *Controller) outputRate() int {
	if c.cfg.OutputRate > 0 {
		return c.cfg.OutputRate
	}
	return c.reader.SampleRate()
}

func seekStart(r codec.Reader) error {
	if seeker, ok := r.(interface{ SeekStart() error }); ok {
		return seeker.SeekStart()
	}
	return fmt.Errorf("pipeline: reader does not support rewinding for clipping retry")
}

func absF(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
