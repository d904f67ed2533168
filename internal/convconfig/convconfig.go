// Package convconfig holds the resolved configuration for one conversion
// run (spec component's "ConversionInfo" record), built once by the CLI
// layer from parsed flags and handed down, immutable, to the pipeline
// controller.
package convconfig

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polyfir/resample/internal/dither"
	"github.com/polyfir/resample/internal/engine"
	"github.com/polyfir/resample/internal/filter"
)

// LPFMode selects one of the named low-pass-filter presets, or a custom
// cutoff/transition pair.
type LPFMode int

const (
	LPFNormal LPFMode = iota
	LPFRelaxed
	LPFSteep
	LPFCustom
)

// Info is the resolved, validated configuration for a single conversion.
type Info struct {
	InputPath  string
	OutputPath string

	OutputRate int // 0 means "same as input"
	Channels   int // 0 means "detect from input"

	Quality engine.Quality
	Phase   filter.PhaseMode

	LPFMode       LPFMode
	LPFCutoff     float64 // percent of Nyquist, 1.0-99.9
	LPFTransition float64 // percent of Nyquist, 0.1-400.0

	Gain float64 // output gain multiplier applied ahead of clipping protection

	DitherAmount  float64 // bits of TPDF amplitude, 0 disables dithering
	DitherProfile dither.Profile
	AutoBlanking  bool
	DitherSeed    uint64

	NormalizeEnabled bool
	NormalizeTarget  float64 // linear full-scale fraction, e.g. 1.0

	Limit                      float64 // clipping threshold, typically 1.0
	MaxClippingProtectionTries int

	QuantizeBits int // 0 means "use the output format's native depth"
	Pow2Clip     bool

	NoDelayTrim bool
	MultiStage  bool
	UseTempFile bool

	Parallel bool
}

// Defaults returns an Info with every field set to the same defaults the
// original command-line converter this was modeled on used.
func Defaults() Info {
	return Info{
		Quality:                     engine.QualityHigh,
		Phase:                       filter.LinearPhase,
		LPFMode:                     LPFNormal,
		LPFCutoff:                   100.0 * (10.0 / 11.0),
		LPFTransition:               100.0 - 100.0*(10.0/11.0),
		Gain:                        1.0,
		DitherAmount:                0,
		AutoBlanking:                true,
		Limit:                       1.0,
		MaxClippingProtectionTries:  4,
		MultiStage:                  true,
		UseTempFile:                 false,
		Parallel:                    true,
	}
}

// ApplyLPFMode fills LPFCutoff/LPFTransition from the named preset,
// matching the original converter's three fixed presets exactly; LPFCustom
// leaves whatever cutoff/transition the caller already set.
func (info *Info) ApplyLPFMode() {
	switch info.LPFMode {
	case LPFNormal:
		info.LPFCutoff = 100.0 * (10.0 / 11.0)
		info.LPFTransition = 100.0 - info.LPFCutoff
	case LPFRelaxed:
		info.LPFCutoff = 100.0 * (21.0 / 22.0)
		info.LPFTransition = 2 * (100.0 - info.LPFCutoff)
	case LPFSteep:
		info.LPFCutoff = 100.0 * (21.0 / 22.0)
		info.LPFTransition = 100.0 - info.LPFCutoff
	case LPFCustom:
		// caller-supplied values stand
	}
}

const (
	minLPFCutoff     = 1.0
	maxLPFCutoff     = 99.9
	minLPFTransition = 0.1
	maxLPFTransition = 400.0
)

// Validate checks field ranges and derives OutputPath if it was left empty,
// mirroring the original converter's bad-parameter checks.
func (info *Info) Validate() error {
	if info.InputPath == "" {
		return fmt.Errorf("convconfig: input path is required")
	}
	if info.OutputPath == "" {
		info.OutputPath = deriveOutputPath(info.InputPath)
	}
	if info.OutputPath == info.InputPath {
		return fmt.Errorf("convconfig: output path must differ from input path")
	}

	info.LPFCutoff = clamp(info.LPFCutoff, minLPFCutoff, maxLPFCutoff)
	info.LPFTransition = clamp(info.LPFTransition, minLPFTransition, maxLPFTransition)

	if info.MaxClippingProtectionTries < 0 {
		info.MaxClippingProtectionTries = 0
	}
	if info.Limit <= 0 {
		info.Limit = 1.0
	}
	if info.Gain <= 0 {
		info.Gain = 1.0
	}
	return nil
}

// deriveOutputPath inserts "(converted)" before the input file's extension,
// the same default the original converter used when -o was omitted.
func deriveOutputPath(in string) string {
	ext := filepath.Ext(in)
	base := strings.TrimSuffix(in, ext)
	return base + "(converted)" + ext
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// NormalizeFlagName sanitizes a CLI flag name: strip every hyphen after
// the first non-hyphen character and lowercase, so "--flat-tpdf" and
// "--flatTPDF" and "--flattpdf" are all equivalent.
func NormalizeFlagName(name string) string {
	name = strings.ToLower(name)
	var b strings.Builder
	seenNonHyphen := false
	for _, r := range name {
		if r == '-' {
			if !seenNonHyphen {
				b.WriteRune(r)
			}
			continue
		}
		seenNonHyphen = true
		b.WriteRune(r)
	}
	return b.String()
}
