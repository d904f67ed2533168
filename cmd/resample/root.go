package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/polyfir/resample/internal/codec"
	"github.com/polyfir/resample/internal/convconfig"
	"github.com/polyfir/resample/internal/dither"
	"github.com/polyfir/resample/internal/engine"
	"github.com/polyfir/resample/internal/filter"
	"github.com/polyfir/resample/internal/format"
	"github.com/polyfir/resample/internal/pipeline"
	"github.com/polyfir/resample/internal/report"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cliFlags mirrors convconfig.Info but in the plain types cobra binds to;
// it's translated into an Info by resolveConfig once parsing succeeds.
type cliFlags struct {
	output         string
	rate           int
	channels       int
	quality        string
	minPhase       bool
	lpfMode        string
	lpfCutoff      float64
	lpfTransition  float64
	singleStage    bool
	multiStage     bool
	dither         float64
	ditherProfile  string
	noAutoBlank    bool
	seed           int64
	gain           float64
	normalize      bool
	normalizeLevel float64
	limit          float64
	maxClipRetries int
	quantizeBits   int
	pow2Clip       bool
	noDelayTrim    bool
	tempFile       bool
	noParallel     bool
	outputFormat   string
}

func newRootCommand() *cobra.Command {
	var f cliFlags

	cmd := &cobra.Command{
		Use:   "resample <input>",
		Short: "Convert an audio file's sample rate, bit depth, and dither",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(args[0], f)
		},
	}
	cmd.Flags().SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(convconfig.NormalizeFlagName(name))
	})

	fs := cmd.Flags()
	fs.StringVarP(&f.output, "output", "o", "", "output file path (default: derived from input)")
	fs.IntVarP(&f.rate, "rate", "r", 0, "output sample rate in Hz (default: same as input)")
	fs.IntVarP(&f.channels, "channels", "c", 0, "override channel count (default: detect from input)")
	fs.StringVarP(&f.quality, "quality", "q", "high", "quality preset: quick, low, medium, high, veryhigh")
	fs.BoolVar(&f.minPhase, "minphase", false, "use a minimum-phase filter instead of linear-phase")
	fs.StringVar(&f.lpfMode, "lpf-mode", "normal", "low-pass filter preset: normal, relaxed, steep, custom (validated and stored in the config; the filter design follows --quality only)")
	fs.Float64Var(&f.lpfCutoff, "lpf-cutoff", 0, "custom cutoff, percent of Nyquist (requires --lpf-mode=custom; stored in the config, not used by the filter design)")
	fs.Float64Var(&f.lpfTransition, "lpf-transition", 0, "custom transition width, percent of Nyquist (stored in the config, not used by the filter design)")
	fs.BoolVar(&f.singleStage, "single-stage", false, "request a single conversion stage (stored in the config; conversion always uses cascaded decomposition)")
	fs.BoolVar(&f.multiStage, "multi-stage", false, "request cascaded multi-stage decomposition (stored in the config; conversion always uses it)")
	fs.Float64Var(&f.dither, "dither", 0, "dither amount in bits of TPDF amplitude (0 disables dithering)")
	fs.StringVar(&f.ditherProfile, "dither-profile", "auto", "noise-shaping profile: auto, flat, standard, wide")
	fs.BoolVar(&f.noAutoBlank, "no-auto-blank", false, "disable auto-blanking of dither noise during silence")
	fs.Int64Var(&f.seed, "seed", 0, "base PRNG seed for dither noise (per-channel seed = base + channel index)")
	fs.Float64Var(&f.gain, "gain", 1.0, "output gain multiplier, applied before clipping protection")
	fs.BoolVar(&f.normalize, "normalize", false, "normalize output peak to the --normalize-level target")
	fs.Float64Var(&f.normalizeLevel, "normalize-level", 1.0, "normalization target, linear full-scale fraction")
	fs.Float64Var(&f.limit, "limit", 1.0, "clipping detection threshold, linear full-scale fraction; without --normalize it also multiplies the starting gain")
	fs.IntVar(&f.maxClipRetries, "max-clip-retries", 4, "maximum clipping-protection retry attempts")
	fs.IntVar(&f.quantizeBits, "quantize-bits", 0, "cap output bit depth below the container's native depth")
	fs.BoolVar(&f.pow2Clip, "pow2clip", false, "use the pow2clip integer scaling convention instead of pow2minus1")
	fs.BoolVar(&f.noDelayTrim, "no-delay-trim", false, "disable group-delay trim compensation")
	fs.BoolVar(&f.tempFile, "temp-file", false, "spill resampled-but-undithered audio to a temp file between passes")
	fs.BoolVar(&f.noParallel, "no-parallel", false, "disable per-channel parallel processing")
	fs.StringVar(&f.outputFormat, "format", "", "output sample format: 8, 16, 24, 32, 32f, 64f, u8, s8, or (CSV) [us]<n>[f|i|o|x]")

	return cmd
}

func runConvert(inputPath string, f cliFlags) error {
	cfg := convconfig.Defaults()
	cfg.InputPath = inputPath
	cfg.OutputPath = f.output
	cfg.OutputRate = f.rate
	cfg.Channels = f.channels
	cfg.Parallel = !f.noParallel
	cfg.NoDelayTrim = f.noDelayTrim
	cfg.UseTempFile = f.tempFile
	cfg.Limit = f.limit
	cfg.MaxClippingProtectionTries = f.maxClipRetries
	cfg.QuantizeBits = f.quantizeBits
	cfg.Pow2Clip = f.pow2Clip
	cfg.DitherAmount = f.dither
	cfg.AutoBlanking = !f.noAutoBlank
	cfg.DitherSeed = uint64(f.seed)
	cfg.Gain = f.gain
	cfg.NormalizeEnabled = f.normalize
	cfg.NormalizeTarget = f.normalizeLevel

	if f.minPhase {
		cfg.Phase = filter.MinimumPhase
	}

	var err error
	cfg.Quality, err = parseQuality(f.quality)
	if err != nil {
		return err
	}

	cfg.LPFMode, err = parseLPFMode(f.lpfMode)
	if err != nil {
		return err
	}
	if cfg.LPFMode == convconfig.LPFCustom {
		cfg.LPFCutoff = f.lpfCutoff
		cfg.LPFTransition = f.lpfTransition
	}
	cfg.ApplyLPFMode()

	// singleStage/multiStage truth table, matching the original
	// converter's flag-reconciliation rule exactly: if neither is given,
	// default to multi-stage; if both are given, multi-stage wins.
	switch {
	case !f.multiStage && !f.singleStage:
		cfg.MultiStage = true
	case f.multiStage && f.singleStage:
		cfg.MultiStage = true
	default:
		cfg.MultiStage = f.multiStage
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	var reader codec.Reader
	if strings.EqualFold(filepath.Ext(cfg.InputPath), ".dsf") {
		reader, err = codec.OpenDSFReader(cfg.InputPath)
	} else {
		reader, err = codec.OpenWAVReader(cfg.InputPath)
	}
	if err != nil {
		return err
	}
	defer reader.Close()

	if cfg.Channels <= 0 {
		cfg.Channels = reader.Channels()
	}

	cfg.DitherProfile = resolveDitherProfile(f.ditherProfile, cfg.OutputRate, reader.SampleRate())

	scaleStyle := format.ScalePow2Minus1
	if cfg.Pow2Clip {
		scaleStyle = format.ScalePow2Clip
	}

	outRate := cfg.OutputRate
	if outRate <= 0 {
		outRate = reader.SampleRate()
	}
	predictedBytes := int64(0)
	if fc, ok := reader.(interface{ FrameCount() int64 }); ok {
		predictedBytes = fc.FrameCount() * int64(reader.Channels()) * 4
	}

	outFormat, err := format.ResolveOutputFormat(f.outputFormat, filepath.Ext(cfg.OutputPath), predictedBytes)
	if err != nil {
		return err
	}
	outFormat = outFormat.ApplyQuantizeBits(cfg.QuantizeBits)

	newWriter := func() (codec.Writer, error) {
		if outFormat.Container == format.ContainerCSV {
			return codec.CreateCSVWriter(cfg.OutputPath, codec.NumberFormat{
				Float:    outFormat.Float,
				Bits:     outFormat.BitDepth,
				Signed:   outFormat.Signed,
				Base:     outFormat.CSVBase,
				Channels: cfg.Channels,
				Style:    scaleStyle,
			})
		}
		return codec.CreateWAVWriter(cfg.OutputPath, outRate, cfg.Channels, outFormat, scaleStyle)
	}

	reporter := report.NewLogReporter(nil)
	controller := pipeline.New(cfg, reader, newWriter, reporter)

	result, err := controller.Run(context.Background())
	if err != nil && !pipeline.IsClippingUnresolved(err) {
		return fmt.Errorf("resample: %w", err)
	}
	reporter.Infof("done: %d frames in, %d frames out, peak %.4f, gain %.4f, %d clipping retries",
		result.FramesIn, result.FramesOut, result.Peak, result.GainApplied, result.ClippingRetries)
	if err != nil {
		return err
	}
	return nil
}

func parseQuality(s string) (engine.Quality, error) {
	switch strings.ToLower(s) {
	case "quick":
		return engine.QualityQuick, nil
	case "low":
		return engine.QualityLow, nil
	case "medium":
		return engine.QualityMedium, nil
	case "high", "":
		return engine.QualityHigh, nil
	case "veryhigh", "very-high":
		return engine.QualityVeryHigh, nil
	default:
		return 0, fmt.Errorf("resample: unrecognized --quality %q", s)
	}
}

func parseLPFMode(s string) (convconfig.LPFMode, error) {
	switch strings.ToLower(s) {
	case "normal", "":
		return convconfig.LPFNormal, nil
	case "relaxed":
		return convconfig.LPFRelaxed, nil
	case "steep":
		return convconfig.LPFSteep, nil
	case "custom":
		return convconfig.LPFCustom, nil
	default:
		return 0, fmt.Errorf("resample: unrecognized --lpf-mode %q", s)
	}
}

func resolveDitherProfile(s string, outputRate, inputRate int) dither.Profile {
	rate := outputRate
	if rate <= 0 {
		rate = inputRate
	}
	switch strings.ToLower(s) {
	case "flat":
		return dither.FlatProfile
	case "standard":
		return dither.DefaultProfileFor(44100) // standard is the <=48k default
	case "wide":
		return dither.DefaultProfileFor(192000) // wide is the >48k default
	default:
		return dither.DefaultProfileFor(rate)
	}
}
