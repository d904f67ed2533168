// Package engine implements the polyphase resampling core (component C3):
// a chain of Stage implementations that together realize an arbitrary
// rational sample-rate conversion ratio L/M.
package engine

// Stage is one step of a resampling chain. A Resampler is built from one
// or more Stages whose ratios multiply out to the overall L/M conversion
// ratio. Every Stage call operates on a single channel's float64 samples;
// interleaving/deinterleaving happens above this package, in
// internal/worker.
type Stage interface {
	// Process resamples input and returns as many output samples as the
	// accumulated phase currently allows. Samples that belong to a future
	// call are retained internally, not returned early.
	Process(input []float64) ([]float64, error)

	// Flush drains any samples still held in internal history, padding
	// with zeros as needed. Called once at end of stream.
	Flush() ([]float64, error)

	// Reset clears all internal state (history, phase accumulator) so the
	// stage can be reused for a new channel or a retried pass.
	Reset()

	// GetRatio returns outputRate/inputRate for this stage.
	GetRatio() float64

	// GetLatency returns this stage's group delay in output samples.
	GetLatency() int

	// GetFilterLength returns the number of taps per phase (0 if the stage
	// has no filter, e.g. cubic/linear interpolation).
	GetFilterLength() int

	// GetPhases returns the number of polyphase branches (0 if none).
	GetPhases() int
}
