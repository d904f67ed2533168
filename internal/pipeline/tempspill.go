package pipeline

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// tempSpill is a scratch file holding interleaved float64 frames from a
// first resampling pass, read back by a second pass that applies gain and
// dither once the first pass's peak is known. Using a real temp file (not
// an in-memory buffer) keeps peak memory bounded regardless of input
// length, the same tradeoff the original single-process converter made.
type tempSpill struct {
	file     *os.File
	writer   *bufio.Writer
	channels int
}

func newTempSpill(channels int) (*tempSpill, error) {
	f, err := os.CreateTemp("", "resample-spill-*.f64")
	if err != nil {
		return nil, fmt.Errorf("pipeline: creating temp spill file: %w", err)
	}
	return &tempSpill{file: f, writer: bufio.NewWriter(f), channels: channels}, nil
}

func (t *tempSpill) WriteFloat64(buf []float64) error {
	for _, v := range buf {
		if err := binary.Write(t.writer, binary.LittleEndian, v); err != nil {
			return fmt.Errorf("pipeline: writing spill frame: %w", err)
		}
	}
	return nil
}

// rewind flushes pending writes and seeks back to the start for reading.
func (t *tempSpill) rewind() error {
	if err := t.writer.Flush(); err != nil {
		return err
	}
	_, err := t.file.Seek(0, io.SeekStart)
	return err
}

func (t *tempSpill) ReadFloat64(buf []float64) (int, error) {
	n := 0
	var v float64
	for n < len(buf) {
		if err := binary.Read(t.file, binary.LittleEndian, &v); err != nil {
			if err == io.EOF {
				return n, io.EOF
			}
			return n, fmt.Errorf("pipeline: reading spill frame: %w", err)
		}
		buf[n] = v
		n++
	}
	return n, nil
}

func (t *tempSpill) close() error {
	path := t.file.Name()
	closeErr := t.file.Close()
	removeErr := os.Remove(path)
	if closeErr != nil {
		return closeErr
	}
	return removeErr
}

const float64Size = 8

// bytesPerFrame is exposed for callers sizing read buffers against a known
// disk budget.
func (t *tempSpill) bytesPerFrame() int64 { return int64(t.channels) * float64Size }
