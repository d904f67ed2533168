package codec

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/polyfir/resample/internal/format"
)

// WAVReader reads a WAV/RF64 file via go-audio/wav, normalizing every
// sample to float64 in [-1, 1] regardless of the file's native bit depth.
type WAVReader struct {
	file    *os.File
	decoder *wav.Decoder
	buf     *audio.IntBuffer
	maxVal  float64
}

// OpenWAVReader opens path and validates it is a readable WAV file.
func OpenWAVReader(path string) (*WAVReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codec: opening %s: %w", path, err)
	}
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("codec: %s is not a valid WAV file", path)
	}
	dec.ReadInfo()

	bits := int(dec.BitDepth)
	return &WAVReader{
		file:    f,
		decoder: dec,
		buf: &audio.IntBuffer{
			Format: &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:   make([]int, 4096*int(dec.NumChans)),
		},
		maxVal: float64(int64(1)<<(bits-1)) - 1,
	}, nil
}

func (r *WAVReader) SampleRate() int { return int(r.decoder.SampleRate) }
func (r *WAVReader) Channels() int   { return int(r.decoder.NumChans) }
func (r *WAVReader) BitDepth() int   { return int(r.decoder.BitDepth) }

// ReadFloat64 implements Reader.
func (r *WAVReader) ReadFloat64(buf []float64) (int, error) {
	channels := r.Channels()
	wantFrames := len(buf) / channels
	if wantFrames == 0 {
		return 0, nil
	}
	if cap(r.buf.Data) < wantFrames*channels {
		r.buf.Data = make([]int, wantFrames*channels)
	}
	r.buf.Data = r.buf.Data[:wantFrames*channels]

	n, err := r.decoder.PCMBuffer(r.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("codec: reading WAV samples: %w", err)
	}
	for i := 0; i < n; i++ {
		buf[i] = float64(r.buf.Data[i]) / r.maxVal
	}
	frames := n / channels
	if n == 0 {
		return 0, io.EOF
	}
	return frames, err
}

func (r *WAVReader) Close() error { return r.file.Close() }

// FrameCount returns the decoder's reported sample-frame count, used to
// size progress-reporting percentages and by the CLI to predict the output
// size; 0 if unknown.
func (r *WAVReader) FrameCount() int64 {
	dur, err := r.decoder.Duration()
	if err != nil {
		return 0
	}
	return int64(dur.Seconds() * float64(r.SampleRate()))
}

// SeekStart rewinds the reader to the first audio frame, used by the
// pipeline's clipping-retry protocol when it must redo a full pass.
func (r *WAVReader) SeekStart() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("codec: rewinding %s: %w", r.file.Name(), err)
	}
	dec := wav.NewDecoder(r.file)
	if !dec.IsValidFile() {
		return fmt.Errorf("codec: re-opening %s for rewind", r.file.Name())
	}
	dec.ReadInfo()
	r.decoder = dec
	return nil
}

// WAVWriter writes a WAV file via go-audio/wav.Encoder, converting float64
// samples in [-1, 1] to the target bit depth using the given scaling
// style.
type WAVWriter struct {
	file    *os.File
	encoder *wav.Encoder
	buf     *audio.IntBuffer
	bits    int
	signed  bool
	style   format.ScaleStyle
}

// CreateWAVWriter creates path as a new WAV file with the given format.
func CreateWAVWriter(path string, sampleRate, channels int, f format.Format, style format.ScaleStyle) (*WAVWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("codec: creating %s: %w", path, err)
	}
	audioFormat := 1 // PCM
	if f.Float {
		audioFormat = 3 // IEEE float
	}
	enc := wav.NewEncoder(file, sampleRate, f.BitDepth, channels, audioFormat)
	return &WAVWriter{
		file:    file,
		encoder: enc,
		buf:     &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}},
		bits:    f.BitDepth,
		signed:  f.Signed || f.Float,
		style:   style,
	}, nil
}

// WriteFloat64 implements Writer.
func (w *WAVWriter) WriteFloat64(buf []float64) error {
	data := make([]int, len(buf))
	for i, v := range buf {
		code := format.ToInt(v, w.bits, w.style)
		if !w.signed {
			// 8-bit WAV PCM is conventionally offset-binary (silence at
			// 128), not two's complement.
			code += int64(1) << (w.bits - 1)
		}
		data[i] = int(code)
	}
	w.buf.Data = data
	w.buf.SourceBitDepth = w.bits
	return w.encoder.Write(w.buf)
}

func (w *WAVWriter) Close() error {
	if err := w.encoder.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("codec: closing WAV encoder: %w", err)
	}
	return w.file.Close()
}
