package codec

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

// DSFReader decodes a DSF (Sony DSD Stream File) container into its
// "notional" high-rate float PCM representation: each 1-bit DSD sample
// becomes +1.0 or -1.0 at the DSD bit rate, handed to the resampling
// pipeline exactly like any other high-rate float source (per-channel
// decimation down to a normal PCM rate happens in the ordinary stage
// cascade, not in this reader).
type DSFReader struct {
	file         *os.File
	sampleRate   int
	channels     int
	blockSize    int
	dataStart    int64
	dataSize     int64
	bitPos       int64 // bit offset into the per-channel block stream, shared cursor
}

const dsdBitDepth = 1

// OpenDSFReader opens a DSF file and parses its fmt/data chunks.
func OpenDSFReader(path string) (*DSFReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("codec: opening %s: %w", path, err)
	}

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil || string(magic[:]) != "DSD " {
		f.Close()
		return nil, fmt.Errorf("codec: %s is not a DSF file", path)
	}
	// DSD chunk: 4 (id) + 8 (chunk size) + 8 (file size) + 8 (metadata ptr) = 28 bytes
	if _, err := f.Seek(28, io.SeekStart); err != nil {
		f.Close()
		return nil, err
	}

	var fmtMagic [4]byte
	if _, err := io.ReadFull(f, fmtMagic[:]); err != nil || string(fmtMagic[:]) != "fmt " {
		f.Close()
		return nil, fmt.Errorf("codec: %s: missing fmt chunk", path)
	}
	var chunkSize uint64
	if err := binary.Read(f, binary.LittleEndian, &chunkSize); err != nil {
		f.Close()
		return nil, err
	}
	fmtBody := make([]byte, chunkSize)
	if _, err := io.ReadFull(f, fmtBody); err != nil {
		f.Close()
		return nil, err
	}
	// fmt body layout (little-endian uint32s after the version/formatID pair):
	// formatVersion, formatID, channelType, channelNum, samplingFrequency,
	// bitsPerSample (uint32), sampleCount (uint64), blockSizePerChannel (uint32)
	channels := int(binary.LittleEndian.Uint32(fmtBody[12:16]))
	sampleRate := int(binary.LittleEndian.Uint32(fmtBody[16:20]))
	blockSize := int(binary.LittleEndian.Uint32(fmtBody[32:36]))

	var dataMagic [4]byte
	if _, err := io.ReadFull(f, dataMagic[:]); err != nil || string(dataMagic[:]) != "data" {
		f.Close()
		return nil, fmt.Errorf("codec: %s: missing data chunk", path)
	}
	var dataChunkSize uint64
	if err := binary.Read(f, binary.LittleEndian, &dataChunkSize); err != nil {
		f.Close()
		return nil, err
	}
	dataStart, _ := f.Seek(0, io.SeekCurrent)

	return &DSFReader{
		file:       f,
		sampleRate: sampleRate,
		channels:   channels,
		blockSize:  blockSize,
		dataStart:  dataStart,
		dataSize:   int64(dataChunkSize) - 12,
	}, nil
}

func (r *DSFReader) SampleRate() int { return r.sampleRate }
func (r *DSFReader) Channels() int   { return r.channels }
func (r *DSFReader) BitDepth() int   { return dsdBitDepth }

// ReadFloat64 implements Reader, unpacking DSD bits (MSB-first per byte,
// blocked per channel) into +1.0/-1.0 float frames.
func (r *DSFReader) ReadFloat64(buf []float64) (int, error) {
	channels := r.channels
	wantFrames := len(buf) / channels
	if wantFrames == 0 {
		return 0, nil
	}

	totalBits := r.dataSize * 8 / int64(channels)
	framesAvailable := totalBits - r.bitPos
	if framesAvailable <= 0 {
		return 0, io.EOF
	}
	n := int64(wantFrames)
	if n > framesAvailable {
		n = framesAvailable
	}

	for i := int64(0); i < n; i++ {
		frameBit := r.bitPos + i
		for ch := 0; ch < channels; ch++ {
			bit, err := r.readBit(ch, frameBit)
			if err != nil {
				return int(i), err
			}
			v := -1.0
			if bit == 1 {
				v = 1.0
			}
			buf[i*int64(channels)+int64(ch)] = v
		}
	}
	r.bitPos += n

	var err error
	if r.bitPos >= totalBits {
		err = io.EOF
	}
	return int(n), err
}

// readBit reads bit index bitInFrame (0-based, same counter for every
// channel) from channel ch's interleaved block stream.
func (r *DSFReader) readBit(ch int, bitInFrame int64) (byte, error) {
	bytesPerChannelBlock := int64(r.blockSize)
	blockIndex := bitInFrame / 8 / bytesPerChannelBlock
	byteInBlock := (bitInFrame / 8) % bytesPerChannelBlock
	bitInByte := uint(7 - bitInFrame%8) // MSB first

	offset := r.dataStart + blockIndex*bytesPerChannelBlock*int64(r.channels) +
		int64(ch)*bytesPerChannelBlock + byteInBlock

	var b [1]byte
	if _, err := r.file.ReadAt(b[:], offset); err != nil {
		return 0, err
	}
	return (b[0] >> bitInByte) & 1, nil
}

func (r *DSFReader) Close() error { return r.file.Close() }

// FrameCount returns the number of decodable sample frames, used for
// progress reporting and by the CLI to predict the output size.
func (r *DSFReader) FrameCount() int64 {
	if r.channels == 0 {
		return 0
	}
	return r.dataSize * 8 / int64(r.channels)
}

// SeekStart rewinds the bit cursor to the first frame, used by the
// pipeline's clipping-retry protocol when it must redo a full pass.
func (r *DSFReader) SeekStart() error {
	r.bitPos = 0
	return nil
}
