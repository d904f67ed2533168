package codec

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/polyfir/resample/internal/format"
)

// Base is the numeral base used to render integer samples in a CSV
// output file, aliasing format.NumBase so a resolved format.Format's
// CSVBase can be passed straight through to NumberFormat.
type Base = format.NumBase

const (
	BaseDecimal = format.BaseDecimal
	BaseOctal   = format.BaseOctal
	BaseHex     = format.BaseHex
)

// NumberFormat describes how CSV.WriteFloat64 renders one sample.
type NumberFormat struct {
	Float    bool // render as a float literal, ignoring Bits/Signed/Base/Style
	Bits     int  // 1-64; ignored when Float is true
	Signed   bool
	Base     Base
	Style    format.ScaleStyle
	Channels int
}

// CSVWriter renders interleaved samples as comma-separated numeric text,
// one row per frame, one column per channel.
type CSVWriter struct {
	file   *os.File
	writer *csv.Writer
	nf     NumberFormat
	row    []string
}

// CreateCSVWriter creates path as a new CSV file.
func CreateCSVWriter(path string, nf NumberFormat) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("codec: creating %s: %w", path, err)
	}
	return &CSVWriter{
		file:   f,
		writer: csv.NewWriter(bufio.NewWriter(f)),
		nf:     nf,
		row:    make([]string, nf.Channels),
	}, nil
}

// WriteFloat64 implements Writer.
func (w *CSVWriter) WriteFloat64(buf []float64) error {
	channels := w.nf.Channels
	if channels <= 0 {
		channels = 1
	}
	for start := 0; start+channels <= len(buf); start += channels {
		for ch := 0; ch < channels; ch++ {
			w.row[ch] = w.renderSample(buf[start+ch])
		}
		if err := w.writer.Write(w.row); err != nil {
			return fmt.Errorf("codec: writing CSV row: %w", err)
		}
	}
	return nil
}

func (w *CSVWriter) renderSample(v float64) string {
	if w.nf.Float {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}

	code := format.ToInt(v, w.nf.Bits, w.nf.Style)
	var u uint64
	if !w.nf.Signed && code < 0 {
		u = uint64(code + (int64(1) << w.nf.Bits))
	} else {
		u = uint64(code)
	}

	switch w.nf.Base {
	case BaseOctal:
		if w.nf.Signed {
			return strconv.FormatInt(code, 8)
		}
		return strconv.FormatUint(u, 8)
	case BaseHex:
		if w.nf.Signed {
			return strconv.FormatInt(code, 16)
		}
		return strconv.FormatUint(u, 16)
	default:
		if w.nf.Signed {
			return strconv.FormatInt(code, 10)
		}
		return strconv.FormatUint(u, 10)
	}
}

// Close implements Writer.
func (w *CSVWriter) Close() error {
	w.writer.Flush()
	if err := w.writer.Error(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}
