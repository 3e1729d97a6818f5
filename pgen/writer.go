package pgen

import (
	"encoding/binary"
	"io"

	"github.com/teaguesterling/plinking-duck/errs"
)

// Writer emits a genotype file a variant record at a time. It exists for
// test fixtures and for tools that materialize a genotype file from
// another source (e.g. a future write path); the scan orchestrator never
// writes genotype files itself.
type Writer struct {
	w               io.Writer
	wordsPerVariant int
}

// NewWriter writes the header for rawVariantCt/rawSampleCt and returns a
// Writer ready to accept exactly rawVariantCt calls to WriteVariant.
func NewWriter(w io.Writer, rawVariantCt, rawSampleCt uint32) (*Writer, error) {
	if err := WriteHeader(w, rawVariantCt, rawSampleCt); err != nil {
		return nil, errs.E(errs.IO, "pgen write header", err)
	}
	hc := &HeaderContext{RawSampleCt: rawSampleCt}
	hc.Populate()
	return &Writer{w: w, wordsPerVariant: hc.WordsPerVariant}, nil
}

// WriteVariant writes one variant's calls, one entry per raw sample in
// file order; valid values are 0 (hom-ref), 1 (het), 2 (hom-alt), and
// missingInt8/-1 (missing).
func (wr *Writer) WriteVariant(calls []int8) error {
	words := make([]uint64, wr.wordsPerVariant)
	for i, c := range calls {
		var code uint8
		switch c {
		case 0:
			code = callHomRef
		case 1:
			code = callHet
		case 2:
			code = callHomAlt
		default:
			code = callMissing
		}
		bitPos := i * 2
		words[bitPos/64] |= uint64(code) << uint(bitPos%64)
	}
	buf := make([]byte, wr.wordsPerVariant*8)
	for i, w := range words {
		binary.LittleEndian.PutUint64(buf[i*8:i*8+8], w)
	}
	if _, err := wr.w.Write(buf); err != nil {
		return errs.E(errs.IO, "pgen write variant", err)
	}
	return nil
}
