// Package pgen implements the binary genotype file codec: a two-phase
// probe/populate header, an exclusive-per-goroutine decoder session, and
// the dense/fast-count/dosage/missingness read paths a Reader exposes to
// the scan orchestrator and kernels.
//
// The lifecycle follows pgenlib's PgfiInitPhase1 / PgfiInitPhase2 /
// PgenFileInfo / PgenReader split. The on-disk layout is a deliberately
// narrowed subset of real PGEN: fixed-width two-bit calls only, no
// difflist or LD-compressed variant records, no multiallelic or phased
// storage.
package pgen

import (
	"encoding/binary"
	"io"
	"os"

	"github.com/teaguesterling/plinking-duck/errs"
)

// magic identifies a plinking-duck genotype file. The first two bytes
// match real PGEN's magic (0x6c, 0x1b) so the format is recognizably a
// member of the same family; the third byte is this module's own mode
// tag, not a real PGEN storage-mode value.
var magic = [2]byte{0x6c, 0x1b}

// modeFixed2Bit is the only storage mode this codec understands: every
// variant record is a dense, fixed-width array of 2-bit calls, one call
// per raw sample, samples in file order.
const modeFixed2Bit = 0x10

const headerLen = 2 + 1 + 4 + 4 // magic + mode + raw_variant_ct + raw_sample_ct

// HeaderContext is the result of the probe phase: the file's dimensions
// and the derived per-variant record width, enough for a caller to size
// buffers before any genotype data is touched. Mirrors the
// PgfiInitPhase1/PgfiInitPhase2 split: Probe corresponds to phase 1
// (counts only), Populate's caller-visible effect (WordsPerVariant,
// BytesPerVariant) corresponds to phase 2's max_vrec_width computation,
// collapsed here into arithmetic since every record has the same width.
type HeaderContext struct {
	RawVariantCt uint32
	RawSampleCt  uint32

	WordsPerVariant int
	BytesPerVariant int64

	dataOffset int64
}

// Probe reads and validates a genotype file's header without reading any
// genotype data, the Go analogue of PgfiInitPhase1.
func Probe(path string) (*HeaderContext, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.IO, "pgen probe open "+path, err)
	}
	defer f.Close() // nolint: errcheck

	buf := make([]byte, headerLen)
	if _, err := io.ReadFull(f, buf); err != nil {
		return nil, errs.E(errs.IO, "pgen probe read header "+path, err)
	}
	if buf[0] != magic[0] || buf[1] != magic[1] {
		return nil, errs.Errorf("pgen probe %s: bad magic %02x%02x", path, buf[0], buf[1])
	}
	if buf[2] != modeFixed2Bit {
		return nil, errs.NotImplementedf("pgen probe %s: unsupported storage mode 0x%02x", path, buf[2])
	}

	hc := &HeaderContext{
		RawVariantCt: binary.LittleEndian.Uint32(buf[3:7]),
		RawSampleCt:  binary.LittleEndian.Uint32(buf[7:11]),
	}
	hc.Populate()
	return hc, nil
}

// Populate computes the derived layout fields (phase 2's equivalent: in
// real pgenlib this is where alloc sizes and max_vrec_width are computed
// from the counts phase 1 already read). Safe to call repeatedly; it is
// pure arithmetic over RawSampleCt.
func (hc *HeaderContext) Populate() {
	hc.WordsPerVariant = (2*int(hc.RawSampleCt) + 63) / 64
	if hc.WordsPerVariant == 0 {
		hc.WordsPerVariant = 1
	}
	hc.BytesPerVariant = int64(hc.WordsPerVariant) * 8
	hc.dataOffset = headerLen
}

// VariantOffset returns the byte offset of variant vidx's record.
func (hc *HeaderContext) VariantOffset(vidx uint32) int64 {
	return hc.dataOffset + int64(vidx)*hc.BytesPerVariant
}

// WriteHeader writes a genotype file header for rawVariantCt variants over
// rawSampleCt samples; used by tests and by tools that synthesize fixture
// files.
func WriteHeader(w io.Writer, rawVariantCt, rawSampleCt uint32) error {
	buf := make([]byte, headerLen)
	buf[0], buf[1] = magic[0], magic[1]
	buf[2] = modeFixed2Bit
	binary.LittleEndian.PutUint32(buf[3:7], rawVariantCt)
	binary.LittleEndian.PutUint32(buf[7:11], rawSampleCt)
	_, err := w.Write(buf)
	return err
}
