package pgen

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/teaguesterling/plinking-duck/align"
	"github.com/teaguesterling/plinking-duck/errs"
	"github.com/teaguesterling/plinking-duck/subset"
)

// Reader is an exclusive per-goroutine decoder session over one genotype
// file: its file handle and scratch buffer are not safe for concurrent
// use, matching PgenLocalState's one-pgr-per-thread contract. The scan
// orchestrator opens one Reader per worker goroutine, all sharing the
// same *HeaderContext.
type Reader struct {
	hc      *HeaderContext
	f       *os.File
	scratch []uint64
	closed  bool
}

// Open probes path and opens an exclusive decoder session over it.
func Open(path string) (*Reader, error) {
	hc, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return NewReader(path, hc)
}

// NewReader opens another exclusive session against an already-probed
// header, letting multiple goroutines share one HeaderContext while each
// holds its own file handle and scratch buffer.
func NewReader(path string, hc *HeaderContext) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.E(errs.IO, "pgen open "+path, err)
	}
	return &Reader{
		hc:      hc,
		f:       f,
		scratch: align.NewWords64(hc.WordsPerVariant),
	}, nil
}

// Header returns the shared header context.
func (r *Reader) Header() *HeaderContext { return r.hc }

// Close releases the reader's file handle. Mirrors CleanupPgr/CleanupPgfi's
// explicit-cleanup-before-header-teardown contract: callers must Close
// every Reader sharing a HeaderContext before discarding the header.
// Idempotent, so a worker closing its own Reader composes with the
// session-level sweep in DecoderSession.Close.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.f.Close(); err != nil {
		return errs.E(errs.IO, "pgen close", err)
	}
	return nil
}

// readRecord reads variant vidx's record into the reader's scratch buffer
// and returns it; the returned slice is only valid until the next read on
// this Reader.
func (r *Reader) readRecord(vidx uint32) ([]uint64, error) {
	if vidx >= r.hc.RawVariantCt {
		return nil, errs.Errorf("pgen: variant index %d out of range (variant count: %d)", vidx, r.hc.RawVariantCt)
	}
	off := r.hc.VariantOffset(vidx)
	buf := make([]byte, r.hc.BytesPerVariant)
	if _, err := r.f.ReadAt(buf, off); err != nil && err != io.EOF {
		return nil, errs.E(errs.IO, "pgen read record", err)
	}
	for i := 0; i < r.hc.WordsPerVariant; i++ {
		r.scratch[i] = binary.LittleEndian.Uint64(buf[i*8 : i*8+8])
	}
	return r.scratch, nil
}

// GetGenotypes densely decodes variant vidx's calls for the samples named
// by sub, in sub's order, as allele counts (0/1/2) with missingInt8 (-1)
// for a missing call.
func (r *Reader) GetGenotypes(vidx uint32, sub *subset.SampleSubset) ([]int8, error) {
	words, err := r.readRecord(vidx)
	if err != nil {
		return nil, err
	}
	out := make([]int8, len(sub.Indices()))
	for i, rawIdx := range sub.Indices() {
		out[i] = callToGenotype(getCall(words, int(rawIdx)))
	}
	return out, nil
}

// GetDosages decodes variant vidx as float64 dosages (0.0/1.0/2.0), using
// NaN for a missing call. This fixed-width codec carries no fractional
// dosage information, so a dosage read is exactly the hard-call read
// widened to float64; kernels that want imputed or centered values apply
// that transform themselves.
func (r *Reader) GetDosages(vidx uint32, sub *subset.SampleSubset) ([]float64, error) {
	calls, err := r.GetGenotypes(vidx, sub)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(calls))
	for i, c := range calls {
		if c == missingInt8 {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(c)
	}
	return out, nil
}

// GetMissingness decodes only whether each selected sample's call is
// missing, in sub's order.
func (r *Reader) GetMissingness(vidx uint32, sub *subset.SampleSubset) ([]bool, error) {
	words, err := r.readRecord(vidx)
	if err != nil {
		return nil, err
	}
	out := make([]bool, len(sub.Indices()))
	for i, rawIdx := range sub.Indices() {
		out[i] = getCall(words, int(rawIdx)) == callMissing
	}
	return out, nil
}

// Counts are the (hom-ref, het, hom-alt, missing) call tallies over a
// sample subset.
type Counts struct {
	HomRef, Het, HomAlt, Missing int
}

// GetCounts runs the fast popcount-based count path over variant vidx,
// never materializing a per-sample decoded array — the Go analogue of
// pgenlib's PgrGetCounts, which dispatches to GenoarrCountSubsetFreqs
// instead of PgrGet whenever a caller only needs tallies.
func (r *Reader) GetCounts(vidx uint32, sub *subset.SampleSubset) (Counts, error) {
	words, err := r.readRecord(vidx)
	if err != nil {
		return Counts{}, err
	}
	homRef, het, homAlt, missing := countRecord(words, sub.Interleaved, int(sub.SubsetSampleCt))
	return Counts{HomRef: homRef, Het: het, HomAlt: homAlt, Missing: missing}, nil
}
