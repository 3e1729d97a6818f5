package pgen

import (
	"sync"

	"github.com/teaguesterling/plinking-duck/errs"
)

// DecoderSession owns a genotype file's HeaderContext and every Reader
// opened against it, enforcing the teardown order pgenlib's
// CleanupPgr-before-CleanupPgfi contract requires: every outstanding
// Reader must close before the header context itself does. A
// DecoderSession is safe for concurrent NewReader calls (each worker
// goroutine opens its own Reader at startup); the Readers themselves are
// not safe for concurrent use.
type DecoderSession struct {
	path string
	hc   *HeaderContext

	mu      sync.Mutex
	readers []*Reader
	closed  bool
}

// OpenSession probes path once and returns a session new Readers can be
// opened against.
func OpenSession(path string) (*DecoderSession, error) {
	hc, err := Probe(path)
	if err != nil {
		return nil, err
	}
	return &DecoderSession{path: path, hc: hc}, nil
}

// Header returns the session's shared header context.
func (s *DecoderSession) Header() *HeaderContext { return s.hc }

// NewReader opens a new exclusive Reader against this session's file,
// tracked so Close can tear every Reader down before releasing the header.
func (s *DecoderSession) NewReader() (*Reader, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errs.Errorf("pgen session %s: NewReader after Close", s.path)
	}
	r, err := NewReader(s.path, s.hc)
	if err != nil {
		return nil, err
	}
	s.readers = append(s.readers, r)
	return r, nil
}

// Close closes every Reader this session opened, in the order they were
// created, then marks the session closed. Readers a worker already closed
// are skipped (Reader.Close is idempotent), so the sweep only catches
// readers whose worker never ran its own teardown. The HeaderContext
// itself holds no OS resources, so there is nothing further to release
// once the Readers are gone — but Close still enforces the ordering
// contract so a future HeaderContext that does own resources (e.g. a
// memory-mapped index) can be added without changing every caller.
func (s *DecoderSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for _, r := range s.readers {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.readers = nil
	s.closed = true
	return firstErr
}
