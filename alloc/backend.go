package alloc

import (
	"sync"
	"unsafe"

	"modernc.org/memory"

	"github.com/wippyai/squash/errors"
)

// Backend provides raw byte-aligned blocks.
//
// Free receives the same base address and size that Alloc produced.
type Backend interface {
	Alloc(size int) (unsafe.Pointer, error)
	Free(p unsafe.Pointer, size int) error
}

// Heap allocates blocks on the Go heap.
//
// A payload pointer keeps its whole block reachable, so blocks are reclaimed
// by the garbage collector once the last handle is gone and Free only
// forgets the block. Go heap exhaustion is fatal to the process, so Alloc
// never reports an allocation error.
type Heap struct{}

// Alloc returns a zeroed block of size bytes.
// The block carries one byte of slack so a pointer to the end of an empty
// payload still addresses memory inside the same object.
func (Heap) Alloc(size int) (unsafe.Pointer, error) {
	b := make([]byte, size+1)
	return unsafe.Pointer(unsafe.SliceData(b)), nil
}

// Free is a no-op; the collector owns heap blocks.
func (Heap) Free(unsafe.Pointer, int) error {
	return nil
}

// Manual allocates blocks outside the Go heap.
//
// Blocks are invisible to the garbage collector: every block must be
// released through Free, and Close unmaps everything at once. Handles into a
// closed Manual must not be used.
type Manual struct {
	alloc  memory.Allocator
	mu     sync.Mutex
	closed bool
}

// NewManual creates an empty off-heap arena.
func NewManual() *Manual {
	return &Manual{}
}

// Alloc returns an uninitialized block of size bytes.
func (m *Manual) Alloc(size int) (unsafe.Pointer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.Closed(errors.PhaseAllocate, "manual arena")
	}
	return m.alloc.UnsafeMalloc(size)
}

// Free releases a block obtained from Alloc.
func (m *Manual) Free(p unsafe.Pointer, _ int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return errors.Closed(errors.PhaseFree, "manual arena")
	}
	return m.alloc.UnsafeFree(p)
}

// Close unmaps every page held by the arena.
func (m *Manual) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	Logger().Debug("manual arena closed")
	return m.alloc.Close()
}
