package alloc

import (
	"sync"
	"unsafe"

	"github.com/wippyai/squash/errors"
)

// Stats is a snapshot of Counting activity.
type Stats struct {
	Allocs     uint64 // successful Alloc calls
	Frees      uint64 // successful Free calls
	Failed     uint64 // Alloc calls rejected by the limit or the inner backend
	Rejected   uint64 // Free calls for blocks that were not live
	Live       int    // blocks currently outstanding
	LiveBytes  int64  // bytes currently outstanding
	PeakBytes  int64  // high-water mark of LiveBytes
	TotalBytes uint64 // bytes ever allocated
}

// Counting wraps a Backend and tracks every live block.
//
// Freeing a block that is not live (double free, foreign pointer) or with a
// size other than the one allocated is rejected before it reaches the inner
// backend.
type Counting struct {
	inner Backend
	live  map[uintptr]int
	stats Stats
	limit int64
	mu    sync.Mutex
}

// NewCounting wraps inner.
func NewCounting(inner Backend) *Counting {
	return &Counting{
		inner: inner,
		live:  make(map[uintptr]int),
	}
}

// SetLimit makes Alloc fail once LiveBytes would exceed n. Zero disables
// the limit.
func (c *Counting) SetLimit(n int64) {
	c.mu.Lock()
	c.limit = n
	c.mu.Unlock()
}

// Alloc implements Backend.
func (c *Counting) Alloc(size int) (unsafe.Pointer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.limit > 0 && c.stats.LiveBytes+int64(size) > c.limit {
		c.stats.Failed++
		return nil, errors.New(errors.PhaseAllocate, errors.KindAllocation).
			Value(size).
			Detail("limit of %d bytes reached (%d live)", c.limit, c.stats.LiveBytes).
			Build()
	}

	p, err := c.inner.Alloc(size)
	if err != nil {
		c.stats.Failed++
		return nil, err
	}

	c.live[uintptr(p)] = size
	c.stats.Allocs++
	c.stats.Live++
	c.stats.LiveBytes += int64(size)
	c.stats.TotalBytes += uint64(size)
	if c.stats.LiveBytes > c.stats.PeakBytes {
		c.stats.PeakBytes = c.stats.LiveBytes
	}
	return p, nil
}

// Free implements Backend.
func (c *Counting) Free(p unsafe.Pointer, size int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	got, ok := c.live[uintptr(p)]
	if !ok {
		c.stats.Rejected++
		return errors.DoubleFree(uintptr(p), size)
	}
	if got != size {
		c.stats.Rejected++
		return errors.New(errors.PhaseFree, errors.KindInvalidData).
			Value(size).
			Detail("block %#x allocated with %d bytes, freed with %d", uintptr(p), got, size).
			Build()
	}

	if err := c.inner.Free(p, size); err != nil {
		return err
	}
	delete(c.live, uintptr(p))
	c.stats.Frees++
	c.stats.Live--
	c.stats.LiveBytes -= int64(size)
	return nil
}

// Stats returns a snapshot of the counters.
func (c *Counting) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
