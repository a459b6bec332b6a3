package linear

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/squash/errors"
)

type span struct {
	off  uint32
	size uint32
}

func (s span) end() uint32 { return s.off + s.size }

// Spans is a host-side first-fit allocator over a fixed region of linear
// memory. Freed blocks are coalesced with their neighbours.
//
// Use it for memories whose guest exports no allocator.
type Spans struct {
	free []span // sorted by offset, never adjacent
	mu   sync.Mutex
}

// NewSpans manages the region [lo, hi).
func NewSpans(lo, hi uint32) *Spans {
	s := &Spans{}
	if hi > lo {
		s.free = []span{{off: lo, size: hi - lo}}
	}
	return s
}

// Alloc implements Allocator.
func (s *Spans) Alloc(size, align uint32) (uint32, error) {
	if size == 0 {
		return 0, fmt.Errorf("zero-sized allocation")
	}
	if align == 0 {
		align = 1
	}
	if align&(align-1) != 0 {
		return 0, fmt.Errorf("alignment %d is not a power of two", align)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, sp := range s.free {
		start := (sp.off + align - 1) &^ (align - 1)
		if start < sp.off {
			continue // wrapped
		}
		end := start + size
		if end < start || end > sp.end() {
			continue
		}

		var repl []span
		if start > sp.off {
			repl = append(repl, span{off: sp.off, size: start - sp.off})
		}
		if end < sp.end() {
			repl = append(repl, span{off: end, size: sp.end() - end})
		}
		s.free = append(s.free[:i], append(repl, s.free[i+1:]...)...)
		return start, nil
	}
	return 0, fmt.Errorf("no free span for %d bytes (align %d)", size, align)
}

// Free implements Allocator. Blocks overlapping free space are logged and
// ignored.
func (s *Spans) Free(ptr, size, align uint32) {
	if err := s.Release(ptr, size, align); err != nil {
		Logger().Warn("Free: block overlaps free space",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// Release returns a block to the region. A block that overlaps free space,
// such as one released twice, is rejected with a double free error and the
// region is left unchanged.
func (s *Spans) Release(ptr, size, _ uint32) error {
	if size == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	blk := span{off: ptr, size: size}
	i := sort.Search(len(s.free), func(i int) bool { return s.free[i].off >= ptr })

	if (i > 0 && s.free[i-1].end() > blk.off) || (i < len(s.free) && blk.end() > s.free[i].off) {
		return errors.DoubleFree(uintptr(ptr), int(size))
	}

	mergeLeft := i > 0 && s.free[i-1].end() == blk.off
	mergeRight := i < len(s.free) && blk.end() == s.free[i].off

	switch {
	case mergeLeft && mergeRight:
		s.free[i-1].size += blk.size + s.free[i].size
		s.free = append(s.free[:i], s.free[i+1:]...)
	case mergeLeft:
		s.free[i-1].size += blk.size
	case mergeRight:
		s.free[i].off = blk.off
		s.free[i].size += blk.size
	default:
		s.free = append(s.free, span{})
		copy(s.free[i+1:], s.free[i:])
		s.free[i] = blk
	}
	return nil
}

// Available returns the total free bytes.
func (s *Spans) Available() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n uint32
	for _, sp := range s.free {
		n += sp.size
	}
	return n
}

// Fragments returns the number of disjoint free spans.
func (s *Spans) Fragments() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.free)
}
