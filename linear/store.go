package linear

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/wippyai/squash/errors"
	"github.com/wippyai/squash/header"
)

// Handle is the offset of a payload in linear memory. The header sits in
// the bytes right before it.
type Handle uint32

// Empty is the handle of every zero-length payload. Nothing is allocated
// for it.
const Empty Handle = 0

// Store lays out length-prefixed payloads in linear memory.
//
// Handles are plain uint32 offsets, so they can be passed to and from the
// guest as i32 values.
type Store struct {
	mem   Memory
	alloc Allocator
	codec header.Codec
	align uint32
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithAlign sets the alignment of the blocks requested from the allocator.
// The payload itself follows the header and is not aligned.
func WithAlign(align uint32) StoreOption {
	return func(s *Store) {
		s.align = align
	}
}

// NewStore creates a store writing to mem and allocating through a.
func NewStore(mem Memory, a Allocator, opts ...StoreOption) *Store {
	s := &Store{
		mem:   mem,
		alloc: a,
		codec: header.Narrow,
		align: 1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Put copies data into a new block and returns its handle.
func (s *Store) Put(data []byte) (Handle, error) {
	if len(data) == 0 {
		return Empty, nil
	}

	w, err := s.codec.Width(uint64(len(data)))
	if err != nil {
		return Empty, err
	}
	if uint64(len(data)) > math.MaxUint32-uint64(w) {
		return Empty, errors.Overflow(errors.PhaseAllocate, uint64(len(data)), math.MaxUint32-uint64(w))
	}
	size := uint32(w + len(data))

	base, err := s.alloc.Alloc(size, s.align)
	if err != nil {
		return Empty, errors.AllocationFailed(errors.PhaseAllocate, int(size), err)
	}

	if err := s.putHeader(base, uint32(len(data)), w); err != nil {
		s.alloc.Free(base, size, s.align)
		return Empty, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "write header")
	}
	h := base + uint32(w)
	if err := s.mem.Write(h, data); err != nil {
		s.alloc.Free(base, size, s.align)
		return Empty, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "write payload")
	}
	return Handle(h), nil
}

// putHeader writes the header of a w-byte block prefix at base.
func (s *Store) putHeader(base, length uint32, w int) error {
	if w == header.ShortWidth {
		return s.mem.WriteU8(base, uint8(length))
	}
	if err := s.mem.WriteU32(base, length); err != nil {
		return err
	}
	return s.mem.WriteU8(base+4, header.Marker)
}

// PutString validates str as UTF-8 and copies it into a new block. Invalid
// input allocates nothing.
func (s *Store) PutString(str string) (Handle, error) {
	if off := errors.FirstInvalidUTF8(str); off >= 0 {
		return Empty, errors.InvalidUTF8(errors.PhaseValidate, []byte(str), off)
	}
	return s.Put([]byte(str))
}

// Len returns the payload length of h.
func (s *Store) Len(h Handle) (int, error) {
	n, _, err := s.load(h)
	return int(n), err
}

// Read returns a view of the payload of h. The view aliases guest memory
// and is invalidated by a later Free of h or growth of the memory.
func (s *Store) Read(h Handle) ([]byte, error) {
	n, _, err := s.load(h)
	if err != nil || n == 0 {
		return nil, err
	}
	data, err := s.mem.Read(uint32(h), uint32(n))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseMemory, errors.KindOutOfBounds, err, "read payload")
	}
	return data, nil
}

// ReadString returns a copy of the payload of h as a string.
func (s *Store) ReadString(h Handle) (string, error) {
	data, err := s.Read(h)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Free releases the block of h. Freeing Empty is a no-op.
//
// When the allocator reports rejected releases (Spans does), freeing a
// handle twice returns a double free error.
func (s *Store) Free(h Handle) error {
	if h == Empty {
		return nil
	}
	n, w, err := s.load(h)
	if err != nil {
		return err
	}
	base := uint32(h) - uint32(w)
	size := uint32(w) + uint32(n)
	Logger().Debug("free", zap.Uint32("handle", uint32(h)), zap.Uint32("size", size))

	if r, ok := s.alloc.(releaser); ok {
		return r.Release(base, size, s.align)
	}
	s.alloc.Free(base, size, s.align)
	return nil
}

// releaser is an Allocator that reports blocks it cannot release.
type releaser interface {
	Release(ptr, size, align uint32) error
}

// load decodes the header ending right before h.
func (s *Store) load(h Handle) (length uint64, width int, err error) {
	if h == Empty {
		return 0, 0, nil
	}
	last, err := s.mem.ReadU8(uint32(h) - 1)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseDecode, errors.KindInvalidHandle).
			Value(h).
			Cause(err).
			Detail("handle %d has no readable header", h).
			Build()
	}
	if last != header.Marker {
		return uint64(last), header.ShortWidth, nil
	}

	ext := uint32(s.codec.ExtendedWidth())
	if uint32(h) < ext {
		return 0, 0, errors.InvalidHandle(errors.PhaseDecode, h)
	}
	v, err := s.mem.ReadU32(uint32(h) - ext)
	if err != nil {
		return 0, 0, errors.New(errors.PhaseDecode, errors.KindInvalidHandle).
			Value(h).
			Cause(err).
			Detail("handle %d has no readable header", h).
			Build()
	}
	if v <= header.ShortMax {
		return 0, 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(v).
			Detail("length %d stored in extended form", v).
			Build()
	}
	return uint64(v), int(ext), nil
}

func (h Handle) String() string {
	return fmt.Sprintf("0x%x", uint32(h))
}
