package alloc

import (
	"math"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/wippyai/squash/errors"
	"github.com/wippyai/squash/header"
)

// sentinel stands in for every empty payload when the optimization is on.
// Its first byte is a short header of length 0 and the payload pointer is
// &sentinel[1], so decoding needs no special case. It is never written and
// never released.
var sentinel [2]byte

// Empty returns the shared payload pointer of the empty sentinel.
func Empty() unsafe.Pointer {
	return unsafe.Pointer(&sentinel[1])
}

// IsSentinel reports whether p is the shared empty payload.
func IsSentinel(p unsafe.Pointer) bool {
	return p == unsafe.Pointer(&sentinel[1])
}

// Manager lays out header and payload in a single backend block.
//
// Allocate and Deallocate derive the header width through the same codec
// call, so the size handed back to the backend always matches the size it
// produced.
type Manager struct {
	backend  Backend
	codec    header.Codec
	sentinel bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithSentinel enables or disables the shared empty payload. It is enabled
// by default.
func WithSentinel(on bool) Option {
	return func(m *Manager) {
		m.sentinel = on
	}
}

// WithCodec selects the header codec. Defaults to header.Wide.
func WithCodec(c header.Codec) Option {
	return func(m *Manager) {
		m.codec = c
	}
}

// New creates a manager over backend.
func New(backend Backend, opts ...Option) *Manager {
	m := &Manager{
		backend:  backend,
		codec:    header.Wide,
		sentinel: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	Logger().Debug("allocation manager created",
		zap.String("backend", backendName(backend)),
		zap.Int("extended_width", m.codec.ExtendedWidth()),
		zap.Bool("sentinel", m.sentinel))
	return m
}

// Backend returns the backend blocks come from.
func (m *Manager) Backend() Backend {
	return m.backend
}

// Codec returns the header codec.
func (m *Manager) Codec() header.Codec {
	return m.codec
}

// Size returns the block size needed for a payload of length bytes.
func (m *Manager) Size(length int) (int, error) {
	if length < 0 {
		return 0, errors.InvalidData(errors.PhaseAllocate, "negative length")
	}
	w, err := m.codec.Width(uint64(length))
	if err != nil {
		return 0, err
	}
	if length > math.MaxInt-w {
		return 0, errors.Overflow(errors.PhaseAllocate, uint64(length), uint64(math.MaxInt-w))
	}
	return w + length, nil
}

// Allocate reserves a block for length payload bytes, writes the header and
// returns the payload pointer. Payload contents are unspecified.
func (m *Manager) Allocate(length int) (unsafe.Pointer, error) {
	if length == 0 && m.sentinel {
		return Empty(), nil
	}
	size, err := m.Size(length)
	if err != nil {
		return nil, err
	}

	base, err := m.backend.Alloc(size)
	if err != nil {
		return nil, errors.AllocationFailed(errors.PhaseAllocate, size, err)
	}
	if base == nil {
		return nil, errors.AllocationFailed(errors.PhaseAllocate, size, nil)
	}

	w := size - length
	if _, err := m.codec.Put(unsafe.Slice((*byte)(base), w), uint64(length)); err != nil {
		// Unreachable: Size already validated the length.
		_ = m.backend.Free(base, size)
		return nil, err
	}
	return unsafe.Add(base, w), nil
}

// Copy allocates a block holding a copy of src.
func (m *Manager) Copy(src []byte) (unsafe.Pointer, error) {
	p, err := m.Allocate(len(src))
	if err != nil {
		return nil, err
	}
	if len(src) > 0 {
		copy(unsafe.Slice((*byte)(p), len(src)), src)
	}
	return p, nil
}

// Deallocate releases the block behind payload pointer p.
// nil and the empty sentinel are ignored.
func (m *Manager) Deallocate(p unsafe.Pointer) error {
	if p == nil || IsSentinel(p) {
		return nil
	}
	length, w := m.codec.Load(p)
	return m.backend.Free(unsafe.Add(p, -w), w+int(length))
}

// Release is Deallocate for callers without an error path: failures are
// logged and dropped.
func (m *Manager) Release(p unsafe.Pointer) {
	if err := m.Deallocate(p); err != nil {
		Logger().Warn("Release: backend rejected block",
			zap.Uintptr("ptr", uintptr(p)),
			zap.Error(err))
	}
}

// Length decodes the payload length behind p. nil has length 0.
func (m *Manager) Length(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	length, _ := m.codec.Load(p)
	return int(length)
}

// HeaderWidth returns the size of the header in front of p.
func (m *Manager) HeaderWidth(p unsafe.Pointer) int {
	if p == nil {
		return 0
	}
	_, w := m.codec.Load(p)
	return w
}

// View returns the payload behind p without copying.
func (m *Manager) View(p unsafe.Pointer) []byte {
	n := m.Length(p)
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

func backendName(b Backend) string {
	switch b.(type) {
	case Heap, *Heap:
		return "heap"
	case *Manual:
		return "manual"
	case *Counting:
		return "counting"
	default:
		return "custom"
	}
}

var defaultManager atomic.Pointer[Manager]

func init() {
	defaultManager.Store(New(Heap{}))
}

// Default returns the manager used by the squash value types.
func Default() *Manager {
	return defaultManager.Load()
}

// SetDefault installs m as the default manager and returns the previous one.
//
// Values are released through whichever manager is default at release
// time, so swap only while no values built by the previous manager are
// alive.
func SetDefault(m *Manager) *Manager {
	return defaultManager.Swap(m)
}
