package squash

import (
	"bytes"
	"fmt"
	"unsafe"

	"github.com/wippyai/squash/alloc"
)

// Bytes is an owned, immutable byte sequence behind a single pointer.
//
// The length lives in a header in front of the payload and is decoded on
// every call. The zero value is an empty sequence that owns nothing.
//
// Ownership: a Bytes owns its block until Free. Assigning a Bytes copies the
// handle, not the payload; exactly one copy may be freed. Use Take to move
// ownership explicitly.
type Bytes struct {
	p unsafe.Pointer
}

// FromSlice copies b into a fresh block.
func FromSlice(b []byte) (Bytes, error) {
	p, err := alloc.Default().Copy(b)
	if err != nil {
		return Bytes{}, err
	}
	return Bytes{p: p}, nil
}

// FromBuffer squashes the unread portion of buf and resets it.
// On error buf is left untouched.
func FromBuffer(buf *bytes.Buffer) (Bytes, error) {
	v, err := FromSlice(buf.Bytes())
	if err != nil {
		return Bytes{}, err
	}
	buf.Reset()
	return v, nil
}

// Len decodes the payload length.
func (b Bytes) Len() int {
	return alloc.Default().Length(b.p)
}

// IsEmpty reports whether the payload is empty.
func (b Bytes) IsEmpty() bool {
	return b.Len() == 0
}

// View returns the payload without copying. The slice is valid until Free
// and must not be modified.
func (b Bytes) View() []byte {
	return alloc.Default().View(b.p)
}

// ToSlice copies the payload into a new slice.
func (b Bytes) ToSlice() []byte {
	v := b.View()
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// AppendTo appends the payload to dst.
func (b Bytes) AppendTo(dst []byte) []byte {
	return append(dst, b.View()...)
}

// Take moves ownership out of b, leaving b empty.
func (b *Bytes) Take() Bytes {
	v := *b
	b.p = nil
	return v
}

// Clone copies the payload into a new, independently owned block.
func (b Bytes) Clone() (Bytes, error) {
	return FromSlice(b.View())
}

// Free releases the block and leaves b empty. Freeing an empty or
// moved-from value does nothing.
func (b *Bytes) Free() {
	if b.p == nil {
		return
	}
	alloc.Default().Release(b.p)
	b.p = nil
}

// Equal reports whether both payloads hold the same bytes.
func (b Bytes) Equal(o Bytes) bool {
	return b.p == o.p || bytes.Equal(b.View(), o.View())
}

// Compare orders payloads lexicographically by byte.
func (b Bytes) Compare(o Bytes) int {
	if b.p == o.p {
		return 0
	}
	return bytes.Compare(b.View(), o.View())
}

// String returns a copy of the payload as a string.
func (b Bytes) String() string {
	return string(b.View())
}

// GoString implements fmt.GoStringer.
func (b Bytes) GoString() string {
	return fmt.Sprintf("squash.Bytes(%q)", b.View())
}
