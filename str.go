package squash

import (
	"fmt"
	"strings"
	"unicode/utf8"
	"unsafe"

	"github.com/wippyai/squash/errors"
)

// Str is an owned, immutable UTF-8 string behind a single pointer.
//
// The payload is validated once, at construction; View never re-validates.
// All other behavior is that of the wrapped Bytes.
type Str struct {
	b Bytes
}

// FromString copies s into a fresh block. Go strings may hold arbitrary
// bytes, so s is validated like FromBytes does.
func FromString(s string) (Str, error) {
	data := unsafe.Slice(unsafe.StringData(s), len(s))
	if !utf8.ValidString(s) {
		return Str{}, errors.InvalidUTF8(errors.PhaseValidate, data, errors.FirstInvalidUTF8(s))
	}
	b, err := FromSlice(data)
	if err != nil {
		return Str{}, err
	}
	return Str{b: b}, nil
}

// FromBytes validates b and copies it into a fresh block. Nothing is
// allocated when validation fails; the error carries the offset of the first
// invalid byte.
func FromBytes(b []byte) (Str, error) {
	if !utf8.Valid(b) {
		return Str{}, errors.InvalidUTF8(errors.PhaseValidate, b, errors.FirstInvalidUTF8(unsafe.String(unsafe.SliceData(b), len(b))))
	}
	v, err := FromSlice(b)
	if err != nil {
		return Str{}, err
	}
	return Str{b: v}, nil
}

// Len returns the payload length in bytes.
func (s Str) Len() int {
	return s.b.Len()
}

// IsEmpty reports whether the string is empty.
func (s Str) IsEmpty() bool {
	return s.b.IsEmpty()
}

// RuneCount returns the number of code points.
func (s Str) RuneCount() int {
	return utf8.RuneCountInString(s.View())
}

// View returns the text without copying. The string is valid until Free.
func (s Str) View() string {
	v := s.b.View()
	if len(v) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(v), len(v))
}

// AsBytes returns the payload bytes without copying.
func (s Str) AsBytes() []byte {
	return s.b.View()
}

// Take moves ownership out of s, leaving s empty.
func (s *Str) Take() Str {
	return Str{b: s.b.Take()}
}

// Clone copies the text into a new, independently owned block.
func (s Str) Clone() (Str, error) {
	b, err := s.b.Clone()
	if err != nil {
		return Str{}, err
	}
	return Str{b: b}, nil
}

// Free releases the block and leaves s empty.
func (s *Str) Free() {
	s.b.Free()
}

// Equal reports whether both strings hold the same bytes.
func (s Str) Equal(o Str) bool {
	return s.b.Equal(o.b)
}

// Compare orders strings lexicographically by byte.
func (s Str) Compare(o Str) int {
	return s.b.Compare(o.b)
}

// String returns a copy of the text.
func (s Str) String() string {
	return strings.Clone(s.View())
}

// GoString implements fmt.GoStringer.
func (s Str) GoString() string {
	return fmt.Sprintf("squash.Str(%q)", s.View())
}
