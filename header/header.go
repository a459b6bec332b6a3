package header

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/wippyai/squash/errors"
)

const (
	// ShortMax is the largest length stored in a one-byte header.
	ShortMax = 254

	// Marker is the last header byte of the extended form. It is never a
	// valid short length.
	Marker = 0xFF

	// ShortWidth is the size of the short form.
	ShortWidth = 1
)

// Form identifies which header layout encodes a length.
type Form uint8

const (
	Short    Form = iota // single length byte
	Extended             // little-endian integer followed by Marker
)

func (f Form) String() string {
	switch f {
	case Short:
		return "short"
	case Extended:
		return "extended"
	default:
		return "unknown"
	}
}

// Codec encodes lengths with a fixed extended integer width.
type Codec struct {
	ext int
}

var (
	// Wide uses an 8-byte extended integer. Used for process memory.
	Wide = Codec{ext: 8}

	// Narrow uses a 4-byte extended integer. Used for 32-bit linear memory.
	Narrow = Codec{ext: 4}
)

// ExtendedWidth returns the total size of the extended form.
func (c Codec) ExtendedWidth() int {
	return 1 + c.ext
}

// Max returns the largest length the codec can represent.
func (c Codec) Max() uint64 {
	if c.ext >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*uint(c.ext)) - 1
}

// Form returns the minimal form for length.
func (c Codec) Form(length uint64) Form {
	if length <= ShortMax {
		return Short
	}
	return Extended
}

// Width returns the header size for length.
func (c Codec) Width(length uint64) (int, error) {
	if length <= ShortMax {
		return ShortWidth, nil
	}
	if length > c.Max() {
		return 0, errors.Overflow(errors.PhaseEncode, length, c.Max())
	}
	return c.ExtendedWidth(), nil
}

// Put writes the header for length into dst[:width] and returns width.
// The byte at dst[width-1] is the one immediately preceding the payload.
func (c Codec) Put(dst []byte, length uint64) (int, error) {
	w, err := c.Width(length)
	if err != nil {
		return 0, err
	}
	if len(dst) < w {
		return 0, errors.OutOfBounds(errors.PhaseEncode, w-1, len(dst))
	}
	if w == ShortWidth {
		dst[0] = byte(length)
		return w, nil
	}
	c.putUint(dst[:c.ext], length)
	dst[c.ext] = Marker
	return w, nil
}

// Append appends the header for length to dst.
func (c Codec) Append(dst []byte, length uint64) ([]byte, error) {
	w, err := c.Width(length)
	if err != nil {
		return dst, err
	}
	n := len(dst)
	dst = append(dst, make([]byte, w)...)
	if _, err := c.Put(dst[n:], length); err != nil {
		return dst[:n], err
	}
	return dst, nil
}

// Encode returns the header bytes for length.
func (c Codec) Encode(length uint64) ([]byte, error) {
	return c.Append(nil, length)
}

// Decode reads the header that ends right before buf[payload].
// It rejects truncated headers and non-minimal extended encodings.
func (c Codec) Decode(buf []byte, payload int) (length uint64, width int, err error) {
	if payload < 1 || payload > len(buf) {
		return 0, 0, errors.OutOfBounds(errors.PhaseDecode, payload-1, len(buf))
	}
	last := buf[payload-1]
	if last != Marker {
		return uint64(last), ShortWidth, nil
	}
	start := payload - c.ExtendedWidth()
	if start < 0 {
		return 0, 0, errors.OutOfBounds(errors.PhaseDecode, start, len(buf))
	}
	length = c.uint(buf[start : payload-1])
	if length <= ShortMax {
		return 0, 0, errors.New(errors.PhaseDecode, errors.KindInvalidData).
			Value(length).
			Detail("length %d stored in extended form", length).
			Build()
	}
	return length, c.ExtendedWidth(), nil
}

// Load decodes the header that ends right before the payload pointer p.
//
// p must point at the payload of a block laid out by this codec; no bounds
// are checked.
func (c Codec) Load(p unsafe.Pointer) (length uint64, width int) {
	last := *(*byte)(unsafe.Add(p, -1))
	if last != Marker {
		return uint64(last), ShortWidth
	}
	ext := unsafe.Slice((*byte)(unsafe.Add(p, -c.ExtendedWidth())), c.ext)
	return c.uint(ext), c.ExtendedWidth()
}

func (c Codec) putUint(dst []byte, v uint64) {
	switch c.ext {
	case 8:
		binary.LittleEndian.PutUint64(dst, v)
	case 4:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	default:
		for i := range dst {
			dst[i] = byte(v >> (8 * i))
		}
	}
}

func (c Codec) uint(src []byte) uint64 {
	switch c.ext {
	case 8:
		return binary.LittleEndian.Uint64(src)
	case 4:
		return uint64(binary.LittleEndian.Uint32(src))
	default:
		var v uint64
		for i, b := range src {
			v |= uint64(b) << (8 * i)
		}
		return v
	}
}
