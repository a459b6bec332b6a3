package linear

import (
	"bytes"
	stderrors "errors"
	"strings"
	"testing"

	"github.com/wippyai/squash/errors"
	"github.com/wippyai/squash/header"
)

func newStore(t *testing.T, opts ...StoreOption) (*Store, *Wrapper, *Spans) {
	t.Helper()
	mem := newMemory(t)
	spans := NewSpans(8, pageSize)
	return NewStore(mem, spans, opts...), mem, spans
}

func TestStore_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		n     int
		width int
	}{
		{"one byte", 1, 1},
		{"short max", header.ShortMax, 1},
		{"first extended", header.ShortMax + 1, 5},
		{"thousand", 1000, 5},
		{"large", 40000, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mem, spans := newStore(t)
			data := bytes.Repeat([]byte{0xAB}, tt.n)
			data[0] = 0x01

			h, err := s.Put(data)
			if err != nil {
				t.Fatalf("Put failed: %v", err)
			}
			if h == Empty {
				t.Fatal("non-empty payload got the empty handle")
			}

			n, err := s.Len(h)
			if err != nil || n != tt.n {
				t.Errorf("Len: expected %d, got %d (%v)", tt.n, n, err)
			}
			got, err := s.Read(h)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Error("payload mismatch")
			}

			// The header occupies the bytes right before the handle.
			if uint32(h)-8 != uint32(tt.width) {
				t.Errorf("header width: expected %d, got %d", tt.width, uint32(h)-8)
			}
			raw, _ := mem.Read(8, uint32(tt.width))
			want, _ := header.Narrow.Encode(uint64(tt.n))
			if !bytes.Equal(raw, want) {
				t.Errorf("header bytes: expected %x, got %x", want, raw)
			}

			if err := s.Free(h); err != nil {
				t.Fatalf("Free failed: %v", err)
			}
			if spans.Available() != pageSize-8 || spans.Fragments() != 1 {
				t.Errorf("region not restored: available=%d fragments=%d", spans.Available(), spans.Fragments())
			}
		})
	}
}

func TestStore_Empty(t *testing.T) {
	s, _, spans := newStore(t)

	h, err := s.Put(nil)
	if err != nil || h != Empty {
		t.Fatalf("Put(nil): expected Empty, got %v (%v)", h, err)
	}
	h, err = s.PutString("")
	if err != nil || h != Empty {
		t.Fatalf("PutString(\"\"): expected Empty, got %v (%v)", h, err)
	}
	if spans.Available() != pageSize-8 {
		t.Error("empty payloads must not allocate")
	}

	if n, err := s.Len(Empty); n != 0 || err != nil {
		t.Errorf("Len(Empty) = %d, %v", n, err)
	}
	if data, err := s.Read(Empty); data != nil || err != nil {
		t.Errorf("Read(Empty) = %v, %v", data, err)
	}
	if str, err := s.ReadString(Empty); str != "" || err != nil {
		t.Errorf("ReadString(Empty) = %q, %v", str, err)
	}
	if err := s.Free(Empty); err != nil {
		t.Errorf("Free(Empty): %v", err)
	}
}

func TestStore_Strings(t *testing.T) {
	s, _, spans := newStore(t)

	texts := []string{"a", "héllo", strings.Repeat("日本", 100)}
	handles := make([]Handle, len(texts))
	for i, text := range texts {
		h, err := s.PutString(text)
		if err != nil {
			t.Fatalf("PutString(%q): %v", text, err)
		}
		handles[i] = h
	}
	for i, h := range handles {
		got, err := s.ReadString(h)
		if err != nil || got != texts[i] {
			t.Errorf("ReadString: expected %q, got %q (%v)", texts[i], got, err)
		}
	}
	for _, h := range handles {
		if err := s.Free(h); err != nil {
			t.Fatal(err)
		}
	}
	if spans.Fragments() != 1 {
		t.Errorf("fragments after free: %d", spans.Fragments())
	}
}

func TestStore_PutStringInvalid(t *testing.T) {
	s, _, spans := newStore(t)

	_, err := s.PutString("ab\xffcd")
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidUTF8}) {
		t.Fatalf("expected invalid UTF-8, got %v", err)
	}
	if off, ok := errors.UTF8Offset(err); !ok || off != 2 {
		t.Errorf("offset: expected 2, got %d", off)
	}
	if spans.Available() != pageSize-8 {
		t.Error("invalid input must not allocate")
	}
}

func TestStore_Exhaustion(t *testing.T) {
	mem := newMemory(t)
	s := NewStore(mem, NewSpans(8, 64))

	_, err := s.Put(make([]byte, 100))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindAllocation}) {
		t.Fatalf("expected allocation error, got %v", err)
	}
}

func TestStore_WithAlign(t *testing.T) {
	mem := newMemory(t)
	spans := NewSpans(9, pageSize)
	s := NewStore(mem, spans, WithAlign(8))

	h, err := s.Put([]byte("aligned"))
	if err != nil {
		t.Fatal(err)
	}
	// Block starts at 16, the one-byte header puts the payload at 17.
	if h != 17 {
		t.Errorf("handle: expected 17, got %d", h)
	}
	if err := s.Free(h); err != nil {
		t.Fatal(err)
	}
	if spans.Available() != pageSize-9 {
		t.Errorf("available: %d", spans.Available())
	}
}

func TestStore_InvalidHandle(t *testing.T) {
	s, _, _ := newStore(t)

	_, err := s.Read(Handle(pageSize + 10))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidHandle}) {
		t.Errorf("expected invalid handle, got %v", err)
	}
}

func TestStore_NonMinimalHeader(t *testing.T) {
	s, mem, _ := newStore(t)

	// Length 3 stored in the extended form.
	if err := mem.Write(100, []byte{3, 0, 0, 0, header.Marker, 'a', 'b', 'c'}); err != nil {
		t.Fatal(err)
	}
	_, err := s.Len(Handle(105))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindInvalidData}) {
		t.Errorf("expected invalid data, got %v", err)
	}
}

func TestStore_DoubleFree(t *testing.T) {
	s, _, spans := newStore(t)

	h, err := s.Put([]byte("once"))
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Free(h); err != nil {
		t.Fatalf("first Free: %v", err)
	}
	err = s.Free(h)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindDoubleFree}) {
		t.Fatalf("expected double free, got %v", err)
	}
	if spans.Available() != pageSize-8 || spans.Fragments() != 1 {
		t.Errorf("rejected free changed the region: available=%d fragments=%d", spans.Available(), spans.Fragments())
	}
}

// sliceMemory is a Memory over a plain byte slice that counts integer
// accesses.
type sliceMemory struct {
	buf     []byte
	u8, u32 int
}

func (m *sliceMemory) check(offset, n uint32) error {
	if uint64(offset)+uint64(n) > uint64(len(m.buf)) {
		return stderrors.New("out of bounds")
	}
	return nil
}

func (m *sliceMemory) Read(offset, length uint32) ([]byte, error) {
	if err := m.check(offset, length); err != nil {
		return nil, err
	}
	return m.buf[offset : offset+length], nil
}

func (m *sliceMemory) Write(offset uint32, data []byte) error {
	if err := m.check(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.buf[offset:], data)
	return nil
}

func (m *sliceMemory) ReadU8(offset uint32) (uint8, error) {
	m.u8++
	if err := m.check(offset, 1); err != nil {
		return 0, err
	}
	return m.buf[offset], nil
}

func (m *sliceMemory) ReadU32(offset uint32) (uint32, error) {
	m.u32++
	if err := m.check(offset, 4); err != nil {
		return 0, err
	}
	b := m.buf[offset:]
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24, nil
}

func (m *sliceMemory) WriteU8(offset uint32, value uint8) error {
	m.u8++
	if err := m.check(offset, 1); err != nil {
		return err
	}
	m.buf[offset] = value
	return nil
}

func (m *sliceMemory) WriteU32(offset uint32, value uint32) error {
	m.u32++
	if err := m.check(offset, 4); err != nil {
		return err
	}
	m.buf[offset] = byte(value)
	m.buf[offset+1] = byte(value >> 8)
	m.buf[offset+2] = byte(value >> 16)
	m.buf[offset+3] = byte(value >> 24)
	return nil
}

func TestStore_CustomMemory(t *testing.T) {
	tests := []struct {
		name string
		n    int
		u32  int // integer header accesses for Put + Len
	}{
		{"short", 10, 0},
		{"extended", 300, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := &sliceMemory{buf: make([]byte, 1024)}
			s := NewStore(mem, NewSpans(0, 1024))

			h, err := s.Put(bytes.Repeat([]byte{'z'}, tt.n))
			if err != nil {
				t.Fatal(err)
			}
			n, err := s.Len(h)
			if err != nil || n != tt.n {
				t.Fatalf("Len: expected %d, got %d (%v)", tt.n, n, err)
			}
			if mem.u32 != tt.u32 {
				t.Errorf("u32 accesses: expected %d, got %d", tt.u32, mem.u32)
			}

			want, _ := header.Narrow.Encode(uint64(tt.n))
			if !bytes.Equal(mem.buf[:len(want)], want) {
				t.Errorf("header bytes: expected %x, got %x", want, mem.buf[:len(want)])
			}
			if err := s.Free(h); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func BenchmarkStore_PutFree(b *testing.B) {
	mem := newMemory(b)
	s := NewStore(mem, NewSpans(8, pageSize))
	data := []byte("ident_42")
	b.ReportAllocs()
	for b.Loop() {
		h, _ := s.Put(data)
		_ = s.Free(h)
	}
}
