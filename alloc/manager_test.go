package alloc

import (
	"bytes"
	stderrors "errors"
	"math"
	"testing"
	"unsafe"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/squash/errors"
	"github.com/wippyai/squash/header"
)

func TestManager_CopyRoundTrip(t *testing.T) {
	counting := NewCounting(Heap{})
	m := New(counting)

	for _, n := range []int{1, 7, 254, 255, 256, 4096, 70000} {
		src := bytes.Repeat([]byte{byte(n)}, n)
		p, err := m.Copy(src)
		if err != nil {
			t.Fatalf("Copy(%d): %v", n, err)
		}
		if got := m.Length(p); got != n {
			t.Errorf("Length = %d, want %d", got, n)
		}
		if !bytes.Equal(m.View(p), src) {
			t.Errorf("View mismatch for length %d", n)
		}

		wantWidth := 1
		if n > header.ShortMax {
			wantWidth = 9
		}
		if got := m.HeaderWidth(p); got != wantWidth {
			t.Errorf("HeaderWidth(%d) = %d, want %d", n, got, wantWidth)
		}

		st := counting.Stats()
		if st.LiveBytes != int64(n+wantWidth) {
			t.Errorf("LiveBytes = %d, want %d", st.LiveBytes, n+wantWidth)
		}

		if err := m.Deallocate(p); err != nil {
			t.Fatalf("Deallocate(%d): %v", n, err)
		}
	}

	st := counting.Stats()
	if st.Live != 0 || st.LiveBytes != 0 || st.Rejected != 0 {
		t.Errorf("after release: %+v", st)
	}
}

func TestManager_Sentinel(t *testing.T) {
	counting := NewCounting(Heap{})
	m := New(counting)

	p, err := m.Allocate(0)
	if err != nil {
		t.Fatal(err)
	}
	if !IsSentinel(p) {
		t.Error("empty allocation should return the sentinel")
	}
	if m.Length(p) != 0 || m.View(p) != nil {
		t.Error("sentinel should decode as empty")
	}
	if err := m.Deallocate(p); err != nil {
		t.Errorf("Deallocate(sentinel): %v", err)
	}
	if err := m.Deallocate(p); err != nil {
		t.Errorf("second Deallocate(sentinel): %v", err)
	}
	if st := counting.Stats(); st.Allocs != 0 || st.Frees != 0 {
		t.Errorf("sentinel touched the backend: %+v", st)
	}
}

func TestManager_SentinelDisabled(t *testing.T) {
	counting := NewCounting(Heap{})
	m := New(counting, WithSentinel(false))

	p, err := m.Allocate(0)
	if err != nil {
		t.Fatal(err)
	}
	if IsSentinel(p) {
		t.Error("sentinel should be disabled")
	}
	if m.Length(p) != 0 {
		t.Errorf("Length = %d, want 0", m.Length(p))
	}
	if st := counting.Stats(); st.Allocs != 1 || st.LiveBytes != 1 {
		t.Errorf("want one 1-byte block, got %+v", st)
	}
	if err := m.Deallocate(p); err != nil {
		t.Fatal(err)
	}
	if st := counting.Stats(); st.Live != 0 {
		t.Errorf("block leaked: %+v", st)
	}
}

func TestManager_NilPointer(t *testing.T) {
	m := New(Heap{})
	if m.Length(nil) != 0 || m.HeaderWidth(nil) != 0 || m.View(nil) != nil {
		t.Error("nil should behave as empty")
	}
	if err := m.Deallocate(nil); err != nil {
		t.Errorf("Deallocate(nil): %v", err)
	}
}

func TestManager_DoubleFreeRejected(t *testing.T) {
	counting := NewCounting(Heap{})
	m := New(counting)

	p, err := m.Copy([]byte("token"))
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Deallocate(p); err != nil {
		t.Fatal(err)
	}
	err = m.Deallocate(p)
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindDoubleFree}) {
		t.Fatalf("second Deallocate = %v, want double free", err)
	}
	if st := counting.Stats(); st.Rejected != 1 || st.Frees != 1 {
		t.Errorf("stats = %+v", st)
	}
}

func TestManager_AllocationFailure(t *testing.T) {
	counting := NewCounting(Heap{})
	counting.SetLimit(16)
	m := New(counting)

	_, err := m.Copy(make([]byte, 100))
	if !stderrors.Is(err, &errors.Error{Kind: errors.KindAllocation}) {
		t.Fatalf("got %v, want allocation error", err)
	}
	if st := counting.Stats(); st.Live != 0 || st.Failed != 1 {
		t.Errorf("failed allocation left state behind: %+v", st)
	}

	p, err := m.Copy(make([]byte, 10))
	if err != nil {
		t.Fatalf("small copy under limit: %v", err)
	}
	if err := m.Deallocate(p); err != nil {
		t.Fatal(err)
	}
}

func TestManager_Overflow(t *testing.T) {
	t.Run("narrow codec", func(t *testing.T) {
		if math.MaxInt == math.MaxInt32 {
			t.Skip("lengths above 2^32 need a 64-bit int")
		}
		m := New(Heap{}, WithCodec(header.Narrow))
		var huge uint64 = 1 << 32
		_, err := m.Size(int(huge))
		if !stderrors.Is(err, &errors.Error{Kind: errors.KindOverflow}) {
			t.Fatalf("got %v, want overflow", err)
		}
	})

	t.Run("total size", func(t *testing.T) {
		m := New(Heap{})
		_, err := m.Allocate(math.MaxInt - 3)
		if !stderrors.Is(err, &errors.Error{Kind: errors.KindOverflow}) {
			t.Fatalf("got %v, want overflow", err)
		}
	})

	t.Run("negative", func(t *testing.T) {
		m := New(Heap{})
		if _, err := m.Allocate(-1); err == nil {
			t.Fatal("expected error for negative length")
		}
	})
}

type failingFree struct {
	Heap
}

func (failingFree) Free(unsafe.Pointer, int) error {
	return stderrors.New("boom")
}

func TestManager_ReleaseLogsFailure(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	m := New(failingFree{})
	p, err := m.Copy([]byte("abc"))
	if err != nil {
		t.Fatal(err)
	}
	m.Release(p)

	if logs.Len() != 1 {
		t.Fatalf("expected one warning, got %d", logs.Len())
	}
	entry := logs.All()[0]
	if entry.ContextMap()["error"] != "boom" {
		t.Errorf("unexpected log context: %v", entry.ContextMap())
	}
}

func TestDefault(t *testing.T) {
	m := New(Heap{}, WithSentinel(false))
	prev := SetDefault(m)
	t.Cleanup(func() { SetDefault(prev) })

	if Default() != m {
		t.Error("Default should return the installed manager")
	}
	if prev == nil {
		t.Error("a default manager should exist at init")
	}
}

func BenchmarkManager_CopyDeallocate(b *testing.B) {
	m := New(Heap{})
	src := []byte("identifier")
	b.ReportAllocs()
	for b.Loop() {
		p, _ := m.Copy(src)
		_ = m.Deallocate(p)
	}
}
