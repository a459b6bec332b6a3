package squash

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

type token struct {
	Kind  string `cbor:"kind" json:"kind"`
	Text  Str    `cbor:"text" json:"text"`
	Bytes Bytes  `cbor:"raw" json:"raw"`
}

func (tk *token) free() {
	tk.Text.Free()
	tk.Bytes.Free()
}

func newToken(t *testing.T, text string, raw []byte) token {
	t.Helper()
	s, err := FromString(text)
	if err != nil {
		t.Fatal(err)
	}
	b, err := FromSlice(raw)
	if err != nil {
		t.Fatal(err)
	}
	return token{Kind: "ident", Text: s, Bytes: b}
}

func TestMarshal_CBOR(t *testing.T) {
	counting := useCounting(t)

	in := newToken(t, "naïve", []byte{0, 1, 2, 0xff})
	data, err := cbor.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	// The wire form is a plain CBOR map of text and byte strings.
	var plain struct {
		Kind string `cbor:"kind"`
		Text string `cbor:"text"`
		Raw  []byte `cbor:"raw"`
	}
	if err := cbor.Unmarshal(data, &plain); err != nil {
		t.Fatalf("Unmarshal plain: %v", err)
	}
	if plain.Text != "naïve" || !bytes.Equal(plain.Raw, []byte{0, 1, 2, 0xff}) {
		t.Errorf("plain = %+v", plain)
	}

	var out token
	if err := cbor.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.Text.Equal(in.Text) || !out.Bytes.Equal(in.Bytes) {
		t.Errorf("roundtrip mismatch: %#v vs %#v", out.Text, in.Text)
	}

	in.free()
	out.free()
	if st := counting.Stats(); st.Live != 0 {
		t.Errorf("leak: %+v", st)
	}
}

func TestMarshal_CBOREmpty(t *testing.T) {
	var b Bytes
	data, err := b.MarshalCBOR()
	if err != nil {
		t.Fatal(err)
	}
	// 0x40 is the empty byte string, not null.
	if !bytes.Equal(data, []byte{0x40}) {
		t.Errorf("empty Bytes = %x, want 40", data)
	}

	var s Str
	data, err = s.MarshalCBOR()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x60}) {
		t.Errorf("empty Str = %x, want 60", data)
	}
}

func TestMarshal_CBORRejectsInvalidText(t *testing.T) {
	// Text string of length 1 holding 0x80.
	data := []byte{0x61, 0x80}
	var s Str
	err := s.UnmarshalCBOR(data)
	if err == nil {
		t.Fatal("expected error")
	}
	if !s.IsEmpty() {
		t.Error("failed unmarshal should leave s unchanged")
	}
}

func TestMarshal_JSON(t *testing.T) {
	counting := useCounting(t)

	in := newToken(t, "quote\"d", []byte("bin"))
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"kind":"ident","text":"quote\"d","raw":"Ymlu"}`
	if string(data) != want {
		t.Errorf("json = %s, want %s", data, want)
	}

	var out token
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Text.View() != "quote\"d" || out.Bytes.String() != "bin" {
		t.Errorf("roundtrip = %q, %q", out.Text.View(), out.Bytes.String())
	}

	// Decoding into an owning value releases the old block.
	if err := json.Unmarshal([]byte(`{"text":"replaced"}`), &out); err != nil {
		t.Fatal(err)
	}
	if out.Text.View() != "replaced" {
		t.Errorf("Text = %q", out.Text.View())
	}

	in.free()
	out.free()
	if st := counting.Stats(); st.Live != 0 || st.Rejected != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestMarshal_Text(t *testing.T) {
	var s Str
	if err := s.UnmarshalText([]byte("text")); err != nil {
		t.Fatal(err)
	}
	defer s.Free()

	out, err := s.MarshalText()
	if err != nil || string(out) != "text" {
		t.Errorf("MarshalText = %q, %v", out, err)
	}

	err = s.UnmarshalText([]byte{0xff})
	if !errors.Is(err, ErrInvalidUTF8) {
		t.Errorf("got %v, want invalid UTF-8", err)
	}
	if s.View() != "text" {
		t.Error("failed UnmarshalText should keep the previous value")
	}
}

func TestMarshal_Binary(t *testing.T) {
	var b Bytes
	if err := b.UnmarshalBinary([]byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	defer b.Free()

	out, err := b.MarshalBinary()
	if err != nil || !bytes.Equal(out, []byte{1, 2, 3}) {
		t.Errorf("MarshalBinary = %v, %v", out, err)
	}
	out[0] = 9
	if b.View()[0] != 1 {
		t.Error("MarshalBinary should copy")
	}
}
