package squash

import (
	"encoding/json"

	"github.com/fxamacker/cbor/v2"

	"github.com/wippyai/squash/errors"
)

// The value types present themselves to serializers as a plain byte string
// or text string; there is no squash-specific wire format.

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2).
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("squash: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		UTF8: cbor.UTF8RejectInvalid,
	}.DecMode()
	if err != nil {
		panic("squash: CBOR decoder initialization failed: " + err.Error())
	}
}

// nonNil keeps empty payloads from encoding as null.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// replace installs v into b, releasing whatever b owned before.
func (b *Bytes) replace(v Bytes) {
	b.Free()
	*b = v
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (b Bytes) MarshalBinary() ([]byte, error) {
	return b.ToSlice(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (b *Bytes) UnmarshalBinary(data []byte) error {
	v, err := FromSlice(data)
	if err != nil {
		return err
	}
	b.replace(v)
	return nil
}

// MarshalCBOR encodes the payload as a CBOR byte string.
func (b Bytes) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(nonNil(b.View()))
}

// UnmarshalCBOR decodes a CBOR byte string (or null) into b.
func (b *Bytes) UnmarshalCBOR(data []byte) error {
	var raw []byte
	if err := decMode.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.PhaseUnmarshal, errors.KindInvalidData, err, "cbor byte string")
	}
	return b.UnmarshalBinary(raw)
}

// MarshalJSON encodes the payload as a base64 JSON string.
func (b Bytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(nonNil(b.View()))
}

// UnmarshalJSON decodes a base64 JSON string (or null) into b.
func (b *Bytes) UnmarshalJSON(data []byte) error {
	var raw []byte
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(errors.PhaseUnmarshal, errors.KindInvalidData, err, "json byte string")
	}
	return b.UnmarshalBinary(raw)
}

// MarshalText implements encoding.TextMarshaler.
func (s Str) MarshalText() ([]byte, error) {
	return s.b.ToSlice(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Invalid UTF-8 is
// rejected and s is left unchanged.
func (s *Str) UnmarshalText(text []byte) error {
	v, err := FromBytes(text)
	if err != nil {
		return err
	}
	s.b.replace(v.b)
	return nil
}

// MarshalCBOR encodes the text as a CBOR text string.
func (s Str) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(s.View())
}

// UnmarshalCBOR decodes a CBOR text string into s.
func (s *Str) UnmarshalCBOR(data []byte) error {
	var text string
	if err := decMode.Unmarshal(data, &text); err != nil {
		return errors.Wrap(errors.PhaseUnmarshal, errors.KindInvalidData, err, "cbor text string")
	}
	v, err := FromString(text)
	if err != nil {
		return err
	}
	s.b.replace(v.b)
	return nil
}

// MarshalJSON encodes the text as a JSON string.
func (s Str) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.View())
}

// UnmarshalJSON decodes a JSON string into s.
func (s *Str) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return errors.Wrap(errors.PhaseUnmarshal, errors.KindInvalidData, err, "json string")
	}
	v, err := FromString(text)
	if err != nil {
		return err
	}
	s.b.replace(v.b)
	return nil
}
