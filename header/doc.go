// Package header implements the variable-width length prefix stored in
// front of every squashed payload.
//
// # Layout
//
// The header always ends at the byte immediately before the payload, so a
// decoder holding only the payload address reads backwards:
//
//	short     (length <= 254)   [len][payload...]
//	extended  (length >= 255)   [uint LE][0xFF][payload...]
//
// 0xFF is reserved as the extended marker and is never a short length, so
// the last header byte alone selects the form. Encoding is always minimal:
// the short form is used iff the length is at most 254.
//
// # Codecs
//
//	Codec    Extended integer   Header sizes   Max length
//	─────────────────────────────────────────────────────
//	Wide     8 bytes LE         1 or 9         2^64-1
//	Narrow   4 bytes LE         1 or 5         2^32-1
//
// Lengths beyond Max fail with an errors.KindOverflow error at encode time.
package header
