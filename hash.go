package squash

import (
	"hash/maphash"

	"github.com/zeebo/blake3"
)

// Hash returns a seeded hash of the payload, consistent with Equal.
//
// Bytes compares by handle under ==, so map keys should be derived from
// Hash or Sum256 rather than from the value itself.
func (b Bytes) Hash(seed maphash.Seed) uint64 {
	return maphash.Bytes(seed, b.View())
}

// Sum256 returns the BLAKE3-256 digest of the payload.
func (b Bytes) Sum256() [32]byte {
	return blake3.Sum256(b.View())
}

// Hash returns a seeded hash of the text, consistent with Equal.
func (s Str) Hash(seed maphash.Seed) uint64 {
	return maphash.String(seed, s.View())
}

// Sum256 returns the BLAKE3-256 digest of the text.
func (s Str) Sum256() [32]byte {
	return s.b.Sum256()
}
