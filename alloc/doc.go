// Package alloc places a length header and its payload in one block.
//
// # Block Layout
//
//	base                      payload pointer
//	│                         │
//	▼                         ▼
//	┌─────────────────────────┬──────────────────────┐
//	│ header (1 or 1+ext)     │ payload (length)     │
//	└─────────────────────────┴──────────────────────┘
//
// A Manager hands out payload pointers only. Deallocate decodes the header
// in front of the pointer, recomputes the header width with the same codec
// call Allocate used, and releases base = p - width with size
// width + length.
//
// # Backends
//
//	Heap      Go heap; blocks are collected once unreachable
//	Manual    off-heap arena (modernc.org/memory); Free is mandatory
//	Counting  wraps another backend, tracks live blocks, rejects double frees
//
// # Empty Sentinel
//
// Empty payloads share one static two-byte block whose header decodes to
// length 0. Managers return it instead of allocating (see WithSentinel) and
// never release it.
//
// # Default Manager
//
// Default returns the manager used by the root squash value types. It is a
// heap-backed manager with the sentinel enabled until SetDefault swaps it.
package alloc
