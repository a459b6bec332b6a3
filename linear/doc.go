// Package linear stores length-prefixed payloads inside WebAssembly linear
// memory.
//
// The layout is the one used for process memory: a one-byte header for
// lengths up to 254, otherwise a 4-byte little-endian length followed by a
// 0xFF marker, with the payload right after. A handle is the uint32 offset of
// the payload, so it fits in a single i32 and the guest can recover the
// length by looking one byte back.
//
//	base                 handle
//	 |                     |
//	 [ len LE32 ][ 0xFF ][ payload ... ]
//
// Memory access goes through the Memory interface, implemented for wazero
// by WrapMemory. Blocks come from an Allocator: either the guest's own
// cabi_realloc export (WrapAllocator) or a host-managed Spans region.
package linear
