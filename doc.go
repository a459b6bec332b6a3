// Package squash provides owned byte and text sequences that fit in one
// pointer word.
//
// A []byte header is three words and a string header two. Programs that hold
// millions of small immutable fragments (parser tokens, AST leaves, symbol
// names) pay for those headers on every value. squash moves the length into
// the allocation itself, in a variable-width header right before the
// payload, so the handle is just the payload pointer.
//
// # Architecture Overview
//
//	squash/          Bytes and Str value types, serialization collaborators
//	├── header/      length header codec (short 1 byte, extended marker form)
//	├── alloc/       single-block allocation manager and backends
//	├── errors/      structured error types (overflow, allocation, UTF-8)
//	├── linear/      the same layout inside WebAssembly linear memory
//	└── cmd/         squashstat inspection tool
//
// # Quick Start
//
//	tok, err := squash.FromString("identifier")
//	if err != nil {
//	    return err
//	}
//	defer tok.Free()
//
//	fmt.Println(tok.Len(), tok.View())
//
// # Ownership
//
// Every constructor allocates at most one block; Free releases it exactly
// once and leaves the zero value behind, so repeated Free calls are harmless.
// Assigning a value copies the handle only. Treat the copy as a borrow, or
// call Take to move ownership and clear the source:
//
//	owned := tok.Take() // tok is now empty
//
// Views returned by View and AsBytes alias the block and die with it.
//
// # Memory
//
// Blocks come from the default alloc.Manager. It allocates on the Go heap,
// where a block stays alive as long as a handle points into it, so a
// forgotten Free costs nothing worse than garbage. Installing a manager over
// alloc.Manual moves blocks off the Go heap; Free then becomes mandatory:
//
//	arena := alloc.NewManual()
//	prev := alloc.SetDefault(alloc.New(arena))
//	defer func() { alloc.SetDefault(prev); arena.Close() }()
//
// Empty sequences share a static sentinel block and never allocate.
//
// # Errors
//
// Constructors return *errors.Error values; match them with errors.Is
// against ErrOverflow, ErrAllocation and ErrInvalidUTF8. UTF8Offset reports
// where validation failed.
//
// # Comparison and Hashing
//
// Equal, Compare, Hash and Sum256 work on payload bytes. The == operator
// compares handles, not contents.
package squash
