// Package errors provides structured error types for the squash module.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The three kinds callers usually branch on are:
//
//	KindOverflow     length exceeds what the extended header can represent
//	KindAllocation   the backing allocator could not provide a block
//	KindInvalidUTF8  text payload failed validation (Offset = first bad byte)
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseEncode, errors.KindOverflow).
//		Value(n).
//		Detail("length %d exceeds maximum %d", n, max).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Overflow(errors.PhaseEncode, n, max)
//	err := errors.InvalidUTF8(errors.PhaseValidate, data, offset)
//
// All errors implement the standard error interface and support errors.Is/As.
// Is matches on Kind, and on Phase as well when the target sets one.
package errors
