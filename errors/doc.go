// Package errors provides structured error types for heapscope.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the child path being decoded, the target address and
// type tag involved, and the cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindMemoryRead).
//		Path("user", "friends", "2").
//		Address(0x7f00_1000).
//		Tag("long").
//		Detail("8 bytes unreadable").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.Evaluation(errors.PhaseClassify, "is-array", addr, cause)
//	err := errors.MemoryRead(errors.PhaseDecode, path, addr, 8, cause)
//
// All errors implement the standard error interface and support errors.Is/As.
// The ErrEvaluation, ErrMemoryRead and ErrUnsupportedTag sentinels match any
// error of the same kind regardless of phase.
package errors
