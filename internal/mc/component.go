// Package mc defines the contract every memory component satisfies: typed
// allocation, cross-memory-type copies, pointer introspection and
// element-wise reductions over buffers of one memory type.
package mc

import "unsafe"

// Component is a memory component serving one MemoryType.
//
// Implementation notes:
//   - Init must succeed before Memcpy, Query or Reduce; Finalize undoes it.
//   - Init/Finalize are plain calls. Callers that share a component pair them
//     through Shared.
//   - Memcpy and Reduce return only once the data has landed.
//   - Every failure is returned as an *Error; native status codes never leak.
type Component interface {
	// Name is a human readable identifier, e.g. "cuda mc".
	Name() string

	// Type is the memory type this component allocates.
	Type() MemoryType

	// Init acquires backend resources.
	Init() error

	// Finalize releases what Init acquired.
	Finalize() error

	// Alloc returns size bytes of the component's memory type.
	Alloc(size uint64) (unsafe.Pointer, error)

	// Free releases memory obtained from Alloc.
	Free(ptr unsafe.Pointer) error

	// Memcpy copies n bytes from src to dst.
	Memcpy(dst, src unsafe.Pointer, n uint64, dstType, srcType MemoryType) error

	// Query fills the fields of attr selected by attr.FieldMask for ptr.
	Query(ptr unsafe.Pointer, length uint64, attr *MemAttr) error

	// Reduce computes dst[i] = src1[i] op src2[i] for count elements.
	Reduce(src1, src2, dst unsafe.Pointer, count uint64, dt DataType, op ReduceOp) error
}
