package heapscope

import (
	"context"
	"fmt"

	"github.com/wippyai/heapscope/errors"
)

// Address is a location in the inspected process's address space.
type Address uint64

func (a Address) String() string {
	return fmt.Sprintf("%#x", uint64(a))
}

// Memory reads raw bytes out of the inspected process.
type Memory interface {
	Read(addr Address, length uint32) ([]byte, error)
}

// Target is the query channel into a stopped process. Implementations answer
// the runtime's debug queries and serve memory reads; they must not resume
// the process.
type Target interface {
	Memory

	// PointerSize is the width of a machine word in the target (4 or 8).
	PointerSize() uint32

	IsStringInstance(ctx context.Context, addr Address) (bool, error)
	IsArrayInstance(ctx context.Context, addr Address) (bool, error)
	SelfReferenceCheck(ctx context.Context, addr Address) (bool, error)

	FieldCount(ctx context.Context, addr Address) (int, error)
	FieldTypeTag(ctx context.Context, addr Address, index int) (int, error)
	FieldAddress(ctx context.Context, addr Address, index int) (Address, error)
	// FieldName returns the address of a NUL-terminated field name.
	FieldName(ctx context.Context, addr Address, index int) (Address, error)

	// RenderToScratchBuffer writes the UTF-8 text of a string object into
	// buf and returns the number of bytes written.
	RenderToScratchBuffer(ctx context.Context, addr, buf Address, capacity uint32) (uint32, error)
	ScratchBufferAddress(ctx context.Context) (Address, error)
	ScratchBufferCapacity(ctx context.Context) (uint32, error)
}

// ReadWord reads a little-endian machine word of the given size.
func ReadWord(mem Memory, addr Address, size uint32) (Address, error) {
	data, err := mem.Read(addr, size)
	if err != nil {
		return 0, err
	}
	if uint32(len(data)) < size {
		return 0, errors.New(errors.PhaseDecode, errors.KindMemoryRead).
			Address(uint64(addr)).
			Detail("short read: got %d of %d bytes", len(data), size).
			Build()
	}
	var v uint64
	for i := int(size) - 1; i >= 0; i-- {
		v = v<<8 | uint64(data[i])
	}
	return Address(v), nil
}

// CheckSelfReference reports whether addr looks like a managed object header.
// The header's first word points at type info whose first word points at
// itself, either directly or through a meta-object:
//
//	**(void***)addr == ***(void****)addr
//
// Any unreadable link makes the reference invalid.
func CheckSelfReference(mem Memory, addr Address, ptrSize uint32) bool {
	typeInfo, err := ReadWord(mem, addr, ptrSize)
	if err != nil || typeInfo == 0 {
		return false
	}
	first, err := ReadWord(mem, typeInfo, ptrSize)
	if err != nil || first == 0 {
		return false
	}
	second, err := ReadWord(mem, first, ptrSize)
	if err != nil {
		return false
	}
	return first == second
}
