package inspect

import (
	"encoding/binary"
	"math"

	"go.bytecodealliance.org/wit"
	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// DecodePrimitive reads the value of a fixed-width field. Unreadable memory is
// not an error: it yields an ErrorMarker so the rest of an object can still
// be shown. Raw pointers decode to the field's own address without reading
// memory. Object pointers are not primitives and are rejected here.
func DecodePrimitive(mem heapscope.Memory, addr heapscope.Address, tag heapscope.TypeTag, ptrSize uint32) (Value, error) {
	switch {
	case !tag.Valid():
		return Value{}, errors.UnsupportedTag(errors.PhaseDecode, nil, int(tag))
	case tag == heapscope.TagInvalid:
		return Invalid(addr), nil
	case tag == heapscope.TagRawPointer:
		// The slot itself is shown, never its contents.
		return Scalar(tag, addr, addr), nil
	case tag == heapscope.TagObjectPointer:
		return Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Address(uint64(addr)).
			Tag(tag.String()).
			Detail("object pointers are decoded by the inspector").
			Build()
	}

	if ptrSize != 4 {
		ptrSize = 8
	}
	width := tag.Width(ptrSize)
	data, err := mem.Read(addr, width)
	if err == nil && uint32(len(data)) < width {
		err = errors.InvalidData(errors.PhaseDecode, nil, "short read")
	}
	if err != nil {
		Logger().Debug("primitive read failed",
			zap.Stringer("addr", addr),
			zap.Stringer("tag", tag),
			zap.Error(err))
		return ErrorMarker(tag, addr, errors.New(errors.PhaseDecode, errors.KindMemoryRead).
			Address(uint64(addr)).
			Tag(tag.String()).
			Detail("cannot read %d bytes", width).
			Cause(err).
			Build()), nil
	}

	le := binary.LittleEndian
	var v any
	switch tag {
	case heapscope.TagChar:
		v = int8(data[0])
	case heapscope.TagShort:
		v = int16(le.Uint16(data))
	case heapscope.TagInt:
		v = int32(le.Uint32(data))
	case heapscope.TagLong:
		v = int64(le.Uint64(data))
	case heapscope.TagFloat:
		v = math.Float32frombits(le.Uint32(data))
	case heapscope.TagDouble:
		v = math.Float64frombits(le.Uint64(data))
	case heapscope.TagBoolean:
		v = le.Uint32(data) != 0
	}
	return Scalar(tag, addr, v), nil
}

// WITType maps a tag onto the WIT type with the same representation on a
// target with the given pointer size. Raw pointers are u32 on 4-byte targets
// and u64 otherwise. Object pointers map to an anonymous record; the invalid
// tag has no type.
func WITType(tag heapscope.TypeTag, ptrSize uint32) wit.Type {
	switch tag {
	case heapscope.TagChar:
		return wit.S8{}
	case heapscope.TagShort:
		return wit.S16{}
	case heapscope.TagInt:
		return wit.S32{}
	case heapscope.TagLong:
		return wit.S64{}
	case heapscope.TagFloat:
		return wit.F32{}
	case heapscope.TagDouble:
		return wit.F64{}
	case heapscope.TagBoolean:
		return wit.Bool{}
	case heapscope.TagRawPointer:
		if ptrSize == 4 {
			return wit.U32{}
		}
		return wit.U64{}
	case heapscope.TagObjectPointer:
		return &wit.TypeDef{Kind: &wit.Record{}}
	default:
		return nil
	}
}
