package heapscope

import "strconv"

// TypeTag identifies how the bytes of a field must be interpreted. The
// numbering is shared with the inspected runtime and must not change.
type TypeTag int

const (
	TagInvalid TypeTag = iota
	TagObjectPointer
	TagChar
	TagShort
	TagInt
	TagLong
	TagFloat
	TagDouble
	TagRawPointer
	TagBoolean
)

var tagNames = [...]string{
	TagInvalid:       "invalid",
	TagObjectPointer: "ObjHeader*",
	TagChar:          "char",
	TagShort:         "short",
	TagInt:           "int",
	TagLong:          "long",
	TagFloat:         "float",
	TagDouble:        "double",
	TagRawPointer:    "void*",
	TagBoolean:       "bool",
}

// Valid reports whether t is part of the protocol.
func (t TypeTag) Valid() bool {
	return t >= TagInvalid && t <= TagBoolean
}

func (t TypeTag) String() string {
	if !t.Valid() {
		return "tag(" + strconv.Itoa(int(t)) + ")"
	}
	return tagNames[t]
}

// Width returns the number of bytes a value of this tag occupies. Pointer
// tags take the target's word size; invalid tags occupy nothing.
func (t TypeTag) Width(ptrSize uint32) uint32 {
	switch t {
	case TagChar:
		return 1
	case TagShort:
		return 2
	case TagInt, TagFloat, TagBoolean:
		return 4
	case TagLong, TagDouble:
		return 8
	case TagObjectPointer, TagRawPointer:
		return ptrSize
	default:
		return 0
	}
}
