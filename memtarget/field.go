package memtarget

import "github.com/wippyai/heapscope"

// Field describes a field to lay out in the heap. Value must match Tag:
// int8, int16, int32, int64, float32, float64, bool, or heapscope.Address for
// pointer tags. Raw, when set, is stored verbatim instead of Value.
type Field struct {
	Value any
	Name  string
	Raw   []byte
	Tag   heapscope.TypeTag
}

func Char(name string, v int8) Field {
	return Field{Name: name, Tag: heapscope.TagChar, Value: v}
}

func Short(name string, v int16) Field {
	return Field{Name: name, Tag: heapscope.TagShort, Value: v}
}

func Int(name string, v int32) Field {
	return Field{Name: name, Tag: heapscope.TagInt, Value: v}
}

func Long(name string, v int64) Field {
	return Field{Name: name, Tag: heapscope.TagLong, Value: v}
}

func Float(name string, v float32) Field {
	return Field{Name: name, Tag: heapscope.TagFloat, Value: v}
}

func Double(name string, v float64) Field {
	return Field{Name: name, Tag: heapscope.TagDouble, Value: v}
}

func Bool(name string, v bool) Field {
	return Field{Name: name, Tag: heapscope.TagBoolean, Value: v}
}

// Pointer is a raw, untyped pointer field.
func Pointer(name string, v heapscope.Address) Field {
	return Field{Name: name, Tag: heapscope.TagRawPointer, Value: v}
}

// Ref is a reference to another heap object. A zero address is a null
// reference.
func Ref(name string, v heapscope.Address) Field {
	return Field{Name: name, Tag: heapscope.TagObjectPointer, Value: v}
}

// Raw stores data verbatim under an arbitrary tag, including tags outside
// the protocol.
func Raw(name string, tag heapscope.TypeTag, data []byte) Field {
	return Field{Name: name, Tag: tag, Raw: data}
}
