package inspect

import (
	"fmt"
	"strconv"

	"github.com/wippyai/heapscope"
)

// ValueKind discriminates Value.
type ValueKind uint8

const (
	ValueNull    ValueKind = iota // reference failed the self-reference check
	ValueScalar                   // primitive field
	ValueNode                     // nested string, array or object
	ValueRef                      // object reference not yet materialized
	ValueError                    // unreadable memory
	ValueInvalid                  // field declared with the invalid tag
)

func (k ValueKind) String() string {
	switch k {
	case ValueNull:
		return "null"
	case ValueScalar:
		return "scalar"
	case ValueNode:
		return "node"
	case ValueRef:
		return "ref"
	case ValueError:
		return "error"
	case ValueInvalid:
		return "invalid"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is one decoded item of a snapshot.
//
// Scalar holds int8, int16, int32, int64, float32, float64, bool or, for raw
// pointers, the heapscope.Address of the field.
type Value struct {
	Scalar any
	Node   Node
	Err    error
	Addr   heapscope.Address
	Kind   ValueKind
	Tag    heapscope.TypeTag
}

// Null returns the marker for an address that is not a managed object.
func Null(addr heapscope.Address) Value {
	return Value{Kind: ValueNull, Addr: addr, Tag: heapscope.TagObjectPointer}
}

// Scalar wraps a decoded primitive.
func Scalar(tag heapscope.TypeTag, addr heapscope.Address, v any) Value {
	return Value{Kind: ValueScalar, Tag: tag, Addr: addr, Scalar: v}
}

// NodeValue wraps a nested node.
func NodeValue(n Node) Value {
	return Value{Kind: ValueNode, Node: n, Addr: n.Address(), Tag: heapscope.TagObjectPointer}
}

// Ref is an object reference left for lazy expansion.
func Ref(addr heapscope.Address) Value {
	return Value{Kind: ValueRef, Addr: addr, Tag: heapscope.TagObjectPointer}
}

// ErrorMarker records an unreadable value at addr.
func ErrorMarker(tag heapscope.TypeTag, addr heapscope.Address, err error) Value {
	return Value{Kind: ValueError, Tag: tag, Addr: addr, Err: err}
}

// Invalid marks a field carrying the invalid tag.
func Invalid(addr heapscope.Address) Value {
	return Value{Kind: ValueInvalid, Tag: heapscope.TagInvalid, Addr: addr}
}

// IsNull reports whether v is the null marker.
func (v Value) IsNull() bool { return v.Kind == ValueNull }

// String renders v for display. Strings render as their raw text.
func (v Value) String() string {
	switch v.Kind {
	case ValueNull:
		return "null"
	case ValueScalar:
		if v.Tag == heapscope.TagRawPointer {
			return "(void *)" + fmt.Sprint(v.Scalar)
		}
		return fmt.Sprint(v.Scalar)
	case ValueNode:
		return v.Node.String()
	case ValueRef:
		return "<ref " + v.Addr.String() + ">"
	case ValueError:
		return "error: " + v.Addr.String()
	case ValueInvalid:
		return "<invalid>" + v.Addr.String()
	default:
		return "<unknown>"
	}
}

// nested renders v inside an aggregate, quoting strings.
func (v Value) nested() string {
	if v.Kind == ValueNode && v.Node.Category() == CategoryString {
		return strconv.Quote(v.Node.String())
	}
	return v.String()
}
