package inspect

import (
	"context"
	"strings"

	"github.com/wippyai/heapscope"
)

// ObjectNode is a composite runtime object keyed by field name.
type ObjectNode struct {
	aggregate
}

// NewObjectNode decodes the object at addr. Fields whose names cannot be
// read are omitted; unreadable field values become error markers.
func NewObjectNode(ctx context.Context, in *Inspector, addr heapscope.Address, depth int) (*ObjectNode, error) {
	fields, err := NewEnumerator(in.target, addr, in.maxName).Fields(ctx, true)
	if err != nil {
		return nil, err
	}

	children := make([]Child, len(fields))
	for i, f := range fields {
		v, err := in.decodeField(ctx, f, depth)
		if err != nil {
			return nil, err
		}
		children[i] = Child{Field: f, Value: v}
	}

	return &ObjectNode{aggregate: aggregate{
		in:       in,
		addr:     addr,
		depth:    depth,
		children: children,
	}}, nil
}

func (n *ObjectNode) Category() Category { return CategoryObject }

// Names returns the visible field names in order.
func (n *ObjectNode) Names() []string {
	names := make([]string, len(n.children))
	for i, c := range n.children {
		names[i] = c.Field.Name
	}
	return names
}

// Map returns the object's fields keyed by name. When a name repeats, the
// first field wins, matching ChildIndex.
func (n *ObjectNode) Map() map[string]Value {
	m := make(map[string]Value, len(n.children))
	for _, c := range n.children {
		if _, ok := m[c.Field.Name]; !ok {
			m[c.Field.Name] = c.Value
		}
	}
	return m
}

// ChildIndex finds a field by name. Fields dropped from the snapshot are
// never found.
func (n *ObjectNode) ChildIndex(name string) (int, bool) {
	for i, c := range n.children {
		if c.Field.Name == name {
			return i, true
		}
	}
	return -1, false
}

func (n *ObjectNode) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, c := range n.children {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Field.Name)
		b.WriteString(": ")
		b.WriteString(c.Value.nested())
	}
	b.WriteByte('}')
	return b.String()
}

func (n *ObjectNode) Refresh(ctx context.Context) (Node, error) {
	return n.in.factory.Build(ctx, n.in, CategoryObject, n.addr, n.depth)
}
