package inspect

import (
	"context"
	"slices"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// Node is a decoded heap object: a string, an array or an object. A node is
// a snapshot of the object when it was built; Refresh builds a new snapshot
// and leaves the receiver untouched.
type Node interface {
	Address() heapscope.Address
	Category() Category
	String() string

	ChildCount() int
	HasChildren() bool
	// Children returns the snapshot's children without expanding references.
	Children() []Child
	// ChildAt returns child i, materializing a nested reference on first use.
	ChildAt(ctx context.Context, i int) (Value, error)
	ChildIndex(name string) (int, bool)

	Refresh(ctx context.Context) (Node, error)
}

// Child pairs a field descriptor with its decoded value.
type Child struct {
	Value Value
	Field Field
}

// aggregate holds what arrays and objects share: the captured children and
// a per-node cache of expanded references.
type aggregate struct {
	in       *Inspector
	children []Child
	expanded []*Value
	addr     heapscope.Address
	depth    int
}

func (a *aggregate) Address() heapscope.Address { return a.addr }

func (a *aggregate) ChildCount() int { return len(a.children) }

func (a *aggregate) HasChildren() bool { return len(a.children) > 0 }

func (a *aggregate) Children() []Child { return slices.Clone(a.children) }

func (a *aggregate) ChildAt(ctx context.Context, i int) (Value, error) {
	if i < 0 || i >= len(a.children) {
		return Value{}, errors.OutOfBounds(errors.PhaseDecode, nil, i, len(a.children))
	}
	v := a.children[i].Value
	if v.Kind != ValueRef {
		return v, nil
	}
	if a.expanded == nil {
		a.expanded = make([]*Value, len(a.children))
	}
	if cached := a.expanded[i]; cached != nil {
		return *cached, nil
	}
	resolved, err := a.in.inspect(ctx, v.Addr, 0)
	if err != nil {
		return Value{}, err
	}
	a.expanded[i] = &resolved
	return resolved, nil
}

func (a *aggregate) values() []Value {
	out := make([]Value, len(a.children))
	for i, c := range a.children {
		out[i] = c.Value
	}
	return out
}
