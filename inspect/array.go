package inspect

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// ArrayNode is a runtime array. Every element is decoded when the node is
// built, and children are addressed by index only.
type ArrayNode struct {
	aggregate
}

// NewArrayNode decodes the array at addr. Unlike objects, an unreadable
// element fails the whole array; no partial array is returned.
func NewArrayNode(ctx context.Context, in *Inspector, addr heapscope.Address, depth int) (*ArrayNode, error) {
	fields, err := NewEnumerator(in.target, addr, in.maxName).Fields(ctx, false)
	if err != nil {
		return nil, err
	}

	children := make([]Child, len(fields))
	for i, f := range fields {
		v, err := in.decodeField(ctx, f, depth)
		if err != nil {
			return nil, err
		}
		if v.Kind == ValueError {
			Logger().Warn("array element unreadable",
				zap.Stringer("array", addr),
				zap.Int("index", i),
				zap.Error(v.Err))
			return nil, errors.New(errors.PhaseDecode, errors.KindMemoryRead).
				Path(f.Name).
				Address(uint64(f.Addr)).
				Tag(f.Tag.String()).
				Detail("array element unreadable").
				Cause(v.Err).
				Build()
		}
		children[i] = Child{Field: f, Value: v}
	}

	return &ArrayNode{aggregate: aggregate{
		in:       in,
		addr:     addr,
		depth:    depth,
		children: children,
	}}, nil
}

func (n *ArrayNode) Category() Category { return CategoryArray }

// Values returns the decoded elements in order.
func (n *ArrayNode) Values() []Value { return n.values() }

// ChildIndex accepts a decimal index within bounds.
func (n *ArrayNode) ChildIndex(name string) (int, bool) {
	i, err := strconv.Atoi(name)
	if err != nil || i < 0 || i >= len(n.children) {
		return -1, false
	}
	return i, true
}

func (n *ArrayNode) String() string {
	var b strings.Builder
	b.WriteByte('[')
	for i, c := range n.children {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(c.Value.nested())
	}
	b.WriteByte(']')
	return b.String()
}

func (n *ArrayNode) Refresh(ctx context.Context) (Node, error) {
	return n.in.factory.Build(ctx, n.in, CategoryArray, n.addr, n.depth)
}
