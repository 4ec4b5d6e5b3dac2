package inspect

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// DefaultMaxDepth is how many levels of nested references are decoded
// eagerly below an inspected object.
const DefaultMaxDepth = 3

// Config holds configuration for an Inspector
type Config struct {
	// Factory builds the node for each category. Nil means DefaultFactory().
	Factory *Factory

	// MaxDepth limits eager decoding of nested object references. Deeper
	// references are kept as ValueRef and expanded by ChildAt.
	// 0 means DefaultMaxDepth.
	MaxDepth int

	// MaxNameLength bounds field name reads. 0 means DefaultMaxNameLength.
	MaxNameLength uint32
}

// Builder constructs the node for one category at a validated address.
type Builder func(ctx context.Context, in *Inspector, addr heapscope.Address, depth int) (Node, error)

// Factory selects the node builder per category. It is passed to the
// inspector explicitly so tests and embedders can substitute builders.
type Factory struct {
	String Builder
	Array  Builder
	Object Builder
}

// DefaultFactory returns a factory building StringNode, ArrayNode and ObjectNode.
func DefaultFactory() *Factory {
	return &Factory{
		String: func(ctx context.Context, in *Inspector, addr heapscope.Address, _ int) (Node, error) {
			n, err := NewStringNode(ctx, in, addr)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
		Array: func(ctx context.Context, in *Inspector, addr heapscope.Address, depth int) (Node, error) {
			n, err := NewArrayNode(ctx, in, addr, depth)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
		Object: func(ctx context.Context, in *Inspector, addr heapscope.Address, depth int) (Node, error) {
			n, err := NewObjectNode(ctx, in, addr, depth)
			if err != nil {
				return nil, err
			}
			return n, nil
		},
	}
}

// Build constructs the node for cat.
func (f *Factory) Build(ctx context.Context, in *Inspector, cat Category, addr heapscope.Address, depth int) (Node, error) {
	var b Builder
	switch cat {
	case CategoryString:
		b = f.String
	case CategoryArray:
		b = f.Array
	default:
		b = f.Object
	}
	if b == nil {
		return nil, errors.NotInitialized(errors.PhaseDecode, cat.String()+" builder")
	}
	return b(ctx, in, addr, depth)
}

// Inspector turns heap references into nodes. It holds no state besides
// its configuration and the borrowed target.
type Inspector struct {
	target   heapscope.Target
	factory  *Factory
	maxDepth int
	maxName  uint32
	ptrSize  uint32
}

// New creates an inspector with default configuration.
func New(t heapscope.Target) *Inspector {
	return NewWithConfig(t, nil)
}

// NewWithConfig creates an inspector with custom configuration.
func NewWithConfig(t heapscope.Target, cfg *Config) *Inspector {
	in := &Inspector{
		target:   t,
		factory:  DefaultFactory(),
		maxDepth: DefaultMaxDepth,
		maxName:  DefaultMaxNameLength,
		ptrSize:  t.PointerSize(),
	}
	if cfg != nil {
		if cfg.Factory != nil {
			in.factory = cfg.Factory
		}
		if cfg.MaxDepth > 0 {
			in.maxDepth = cfg.MaxDepth
		}
		if cfg.MaxNameLength > 0 {
			in.maxName = cfg.MaxNameLength
		}
	}
	if in.ptrSize != 4 {
		in.ptrSize = 8
	}
	return in
}

// Target returns the query channel the inspector reads from.
func (in *Inspector) Target() heapscope.Target { return in.target }

// Inspect decodes the object at addr. An address that fails the
// self-reference check yields the null marker and no error; nothing else is
// queried for it. Evaluation errors, unreadable arrays and unsupported type
// tags are returned as errors.
func (in *Inspector) Inspect(ctx context.Context, addr heapscope.Address) (Value, error) {
	return in.inspect(ctx, addr, 0)
}

func (in *Inspector) inspect(ctx context.Context, addr heapscope.Address, depth int) (Value, error) {
	if !IsValidReference(ctx, in.target, addr) {
		Logger().Debug("not a heap reference", zap.Stringer("addr", addr))
		return Null(addr), nil
	}

	cat, err := Classify(ctx, in.target, addr)
	if err != nil {
		return Value{}, err
	}

	node, err := in.factory.Build(ctx, in, cat, addr, depth)
	if err != nil {
		return Value{}, err
	}
	return NodeValue(node), nil
}

// decodeField decodes one field or element. Object references below the
// depth limit run through the full inspect pipeline; deeper ones become refs.
func (in *Inspector) decodeField(ctx context.Context, f Field, depth int) (Value, error) {
	if f.Tag != heapscope.TagObjectPointer {
		return DecodePrimitive(in.target, f.Addr, f.Tag, in.ptrSize)
	}

	ptr, err := heapscope.ReadWord(in.target, f.Addr, in.ptrSize)
	if err != nil {
		return ErrorMarker(f.Tag, f.Addr, errors.MemoryRead(errors.PhaseDecode, []string{f.Name}, uint64(f.Addr), in.ptrSize, err)), nil
	}
	if ptr == 0 {
		return Null(0), nil
	}
	if depth >= in.maxDepth {
		return Ref(ptr), nil
	}
	return in.inspect(ctx, ptr, depth+1)
}
