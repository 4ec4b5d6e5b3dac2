package inspect

import (
	"bytes"
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// StringNode is a runtime string. It has no children.
type StringNode struct {
	in       *Inspector
	text     string
	addr     heapscope.Address
	rendered bool
}

// NewStringNode asks the runtime to render the string at addr into its
// scratch buffer and reads the result back. When nothing was rendered, or
// the buffer cannot be read, the node shows the object's address instead.
func NewStringNode(ctx context.Context, in *Inspector, addr heapscope.Address) (*StringNode, error) {
	t := in.target
	n := &StringNode{in: in, addr: addr, text: addr.String()}

	buf, err := t.ScratchBufferAddress(ctx)
	if err != nil {
		return nil, errors.Evaluation(errors.PhaseDecode, "scratch-buffer", uint64(addr), err)
	}
	capacity, err := t.ScratchBufferCapacity(ctx)
	if err != nil {
		return nil, errors.Evaluation(errors.PhaseDecode, "scratch-buffer-size", uint64(addr), err)
	}
	length, err := t.RenderToScratchBuffer(ctx, addr, buf, capacity)
	if err != nil {
		return nil, errors.Evaluation(errors.PhaseDecode, "render-string", uint64(addr), err)
	}
	if length == 0 {
		return n, nil
	}
	length = min(length, capacity)

	data, err := t.Read(buf, length)
	if err != nil {
		Logger().Debug("scratch buffer unreadable",
			zap.Stringer("string", addr),
			zap.Stringer("buffer", buf),
			zap.Uint32("length", length),
			zap.Error(err))
		return n, nil
	}
	if i := bytes.IndexByte(data, 0); i >= 0 {
		data = data[:i]
	}
	n.text = string(data)
	n.rendered = true
	return n, nil
}

func (n *StringNode) Address() heapscope.Address { return n.addr }

func (n *StringNode) Category() Category { return CategoryString }

// String returns the decoded text, or the address form if none was rendered.
func (n *StringNode) String() string { return n.text }

// Rendered reports whether the text came from the runtime rather than the
// address fallback.
func (n *StringNode) Rendered() bool { return n.rendered }

func (n *StringNode) ChildCount() int { return 0 }

func (n *StringNode) HasChildren() bool { return false }

func (n *StringNode) Children() []Child { return nil }

func (n *StringNode) ChildAt(_ context.Context, i int) (Value, error) {
	return Value{}, errors.OutOfBounds(errors.PhaseDecode, nil, i, 0)
}

func (n *StringNode) ChildIndex(string) (int, bool) { return -1, false }

func (n *StringNode) Refresh(ctx context.Context) (Node, error) {
	return n.in.factory.Build(ctx, n.in, CategoryString, n.addr, 0)
}
