package inspect

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Dump writes v as an indented tree, descending at most depth levels.
// References are expanded as they are reached.
func Dump(ctx context.Context, w io.Writer, v Value, depth int) error {
	var b strings.Builder
	if err := dumpValue(ctx, &b, v, "", depth); err != nil {
		return err
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func dumpValue(ctx context.Context, b *strings.Builder, v Value, indent string, depth int) error {
	b.WriteString(Headline(v))
	b.WriteByte('\n')
	if v.Kind != ValueNode || depth <= 0 {
		return nil
	}

	n := v.Node
	for i, c := range n.Children() {
		child, err := n.ChildAt(ctx, i)
		if err != nil {
			return err
		}
		label := c.Field.Name
		if n.Category() == CategoryArray {
			label = "[" + label + "]"
		}
		fmt.Fprintf(b, "%s  %s: %s = ", indent, label, c.Field.Tag)
		if err := dumpValue(ctx, b, child, indent+"  ", depth-1); err != nil {
			return err
		}
	}
	return nil
}

// Headline is the one-line form of v used in trees: aggregates show their
// category, address and size, everything else its display value.
func Headline(v Value) string {
	if v.Kind != ValueNode {
		return v.nested()
	}
	switch n := v.Node; n.Category() {
	case CategoryString:
		return v.nested()
	case CategoryArray:
		return fmt.Sprintf("array[%d] @%s", n.ChildCount(), n.Address())
	default:
		return fmt.Sprintf("object{%d} @%s", n.ChildCount(), n.Address())
	}
}
