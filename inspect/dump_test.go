package inspect

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/wippyai/heapscope/memtarget"
)

func TestDump(t *testing.T) {
	ctx := context.Background()
	h := memtarget.New()
	arr := h.Array(memtarget.Int("", 1), memtarget.Int("", 2))
	obj := h.Object(
		memtarget.Ref("name", h.Text("Bob")),
		memtarget.Ref("nums", arr),
		memtarget.Bool("ok", false),
	)

	v, err := New(h).Inspect(ctx, obj)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Dump(ctx, &buf, v, 2); err != nil {
		t.Fatalf("Dump: %v", err)
	}

	want := fmt.Sprintf(`object{3} @%s
  name: ObjHeader* = "Bob"
  nums: ObjHeader* = array[2] @%s
    [0]: int = 1
    [1]: int = 2
  ok: bool = false
`, obj, arr)
	if buf.String() != want {
		t.Errorf("Dump =\n%s\nwant\n%s", buf.String(), want)
	}

	buf.Reset()
	if err := Dump(ctx, &buf, v, 0); err != nil {
		t.Fatal(err)
	}
	if buf.String() != fmt.Sprintf("object{3} @%s\n", obj) {
		t.Errorf("depth 0 Dump = %q", buf.String())
	}
}

func TestDump_ExpandsRefs(t *testing.T) {
	ctx := context.Background()
	h := memtarget.New()
	inner := h.Object(memtarget.Int("v", 7))
	mid := h.Object(memtarget.Ref("inner", inner))
	outer := h.Object(memtarget.Ref("mid", mid))

	v, err := NewWithConfig(h, &Config{MaxDepth: 1}).Inspect(ctx, outer)
	if err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Dump(ctx, &buf, v, 5); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	want := fmt.Sprintf(`object{1} @%s
  mid: ObjHeader* = object{1} @%s
    inner: ObjHeader* = object{1} @%s
      v: int = 7
`, outer, mid, inner)
	if buf.String() != want {
		t.Errorf("Dump =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestHeadline(t *testing.T) {
	if got := Headline(Null(0x10)); got != "null" {
		t.Errorf("Headline(null) = %q", got)
	}
	if got := Headline(Ref(0x20)); got != "<ref 0x20>" {
		t.Errorf("Headline(ref) = %q", got)
	}
}
