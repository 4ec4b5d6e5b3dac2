package inspect

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
	"github.com/wippyai/heapscope/memtarget"
)

type negativeCount struct {
	*memtarget.Heap
}

func (negativeCount) FieldCount(context.Context, heapscope.Address) (int, error) {
	return -1, nil
}

func TestEnumerator_Fields(t *testing.T) {
	ctx := context.Background()
	h := memtarget.New()
	obj := h.Object(memtarget.Int("first", 1), memtarget.Double("second", 2))

	fields, err := NewEnumerator(h, obj, 0).Fields(ctx, true)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) != 2 {
		t.Fatalf("got %d fields", len(fields))
	}
	want := []Field{
		{Index: 0, Name: "first", Tag: heapscope.TagInt, Addr: h.SlotAddress(obj, 0)},
		{Index: 1, Name: "second", Tag: heapscope.TagDouble, Addr: h.SlotAddress(obj, 1)},
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("field %d = %+v, want %+v", i, fields[i], want[i])
		}
	}
}

func TestEnumerator_ArrayFieldsAreIndexed(t *testing.T) {
	h := memtarget.New()
	arr := h.Array(memtarget.Char("", 1), memtarget.Char("", 2))

	fields, err := NewEnumerator(h, arr, 0).Fields(context.Background(), false)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if fields[0].Name != "0" || fields[1].Name != "1" {
		t.Errorf("names = %q, %q", fields[0].Name, fields[1].Name)
	}
}

func TestEnumerator_NameBounds(t *testing.T) {
	ctx := context.Background()
	h := memtarget.New()
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	obj := h.Object(memtarget.Int("abcdef", 1), memtarget.Int(string(long), 2))

	name, err := NewEnumerator(h, obj, 3).Name(ctx, 0)
	if err != nil || name != "abc" {
		t.Errorf("bounded name = %q, %v", name, err)
	}

	name, err = NewEnumerator(h, obj, 0).Name(ctx, 1)
	if err != nil || len(name) != 200 {
		t.Errorf("long name has %d bytes, %v", len(name), err)
	}
}

func TestEnumerator_NameFailures(t *testing.T) {
	ctx := context.Background()
	h := memtarget.New()
	obj := h.Object(memtarget.Int("a", 1))
	h.Unmap(h.NameAddress(obj, 0), 1)

	_, err := NewEnumerator(h, obj, 0).Name(ctx, 0)
	if !errors.Is(err, errors.ErrMemoryRead) {
		t.Errorf("unreadable name err = %v, want memory read", err)
	}

	h.FailQuery(memtarget.QueryFieldName, errBoom)
	_, err = NewEnumerator(h, obj, 0).Name(ctx, 0)
	if !errors.Is(err, errors.ErrEvaluation) {
		t.Errorf("query failure err = %v, want evaluation", err)
	}
}

func TestEnumerator_NegativeCount(t *testing.T) {
	h := memtarget.New()
	obj := h.Object()

	_, err := NewEnumerator(negativeCount{h}, obj, 0).Count(context.Background())
	if !errors.Is(err, &errors.Error{Kind: errors.KindInvalidData}) {
		t.Errorf("err = %v, want invalid data", err)
	}
}

func TestEnumerator_UnsupportedTag(t *testing.T) {
	h := memtarget.New()
	obj := h.Object(memtarget.Raw("bad", 11, []byte{1}))

	_, err := NewEnumerator(h, obj, 0).TypeTag(context.Background(), 0)
	if !errors.Is(err, errors.ErrUnsupportedTag) {
		t.Errorf("err = %v, want unsupported tag", err)
	}
}

func TestEnumerator_DroppedFieldIsLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger()
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(prev) })

	h := memtarget.New()
	obj := h.Object(memtarget.Int("keep", 1), memtarget.Int("lost", 2))
	h.Unmap(h.NameAddress(obj, 1), 1)

	fields, err := NewEnumerator(h, obj, 0).Fields(context.Background(), true)
	if err != nil {
		t.Fatalf("Fields: %v", err)
	}
	if len(fields) != 1 || fields[0].Name != "keep" {
		t.Fatalf("fields = %+v, want only keep", fields)
	}

	entries := logs.FilterMessage("dropping field with unreadable name").All()
	if len(entries) != 1 {
		t.Fatalf("got %d drop log entries, want 1", len(entries))
	}
	logged := entries[0].ContextMap()
	if logged["object"] != obj.String() {
		t.Errorf("object = %v, want %s", logged["object"], obj)
	}
	if logged["index"] != int64(1) {
		t.Errorf("index = %v, want 1", logged["index"])
	}
	if _, ok := logged["error"]; !ok {
		t.Error("drop entry should carry the read error")
	}
}
