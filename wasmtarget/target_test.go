package wasmtarget

import (
	"context"
	"strings"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
	"github.com/wippyai/heapscope/inspect"
	"github.com/wippyai/heapscope/memtarget"
)

// Guest memory is a single 64KB page, so test heaps start low.
const testBase = 0x100

func newHeap() *memtarget.Heap {
	return memtarget.NewWithConfig(&memtarget.Config{PointerSize: 4, Base: testBase})
}

func b2u(ok bool) uint32 {
	if ok {
		return 1
	}
	return 0
}

// exportHeap answers debug queries from h's bookkeeping. Rendered strings
// are copied into *mem so the target reads them from guest memory.
func exportHeap(b wazero.HostModuleBuilder, h *memtarget.Heap, mem *api.Memory, exp *Exports) wazero.HostModuleBuilder {
	addr := func(v uint32) heapscope.Address { return heapscope.Address(v) }

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj uint32) uint32 {
		ok, _ := h.IsStringInstance(ctx, addr(obj))
		return b2u(ok)
	}).Export(exp.IsString)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj uint32) uint32 {
		ok, _ := h.IsArrayInstance(ctx, addr(obj))
		return b2u(ok)
	}).Export(exp.IsArray)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj uint32) int32 {
		n, _ := h.FieldCount(ctx, addr(obj))
		return int32(n)
	}).Export(exp.FieldCount)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj, i uint32) int32 {
		tag, _ := h.FieldTypeTag(ctx, addr(obj), int(i))
		return int32(tag)
	}).Export(exp.FieldType)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj, i uint32) uint32 {
		a, _ := h.FieldAddress(ctx, addr(obj), int(i))
		return uint32(a)
	}).Export(exp.FieldAddress)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj, i uint32) uint32 {
		a, _ := h.FieldName(ctx, addr(obj), int(i))
		return uint32(a)
	}).Export(exp.FieldName)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context, obj, buf, capacity uint32) uint32 {
		n, _ := h.RenderToScratchBuffer(ctx, addr(obj), addr(buf), capacity)
		data, _ := h.Read(addr(buf), n)
		(*mem).Write(buf, data)
		return n
	}).Export(exp.Render)

	b = b.NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
		a, _ := h.ScratchBufferAddress(ctx)
		return uint32(a)
	}).Export(exp.Buffer)

	return b.NewFunctionBuilder().WithFunc(func(ctx context.Context) uint32 {
		n, _ := h.ScratchBufferCapacity(ctx)
		return n
	}).Export(exp.BufferSize)
}

// copyHeap mirrors the heap's bytes into guest memory at the same addresses.
func copyHeap(t *testing.T, h *memtarget.Heap, mem api.Memory) {
	t.Helper()
	data, err := h.Read(h.Base(), uint32(h.End()-h.Base()))
	if err != nil {
		t.Fatalf("read heap: %v", err)
	}
	if !mem.Write(uint32(h.Base()), data) {
		t.Fatalf("heap of %d bytes does not fit guest memory", len(data))
	}
}

// newSplitTarget binds a target to a memory-only guest and a separate host
// module answering the queries.
func newSplitTarget(t *testing.T, h *memtarget.Heap, cfg *Config) *Target {
	t.Helper()
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { _ = rt.Close(ctx) })

	guest, err := rt.InstantiateWithConfig(ctx, memoryOnlyModule, wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	mem := guest.Memory()
	copyHeap(t, h, mem)

	exp := DefaultExports()
	if cfg != nil && cfg.Exports != nil {
		exp = cfg.Exports
	}
	debug, err := exportHeap(rt.NewHostModuleBuilder("debug"), h, &mem, exp).Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate debug module: %v", err)
	}

	target, err := New(debug, mem, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return target
}

func TestTarget_InspectsGuestMemory(t *testing.T) {
	h := newHeap()
	nums := h.Array(memtarget.Int("", 1), memtarget.Int("", 2))
	obj := h.Object(
		memtarget.Ref("name", h.Text("Ann")),
		memtarget.Int("age", 30),
		memtarget.Bool("active", true),
		memtarget.Ref("nums", nums),
		memtarget.Ref("next", 0),
	)
	target := newSplitTarget(t, h, nil)

	if target.PointerSize() != 4 {
		t.Errorf("PointerSize = %d, want 4", target.PointerSize())
	}

	v, err := inspect.New(target).Inspect(context.Background(), obj)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	want := `{name: "Ann", age: 30, active: true, nums: [1, 2], next: null}`
	if got := v.String(); got != want {
		t.Errorf("String() = %s, want %s", got, want)
	}
}

func TestTarget_SelfReferenceCheck(t *testing.T) {
	h := newHeap()
	obj := h.Object(memtarget.Int("x", 1))
	junk := h.Garbage()
	target := newSplitTarget(t, h, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		addr heapscope.Address
		want bool
	}{
		{"object", obj, true},
		{"garbage", junk, false},
		{"null", 0, false},
		{"past memory", 0x20000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := target.SelfReferenceCheck(ctx, tt.addr)
			if err != nil {
				t.Fatalf("SelfReferenceCheck error: %v", err)
			}
			if ok != tt.want {
				t.Errorf("SelfReferenceCheck(%s) = %v, want %v", tt.addr, ok, tt.want)
			}
		})
	}
}

func TestTarget_Read(t *testing.T) {
	h := newHeap()
	obj := h.Object(memtarget.Int("x", 0x01020304))
	target := newSplitTarget(t, h, nil)

	slot := h.SlotAddress(obj, 0)
	data, err := target.Read(slot, 4)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "\x04\x03\x02\x01" {
		t.Errorf("Read = %x, want 04030201", data)
	}

	data[0] = 0xff
	again, _ := target.Read(slot, 4)
	if again[0] != 0x04 {
		t.Error("Read must return a copy of guest memory")
	}

	for _, addr := range []heapscope.Address{0xfff0, 1 << 33} {
		_, err := target.Read(addr, 64)
		if !errors.Is(err, errors.ErrMemoryRead) {
			t.Errorf("Read(%s) error = %v, want memory_read", addr, err)
		}
	}
}

func TestTarget_WideAddress(t *testing.T) {
	target := newSplitTarget(t, newHeap(), nil)

	_, err := target.IsStringInstance(context.Background(), 1<<40)
	var e *errors.Error
	if !errors.As(err, &e) || e.Kind != errors.KindInvalidInput {
		t.Errorf("expected invalid_input for a 40-bit address, got %v", err)
	}
}

func TestTarget_QueryTrap(t *testing.T) {
	h := newHeap()
	obj := h.Object(memtarget.Int("x", 1))

	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	guest, err := rt.InstantiateWithConfig(ctx, memoryOnlyModule, wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}
	mem := guest.Memory()
	copyHeap(t, h, mem)

	exp := DefaultExports()
	exp.FieldCount = "trap"
	b := exportHeap(rt.NewHostModuleBuilder("debug"), h, &mem, exp)
	b = b.NewFunctionBuilder().WithFunc(func(context.Context, uint32) int32 {
		panic("runtime exploded")
	}).Export("trap")
	debug, err := b.Instantiate(ctx)
	if err != nil {
		t.Fatalf("instantiate debug module: %v", err)
	}

	target, err := New(debug, mem, &Config{Exports: exp})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	_, err = target.FieldCount(ctx, obj)
	if !errors.Is(err, errors.ErrEvaluation) {
		t.Fatalf("expected evaluation error, got %v", err)
	}
	if !strings.Contains(err.Error(), "call trap") {
		t.Errorf("error should name the export: %v", err)
	}

	_, err = inspect.New(target).Inspect(ctx, obj)
	if !errors.Is(err, errors.ErrEvaluation) {
		t.Errorf("Inspect should propagate the evaluation error, got %v", err)
	}
}

func TestNew_MissingExports(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	guest, err := rt.InstantiateWithConfig(ctx, memoryOnlyModule, wazero.NewModuleConfig().WithName("guest"))
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}

	_, err = New(guest, guest.Memory(), nil)
	var missing *errors.MissingExportsError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingExportsError, got %v", err)
	}
	if len(missing.Exports) != 9 {
		t.Errorf("missing %d exports, want 9", len(missing.Exports))
	}
	first := missing.Exports[0]
	if first.Module != "guest" || first.Name != ExportIsString {
		t.Errorf("first missing export = %+v", first)
	}
}

func TestNew_NotInitialized(t *testing.T) {
	ctx := context.Background()
	rt := wazero.NewRuntime(ctx)
	defer rt.Close(ctx)

	guest, err := rt.Instantiate(ctx, memoryOnlyModule)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}

	tests := []struct {
		name string
		mod  api.Module
		mem  api.Memory
	}{
		{"nil module", nil, guest.Memory()},
		{"nil memory", guest, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.mod, tt.mem, nil)
			var e *errors.Error
			if !errors.As(err, &e) || e.Kind != errors.KindNotInitialized {
				t.Errorf("expected not_initialized, got %v", err)
			}
		})
	}
}
