package wasmtarget

import (
	"context"
	"io"
	"math"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// Default names of the debug exports a guest runtime provides.
const (
	ExportIsString     = "heapscope_is_string"
	ExportIsArray      = "heapscope_is_array"
	ExportFieldCount   = "heapscope_field_count"
	ExportFieldType    = "heapscope_field_type"
	ExportFieldAddress = "heapscope_field_address"
	ExportFieldName    = "heapscope_field_name"
	ExportRender       = "heapscope_render_string"
	ExportBuffer       = "heapscope_buffer"
	ExportBufferSize   = "heapscope_buffer_size"
)

// Exports names the guest functions answering each query. All take and
// return i32 values:
//
//	is_string(obj) -> bool          field_count(obj) -> n
//	is_array(obj) -> bool           field_type(obj, i) -> tag
//	field_address(obj, i) -> ptr    field_name(obj, i) -> char*
//	render_string(obj, buf, cap) -> n
//	buffer() -> ptr                 buffer_size() -> n
type Exports struct {
	IsString     string
	IsArray      string
	FieldCount   string
	FieldType    string
	FieldAddress string
	FieldName    string
	Render       string
	Buffer       string
	BufferSize   string
}

// DefaultExports returns the standard export names.
func DefaultExports() *Exports {
	return &Exports{
		IsString:     ExportIsString,
		IsArray:      ExportIsArray,
		FieldCount:   ExportFieldCount,
		FieldType:    ExportFieldType,
		FieldAddress: ExportFieldAddress,
		FieldName:    ExportFieldName,
		Render:       ExportRender,
		Buffer:       ExportBuffer,
		BufferSize:   ExportBufferSize,
	}
}

func (e *Exports) names() [queryCount]string {
	return [queryCount]string{
		qIsString:     e.IsString,
		qIsArray:      e.IsArray,
		qFieldCount:   e.FieldCount,
		qFieldType:    e.FieldType,
		qFieldAddress: e.FieldAddress,
		qFieldName:    e.FieldName,
		qRender:       e.Render,
		qBuffer:       e.Buffer,
		qBufferSize:   e.BufferSize,
	}
}

type query int

const (
	qIsString query = iota
	qIsArray
	qFieldCount
	qFieldType
	qFieldAddress
	qFieldName
	qRender
	qBuffer
	qBufferSize
	queryCount
)

// Config holds configuration for a guest target
type Config struct {
	// Exports overrides the debug export names. Nil means DefaultExports().
	Exports *Exports

	// MemoryLimitPages sets the maximum guest memory in pages (64KB each).
	// 0 means the wazero default. Only used by Load.
	MemoryLimitPages uint32

	// PointerSize is the guest word size. 0 means 4 (wasm32).
	PointerSize uint32

	// HostModules registers host modules the guest imports before it is
	// instantiated. Only used by Load.
	HostModules func(ctx context.Context, r wazero.Runtime) error

	// Stdout and Stderr receive guest output when the guest imports WASI.
	// Nil discards it. Only used by Load.
	Stdout io.Writer
	Stderr io.Writer
}

// Target answers heapscope queries by calling debug exports of a guest and
// reading its linear memory. It is not safe for concurrent use.
type Target struct {
	mem     api.Memory
	funcs   [queryCount]api.Function
	names   [queryCount]string
	ptrSize uint32
}

var _ heapscope.Target = (*Target)(nil)

// New binds a target to the debug exports of queries and to mem. The two
// may come from different modules.
func New(queries api.Module, mem api.Memory, cfg *Config) (*Target, error) {
	if queries == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "query module")
	}
	if mem == nil {
		return nil, errors.NotInitialized(errors.PhaseLoad, "guest memory")
	}

	exports := DefaultExports()
	t := &Target{mem: mem, ptrSize: 4}
	if cfg != nil {
		if cfg.Exports != nil {
			exports = cfg.Exports
		}
		if cfg.PointerSize == 8 {
			t.ptrSize = 8
		}
	}
	t.names = exports.names()

	var missing []string
	for q, name := range t.names {
		fn := queries.ExportedFunction(name)
		if fn == nil {
			missing = append(missing, queries.Name()+"#"+name)
			continue
		}
		if len(fn.Definition().ResultTypes()) != 1 {
			return nil, errors.New(errors.PhaseLoad, errors.KindInvalidData).
				Detail("export %s must return exactly one value", name).
				Build()
		}
		t.funcs[q] = fn
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingExportsError(missing)
	}
	return t, nil
}

func (t *Target) PointerSize() uint32 { return t.ptrSize }

// Read implements heapscope.Memory. The returned slice is a copy.
func (t *Target) Read(addr heapscope.Address, length uint32) ([]byte, error) {
	if uint64(addr)+uint64(length) > math.MaxUint32+1 {
		return nil, errors.MemoryRead(errors.PhaseQuery, nil, uint64(addr), length, nil)
	}
	data, ok := t.mem.Read(uint32(addr), length)
	if !ok {
		return nil, errors.New(errors.PhaseQuery, errors.KindMemoryRead).
			Address(uint64(addr)).
			Detail("read out of bounds: length=%d, memory=%d", length, t.mem.Size()).
			Build()
	}
	return slices.Clone(data), nil
}

func (t *Target) call(ctx context.Context, q query, params ...uint64) (uint64, error) {
	res, err := t.funcs[q].Call(ctx, params...)
	if err != nil {
		return 0, errors.Wrap(errors.PhaseQuery, errors.KindEvaluation, err, "call "+t.names[q])
	}
	if len(res) == 0 {
		return 0, errors.InvalidData(errors.PhaseQuery, nil, t.names[q]+" returned no result")
	}
	return res[0], nil
}

func (t *Target) encodeAddr(addr heapscope.Address) (uint64, error) {
	if t.ptrSize == 4 {
		if addr > math.MaxUint32 {
			return 0, errors.New(errors.PhaseQuery, errors.KindInvalidInput).
				Address(uint64(addr)).
				Detail("address does not fit a 32-bit guest").
				Build()
		}
		return api.EncodeU32(uint32(addr)), nil
	}
	return uint64(addr), nil
}

func (t *Target) decodeAddr(v uint64) heapscope.Address {
	if t.ptrSize == 4 {
		return heapscope.Address(api.DecodeU32(v))
	}
	return heapscope.Address(v)
}

func (t *Target) predicate(ctx context.Context, q query, addr heapscope.Address) (bool, error) {
	a, err := t.encodeAddr(addr)
	if err != nil {
		return false, err
	}
	r, err := t.call(ctx, q, a)
	if err != nil {
		return false, err
	}
	return api.DecodeU32(r) != 0, nil
}

func (t *Target) IsStringInstance(ctx context.Context, addr heapscope.Address) (bool, error) {
	return t.predicate(ctx, qIsString, addr)
}

func (t *Target) IsArrayInstance(ctx context.Context, addr heapscope.Address) (bool, error) {
	return t.predicate(ctx, qIsArray, addr)
}

// SelfReferenceCheck is answered from linear memory; guests need not export it.
func (t *Target) SelfReferenceCheck(_ context.Context, addr heapscope.Address) (bool, error) {
	return heapscope.CheckSelfReference(t, addr, t.ptrSize), nil
}

func (t *Target) FieldCount(ctx context.Context, addr heapscope.Address) (int, error) {
	a, err := t.encodeAddr(addr)
	if err != nil {
		return 0, err
	}
	r, err := t.call(ctx, qFieldCount, a)
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(r)), nil
}

func (t *Target) indexed(ctx context.Context, q query, addr heapscope.Address, index int) (uint64, error) {
	a, err := t.encodeAddr(addr)
	if err != nil {
		return 0, err
	}
	return t.call(ctx, q, a, api.EncodeI32(int32(index)))
}

func (t *Target) FieldTypeTag(ctx context.Context, addr heapscope.Address, index int) (int, error) {
	r, err := t.indexed(ctx, qFieldType, addr, index)
	if err != nil {
		return 0, err
	}
	return int(api.DecodeI32(r)), nil
}

func (t *Target) FieldAddress(ctx context.Context, addr heapscope.Address, index int) (heapscope.Address, error) {
	r, err := t.indexed(ctx, qFieldAddress, addr, index)
	if err != nil {
		return 0, err
	}
	return t.decodeAddr(r), nil
}

func (t *Target) FieldName(ctx context.Context, addr heapscope.Address, index int) (heapscope.Address, error) {
	r, err := t.indexed(ctx, qFieldName, addr, index)
	if err != nil {
		return 0, err
	}
	return t.decodeAddr(r), nil
}

func (t *Target) RenderToScratchBuffer(ctx context.Context, addr, buf heapscope.Address, capacity uint32) (uint32, error) {
	a, err := t.encodeAddr(addr)
	if err != nil {
		return 0, err
	}
	b, err := t.encodeAddr(buf)
	if err != nil {
		return 0, err
	}
	r, err := t.call(ctx, qRender, a, b, api.EncodeU32(capacity))
	if err != nil {
		return 0, err
	}
	n := api.DecodeI32(r)
	if n < 0 {
		return 0, nil
	}
	return uint32(n), nil
}

func (t *Target) ScratchBufferAddress(ctx context.Context) (heapscope.Address, error) {
	r, err := t.call(ctx, qBuffer)
	if err != nil {
		return 0, err
	}
	return t.decodeAddr(r), nil
}

func (t *Target) ScratchBufferCapacity(ctx context.Context) (uint32, error) {
	r, err := t.call(ctx, qBufferSize)
	if err != nil {
		return 0, err
	}
	return api.DecodeU32(r), nil
}
