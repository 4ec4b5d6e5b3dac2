// Package memtarget implements heapscope.Target over a synthetic heap held in
// process memory. It lays objects out the way a managed runtime does, with a
// self-referencing type-info word in every header, and answers the debug
// queries from its own bookkeeping. Reads and queries can be made to fail on
// demand.
package memtarget

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/wippyai/heapscope"
)

// Query names accepted by FailQuery.
const (
	QueryIsString     = "is-string"
	QueryIsArray      = "is-array"
	QuerySelfCheck    = "self-check"
	QueryFieldCount   = "field-count"
	QueryFieldType    = "field-type"
	QueryFieldAddress = "field-address"
	QueryFieldName    = "field-name"
	QueryRender       = "render"
	QueryBuffer       = "buffer"
	QueryBufferSize   = "buffer-size"
)

const (
	// DefaultBase is the address of the first heap byte.
	DefaultBase heapscope.Address = 0x10000
	// DefaultScratchCapacity is the size of the string scratch buffer.
	DefaultScratchCapacity = 256
)

type kind uint8

const (
	kindObject kind = iota
	kindString
	kindArray
)

type slot struct {
	name heapscope.Address
	addr heapscope.Address
	tag  int
}

type object struct {
	text  string
	slots []slot
	kind  kind
}

type span struct {
	start, end heapscope.Address
}

// Heap is a synthetic managed heap. It is not safe for concurrent use.
type Heap struct {
	failing    map[string]error
	objects    map[heapscope.Address]*object
	forced     map[heapscope.Address]kind
	mem        []byte
	unmapped   []span
	base       heapscope.Address
	typeInfo   [3]heapscope.Address
	scratch    heapscope.Address
	scratchCap uint32
	ptrSize    uint32
}

// Config holds configuration for a Heap
type Config struct {
	// PointerSize is 4 or 8. 0 means 8.
	PointerSize uint32
	// ScratchCapacity is the string scratch buffer size. 0 means DefaultScratchCapacity.
	ScratchCapacity uint32
	// Base is the address of the first heap byte. 0 means DefaultBase.
	Base heapscope.Address
}

// New creates an empty 64-bit heap.
func New() *Heap {
	return NewWithConfig(nil)
}

// NewWithConfig creates an empty heap with custom configuration.
func NewWithConfig(cfg *Config) *Heap {
	h := &Heap{
		failing:    make(map[string]error),
		objects:    make(map[heapscope.Address]*object),
		forced:     make(map[heapscope.Address]kind),
		base:       DefaultBase,
		scratchCap: DefaultScratchCapacity,
		ptrSize:    8,
	}
	if cfg != nil {
		if cfg.PointerSize == 4 {
			h.ptrSize = 4
		}
		if cfg.ScratchCapacity > 0 {
			h.scratchCap = cfg.ScratchCapacity
		}
		if cfg.Base != 0 {
			h.base = cfg.Base
		}
	}

	// Keep the first word unused so no object lives at the base address.
	h.alloc(h.ptrSize)
	for i := range h.typeInfo {
		ti := h.alloc(h.ptrSize)
		h.putWord(ti, ti)
		h.typeInfo[i] = ti
	}
	h.scratch = h.alloc(h.scratchCap)
	return h
}

// Base returns the lowest heap address.
func (h *Heap) Base() heapscope.Address { return h.base }

// End returns the address one past the last heap byte.
func (h *Heap) End() heapscope.Address { return h.base + heapscope.Address(len(h.mem)) }

// ScratchBuffer returns the scratch buffer's address.
func (h *Heap) ScratchBuffer() heapscope.Address { return h.scratch }

func (h *Heap) alloc(size uint32) heapscope.Address {
	align := int(h.ptrSize)
	for len(h.mem)%align != 0 {
		h.mem = append(h.mem, 0)
	}
	addr := h.base + heapscope.Address(len(h.mem))
	h.mem = append(h.mem, make([]byte, size)...)
	return addr
}

func (h *Heap) offset(addr heapscope.Address, size uint32) (int, bool) {
	if addr < h.base {
		return 0, false
	}
	off := uint64(addr - h.base)
	if off+uint64(size) > uint64(len(h.mem)) {
		return 0, false
	}
	return int(off), true
}

// Write stores raw bytes at addr. It panics if the range is outside the heap.
func (h *Heap) Write(addr heapscope.Address, data []byte) {
	off, ok := h.offset(addr, uint32(len(data)))
	if !ok {
		panic(fmt.Sprintf("memtarget: write outside heap at %s", addr))
	}
	copy(h.mem[off:], data)
}

func (h *Heap) putWord(addr, v heapscope.Address) {
	buf := make([]byte, h.ptrSize)
	if h.ptrSize == 4 {
		binary.LittleEndian.PutUint32(buf, uint32(v))
	} else {
		binary.LittleEndian.PutUint64(buf, uint64(v))
	}
	h.Write(addr, buf)
}

// Alloc reserves size zeroed bytes and returns their address.
func (h *Heap) Alloc(size uint32) heapscope.Address {
	return h.alloc(size)
}

func (h *Heap) cString(s string) heapscope.Address {
	addr := h.alloc(uint32(len(s) + 1))
	h.Write(addr, []byte(s))
	return addr
}

func (h *Heap) header(k kind) heapscope.Address {
	addr := h.alloc(h.ptrSize)
	h.putWord(addr, h.typeInfo[k])
	return addr
}

func (h *Heap) store(f Field) slot {
	s := slot{tag: int(f.Tag)}
	width := f.Tag.Width(h.ptrSize)
	if len(f.Raw) > 0 {
		width = uint32(len(f.Raw))
	}
	s.addr = h.alloc(max(width, 1))
	h.Write(s.addr, h.encode(f, width))
	return s
}

func (h *Heap) encode(f Field, width uint32) []byte {
	if f.Raw != nil {
		return f.Raw
	}
	buf := make([]byte, max(width, 1))
	le := binary.LittleEndian
	switch v := f.Value.(type) {
	case int8:
		buf[0] = byte(v)
	case int16:
		le.PutUint16(buf, uint16(v))
	case int32:
		le.PutUint32(buf, uint32(v))
	case int64:
		le.PutUint64(buf, uint64(v))
	case float32:
		le.PutUint32(buf, math.Float32bits(v))
	case float64:
		le.PutUint64(buf, math.Float64bits(v))
	case bool:
		if v {
			le.PutUint32(buf, 1)
		}
	case heapscope.Address:
		if width == 4 {
			le.PutUint32(buf, uint32(v))
		} else {
			le.PutUint64(buf, uint64(v))
		}
	}
	return buf
}

// Object allocates a composite object with the given fields.
func (h *Heap) Object(fields ...Field) heapscope.Address {
	addr := h.header(kindObject)
	obj := &object{kind: kindObject}
	for _, f := range fields {
		s := h.store(f)
		s.name = h.cString(f.Name)
		obj.slots = append(obj.slots, s)
	}
	h.objects[addr] = obj
	return addr
}

// Array allocates an array whose elements are the given fields. Element
// names are ignored.
func (h *Heap) Array(elems ...Field) heapscope.Address {
	addr := h.header(kindArray)
	obj := &object{kind: kindArray}
	for _, f := range elems {
		obj.slots = append(obj.slots, h.store(f))
	}
	h.objects[addr] = obj
	return addr
}

// Text allocates a string object.
func (h *Heap) Text(text string) heapscope.Address {
	addr := h.header(kindString)
	h.objects[addr] = &object{kind: kindString, text: text}
	return addr
}

// Garbage allocates a word that does not pass the self-reference check.
func (h *Heap) Garbage() heapscope.Address {
	junk := h.alloc(h.ptrSize)
	addr := h.alloc(h.ptrSize)
	h.putWord(addr, junk)
	h.putWord(junk, 0xdead)
	return addr
}

// WithMeta allocates an object whose header points at a meta-object that in
// turn points at the object type info.
func (h *Heap) WithMeta(fields ...Field) heapscope.Address {
	addr := h.Object(fields...)
	meta := h.alloc(h.ptrSize)
	h.putWord(meta, h.typeInfo[kindObject])
	h.putWord(addr, meta)
	return addr
}

// AddField appends a field to an existing object.
func (h *Heap) AddField(obj heapscope.Address, f Field) {
	o := h.mustObject(obj)
	s := h.store(f)
	if o.kind == kindObject {
		s.name = h.cString(f.Name)
	}
	o.slots = append(o.slots, s)
}

// RemoveField deletes field i of an existing object.
func (h *Heap) RemoveField(obj heapscope.Address, i int) {
	o := h.mustObject(obj)
	o.slots = slices.Delete(o.slots, i, i+1)
}

// SetText replaces the text of a string object.
func (h *Heap) SetText(str heapscope.Address, text string) {
	h.mustObject(str).text = text
}

// SlotAddress returns where field i of obj is stored.
func (h *Heap) SlotAddress(obj heapscope.Address, i int) heapscope.Address {
	return h.mustObject(obj).slots[i].addr
}

// NameAddress returns where the name of field i of obj is stored.
func (h *Heap) NameAddress(obj heapscope.Address, i int) heapscope.Address {
	return h.mustObject(obj).slots[i].name
}

// Force makes the classification predicates report string and/or array for
// addr in addition to what the object actually is.
func (h *Heap) Force(addr heapscope.Address, asString, asArray bool) {
	switch {
	case asString && asArray:
		h.forced[addr] = kindString | kindArray
	case asString:
		h.forced[addr] = kindString
	case asArray:
		h.forced[addr] = kindArray
	}
}

// Unmap makes [addr, addr+size) unreadable.
func (h *Heap) Unmap(addr heapscope.Address, size uint32) {
	h.unmapped = append(h.unmapped, span{start: addr, end: addr + heapscope.Address(size)})
}

// FailQuery makes the named query return err. A nil err clears the failure.
func (h *Heap) FailQuery(query string, err error) {
	if err == nil {
		delete(h.failing, query)
		return
	}
	h.failing[query] = err
}

func (h *Heap) mustObject(addr heapscope.Address) *object {
	o, ok := h.objects[addr]
	if !ok {
		panic(fmt.Sprintf("memtarget: no object at %s", addr))
	}
	return o
}

// Read implements heapscope.Memory.
func (h *Heap) Read(addr heapscope.Address, length uint32) ([]byte, error) {
	end := addr + heapscope.Address(length)
	for _, s := range h.unmapped {
		if addr < s.end && s.start < end {
			return nil, fmt.Errorf("memory at %s unmapped", addr)
		}
	}
	off, ok := h.offset(addr, length)
	if !ok {
		return nil, fmt.Errorf("read out of bounds: addr=%s, length=%d", addr, length)
	}
	return slices.Clone(h.mem[off : off+int(length)]), nil
}

func (h *Heap) fail(query string) error {
	return h.failing[query]
}

func (h *Heap) lookup(addr heapscope.Address) (*object, error) {
	o, ok := h.objects[addr]
	if !ok {
		return nil, fmt.Errorf("no object at %s", addr)
	}
	return o, nil
}

func (h *Heap) slotAt(addr heapscope.Address, i int) (slot, error) {
	o, err := h.lookup(addr)
	if err != nil {
		return slot{}, err
	}
	if i < 0 || i >= len(o.slots) {
		return slot{}, fmt.Errorf("field %d out of range (count %d)", i, len(o.slots))
	}
	return o.slots[i], nil
}
