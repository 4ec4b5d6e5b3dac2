package memtarget

import (
	"context"

	"github.com/wippyai/heapscope"
)

var _ heapscope.Target = (*Heap)(nil)

func (h *Heap) PointerSize() uint32 { return h.ptrSize }

func (h *Heap) IsStringInstance(_ context.Context, addr heapscope.Address) (bool, error) {
	if err := h.fail(QueryIsString); err != nil {
		return false, err
	}
	return h.is(addr, kindString), nil
}

func (h *Heap) IsArrayInstance(_ context.Context, addr heapscope.Address) (bool, error) {
	if err := h.fail(QueryIsArray); err != nil {
		return false, err
	}
	return h.is(addr, kindArray), nil
}

func (h *Heap) is(addr heapscope.Address, k kind) bool {
	if f, ok := h.forced[addr]; ok && f&k != 0 {
		return true
	}
	o, ok := h.objects[addr]
	return ok && o.kind == k
}

func (h *Heap) SelfReferenceCheck(_ context.Context, addr heapscope.Address) (bool, error) {
	if err := h.fail(QuerySelfCheck); err != nil {
		return false, err
	}
	return heapscope.CheckSelfReference(h, addr, h.ptrSize), nil
}

func (h *Heap) FieldCount(_ context.Context, addr heapscope.Address) (int, error) {
	if err := h.fail(QueryFieldCount); err != nil {
		return 0, err
	}
	o, err := h.lookup(addr)
	if err != nil {
		return 0, err
	}
	return len(o.slots), nil
}

func (h *Heap) FieldTypeTag(_ context.Context, addr heapscope.Address, index int) (int, error) {
	if err := h.fail(QueryFieldType); err != nil {
		return 0, err
	}
	s, err := h.slotAt(addr, index)
	if err != nil {
		return 0, err
	}
	return s.tag, nil
}

func (h *Heap) FieldAddress(_ context.Context, addr heapscope.Address, index int) (heapscope.Address, error) {
	if err := h.fail(QueryFieldAddress); err != nil {
		return 0, err
	}
	s, err := h.slotAt(addr, index)
	if err != nil {
		return 0, err
	}
	return s.addr, nil
}

func (h *Heap) FieldName(_ context.Context, addr heapscope.Address, index int) (heapscope.Address, error) {
	if err := h.fail(QueryFieldName); err != nil {
		return 0, err
	}
	s, err := h.slotAt(addr, index)
	if err != nil {
		return 0, err
	}
	return s.name, nil
}

// RenderToScratchBuffer copies a string object's text into buf, truncated to
// capacity. Anything that is not a string renders nothing.
func (h *Heap) RenderToScratchBuffer(_ context.Context, addr, buf heapscope.Address, capacity uint32) (uint32, error) {
	if err := h.fail(QueryRender); err != nil {
		return 0, err
	}
	o, ok := h.objects[addr]
	if !ok || o.kind != kindString {
		return 0, nil
	}
	text := []byte(o.text)
	if uint32(len(text)) > capacity {
		text = text[:capacity]
	}
	if len(text) == 0 {
		return 0, nil
	}
	if _, ok := h.offset(buf, uint32(len(text))); !ok {
		return 0, nil
	}
	h.Write(buf, text)
	return uint32(len(text)), nil
}

func (h *Heap) ScratchBufferAddress(context.Context) (heapscope.Address, error) {
	if err := h.fail(QueryBuffer); err != nil {
		return 0, err
	}
	return h.scratch, nil
}

func (h *Heap) ScratchBufferCapacity(context.Context) (uint32, error) {
	if err := h.fail(QueryBufferSize); err != nil {
		return 0, err
	}
	return h.scratchCap, nil
}
