package inspect

import (
	"encoding/binary"
	"fmt"
	"math"
	"testing"

	"go.bytecodealliance.org/wit"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// sliceMemory serves reads from a byte slice mapped at base.
type sliceMemory struct {
	data []byte
	base heapscope.Address
}

func (m *sliceMemory) Read(addr heapscope.Address, length uint32) ([]byte, error) {
	if addr < m.base || uint64(addr-m.base)+uint64(length) > uint64(len(m.data)) {
		return nil, fmt.Errorf("unmapped %s", addr)
	}
	off := addr - m.base
	return m.data[off : off+heapscope.Address(length)], nil
}

func le16(v uint16) []byte { return binary.LittleEndian.AppendUint16(nil, v) }
func le32(v uint32) []byte { return binary.LittleEndian.AppendUint32(nil, v) }
func le64(v uint64) []byte { return binary.LittleEndian.AppendUint64(nil, v) }

func TestDecodePrimitive(t *testing.T) {
	tests := []struct {
		want    any
		name    string
		bytes   []byte
		tag     heapscope.TypeTag
		ptrSize uint32
	}{
		{name: "char", tag: heapscope.TagChar, bytes: []byte{0xfd}, want: int8(-3)},
		{name: "short", tag: heapscope.TagShort, bytes: le16(0x8001), want: int16(-32767)},
		{name: "int", tag: heapscope.TagInt, bytes: le32(0xfffffffe), want: int32(-2)},
		{name: "long", tag: heapscope.TagLong, bytes: le64(1 << 40), want: int64(1 << 40)},
		{name: "float", tag: heapscope.TagFloat, bytes: le32(math.Float32bits(1.5)), want: float32(1.5)},
		{name: "double", tag: heapscope.TagDouble, bytes: le64(math.Float64bits(-2.25)), want: float64(-2.25)},
		{name: "bool true", tag: heapscope.TagBoolean, bytes: le32(7), want: true},
		{name: "bool false", tag: heapscope.TagBoolean, bytes: le32(0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ptrSize := tt.ptrSize
			if ptrSize == 0 {
				ptrSize = 8
			}
			// Trailing bytes must not be consumed.
			mem := &sliceMemory{base: 0x100, data: append(tt.bytes, 0xff, 0xff, 0xff, 0xff)}
			v, err := DecodePrimitive(mem, 0x100, tt.tag, ptrSize)
			if err != nil {
				t.Fatalf("DecodePrimitive: %v", err)
			}
			if v.Kind != ValueScalar {
				t.Fatalf("Kind = %v, want scalar", v.Kind)
			}
			if v.Scalar != tt.want {
				t.Errorf("Scalar = %#v, want %#v", v.Scalar, tt.want)
			}
			if v.Tag != tt.tag || v.Addr != 0x100 {
				t.Errorf("Tag/Addr = %v/%s", v.Tag, v.Addr)
			}
		})
	}
}

func TestDecodePrimitive_Display(t *testing.T) {
	mem := &sliceMemory{base: 0x10, data: le64(0x1234)}
	v, err := DecodePrimitive(mem, 0x10, heapscope.TagInt, 8)
	if err != nil {
		t.Fatal(err)
	}
	if v.String() != "4660" {
		t.Errorf("int renders %q, want 4660", v.String())
	}
}

func TestDecodePrimitive_RawPointerIsFieldAddress(t *testing.T) {
	// Nothing is mapped: raw pointers never touch memory.
	mem := &sliceMemory{base: 0x1000}

	for _, ptrSize := range []uint32{4, 8} {
		v, err := DecodePrimitive(mem, 0x10128, heapscope.TagRawPointer, ptrSize)
		if err != nil {
			t.Fatalf("ptr=%d: %v", ptrSize, err)
		}
		if v.Kind != ValueScalar || v.Scalar != heapscope.Address(0x10128) {
			t.Errorf("ptr=%d: value = %v %#v, want scalar 0x10128", ptrSize, v.Kind, v.Scalar)
		}
		if v.String() != "(void *)0x10128" {
			t.Errorf("ptr=%d: renders %q, want (void *)0x10128", ptrSize, v.String())
		}
	}
}

func TestDecodePrimitive_UnreadableIsSoft(t *testing.T) {
	mem := &sliceMemory{base: 0x100, data: []byte{1, 2}}

	v, err := DecodePrimitive(mem, 0x100, heapscope.TagLong, 8)
	if err != nil {
		t.Fatalf("unreadable memory must not be an error, got %v", err)
	}
	if v.Kind != ValueError {
		t.Fatalf("Kind = %v, want error marker", v.Kind)
	}
	if !errors.Is(v.Err, errors.ErrMemoryRead) {
		t.Errorf("marker error = %v, want memory read", v.Err)
	}
	if v.String() != "error: 0x100" {
		t.Errorf("marker renders %q", v.String())
	}
}

func TestDecodePrimitive_Rejects(t *testing.T) {
	mem := &sliceMemory{base: 0, data: make([]byte, 16)}

	if _, err := DecodePrimitive(mem, 0, heapscope.TypeTag(10), 8); !errors.Is(err, errors.ErrUnsupportedTag) {
		t.Errorf("tag 10: err = %v, want unsupported tag", err)
	}
	if _, err := DecodePrimitive(mem, 0, heapscope.TypeTag(-1), 8); !errors.Is(err, errors.ErrUnsupportedTag) {
		t.Errorf("tag -1: err = %v, want unsupported tag", err)
	}
	if _, err := DecodePrimitive(mem, 0, heapscope.TagObjectPointer, 8); err == nil {
		t.Error("object pointers should be rejected")
	}

	v, err := DecodePrimitive(mem, 8, heapscope.TagInvalid, 8)
	if err != nil {
		t.Fatalf("invalid tag: %v", err)
	}
	if v.Kind != ValueInvalid || v.String() != "<invalid>0x8" {
		t.Errorf("invalid tag decodes to %v %q", v.Kind, v.String())
	}
}

func TestWITType(t *testing.T) {
	for _, ptrSize := range []uint32{4, 8} {
		for tag := heapscope.TagObjectPointer; tag <= heapscope.TagBoolean; tag++ {
			if WITType(tag, ptrSize) == nil {
				t.Errorf("%v has no WIT type", tag)
			}
		}
		if WITType(heapscope.TagInvalid, ptrSize) != nil {
			t.Error("invalid tag should have no WIT type")
		}
	}

	if _, ok := WITType(heapscope.TagRawPointer, 4).(wit.U32); !ok {
		t.Error("raw pointer on a 4-byte target should be u32")
	}
	if _, ok := WITType(heapscope.TagRawPointer, 8).(wit.U64); !ok {
		t.Error("raw pointer on an 8-byte target should be u64")
	}
}
