package inspect

import (
	"bytes"
	"context"
	"strconv"

	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// DefaultMaxNameLength bounds field name reads.
const DefaultMaxNameLength = 0x1000

const cStringChunk = 64

// Field describes one field or element of an aggregate snapshot.
type Field struct {
	Name  string
	Addr  heapscope.Address
	Index int
	Tag   heapscope.TypeTag
}

// Enumerator queries the field layout of one object or array.
type Enumerator struct {
	target  heapscope.Target
	addr    heapscope.Address
	maxName uint32
}

// NewEnumerator creates an enumerator for the aggregate at addr.
func NewEnumerator(t heapscope.Target, addr heapscope.Address, maxName uint32) *Enumerator {
	if maxName == 0 {
		maxName = DefaultMaxNameLength
	}
	return &Enumerator{target: t, addr: addr, maxName: maxName}
}

// Count returns the number of fields the runtime reports.
func (e *Enumerator) Count(ctx context.Context) (int, error) {
	n, err := e.target.FieldCount(ctx, e.addr)
	if err != nil {
		return 0, errors.Evaluation(errors.PhaseEnumerate, "field-count", uint64(e.addr), err)
	}
	if n < 0 {
		return 0, errors.New(errors.PhaseEnumerate, errors.KindInvalidData).
			Address(uint64(e.addr)).
			Value(n).
			Detail("negative field count %d", n).
			Build()
	}
	return n, nil
}

// TypeTag returns the tag of field i. Tags outside the protocol are fatal.
func (e *Enumerator) TypeTag(ctx context.Context, i int) (heapscope.TypeTag, error) {
	raw, err := e.target.FieldTypeTag(ctx, e.addr, i)
	if err != nil {
		return heapscope.TagInvalid, errors.Evaluation(errors.PhaseEnumerate, "field-type", uint64(e.addr), err)
	}
	tag := heapscope.TypeTag(raw)
	if !tag.Valid() {
		return heapscope.TagInvalid, errors.UnsupportedTag(errors.PhaseEnumerate, []string{strconv.Itoa(i)}, raw)
	}
	return tag, nil
}

// Address returns the location of field i's storage.
func (e *Enumerator) Address(ctx context.Context, i int) (heapscope.Address, error) {
	addr, err := e.target.FieldAddress(ctx, e.addr, i)
	if err != nil {
		return 0, errors.Evaluation(errors.PhaseEnumerate, "field-address", uint64(e.addr), err)
	}
	return addr, nil
}

// Name reads the name of field i. Failing to read the name bytes is reported
// as a memory read error; failing to ask for them is an evaluation error.
func (e *Enumerator) Name(ctx context.Context, i int) (string, error) {
	ptr, err := e.target.FieldName(ctx, e.addr, i)
	if err != nil {
		return "", errors.Evaluation(errors.PhaseEnumerate, "field-name", uint64(e.addr), err)
	}
	name, err := readCString(e.target, ptr, e.maxName)
	if err != nil {
		return "", errors.MemoryRead(errors.PhaseEnumerate, []string{strconv.Itoa(i)}, uint64(ptr), 1, err)
	}
	return name, nil
}

// Fields captures the layout of the aggregate. The count is read once and
// every per-index query is made against it. With named set, fields whose
// name cannot be read are left out.
func (e *Enumerator) Fields(ctx context.Context, named bool) ([]Field, error) {
	n, err := e.Count(ctx)
	if err != nil {
		return nil, err
	}

	fields := make([]Field, 0, n)
	for i := 0; i < n; i++ {
		f := Field{Index: i}
		if named {
			f.Name, err = e.Name(ctx, i)
			if err != nil {
				var ee *errors.Error
				if !errors.As(err, &ee) || ee.Kind != errors.KindMemoryRead {
					return nil, err
				}
				Logger().Debug("dropping field with unreadable name",
					zap.Stringer("object", e.addr),
					zap.Int("index", i),
					zap.Error(err))
				continue
			}
		} else {
			f.Name = strconv.Itoa(i)
		}
		if f.Tag, err = e.TypeTag(ctx, i); err != nil {
			return nil, err
		}
		if f.Addr, err = e.Address(ctx, i); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, nil
}

// readCString reads a NUL-terminated string of at most limit bytes. Reads go
// in chunks and fall back to single bytes where a chunk runs off readable
// memory.
func readCString(mem heapscope.Memory, addr heapscope.Address, limit uint32) (string, error) {
	if addr == 0 {
		return "", errors.InvalidData(errors.PhaseEnumerate, nil, "null string pointer")
	}
	var buf []byte
	for uint32(len(buf)) < limit {
		at := addr + heapscope.Address(len(buf))
		n := min(cStringChunk, limit-uint32(len(buf)))
		chunk, err := mem.Read(at, n)
		if err != nil {
			if chunk, err = mem.Read(at, 1); err != nil {
				return "", err
			}
		}
		if i := bytes.IndexByte(chunk, 0); i >= 0 {
			return string(append(buf, chunk[:i]...)), nil
		}
		buf = append(buf, chunk...)
	}
	return string(buf), nil
}
