package inspect

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/heapscope"
	"github.com/wippyai/heapscope/errors"
)

// Category is the shape of a validated heap object.
type Category uint8

const (
	CategoryObject Category = iota
	CategoryArray
	CategoryString
)

func (c Category) String() string {
	switch c {
	case CategoryString:
		return "string"
	case CategoryArray:
		return "array"
	default:
		return "object"
	}
}

// Classify decides the category of a validated reference. The string
// predicate is asked first, so an address satisfying both predicates is a
// string; anything that is neither is an object.
func Classify(ctx context.Context, t heapscope.Target, addr heapscope.Address) (Category, error) {
	isString, err := t.IsStringInstance(ctx, addr)
	if err != nil {
		return CategoryObject, errors.Evaluation(errors.PhaseClassify, "is-string", uint64(addr), err)
	}
	if isString {
		return CategoryString, nil
	}

	isArray, err := t.IsArrayInstance(ctx, addr)
	if err != nil {
		return CategoryObject, errors.Evaluation(errors.PhaseClassify, "is-array", uint64(addr), err)
	}
	if isArray {
		return CategoryArray, nil
	}
	return CategoryObject, nil
}

// IsValidReference runs the self-reference check. A check that cannot be
// evaluated counts as a failed check.
func IsValidReference(ctx context.Context, t heapscope.Target, addr heapscope.Address) bool {
	if addr == 0 {
		return false
	}
	ok, err := t.SelfReferenceCheck(ctx, addr)
	if err != nil {
		Logger().Debug("self-reference check failed to evaluate",
			zap.Stringer("addr", addr),
			zap.Error(err))
		return false
	}
	return ok
}
