package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseValidate  Phase = "validate"  // self-reference check
	PhaseClassify  Phase = "classify"  // string/array/object predicates
	PhaseEnumerate Phase = "enumerate" // field count, tags, addresses, names
	PhaseDecode    Phase = "decode"    // reading values out of memory
	PhaseQuery     Phase = "query"     // raw query channel calls
	PhaseLoad      Phase = "load"      // guest module loading
	PhaseRuntime   Phase = "runtime"   // target lifecycle
)

// Kind categorizes the error
type Kind string

const (
	KindEvaluation     Kind = "evaluation"
	KindMemoryRead     Kind = "memory_read"
	KindUnsupportedTag Kind = "unsupported_tag"
	KindOutOfBounds    Kind = "out_of_bounds"
	KindInvalidData    Kind = "invalid_data"
	KindNotFound       Kind = "not_found"
	KindNotInitialized Kind = "not_initialized"
	KindInvalidInput   Kind = "invalid_input"
	KindInstantiation  Kind = "instantiation"
	KindMissingExport  Kind = "missing_export"
)

// Sentinels matching any phase for the kinds callers most often branch on.
var (
	ErrEvaluation     = &Error{Kind: KindEvaluation}
	ErrMemoryRead     = &Error{Kind: KindMemoryRead}
	ErrUnsupportedTag = &Error{Kind: KindUnsupportedTag}
)

// Error is the structured error type used throughout heapscope
type Error struct {
	Value      any
	Cause      error
	Phase      Phase
	Kind       Kind
	Tag        string
	Detail     string
	Path       []string
	Address    uint64
	HasAddress bool
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.HasAddress {
		b.WriteString(" @")
		b.WriteString(fmt.Sprintf("%#x", e.Address))
	}

	if e.Tag != "" {
		b.WriteString(": tag ")
		b.WriteString(e.Tag)
	}

	if e.Detail != "" {
		if e.Tag != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error. A target without a phase
// matches on kind alone.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		if t.Phase == "" {
			return e.Kind == t.Kind
		}
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the child path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Address sets the target address involved
func (b *Builder) Address(addr uint64) *Builder {
	b.err.Address = addr
	b.err.HasAddress = true
	return b
}

// Tag sets the type tag name
func (b *Builder) Tag(t string) *Builder {
	b.err.Tag = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// Evaluation creates an error for a failed query round-trip
func Evaluation(phase Phase, query string, addr uint64, cause error) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindEvaluation,
		Address:    addr,
		HasAddress: true,
		Detail:     fmt.Sprintf("query %s failed", query),
		Cause:      cause,
	}
}

// MemoryRead creates an unreadable memory error
func MemoryRead(phase Phase, path []string, addr uint64, size uint32, cause error) *Error {
	return &Error{
		Phase:      phase,
		Kind:       KindMemoryRead,
		Path:       path,
		Address:    addr,
		HasAddress: true,
		Detail:     fmt.Sprintf("cannot read %d bytes", size),
		Cause:      cause,
	}
}

// UnsupportedTag creates an error for a type tag outside the known set
func UnsupportedTag(phase Phase, path []string, tag int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupportedTag,
		Path:   path,
		Detail: fmt.Sprintf("type tag %d is not part of the protocol", tag),
		Value:  tag,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(phase Phase, path []string, index, length int) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// InvalidData creates an invalid data error
func InvalidData(phase Phase, path []string, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidData,
		Path:   path,
		Detail: detail,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// MissingExport represents a single debug export absent from a guest
type MissingExport struct {
	Module string // e.g., "guest"
	Name   string // e.g., "heapscope_field_count"
}

// MissingExportsError is returned when a guest lacks required debug exports
type MissingExportsError struct {
	Exports []MissingExport
}

// NewMissingExportsError creates an error from a list of "module#export" strings
func NewMissingExportsError(exports []string) *MissingExportsError {
	result := &MissingExportsError{
		Exports: make([]MissingExport, 0, len(exports)),
	}
	for _, exp := range exports {
		mod, name := parseExportKey(exp)
		result.Exports = append(result.Exports, MissingExport{
			Module: mod,
			Name:   name,
		})
	}
	return result
}

func parseExportKey(key string) (module, name string) {
	mod, n, found := strings.Cut(key, "#")
	if found {
		return mod, n
	}
	return "", key
}

func (e *MissingExportsError) Error() string {
	if len(e.Exports) == 0 {
		return "[load] missing_export: no exports specified"
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("missing %d debug export(s):\n", len(e.Exports)))

	// Group by module for cleaner output
	byMod := make(map[string][]string)
	var modOrder []string
	for _, exp := range e.Exports {
		if _, exists := byMod[exp.Module]; !exists {
			modOrder = append(modOrder, exp.Module)
		}
		byMod[exp.Module] = append(byMod[exp.Module], exp.Name)
	}

	for _, mod := range modOrder {
		b.WriteString("\n  ")
		if mod == "" {
			b.WriteString("<unnamed>")
		} else {
			b.WriteString(mod)
		}
		b.WriteString(":\n")
		for _, name := range byMod[mod] {
			b.WriteString("    - ")
			b.WriteString(name)
			b.WriteByte('\n')
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

// Is reports whether target matches this error type
func (e *MissingExportsError) Is(target error) bool {
	_, ok := target.(*MissingExportsError)
	return ok
}

// Target lifecycle convenience constructors

// NotInitialized creates a not-initialized error
func NotInitialized(phase Phase, component string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotInitialized,
		Detail: fmt.Sprintf("%s not initialized", component),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Instantiation creates an instantiation error
func Instantiation(cause error) *Error {
	return &Error{
		Phase:  PhaseRuntime,
		Kind:   KindInstantiation,
		Detail: "instantiate guest",
		Cause:  cause,
	}
}

// Load creates a module loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}
