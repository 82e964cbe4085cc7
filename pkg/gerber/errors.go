package gerber

import (
	"errors"
	"fmt"
	"strings"
)

// Failure kinds. Every pipeline stage reports one of these, wrapped in a
// *PrimitiveError that names the offending primitive.
var (
	ErrUnsupportedKind      = errors.New("unsupported primitive kind")
	ErrMalformedOutline     = errors.New("malformed outline")
	ErrDiscontinuousRegion  = errors.New("discontinuous region")
	ErrUnknownPolarity      = errors.New("unknown polarity")
	ErrEmptyBoard           = errors.New("empty board")
	ErrUnhandledInTransform = errors.New("unhandled primitive in transform")
	ErrDegenerateShape      = errors.New("degenerate shape")
	ErrNotImplemented       = errors.New("not implemented")
)

// PrimitiveError attaches the failing primitive and the violated contract to
// one of the sentinel errors above.
type PrimitiveError struct {
	Op     string // pipeline stage, e.g. "reconstruct" or "mirror"
	Index  int    // position in the board, -1 when not known yet
	Kind   Kind
	Detail string
	Err    error
}

// NewError returns a PrimitiveError with no index. Stages that know the
// primitive's position fill it in with AtIndex.
func NewError(op string, k Kind, err error, format string, args ...any) *PrimitiveError {
	return &PrimitiveError{
		Op:     op,
		Index:  -1,
		Kind:   k,
		Detail: fmt.Sprintf(format, args...),
		Err:    err,
	}
}

func (e *PrimitiveError) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.Index >= 0 {
		fmt.Fprintf(&b, "primitive %d ", e.Index)
	}
	fmt.Fprintf(&b, "(%s): %v", e.Kind, e.Err)
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *PrimitiveError) Unwrap() error { return e.Err }

// AtIndex records the board position i on err if it is a PrimitiveError
// without one. Other errors are returned unchanged.
func AtIndex(err error, i int) error {
	var pe *PrimitiveError
	if !errors.As(err, &pe) || pe.Index >= 0 {
		return err
	}
	cp := *pe
	cp.Index = i
	return &cp
}

// Nested prefixes the detail of a sub-primitive failure with its position
// inside the parent, keeping the sentinel.
func Nested(err error, parent Kind, i int) error {
	var pe *PrimitiveError
	if !errors.As(err, &pe) {
		return fmt.Errorf("%s sub-primitive %d: %w", parent, i, err)
	}
	cp := *pe
	cp.Detail = fmt.Sprintf("%s sub-primitive %d (%s)", parent, i, pe.Kind)
	if pe.Detail != "" {
		cp.Detail += ": " + pe.Detail
	}
	cp.Kind = parent
	return &cp
}
