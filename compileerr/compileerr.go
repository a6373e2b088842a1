// Package compileerr defines the compiler's error taxonomy (spec.md
// §7) and a collect-then-emit list for passes that want to report
// every problem they find in one run rather than stopping at the
// first one.
package compileerr

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"

	"github.com/blendsdk/blend65/ssair"
)

// Category tags a Error by the §7 taxonomy.
type Category string

const (
	IllegalRecursion           Category = "IllegalRecursion"
	ZPRequiredUnsatisfiable    Category = "ZPRequiredUnsatisfiable"
	FrameOverflow              Category = "FrameOverflow"
	MapOverlap                 Category = "MapOverlap"
	UnknownField               Category = "UnknownField"
	UnknownMap                 Category = "UnknownMap"
	InternalInvariantViolation Category = "InternalInvariantViolation"
)

// Error is one diagnostic. Internal-class categories (UnknownField,
// UnknownMap, InternalInvariantViolation) should never be reachable on
// well-formed input; Internal wraps those with github.com/pkg/errors so a
// stack trace survives to whoever logs it, since by definition they
// indicate a bug rather than a user mistake.
type Error struct {
	Category Category
	Pos      ssair.Pos
	Msg      string
	cause    error
}

func (e *Error) Error() string {
	if e.Pos.File == "" {
		return fmt.Sprintf("%s: %s", e.Category, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Category, e.Msg)
}

// Unwrap exposes the stack-trace-carrying cause, if any, so
// errors.Is/As and fmt's %+v keep working through this wrapper.
func (e *Error) Unwrap() error { return e.cause }

// New builds a user-facing diagnostic (one that can legitimately occur
// on valid-looking source input): IllegalRecursion,
// ZPRequiredUnsatisfiable, FrameOverflow, MapOverlap.
func New(cat Category, pos ssair.Pos, format string, args ...interface{}) *Error {
	return &Error{Category: cat, Pos: pos, Msg: fmt.Sprintf(format, args...)}
}

// Internal builds an InternalInvariantViolation/UnknownField/
// UnknownMap diagnostic, attaching a stack trace via pkg/errors since
// these always indicate a bug in an earlier pass.
func Internal(cat Category, pos ssair.Pos, format string, args ...interface{}) *Error {
	msg := fmt.Sprintf(format, args...)
	return &Error{Category: cat, Pos: pos, Msg: msg, cause: pkgerrors.New(msg)}
}

// List accumulates diagnostics across a pass that wants to report
// everything it finds rather than aborting at the first error. The
// zero value is an empty list ready for use; a nil *List is not, since
// every method reads its receiver.
type List struct {
	errs []error
}

// Add appends err if non-nil. Add is a no-op on err == nil so callers
// can unconditionally do `list.Add(check())`.
func (l *List) Add(err error) {
	if err != nil {
		l.errs = append(l.errs, err)
	}
}

// Addf is shorthand for Add(New(cat, pos, format, args...)).
func (l *List) Addf(cat Category, pos ssair.Pos, format string, args ...interface{}) {
	l.Add(New(cat, pos, format, args...))
}

// Len reports how many errors have been collected.
func (l *List) Len() int { return len(l.errs) }

// Errs returns the collected errors in the order they were added.
func (l *List) Errs() []error { return l.errs }

// Err returns nil if no errors were collected, or a single error
// joining every collected one (via stdlib errors.Join) otherwise.
func (l *List) Err() error {
	if len(l.errs) == 0 {
		return nil
	}
	return errors.Join(l.errs...)
}
