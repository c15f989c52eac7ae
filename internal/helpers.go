package internal

import "stexport/internal/errors"

// Panics if given non-nil error.
// Should be used only in case of non-recoverable developer error, such as a
// descriptor built from an empty identifier.
func PanicOnError(err error) {
	if err != nil {
		panic(err)
	}
}

// Panics with an assertion failure marked as errors.ErrPrecondition when
// the condition does not hold.
func Require(condition bool, format string, args ...interface{}) {
	if !condition {
		PanicOnError(errors.Mark(errors.AssertionFailedf(format, args...), errors.ErrPrecondition))
	}
}
