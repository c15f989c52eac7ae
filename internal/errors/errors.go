// Package errors provides error handling for stexport.
//
// It re-exports github.com/cockroachdb/errors so every package wraps and
// inspects errors the same way, and declares the sentinels used to classify
// failures of an export run.
//
//	if err := writer.Write(class, artifacts); err != nil {
//	    return errors.Wrapf(err, "writing class %s", class.ClassName)
//	}
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New         = crdb.New
	Newf        = crdb.Newf
	Wrap        = crdb.Wrap
	Wrapf       = crdb.Wrapf
	WithStack   = crdb.WithStack
	WithMessage = crdb.WithMessage
	Mark        = crdb.Mark
)

// User-facing messages and details
var (
	WithHint     = crdb.WithHint
	WithHintf    = crdb.WithHintf
	WithDetailf  = crdb.WithDetailf
	GetAllHints  = crdb.GetAllHints
	FlattenHints = crdb.FlattenHints
)

// Error inspection
var (
	Is        = crdb.Is
	As        = crdb.As
	UnwrapAll = crdb.UnwrapAll
)

// Assertions
var (
	AssertionFailedf    = crdb.AssertionFailedf
	HasAssertionFailure = crdb.HasAssertionFailure
)

var (
	// ErrMalformedCatalog marks type catalog content the extractor cannot
	// interpret: a cyclic base chain, a missing root type, an unresolvable
	// type reference or a generic name without an arity suffix.
	ErrMalformedCatalog = New("malformed type catalog")

	// ErrCatalogUnavailable marks a catalog source that could not be opened
	// or enumerated.
	ErrCatalogUnavailable = New("type catalog unavailable")

	// ErrPrecondition marks a contract breach while building descriptors.
	ErrPrecondition = New("precondition violated")
)

// Malformed wraps err as an ErrMalformedCatalog with the given context.
func Malformed(format string, args ...interface{}) error {
	return Mark(Newf(format, args...), ErrMalformedCatalog)
}

// IsMalformed reports whether err is or wraps ErrMalformedCatalog.
func IsMalformed(err error) bool {
	return err != nil && Is(err, ErrMalformedCatalog)
}
