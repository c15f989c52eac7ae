package model

import (
	"strings"

	"stexport/internal/errors"
	"stexport/internal/metadata"
)

const (
	abstractPrefix = "Abstract"
	nameSeparator  = "_"

	// Length of the arity marker of a generic name, as in Result`1.
	aritySuffixLength = 2
)

// DisplayName returns the exported class name of t. Abstract types get the
// Abstract prefix; generic definitions get their parameters appended, as in
// Result`1_T.
func DisplayName(t *metadata.Type) string {
	name := t.Name
	if t.IsAbstract {
		name = abstractPrefix + name
	}
	if t.IsGenericTypeDefinition {
		parameters := make([]string, 0, len(t.GenericArguments))
		for _, parameter := range t.GenericArguments {
			parameters = append(parameters, parameter.String())
		}
		name = name + nameSeparator + strings.Join(parameters, nameSeparator)
	}
	return name
}

// BaseDisplayName returns the superclass name of t. A constructed generic
// base is flattened to its name without arity marker followed directly by
// its argument names, so Result`1[Int32] becomes ResultInt32. A type
// without a base yields "".
func BaseDisplayName(t *metadata.Type) (string, error) {
	base := t.BaseType
	if base == nil {
		return "", nil
	}
	if !base.IsConstructedGeneric {
		return base.Name, nil
	}

	stripped, err := StripAritySuffix(base.Name)
	if err != nil {
		return "", errors.Wrapf(err, "base type of %s", t.FullName())
	}

	arguments := make([]string, 0, len(base.GenericArguments))
	for _, argument := range base.GenericArguments {
		arguments = append(arguments, argument.Name)
	}
	return stripped + strings.Join(arguments, nameSeparator), nil
}

// StripAritySuffix drops the two-character arity marker from a generic
// type name. Names shorter than the marker are rejected rather than
// guessed at.
func StripAritySuffix(name string) (string, error) {
	if len(name) < aritySuffixLength {
		return "", errors.Malformed("generic type name %q is too short to carry an arity marker", name)
	}
	return name[:len(name)-aritySuffixLength], nil
}

// PropertyTypeName returns the bare name of the property's declared type.
// Generic property types are not flattened.
func PropertyTypeName(property metadata.Property) string {
	if property.Type == nil {
		return ""
	}
	return property.Type.Name
}
