// Package model holds the language-neutral description of exported classes
// and the extractor that derives it from a type catalog.
package model

import "stexport/internal"

// Property is one declared instance property of a class.
type Property struct {
	Name     string
	TypeName string
}

// NewProperty panics when name or typeName is empty.
func NewProperty(name string, typeName string) Property {
	internal.Require(name != "", "property name is empty")
	internal.Require(typeName != "", "property %s has no type name", name)
	return Property{Name: name, TypeName: typeName}
}

// Class describes one exported class. BaseTypeName is empty only for a
// class whose type has no base.
type Class struct {
	BaseTypeName string
	ClassName    string
	Properties   []Property
	Comment      string
}

// NewClass panics when className is empty. The properties slice is copied
// so later changes by the caller do not leak into the descriptor.
func NewClass(baseTypeName string, className string, properties []Property, comment string) Class {
	internal.Require(className != "", "class name is empty (comment %q)", comment)

	copied := make([]Property, len(properties))
	copy(copied, properties)

	return Class{
		BaseTypeName: baseTypeName,
		ClassName:    className,
		Properties:   copied,
		Comment:      comment,
	}
}

// PropertyNames returns the property names in declaration order.
func (class Class) PropertyNames() []string {
	names := make([]string, 0, len(class.Properties))
	for _, property := range class.Properties {
		names = append(names, property.Name)
	}
	return names
}
