package metadata

import "strings"

// Type is a reflective handle on one type of a loaded catalog. Catalog
// readers resolve every reference while loading, so walking BaseType or
// GenericArguments never fails.
type Type struct {
	Name      string
	Namespace string

	IsExported bool
	IsAbstract bool
	// Set for open generic type definitions such as Result`1.
	IsGenericTypeDefinition bool
	// Set for constructed generic types such as Result`1[Int32].
	IsConstructedGeneric bool
	// Set for generic parameters such as T; those print by bare name.
	IsGenericParameter bool

	// Type parameters of a definition, type arguments of a constructed type.
	GenericArguments []*Type
	BaseType         *Type
	Properties       []Property
}

// Property is a public instance property (or field) and its declared type.
type Property struct {
	Name string
	Type *Type
}

// FullName returns the namespace-qualified name. Generic parameters have
// no full name.
func (t *Type) FullName() string {
	if t.IsGenericParameter {
		return ""
	}
	if t.Namespace == "" {
		return t.Name
	}
	return t.Namespace + "." + t.Name
}

// String returns the default display form of the type: the full name, or
// the bare name for generic parameters.
func (t *Type) String() string {
	if t.IsGenericParameter {
		return t.Name
	}
	return t.FullName()
}

// IsGenericType reports whether the type is a generic definition or a
// constructed generic type.
func (t *Type) IsGenericType() bool {
	return t.IsGenericTypeDefinition || t.IsConstructedGeneric
}

// Catalog is the read-only universe of types exported by one library.
type Catalog interface {
	// Types enumerates every type in catalog order.
	Types() ([]*Type, error)
	// Lookup finds a type by its full name.
	Lookup(fullName string) (*Type, bool)
}

// StaticCatalog is an in-memory Catalog over an already built type list.
type StaticCatalog struct {
	types  []*Type
	byName map[string]*Type
}

// NewStaticCatalog indexes types by full name. When two types share a full
// name the first one wins lookups; enumeration keeps both.
func NewStaticCatalog(types ...*Type) *StaticCatalog {
	catalog := &StaticCatalog{
		types:  types,
		byName: make(map[string]*Type, len(types)),
	}
	for _, t := range types {
		if _, exists := catalog.byName[t.FullName()]; !exists {
			catalog.byName[t.FullName()] = t
		}
	}
	return catalog
}

func (catalog *StaticCatalog) Types() ([]*Type, error) {
	return catalog.types, nil
}

func (catalog *StaticCatalog) Lookup(fullName string) (*Type, bool) {
	t, found := catalog.byName[fullName]
	return t, found
}

// splitFullName splits "A.B.C" into namespace "A.B" and name "C".
func splitFullName(fullName string) (namespace string, name string) {
	idx := strings.LastIndex(fullName, ".")
	if idx < 0 {
		return "", fullName
	}
	return fullName[:idx], fullName[idx+1:]
}
