// The package used for loading .NET and Windows metadata into a type catalog.
package metadata

import (
	"debug/pe"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"

	"stexport/internal/errors"
	"stexport/internal/logger"
)

// Coded index tags, ECMA-335 II.24.2.6
const (
	tagTypeDef  = 0
	tagTypeRef  = 1
	tagTypeSpec = 2

	tagOwnerTypeDef       = 0
	tagAssociatesProperty = 1
)

// The map of primitive element types to their System type names
var builtInElementTypes map[flags.ElementType]string = map[flags.ElementType]string{
	flags.ElementType_BOOLEAN: "Boolean",
	flags.ElementType_CHAR:    "Char",
	flags.ElementType_STRING:  "String",
	flags.ElementType_OBJECT:  "Object",
	flags.ElementType_I:       "IntPtr",
	flags.ElementType_U:       "UIntPtr",
	flags.ElementType_I1:      "SByte",
	flags.ElementType_I2:      "Int16",
	flags.ElementType_I4:      "Int32",
	flags.ElementType_I8:      "Int64",
	flags.ElementType_U1:      "Byte",
	flags.ElementType_U2:      "UInt16",
	flags.ElementType_U4:      "UInt32",
	flags.ElementType_U8:      "UInt64",
	flags.ElementType_R4:      "Single",
	flags.ElementType_R8:      "Double",
}

// Element types without a metadata type of their own
var opaqueElementTypes map[flags.ElementType]string = map[flags.ElementType]string{
	flags.ElementType_VOID:       "Void",
	flags.ElementType_TYPEDBYREF: "TypedReference",
}

const (
	systemNamespace = "System"
	valueTypeName   = "System.ValueType"
)

// WinMdReader is a Catalog over the TypeDef table of a PE file carrying CLI
// metadata (a .NET assembly or a .winmd file). The properties of a type are
// its public instance properties; structs without properties report their
// public instance fields instead.
type WinMdReader struct {
	metadata *winmd.Metadata

	types    []*Type
	byName   map[string]*Type
	external map[string]*Type

	// Constructed generic types and their definitions, completed once every
	// definition is loaded.
	constructed []constructedType
}

type constructedType struct {
	closed     *Type
	definition *Type
}

// The accessor methods of one property row.
type accessors struct {
	getter *winmd.MethodDef
	setter *winmd.MethodDef
}

// Opens the PE file under given path and loads its type definitions.
func NewReader(winMdPath string) (*WinMdReader, error) {
	peFile, err := pe.Open(winMdPath)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "opening %s", winMdPath), errors.ErrCatalogUnavailable)
	}
	defer peFile.Close()

	winmdMetadata, err := winmd.New(peFile)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading metadata of %s", winMdPath), errors.ErrCatalogUnavailable)
	}
	if winmdMetadata.Tables == nil {
		return nil, errors.Mark(errors.Newf("%s has no metadata tables", winMdPath), errors.ErrCatalogUnavailable)
	}

	reader := &WinMdReader{
		metadata: winmdMetadata,
		byName:   make(map[string]*Type),
		external: make(map[string]*Type),
	}
	if err := reader.load(); err != nil {
		return nil, errors.Wrapf(err, "loading types of %s", winMdPath)
	}
	return reader, nil
}

func (reader *WinMdReader) Types() ([]*Type, error) {
	return reader.types, nil
}

func (reader *WinMdReader) Lookup(fullName string) (*Type, bool) {
	t, found := reader.byName[fullName]
	return t, found
}

func (reader *WinMdReader) load() error {
	table := reader.metadata.Tables.TypeDef
	typeDefs := make([]*winmd.TypeDef, 0, table.Len)

	for idx := uint32(0); idx < table.Len; idx++ {
		typeDef, err := table.Record(winmd.Index(idx))
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "type definition %d", idx), errors.ErrMalformedCatalog)
		}

		visibility := typeDef.Flags & flags.TypeAttributes_VisibilityMask
		typeDefs = append(typeDefs, typeDef)
		reader.types = append(reader.types, &Type{
			Name:       typeDef.Name.String(),
			Namespace:  typeDef.Namespace.String(),
			IsExported: visibility == flags.TypeAttributes_Public || visibility == flags.TypeAttributes_NestedPublic,
			IsAbstract: typeDef.Flags&flags.TypeAttributes_Abstract != 0,
		})
	}

	if err := reader.loadNesting(); err != nil {
		return err
	}
	for _, t := range reader.types {
		if _, exists := reader.byName[t.FullName()]; !exists {
			reader.byName[t.FullName()] = t
		}
	}

	if err := reader.loadGenericParameters(); err != nil {
		return err
	}

	for idx, typeDef := range typeDefs {
		t := reader.types[idx]
		if !hasBaseType(typeDef) {
			continue
		}
		base, err := reader.resolveTypeDefOrRef(t, typeDef.Extends)
		if err != nil {
			return errors.Wrapf(err, "base type of %s", t.FullName())
		}
		t.BaseType = base
	}

	properties, err := reader.loadProperties()
	if err != nil {
		return err
	}
	for idx, typeDef := range typeDefs {
		t := reader.types[idx]
		if declared, found := properties[winmd.Index(idx)]; found {
			t.Properties = declared
			continue
		}
		if t.BaseType == nil || t.BaseType.FullName() != valueTypeName {
			continue
		}
		if t.Properties, err = reader.loadFields(t, typeDef); err != nil {
			return err
		}
	}

	for _, c := range reader.constructed {
		c.closed.BaseType = c.definition.BaseType
		c.closed.Properties = c.definition.Properties
	}
	return nil
}

// Interfaces, the <Module> pseudo type and System.Object have a null
// Extends column.
func hasBaseType(typeDef *winmd.TypeDef) bool {
	return typeDef.Extends.Tag >= 0
}

// loadNesting qualifies nested types with the full name of their enclosing
// type and hides nested types of non-exported types.
func (reader *WinMdReader) loadNesting() error {
	table := reader.metadata.Tables.NestedClass
	enclosing := make(map[winmd.Index]winmd.Index, table.Len)
	for idx := uint32(0); idx < table.Len; idx++ {
		nested, err := table.Record(winmd.Index(idx))
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "nested class %d", idx), errors.ErrMalformedCatalog)
		}
		if int(nested.NestedClass) >= len(reader.types) || int(nested.EnclosingClass) >= len(reader.types) {
			return errors.Malformed("nested class %d refers to a missing type definition", idx)
		}
		enclosing[nested.NestedClass] = nested.EnclosingClass
	}

	qualified := make(map[winmd.Index]bool, len(enclosing))
	var qualify func(index winmd.Index, depth int) error
	qualify = func(index winmd.Index, depth int) error {
		parent, nested := enclosing[index]
		if !nested || qualified[index] {
			return nil
		}
		if depth > len(enclosing) {
			return errors.Malformed("type definition %d is nested in itself", index)
		}
		if err := qualify(parent, depth+1); err != nil {
			return err
		}
		t, outer := reader.types[index], reader.types[parent]
		t.Namespace = outer.FullName()
		t.IsExported = t.IsExported && outer.IsExported
		qualified[index] = true
		return nil
	}
	for index := range enclosing {
		if err := qualify(index, 0); err != nil {
			return err
		}
	}
	return nil
}

func (reader *WinMdReader) loadGenericParameters() error {
	table := reader.metadata.Tables.GenericParam
	for idx := uint32(0); idx < table.Len; idx++ {
		param, err := table.Record(winmd.Index(idx))
		if err != nil {
			return errors.Mark(errors.Wrapf(err, "generic parameter %d", idx), errors.ErrMalformedCatalog)
		}
		if param.Owner.Tag != tagOwnerTypeDef {
			continue
		}
		if int(param.Owner.Index) >= len(reader.types) {
			return errors.Malformed("generic parameter %s refers to type definition %d", param.Name.String(), param.Owner.Index)
		}

		owner := reader.types[param.Owner.Index]
		owner.IsGenericTypeDefinition = true
		for len(owner.GenericArguments) <= int(param.Number) {
			owner.GenericArguments = append(owner.GenericArguments, nil)
		}
		owner.GenericArguments[param.Number] = &Type{Name: param.Name.String(), IsGenericParameter: true}
	}

	for _, t := range reader.types {
		for number, argument := range t.GenericArguments {
			if argument == nil {
				return errors.Malformed("generic parameter %d of %s is missing", number, t.FullName())
			}
		}
	}
	return nil
}

// loadAccessors maps property rows to their getter and setter.
func (reader *WinMdReader) loadAccessors() (map[winmd.Index]accessors, error) {
	table := reader.metadata.Tables.MethodSemantics
	result := make(map[winmd.Index]accessors)
	for idx := uint32(0); idx < table.Len; idx++ {
		semantics, err := table.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "method semantics %d", idx), errors.ErrMalformedCatalog)
		}
		if semantics.Association.Tag != tagAssociatesProperty {
			continue
		}
		isGetter := semantics.Semantics&flags.MethodSemanticsAttributes_Getter != 0
		isSetter := semantics.Semantics&flags.MethodSemanticsAttributes_Setter != 0
		if !isGetter && !isSetter {
			continue
		}

		method, err := reader.metadata.Tables.MethodDef.Record(semantics.Method)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "accessor method %d", semantics.Method), errors.ErrMalformedCatalog)
		}
		entry := result[semantics.Association.Index]
		if isGetter {
			entry.getter = method
		} else {
			entry.setter = method
		}
		result[semantics.Association.Index] = entry
	}
	return result, nil
}

// loadProperties returns the public instance properties of every type
// definition with a property map entry, indexers excluded.
func (reader *WinMdReader) loadProperties() (map[winmd.Index][]Property, error) {
	accessorsByProperty, err := reader.loadAccessors()
	if err != nil {
		return nil, err
	}

	table := reader.metadata.Tables.PropertyMap
	result := make(map[winmd.Index][]Property, table.Len)
	for idx := uint32(0); idx < table.Len; idx++ {
		propertyMap, err := table.Record(winmd.Index(idx))
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "property map %d", idx), errors.ErrMalformedCatalog)
		}
		if int(propertyMap.Parent) >= len(reader.types) {
			return nil, errors.Malformed("property map %d refers to type definition %d", idx, propertyMap.Parent)
		}
		owner := reader.types[propertyMap.Parent]

		var properties []Property
		for i := propertyMap.PropertyList.Start; i < propertyMap.PropertyList.End; i++ {
			row, err := reader.metadata.Tables.Property.Record(i)
			if err != nil {
				return nil, errors.Mark(errors.Wrapf(err, "property %d of %s", i, owner.FullName()), errors.ErrMalformedCatalog)
			}
			property, found, err := reader.getProperty(owner, row.Name.String(), accessorsByProperty[i])
			if err != nil {
				return nil, errors.Wrapf(err, "property %s of %s", row.Name.String(), owner.FullName())
			}
			if found {
				properties = append(properties, property)
			}
		}
		result[propertyMap.Parent] = properties
	}
	return result, nil
}

// getProperty types a property by its public instance getter, or by the
// value parameter of its public instance setter.
func (reader *WinMdReader) getProperty(owner *Type, name string, methods accessors) (Property, bool, error) {
	var method *winmd.MethodDef
	isGetter := false
	switch {
	case isPublicInstanceMethod(methods.getter):
		method, isGetter = methods.getter, true
	case isPublicInstanceMethod(methods.setter):
		method = methods.setter
	default:
		return Property{}, false, nil
	}

	returnType, parameters, err := reader.methodTypes(owner, method)
	if err != nil {
		return Property{}, false, err
	}

	if isGetter {
		if len(parameters) > 0 {
			return Property{}, false, nil
		}
		return Property{Name: name, Type: returnType}, true, nil
	}
	if len(parameters) != 1 {
		return Property{}, false, nil
	}
	return Property{Name: name, Type: parameters[0]}, true, nil
}

func isPublicInstanceMethod(method *winmd.MethodDef) bool {
	if method == nil {
		return false
	}
	return method.Flags&flags.MethodAttributes_MemberAccessMask == flags.MethodAttributes_Public &&
		method.Flags&flags.MethodAttributes_Static == 0
}

// methodTypes decodes the return and parameter types of method.
func (reader *WinMdReader) methodTypes(owner *Type, method *winmd.MethodDef) (*Type, []*Type, error) {
	signature, err := reader.metadata.MethodDefSignature(method.Signature)
	if err != nil {
		r := reader.newSignatureReader(owner, method.Signature)
		returnType, parameters := r.methodTypes()
		if r.err != nil {
			return reader.undecodable(method.Name.String(), r.err), nil, nil
		}
		return returnType, parameters, nil
	}

	returnType, err := reader.getType(owner, signature.RetType.Type)
	if err != nil {
		return nil, nil, err
	}
	parameters := make([]*Type, 0, len(signature.Param))
	for _, param := range signature.Param {
		parameterType, err := reader.getType(owner, param.Type)
		if err != nil {
			return nil, nil, err
		}
		parameters = append(parameters, parameterType)
	}
	return returnType, parameters, nil
}

func (reader *WinMdReader) loadFields(owner *Type, typeDef *winmd.TypeDef) ([]Property, error) {
	var properties []Property
	for i := typeDef.FieldList.Start; i < typeDef.FieldList.End; i++ {
		field, err := reader.metadata.Tables.Field.Record(i)
		if err != nil {
			return nil, errors.Mark(errors.Wrapf(err, "field %d of %s", i, owner.FullName()), errors.ErrMalformedCatalog)
		}
		if !isPublicInstanceField(field) {
			continue
		}
		fieldType, err := reader.getFieldType(owner, field)
		if err != nil {
			return nil, errors.Wrapf(err, "field %s of %s", field.Name.String(), owner.FullName())
		}
		properties = append(properties, Property{Name: field.Name.String(), Type: fieldType})
	}
	return properties, nil
}

func isPublicInstanceField(field *winmd.Field) bool {
	return field.Flags&flags.FieldAttributes_FieldAccessMask == flags.FieldAttributes_Public &&
		field.Flags&flags.FieldAttributes_Static == 0
}

func (reader *WinMdReader) getFieldType(owner *Type, field *winmd.Field) (*Type, error) {
	fieldSignature, err := reader.metadata.FieldSignature(field.Signature)
	if err != nil {
		r := reader.newSignatureReader(owner, field.Signature)
		fieldType := r.fieldType()
		if r.err != nil {
			return reader.undecodable(field.Name.String(), r.err), nil
		}
		return fieldType, nil
	}
	return reader.getType(owner, fieldSignature.Type)
}

// getType converts a signature type decoded by go-winmd. go-winmd never
// produces SZARRAY, GENERICINST, VAR or MVAR; those go through
// signatureReader.
func (reader *WinMdReader) getType(owner *Type, sigType winmd.SigType) (*Type, error) {
	if builtInType, found := builtInElementTypes[sigType.Kind]; found {
		return reader.externalType(systemNamespace, builtInType), nil
	}

	switch sigType.Kind {
	case flags.ElementType_PTR, flags.ElementType_BYREF:
		inner, ok := sigType.Value.(winmd.SigType)
		if !ok {
			return nil, errors.Malformed("element type %v carries no inner type", sigType.Kind)
		}
		innerType, err := reader.getType(owner, inner)
		if err != nil {
			return nil, err
		}
		if sigType.Kind == flags.ElementType_PTR {
			return reader.decoratedType(innerType, "*"), nil
		}
		return reader.decoratedType(innerType, "&"), nil

	case flags.ElementType_ARRAY:
		array, ok := sigType.Value.(winmd.SigArray)
		if !ok {
			return nil, errors.Malformed("array type carries no array shape")
		}
		element, err := reader.getType(owner, array.Type)
		if err != nil {
			return nil, err
		}
		return reader.decoratedType(element, arraySuffix(array.Rank)), nil

	case flags.ElementType_CLASS, flags.ElementType_VALUETYPE:
		index, ok := sigType.Value.(winmd.CodedIndex)
		if !ok {
			return nil, errors.Malformed("type signature %v carries no type reference", sigType.Kind)
		}
		return reader.resolveTypeDefOrRef(owner, index)
	}

	return reader.opaqueType(sigType.Kind), nil
}

// Resolves a TypeDefOrRef coded index. References to types defined in the
// same file resolve to their definition; type specifications are decoded
// with owner's generic parameters in scope; anything else becomes an
// external type without a base.
func (reader *WinMdReader) resolveTypeDefOrRef(owner *Type, index winmd.CodedIndex) (*Type, error) {
	switch index.Tag {
	case tagTypeDef:
		if int(index.Index) >= len(reader.types) {
			return nil, errors.Malformed("type definition %d is out of range", index.Index)
		}
		return reader.types[index.Index], nil

	case tagTypeRef:
		typeRef, err := reader.metadata.Tables.TypeRef.Record(index.Index)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "did not find matching type reference"), errors.ErrMalformedCatalog)
		}
		namespace, name := typeRef.Namespace.String(), typeRef.Name.String()
		if t, found := reader.byName[joinFullName(namespace, name)]; found {
			return t, nil
		}
		return reader.externalType(namespace, name), nil

	case tagTypeSpec:
		typeSpec, err := reader.metadata.Tables.TypeSpec.Record(index.Index)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "did not find matching type specification"), errors.ErrMalformedCatalog)
		}
		r := reader.newSignatureReader(owner, typeSpec.Signature)
		t := r.readType()
		if r.err != nil {
			return nil, errors.Wrapf(r.err, "type specification %d", index.Index)
		}
		return t, nil
	}

	return nil, errors.Malformed("unknown TypeDefOrRef tag %d", index.Tag)
}

// constructedType closes definition over arguments. Its base type and
// properties are copied from the definition at the end of load.
func (reader *WinMdReader) constructedType(definition *Type, arguments []*Type) *Type {
	closed := &Type{
		Name:                 definition.Name,
		Namespace:            definition.Namespace,
		IsExported:           definition.IsExported,
		IsAbstract:           definition.IsAbstract,
		IsConstructedGeneric: true,
		GenericArguments:     arguments,
	}
	reader.constructed = append(reader.constructed, constructedType{closed: closed, definition: definition})
	return closed
}

// decoratedType names a pointer, reference or array of element.
func (reader *WinMdReader) decoratedType(element *Type, suffix string) *Type {
	if element == nil {
		return nil
	}
	return reader.externalType(element.Namespace, element.Name+suffix)
}

func (reader *WinMdReader) opaqueType(kind flags.ElementType) *Type {
	if name, found := opaqueElementTypes[kind]; found {
		return reader.externalType(systemNamespace, name)
	}
	return reader.externalType(systemNamespace, kind.String())
}

// undecodable stands in for a member type no decoder understands, so one
// exotic member does not hide the rest of the catalog.
func (reader *WinMdReader) undecodable(member string, err error) *Type {
	logger.Named("winmd").Warnw("Could not decode member type, using Object",
		"member", member,
		"error", err.Error())
	return reader.externalType(systemNamespace, "Object")
}

func (reader *WinMdReader) externalType(namespace string, name string) *Type {
	fullName := joinFullName(namespace, name)
	if t, found := reader.external[fullName]; found {
		return t
	}
	t := &Type{Name: name, Namespace: namespace}
	reader.external[fullName] = t
	return t
}

func joinFullName(namespace string, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "." + name
}
