package metadata

import (
	"testing"

	"github.com/microsoft/go-winmd"
	"github.com/microsoft/go-winmd/flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stexport/internal/errors"
)

// testdata/Fixture.dll is built from testdata/fixture with
// `dotnet build -c Release`.
const fixturePath = "testdata/Fixture.dll"

func loadFixture(t *testing.T) *WinMdReader {
	t.Helper()
	reader, err := NewReader(fixturePath)
	require.NoError(t, err)
	return reader
}

func lookupFixture(t *testing.T, reader *WinMdReader, name string) *Type {
	t.Helper()
	found, ok := reader.Lookup("TdLib.Fixture." + name)
	require.True(t, ok, "type %s", name)
	return found
}

func propertyTypes(t *Type) map[string]string {
	result := make(map[string]string, len(t.Properties))
	for _, property := range t.Properties {
		result[property.Name] = property.Type.String()
	}
	return result
}

func propertyNames(t *Type) []string {
	var names []string
	for _, property := range t.Properties {
		names = append(names, property.Name)
	}
	return names
}

func TestWinMdReaderFlags(t *testing.T) {
	reader := loadFixture(t)

	root := lookupFixture(t, reader, "Object")
	assert.True(t, root.IsExported)
	assert.True(t, root.IsAbstract)
	require.NotNil(t, root.BaseType)
	assert.Equal(t, "System.Object", root.BaseType.FullName())

	update := lookupFixture(t, reader, "Update")
	assert.True(t, update.IsAbstract)
	assert.Same(t, root, update.BaseType)

	message := lookupFixture(t, reader, "UpdateNewMessage")
	assert.True(t, message.IsExported)
	assert.False(t, message.IsAbstract)
	assert.Same(t, update, message.BaseType)

	internal := lookupFixture(t, reader, "Internal")
	assert.False(t, internal.IsExported)
	assert.Same(t, root, internal.BaseType)

	thing := lookupFixture(t, reader, "IThing")
	assert.Nil(t, thing.BaseType, "interfaces have no base type")
	assert.True(t, thing.IsAbstract)
}

func TestWinMdReaderNestedTypes(t *testing.T) {
	reader := loadFixture(t)

	inner, found := reader.Lookup("TdLib.Fixture.Nested.Inner")
	require.True(t, found)
	assert.Equal(t, "Inner", inner.Name)
	assert.Equal(t, "TdLib.Fixture.Nested", inner.Namespace)
	assert.True(t, inner.IsExported)
	assert.Same(t, lookupFixture(t, reader, "Object"), inner.BaseType)
}

func TestWinMdReaderProperties(t *testing.T) {
	reader := loadFixture(t)

	message := lookupFixture(t, reader, "UpdateNewMessage")
	assert.Equal(t, []string{"ChatId", "Message", "Ids", "Tags"}, propertyNames(message),
		"fields, indexers, static and internal properties are left out")
	assert.Same(t, lookupFixture(t, reader, "Message"), message.Properties[1].Type)
	assert.Equal(t, map[string]string{
		"ChatId":  "System.Int64",
		"Message": "TdLib.Fixture.Message",
		"Ids":     "System.Int32[]",
		"Tags":    "System.Collections.Generic.List`1",
	}, propertyTypes(message))

	tags := message.Properties[3].Type
	assert.True(t, tags.IsConstructedGeneric)
	require.Len(t, tags.GenericArguments, 1)
	assert.Equal(t, "System.String", tags.GenericArguments[0].FullName())

	assert.Equal(t, map[string]string{
		"Text": "System.String",
		"Grid": "System.Int32[,]",
	}, propertyTypes(lookupFixture(t, reader, "Message")))

	assert.Equal(t, []string{"Extra"}, propertyNames(lookupFixture(t, reader, "Object")))
	assert.Empty(t, lookupFixture(t, reader, "Update").Properties, "inherited properties are not repeated")

	count := lookupFixture(t, reader, "Count")
	assert.Equal(t, map[string]string{"Total": "System.Int32"}, propertyTypes(count), "a private setter keeps the property")

	assert.Equal(t, map[string]string{"Name": "System.String"}, propertyTypes(lookupFixture(t, reader, "IThing")))
}

func TestWinMdReaderStructFields(t *testing.T) {
	reader := loadFixture(t)

	point := lookupFixture(t, reader, "Point")
	require.NotNil(t, point.BaseType)
	assert.Equal(t, "System.ValueType", point.BaseType.FullName())
	assert.Equal(t, []string{"X", "Y", "Handle"}, propertyNames(point))
	assert.Equal(t, map[string]string{
		"X":      "System.Int32",
		"Y":      "System.Int32",
		"Handle": "System.Void*",
	}, propertyTypes(point))

	assert.Equal(t, []string{"Value"}, propertyNames(lookupFixture(t, reader, "Outside")),
		"classes report properties, not fields")
	assert.NotContains(t, propertyNames(lookupFixture(t, reader, "UpdateNewMessage")), "Field")
}

func TestWinMdReaderGenerics(t *testing.T) {
	reader := loadFixture(t)
	root := lookupFixture(t, reader, "Object")

	result := lookupFixture(t, reader, "Result`1")
	assert.True(t, result.IsGenericTypeDefinition)
	require.Len(t, result.GenericArguments, 1)
	parameter := result.GenericArguments[0]
	assert.True(t, parameter.IsGenericParameter)
	assert.Equal(t, "T", parameter.Name)
	require.Len(t, result.Properties, 2)
	assert.Same(t, parameter, result.Properties[0].Type)
	assert.Equal(t, "T[]", result.Properties[1].Type.String())

	count := lookupFixture(t, reader, "Count")
	base := count.BaseType
	require.NotNil(t, base)
	assert.True(t, base.IsConstructedGeneric)
	assert.Equal(t, "TdLib.Fixture.Result`1", base.FullName())
	require.Len(t, base.GenericArguments, 1)
	assert.Equal(t, "System.Int32", base.GenericArguments[0].FullName())
	assert.Same(t, root, base.BaseType)
	assert.Equal(t, result.Properties, base.Properties)

	pair := lookupFixture(t, reader, "Pair`2")
	require.Len(t, pair.GenericArguments, 2)
	assert.Equal(t, "TKey", pair.GenericArguments[0].Name)
	require.NotNil(t, pair.BaseType)
	require.Len(t, pair.BaseType.GenericArguments, 1)
	assert.Same(t, pair.GenericArguments[1], pair.BaseType.GenericArguments[0])
	assert.Same(t, pair.GenericArguments[0], pair.Properties[0].Type)
}

func TestWinMdReaderTypesListsEveryDefinition(t *testing.T) {
	reader := loadFixture(t)

	types, err := reader.Types()
	require.NoError(t, err)
	var names []string
	for _, definition := range types {
		names = append(names, definition.FullName())
	}
	assert.Contains(t, names, "TdLib.Fixture.Nested.Inner")
	assert.Contains(t, names, "TdLib.Fixture.Internal")
	assert.Contains(t, names, "<Module>")
}

func TestNewReaderErrors(t *testing.T) {
	_, err := NewReader("testdata/missing.dll")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCatalogUnavailable))

	_, err = NewReader("testdata/fixture/Fixture.cs")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCatalogUnavailable))
}

func TestWinMdReaderGetType(t *testing.T) {
	reader := newTestReader(&Type{Name: "Message", Namespace: "TdLib.Fixture"})
	int32Type := winmd.SigType{Kind: flags.ElementType_I4}

	tests := []struct {
		name    string
		sigType winmd.SigType
		want    string
	}{
		{name: "primitive", sigType: int32Type, want: "System.Int32"},
		{name: "array", sigType: winmd.SigType{Kind: flags.ElementType_ARRAY, Value: winmd.SigArray{Type: int32Type, Rank: 2}}, want: "System.Int32[,]"},
		{name: "by reference", sigType: winmd.SigType{Kind: flags.ElementType_BYREF, Value: int32Type}, want: "System.Int32&"},
		{name: "pointer", sigType: winmd.SigType{Kind: flags.ElementType_PTR, Value: winmd.SigType{Kind: flags.ElementType_VOID}}, want: "System.Void*"},
		{name: "void", sigType: winmd.SigType{Kind: flags.ElementType_VOID}, want: "System.Void"},
		{name: "typed reference", sigType: winmd.SigType{Kind: flags.ElementType_TYPEDBYREF}, want: "System.TypedReference"},
		{name: "unknown kind", sigType: winmd.SigType{Kind: flags.ElementType_PINNED}, want: "System.PINNED"},
		{name: "definition", sigType: winmd.SigType{Kind: flags.ElementType_CLASS, Value: winmd.CodedIndex{Index: 0, Tag: tagTypeDef}}, want: "TdLib.Fixture.Message"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := reader.getType(nil, tt.sigType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}

	_, err := reader.getType(nil, winmd.SigType{Kind: flags.ElementType_ARRAY, Value: int32Type})
	assert.True(t, errors.IsMalformed(err), "array without shape")
}
