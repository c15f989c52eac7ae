package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stexport/internal/errors"
	"stexport/internal/metadata"
)

// tdlibCatalog mirrors the shape of a TdLib-like object model.
func tdlibCatalog() *metadata.StaticCatalog {
	systemObject := &metadata.Type{Name: "Object", Namespace: "System"}
	int32Type := &metadata.Type{Name: "Int32", Namespace: "System"}
	stringType := &metadata.Type{Name: "String", Namespace: "System"}

	root := &metadata.Type{Name: "Object", Namespace: "TdLib.TdApi", IsExported: true, IsAbstract: true, BaseType: systemObject}
	update := &metadata.Type{Name: "Update", Namespace: "TdLib.TdApi", IsExported: true, IsAbstract: true, BaseType: root}
	newMessage := &metadata.Type{
		Name: "UpdateNewMessage", Namespace: "TdLib.TdApi", IsExported: true, BaseType: update,
		Properties: []metadata.Property{{Name: "ChatId", Type: int32Type}, {Name: "Text", Type: stringType}},
	}
	result := &metadata.Type{
		Name: "Result`1", Namespace: "TdLib.TdApi", IsExported: true, IsGenericTypeDefinition: true, BaseType: root,
		GenericArguments: []*metadata.Type{{Name: "T", IsGenericParameter: true}},
	}
	count := &metadata.Type{
		Name: "Count", Namespace: "TdLib.TdApi", IsExported: true,
		BaseType: &metadata.Type{
			Name: "Result`1", Namespace: "TdLib.TdApi", IsConstructedGeneric: true, BaseType: root,
			GenericArguments: []*metadata.Type{int32Type},
		},
	}
	hidden := &metadata.Type{Name: "Hidden", Namespace: "TdLib.TdApi", BaseType: root}
	client := &metadata.Type{Name: "Client", Namespace: "TdLib", IsExported: true, BaseType: systemObject}

	return metadata.NewStaticCatalog(client, update, newMessage, hidden, root, result, count)
}

func TestExtract(t *testing.T) {
	classes, err := Extractor{RootType: "TdLib.TdApi.Object"}.Extract(tdlibCatalog())
	require.NoError(t, err)

	names := make([]string, 0, len(classes))
	for _, class := range classes {
		names = append(names, class.ClassName)
	}
	assert.Equal(t, []string{"AbstractUpdate", "UpdateNewMessage", "Result`1_T", "Count", "AbstractObject"}, names)

	assert.Equal(t, Class{
		BaseTypeName: "Update",
		ClassName:    "UpdateNewMessage",
		Properties:   []Property{{Name: "ChatId", TypeName: "Int32"}, {Name: "Text", TypeName: "String"}},
		Comment:      "TdLib.TdApi.UpdateNewMessage",
	}, classes[1])

	assert.Equal(t, "Object", classes[0].BaseTypeName)
	assert.Equal(t, "ResultInt32", classes[3].BaseTypeName)

	rootClass := classes[len(classes)-1]
	assert.Equal(t, "Object", rootClass.BaseTypeName, "root keeps the bare name of its external base")
	assert.Equal(t, "TdLib.TdApi.Object", rootClass.Comment)
	assert.Empty(t, rootClass.Properties)
}

func TestExtractEndToEndScenario(t *testing.T) {
	root := &metadata.Type{Name: "RootType", IsExported: true}
	leaf := &metadata.Type{
		Name: "LeafType", IsExported: true, BaseType: root,
		Properties: []metadata.Property{{Name: "Id", Type: &metadata.Type{Name: "Int32"}}},
	}

	classes, err := Extractor{RootType: "RootType"}.Extract(metadata.NewStaticCatalog(root, leaf))
	require.NoError(t, err)

	assert.Equal(t, []Class{
		{BaseTypeName: "RootType", ClassName: "LeafType", Properties: []Property{{Name: "Id", TypeName: "Int32"}}, Comment: "LeafType"},
		{BaseTypeName: "", ClassName: "RootType", Properties: []Property{}, Comment: "RootType"},
	}, classes)
}

func TestExtractIsIdempotent(t *testing.T) {
	catalog := tdlibCatalog()
	extractor := Extractor{RootType: "TdLib.TdApi.Object"}

	first, err := extractor.Extract(catalog)
	require.NoError(t, err)
	second, err := extractor.Extract(catalog)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractRootAppearsOnce(t *testing.T) {
	tests := []struct {
		name    string
		catalog *metadata.StaticCatalog
	}{
		{
			name:    "root only",
			catalog: metadata.NewStaticCatalog(&metadata.Type{Name: "Root", IsExported: true}),
		},
		{
			name:    "root not exported",
			catalog: metadata.NewStaticCatalog(&metadata.Type{Name: "Root"}),
		},
		{
			name:    "full catalog",
			catalog: tdlibCatalog(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			types, _ := tt.catalog.Types()
			rootName := "Root"
			if len(types) > 1 {
				rootName = "TdLib.TdApi.Object"
			}

			classes, err := Extractor{RootType: rootName}.Extract(tt.catalog)
			require.NoError(t, err)

			occurrences := 0
			for _, class := range classes {
				if class.Comment == rootName {
					occurrences++
				}
			}
			assert.Equal(t, 1, occurrences)
			assert.Equal(t, rootName, classes[len(classes)-1].Comment)
		})
	}
}

func TestExtractMissingRoot(t *testing.T) {
	_, err := Extractor{RootType: "TdLib.TdApi.Missing"}.Extract(tdlibCatalog())
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
	assert.NotEmpty(t, errors.GetAllHints(err))
}

func TestExtractCyclicBaseChain(t *testing.T) {
	root := &metadata.Type{Name: "Root", IsExported: true}
	a := &metadata.Type{Name: "A", IsExported: true}
	b := &metadata.Type{Name: "B", IsExported: true, BaseType: a}
	a.BaseType = b

	_, err := Extractor{RootType: "Root"}.Extract(metadata.NewStaticCatalog(root, a, b))
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}

type failingCatalog struct {
	metadata.Catalog
}

func (failingCatalog) Types() ([]*metadata.Type, error) {
	return nil, errors.New("disk went away")
}

func TestExtractPropagatesCatalogFailure(t *testing.T) {
	_, err := Extractor{RootType: "TdLib.TdApi.Object"}.Extract(failingCatalog{Catalog: tdlibCatalog()})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCatalogUnavailable))
	assert.Contains(t, err.Error(), "disk went away")
}

func TestInheritsFrom(t *testing.T) {
	root := &metadata.Type{Name: "Root"}
	child := &metadata.Type{Name: "Child", BaseType: root}
	grandchild := &metadata.Type{Name: "Grandchild", BaseType: child}
	unrelated := &metadata.Type{Name: "Unrelated"}

	tests := []struct {
		name string
		typ  *metadata.Type
		want bool
	}{
		{name: "direct child", typ: child, want: true},
		{name: "grandchild", typ: grandchild, want: true},
		{name: "root itself", typ: root, want: false},
		{name: "unrelated", typ: unrelated, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := InheritsFrom(tt.typ, root)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDescribeRejectsUntypedProperty(t *testing.T) {
	_, err := Describe(&metadata.Type{Name: "Broken", Properties: []metadata.Property{{Name: "Id"}}})
	require.Error(t, err)
	assert.True(t, errors.IsMalformed(err))
}
