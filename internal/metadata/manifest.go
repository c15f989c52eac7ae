package metadata

import (
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"stexport/internal/errors"
)

// Manifest is a hand-written or tool-exported description of a type
// catalog. YAML and JSON documents are both accepted.
//
//	types:
//	  - name: TdLib.TdApi.Object
//	    abstract: true
//	  - name: TdLib.TdApi.Ok
//	    base: TdLib.TdApi.Object
//	    properties:
//	      - {name: Extra, type: System.String}
type Manifest struct {
	Types []ManifestType `yaml:"types"`
}

// ManifestType describes one type. References to other types use full
// names; names the manifest does not declare become external types.
type ManifestType struct {
	Name              string             `yaml:"name"`
	Exported          *bool              `yaml:"exported,omitempty"`
	Abstract          bool               `yaml:"abstract,omitempty"`
	Base              string             `yaml:"base,omitempty"`
	BaseArguments     []string           `yaml:"base_arguments,omitempty"`
	GenericParameters []string           `yaml:"generic_parameters,omitempty"`
	Properties        []ManifestProperty `yaml:"properties,omitempty"`
}

type ManifestProperty struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// LoadManifest reads and resolves the manifest at path.
func LoadManifest(fs afero.Fs, path string) (*StaticCatalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "reading catalog manifest %s", path), errors.ErrCatalogUnavailable)
	}

	catalog, err := ParseManifest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "catalog manifest %s", path)
	}
	return catalog, nil
}

// ParseManifest decodes a manifest document and resolves its references.
func ParseManifest(data []byte) (*StaticCatalog, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "decoding manifest"), errors.ErrMalformedCatalog)
	}
	return manifest.Resolve()
}

// Resolve builds the type graph described by the manifest.
func (manifest Manifest) Resolve() (*StaticCatalog, error) {
	resolver := manifestResolver{
		declared: make(map[string]*Type, len(manifest.Types)),
		external: make(map[string]*Type),
	}

	types := make([]*Type, 0, len(manifest.Types))
	for _, entry := range manifest.Types {
		if entry.Name == "" {
			return nil, errors.Malformed("manifest type without a name")
		}
		if _, duplicate := resolver.declared[entry.Name]; duplicate {
			return nil, errors.Malformed("type %s is declared twice", entry.Name)
		}

		namespace, name := splitFullName(entry.Name)
		t := &Type{
			Name:                    name,
			Namespace:               namespace,
			IsExported:              entry.Exported == nil || *entry.Exported,
			IsAbstract:              entry.Abstract,
			IsGenericTypeDefinition: len(entry.GenericParameters) > 0,
		}
		for _, parameter := range entry.GenericParameters {
			t.GenericArguments = append(t.GenericArguments, &Type{Name: parameter, IsGenericParameter: true})
		}

		resolver.declared[entry.Name] = t
		types = append(types, t)
	}

	for i, entry := range manifest.Types {
		t := types[i]

		if entry.Base != "" {
			base, err := resolver.constructed(t, entry.Base, entry.BaseArguments)
			if err != nil {
				return nil, errors.Wrapf(err, "base of %s", entry.Name)
			}
			t.BaseType = base
		} else if len(entry.BaseArguments) > 0 {
			return nil, errors.Malformed("type %s has base arguments but no base", entry.Name)
		}

		for _, property := range entry.Properties {
			if property.Name == "" || property.Type == "" {
				return nil, errors.Malformed("type %s has a property without name or type", entry.Name)
			}
			t.Properties = append(t.Properties, Property{
				Name: property.Name,
				Type: resolver.reference(t, property.Type),
			})
		}
	}

	for _, pending := range resolver.closures {
		pending.closed.BaseType = pending.definition.BaseType
		pending.closed.Properties = pending.definition.Properties
	}

	return NewStaticCatalog(types...), nil
}

type manifestResolver struct {
	declared map[string]*Type
	external map[string]*Type
	closures []closure
}

// closure links a constructed generic type to its definition. Closed types
// inherit the definition's base and properties once every definition has
// been resolved.
type closure struct {
	closed     *Type
	definition *Type
}

// reference resolves a full name seen from inside owner: owner's generic
// parameters first, then declared types, then a shared external type.
func (resolver *manifestResolver) reference(owner *Type, fullName string) *Type {
	for _, parameter := range owner.GenericArguments {
		if parameter.IsGenericParameter && parameter.Name == fullName {
			return parameter
		}
	}
	if t, found := resolver.declared[fullName]; found {
		return t
	}
	if t, found := resolver.external[fullName]; found {
		return t
	}

	namespace, name := splitFullName(fullName)
	t := &Type{Name: name, Namespace: namespace}
	resolver.external[fullName] = t
	return t
}

// constructed resolves a base reference, closing it over arguments when
// the base is generic.
func (resolver *manifestResolver) constructed(owner *Type, fullName string, arguments []string) (*Type, error) {
	definition := resolver.reference(owner, fullName)
	if len(arguments) == 0 {
		return definition, nil
	}
	if definition.Name == "" {
		return nil, errors.Malformed("generic base %q has no name", fullName)
	}

	closed := &Type{
		Name:                 definition.Name,
		Namespace:            definition.Namespace,
		IsExported:           definition.IsExported,
		IsAbstract:           definition.IsAbstract,
		IsConstructedGeneric: true,
	}
	for _, argument := range arguments {
		closed.GenericArguments = append(closed.GenericArguments, resolver.reference(owner, argument))
	}
	resolver.closures = append(resolver.closures, closure{closed: closed, definition: definition})
	return closed, nil
}
