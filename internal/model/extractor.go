package model

import (
	"stexport/internal/errors"
	"stexport/internal/logger"
	"stexport/internal/metadata"
)

// Extractor selects the classes deriving from RootType and describes them.
type Extractor struct {
	// Full name of the distinguished root type, e.g. TdLib.TdApi.Object.
	RootType string
}

// Extract returns one Class per exported type whose base chain contains
// the root type, in catalog order, followed by the root type itself.
func (extractor Extractor) Extract(catalog metadata.Catalog) ([]Class, error) {
	root, found := catalog.Lookup(extractor.RootType)
	if !found {
		return nil, errors.WithHint(
			errors.Malformed("root type %s is not in the catalog", extractor.RootType),
			"the root type must be given by its full name, including the namespace")
	}

	types, err := catalog.Types()
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "enumerating catalog types"), errors.ErrCatalogUnavailable)
	}

	selected := make([]*metadata.Type, 0, len(types)+1)
	for _, t := range types {
		if !t.IsExported || t == root {
			continue
		}
		inherits, err := InheritsFrom(t, root)
		if err != nil {
			return nil, err
		}
		if inherits {
			selected = append(selected, t)
		}
	}
	selected = append(selected, root)

	logger.Logger.Debugw("Selected classes", logger.FieldRootType, extractor.RootType, logger.FieldCount, len(selected))

	classes := make([]Class, 0, len(selected))
	for _, t := range selected {
		class, err := Describe(t)
		if err != nil {
			return nil, err
		}
		classes = append(classes, class)
	}
	return classes, nil
}

// InheritsFrom walks the base chain of t, starting at its direct base, and
// reports whether ancestor appears on it. A cyclic chain is reported as a
// malformed catalog.
func InheritsFrom(t *metadata.Type, ancestor *metadata.Type) (bool, error) {
	visited := make(map[*metadata.Type]struct{})
	for current := t.BaseType; current != nil; current = current.BaseType {
		if current == ancestor {
			return true, nil
		}
		if _, seen := visited[current]; seen {
			return false, errors.Malformed("base type chain of %s is cyclic at %s", t.FullName(), current.FullName())
		}
		visited[current] = struct{}{}
	}
	return false, nil
}

// Describe builds the class descriptor of a single type.
func Describe(t *metadata.Type) (Class, error) {
	properties := make([]Property, 0, len(t.Properties))
	for _, property := range t.Properties {
		typeName := PropertyTypeName(property)
		if property.Name == "" || typeName == "" {
			return Class{}, errors.Malformed("type %s declares a property without name or type", t.FullName())
		}
		properties = append(properties, NewProperty(property.Name, typeName))
	}

	baseName, err := BaseDisplayName(t)
	if err != nil {
		return Class{}, err
	}

	className := DisplayName(t)
	if className == "" {
		return Class{}, errors.Malformed("type %s has no name", t.FullName())
	}

	return NewClass(baseName, className, properties, t.FullName()), nil
}
