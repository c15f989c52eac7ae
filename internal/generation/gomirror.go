package generation

import (
	"bytes"
	"strings"
	"unicode"

	"github.com/dave/jennifer/jen"
	"github.com/spf13/afero"

	"stexport/internal/errors"
	"stexport/internal/model"
)

// The map of System type names to Go equivalents
var builtInTypes map[string]string = map[string]string{
	"Boolean": "bool",
	"Char":    "rune",
	"String":  "string",
	"SByte":   "int8",
	"Int16":   "int16",
	"Int32":   "int32",
	"Int64":   "int64",
	"Byte":    "uint8",
	"UInt16":  "uint16",
	"UInt32":  "uint32",
	"UInt64":  "uint64",
	"Single":  "float32",
	"Double":  "float64",
	"IntPtr":  "uintptr",
	"UIntPtr": "uintptr",
}

// GoMirror renders the extracted class model as Go struct declarations so
// Go code can consume the same object model. Superclasses that are part of
// the model are embedded.
type GoMirror struct {
	PackageName string
}

// File builds the Go source file for classes.
func (mirror GoMirror) File(classes []model.Class) *jen.File {
	known := make(map[string]string, len(classes))
	for _, class := range classes {
		known[class.ClassName] = goIdentifier(class.ClassName)
	}

	file := jen.NewFile(mirror.PackageName)
	file.HeaderComment("Code generated by stexport. DO NOT EDIT.")

	for _, class := range classes {
		structName := known[class.ClassName]
		if class.Comment != "" {
			file.Commentf("%s mirrors %s.", structName, class.Comment)
		}
		file.Type().Id(structName).StructFunc(func(g *jen.Group) {
			if embedded, found := mirror.superclass(class, known); found {
				g.Id(embedded)
			}

			seen := make(map[string]bool, len(class.Properties))
			for _, property := range class.Properties {
				fieldName := exportedIdentifier(property.Name)
				if seen[fieldName] {
					continue
				}
				seen[fieldName] = true
				mirror.writeProperty(property, known, g.Id(fieldName))
			}
		}).Line()
	}

	return file
}

// Save renders classes to path on fs.
func (mirror GoMirror) Save(fs afero.Fs, path string, classes []model.Class) error {
	var buffer bytes.Buffer
	if err := mirror.File(classes).Render(&buffer); err != nil {
		return errors.Wrap(err, "rendering Go mirror")
	}
	if err := afero.WriteFile(fs, path, buffer.Bytes(), fileMode); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Abstract classes are exported with a prefix their subclasses' superclass
// names lack, so both spellings are tried.
func (mirror GoMirror) superclass(class model.Class, known map[string]string) (string, bool) {
	if class.BaseTypeName == "" {
		return "", false
	}
	if identifier, found := known[class.BaseTypeName]; found {
		return identifier, true
	}
	if identifier, found := known["Abstract"+class.BaseTypeName]; found {
		return identifier, true
	}
	return "", false
}

func (mirror GoMirror) writeProperty(property model.Property, known map[string]string, statement *jen.Statement) {
	typeName := property.TypeName
	for strings.HasSuffix(typeName, "[]") {
		statement.Index()
		typeName = strings.TrimSuffix(typeName, "[]")
	}

	if builtIn, found := builtInTypes[typeName]; found {
		statement.Id(builtIn)
		return
	}
	if identifier, found := known[typeName]; found {
		statement.Op("*").Id(identifier)
		return
	}
	if identifier, found := known["Abstract"+typeName]; found {
		statement.Op("*").Id(identifier)
		return
	}
	statement.Interface()
}

// goIdentifier replaces every rune Go does not accept in identifiers.
func goIdentifier(name string) string {
	var builder strings.Builder
	for i, r := range name {
		switch {
		case unicode.IsLetter(r) || r == '_':
			builder.WriteRune(r)
		case unicode.IsDigit(r):
			if i == 0 {
				builder.WriteRune('_')
			}
			builder.WriteRune(r)
		default:
			builder.WriteRune('_')
		}
	}
	return builder.String()
}

func exportedIdentifier(name string) string {
	identifier := goIdentifier(name)
	if identifier == "" {
		return identifier
	}
	runes := []rune(identifier)
	runes[0] = unicode.ToUpper(runes[0])
	if !unicode.IsUpper(runes[0]) {
		return "X" + string(runes)
	}
	return string(runes)
}
