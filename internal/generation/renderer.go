package generation

import (
	"strings"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"stexport/internal"
	"stexport/internal/model"
)

const (
	normalClassType = "normal"

	// Method category passed to the category resolver for every stub.
	translatedCategory = "Translated"

	// Short general date and time, as in 10/19/2026 3:04 PM.
	stampLayout = "1/2/2006 3:04 PM"
)

// ClassProperties is the content of properties.json.
type ClassProperties struct {
	Category               string   `json:"category"`
	ClassInstanceVariables []string `json:"classinstvars"`
	ClassVariables         []string `json:"classvars"`
	Pools                  []string `json:"pools"`
	CommentStamp           string   `json:"commentStamp"`
	InstanceVariables      []string `json:"instvars"`
	Name                   string   `json:"name"`
	Super                  string   `json:"super"`
	Type                   string   `json:"type"`
}

// MethodProperties is the content of methodProperties.json. Instance maps
// selector to method stamp in first-declaration order.
type MethodProperties struct {
	Class    struct{}                               `json:"class"`
	Instance *orderedmap.OrderedMap[string, string] `json:"instance"`
}

// Stub is one generated method source file.
type Stub struct {
	FileName string
	Content  string
}

// Artifacts holds everything rendered for one class.
type Artifacts struct {
	ClassProperties  ClassProperties
	MethodProperties MethodProperties
	Stubs            []Stub
}

// Renderer turns class descriptors into FileTree artifacts. It performs no
// I/O.
type Renderer struct {
	Category         string
	CategoryResolver func(string) string
	Initials         string
	Extension        string
	NewLine          string
	Now              func() time.Time
}

// NewRenderer returns a Renderer configured from options.
func NewRenderer(options Options) Renderer {
	options = options.withDefaults()
	return Renderer{
		Category:         options.Category,
		CategoryResolver: options.CategoryResolver,
		Initials:         options.Initials,
		Extension:        options.Extension,
		NewLine:          options.NewLine,
		Now:              options.Now,
	}
}

// Render produces the artifacts of class. It panics when the class has no
// name.
func (renderer Renderer) Render(class model.Class) Artifacts {
	internal.Require(class.ClassName != "", "cannot render a class without a name (comment %q)", class.Comment)

	return Artifacts{
		ClassProperties:  renderer.classProperties(class),
		MethodProperties: renderer.methodProperties(class),
		Stubs:            renderer.stubs(class),
	}
}

func (renderer Renderer) classProperties(class model.Class) ClassProperties {
	return ClassProperties{
		Category:               renderer.Category,
		ClassInstanceVariables: []string{},
		ClassVariables:         []string{},
		Pools:                  []string{},
		CommentStamp:           "",
		InstanceVariables:      class.PropertyNames(),
		Name:                   class.ClassName,
		Super:                  class.BaseTypeName,
		Type:                   normalClassType,
	}
}

// Every selector of a class shares one stamp. A repeated property name
// keeps its first position and takes the last value written.
func (renderer Renderer) methodProperties(class model.Class) MethodProperties {
	stamp := renderer.stamp()
	instance := orderedmap.New[string, string]()
	for _, property := range class.Properties {
		instance.Set(property.Name, stamp)
	}
	return MethodProperties{Instance: instance}
}

func (renderer Renderer) stamp() string {
	now := time.Now
	if renderer.Now != nil {
		now = renderer.Now
	}
	return renderer.Initials + " " + now().UTC().Format(stampLayout)
}

func (renderer Renderer) stubs(class model.Class) []Stub {
	category := renderer.resolveCategory()
	stubs := make([]Stub, 0, 2*len(class.Properties))
	for _, property := range class.Properties {
		stubs = append(stubs,
			Stub{
				FileName: property.Name + ".." + renderer.Extension,
				Content:  renderer.lines(category, property.Name+":a"+property.TypeName, "\t"+property.Name+" := a"+property.TypeName+"."),
			},
			Stub{
				FileName: property.Name + "." + renderer.Extension,
				Content:  renderer.lines(category, property.Name, "\t^"+property.Name+"."),
			},
		)
	}
	return stubs
}

func (renderer Renderer) resolveCategory() string {
	if renderer.CategoryResolver == nil {
		return translatedCategory
	}
	return renderer.CategoryResolver(translatedCategory)
}

// lines joins the category line, the selector line and the body. The body
// has no trailing line break.
func (renderer Renderer) lines(category string, selector string, body string) string {
	newLine := renderer.NewLine
	if newLine == "" {
		newLine = "\n"
	}
	return strings.Join([]string{category, selector, body}, newLine)
}
