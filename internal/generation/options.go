package generation

import "time"

const (
	DefaultInitials  = "N.S."
	DefaultExtension = "st"
)

// Options is the configuration surface of an export run.
type Options struct {
	// Class category written to every properties.json.
	Category string
	// Maps a method category to the first line of each method file.
	CategoryResolver func(string) string
	// Directory receiving one <Class>.class directory per class.
	OutputRoot string

	// Author initials of the method stamps. Defaults to DefaultInitials.
	Initials string
	// Method file extension without dot. Defaults to DefaultExtension.
	Extension string
	// Line separator of method files. Defaults to "\n".
	NewLine string
	// Clock for method stamps. Defaults to time.Now.
	Now func() time.Time
}

// IdentityCategory leaves the method category unchanged.
func IdentityCategory(category string) string {
	return category
}

func (options Options) withDefaults() Options {
	if options.CategoryResolver == nil {
		options.CategoryResolver = IdentityCategory
	}
	if options.Initials == "" {
		options.Initials = DefaultInitials
	}
	if options.Extension == "" {
		options.Extension = DefaultExtension
	}
	if options.NewLine == "" {
		options.NewLine = "\n"
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	return options
}
