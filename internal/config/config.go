package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"stexport/internal/errors"
	"stexport/internal/generation"
	"stexport/internal/metadata"
)

// Config represents the stexport configuration
type Config struct {
	Input          string      `mapstructure:"input"`
	RootType       string      `mapstructure:"root_type"`
	Output         string      `mapstructure:"output"`
	Category       string      `mapstructure:"category"`
	MethodCategory string      `mapstructure:"method_category"`
	Initials       string      `mapstructure:"initials"`
	Extension      string      `mapstructure:"extension"`
	LineEnding     string      `mapstructure:"line_ending"`
	ForceClean     bool        `mapstructure:"force_clean"`
	GoPackage      string      `mapstructure:"go_package"`
	GoOutput       string      `mapstructure:"go_output"`
	Nuget          NugetConfig `mapstructure:"nuget"`
	Log            LogConfig   `mapstructure:"log"`
}

// NugetConfig selects the package an input assembly is downloaded from
type NugetConfig struct {
	Package string `mapstructure:"package"`
	Version string `mapstructure:"version"`
	Index   string `mapstructure:"index"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	JSON    bool `mapstructure:"json"`
	Verbose bool `mapstructure:"verbose"`
}

var lineEndings = map[string]string{
	"lf":   "\n",
	"crlf": "\r\n",
}

// New returns a viper instance with stexport defaults, environment
// support (STEXPORT_ROOT_TYPE, STEXPORT_NUGET_PACKAGE, ...) and the
// config file search path.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault("input", "")
	v.SetDefault("root_type", "TdLib.TdApi.Object")
	v.SetDefault("output", "./output/")
	v.SetDefault("category", "TelegramClient-Generated")
	v.SetDefault("method_category", "%s")
	v.SetDefault("initials", generation.DefaultInitials)
	v.SetDefault("extension", generation.DefaultExtension)
	v.SetDefault("line_ending", "lf")
	v.SetDefault("force_clean", false)
	v.SetDefault("go_package", "generated")
	v.SetDefault("go_output", "")
	v.SetDefault("nuget.package", "")
	v.SetDefault("nuget.version", "")
	v.SetDefault("nuget.index", metadata.DefaultNugetIndex)
	v.SetDefault("log.json", false)
	v.SetDefault("log.verbose", false)

	v.SetConfigName("stexport")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STEXPORT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads the configuration from configFile, or from stexport.yaml in
// the working directory when configFile is empty, and validates it.
func Load(v *viper.Viper, configFile string) (*Config, error) {
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}

	config.Extension = strings.TrimPrefix(config.Extension, ".")
	if config.Input == "" && config.Nuget.Package != "" {
		config.Input = config.Nuget.Package + ".dll"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Validate checks the values an export run cannot do without.
func (config *Config) Validate() error {
	if config.RootType == "" {
		return errors.New("root_type is required")
	}
	if config.Output == "" {
		return errors.New("output is required")
	}
	if config.Category == "" {
		return errors.New("category is required")
	}
	if config.Extension == "" {
		return errors.New("extension is required")
	}
	if _, ok := lineEndings[config.LineEnding]; !ok {
		return errors.Newf("invalid line_ending %q (supported: lf, crlf)", config.LineEnding)
	}
	switch formatVerbs(config.MethodCategory) {
	case 0:
	case 1:
		if strings.Contains(fmt.Sprintf(config.MethodCategory, "category"), "%!") {
			return errors.Newf("method_category %q must use a %%s verb", config.MethodCategory)
		}
	default:
		return errors.Newf("method_category %q may contain at most one %%s verb", config.MethodCategory)
	}
	return nil
}

// formatVerbs counts the verbs of a format, escaped percent signs aside.
func formatVerbs(format string) int {
	return strings.Count(strings.ReplaceAll(format, "%%", ""), "%")
}

// Options returns the generation options described by the configuration.
func (config *Config) Options() generation.Options {
	return generation.Options{
		Category:         config.Category,
		CategoryResolver: CategoryResolver(config.MethodCategory),
		OutputRoot:       config.Output,
		Initials:         config.Initials,
		Extension:        config.Extension,
		NewLine:          lineEndings[config.LineEnding],
	}
}

// CategoryResolver builds the method category resolver for a format. A
// format with a %s verb receives the category; any other format is used
// as a fixed category; an empty format leaves categories unchanged.
func CategoryResolver(format string) func(string) string {
	switch {
	case format == "" || format == "%s":
		return generation.IdentityCategory
	case formatVerbs(format) > 0:
		return func(category string) string {
			return fmt.Sprintf(format, category)
		}
	default:
		fixed := strings.ReplaceAll(format, "%%", "%")
		return func(string) string {
			return fixed
		}
	}
}
