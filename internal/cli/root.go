package cli

import (
	"fmt"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stexport/internal/config"
	"stexport/internal/errors"
	"stexport/internal/logger"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// flagKeys binds command line flags to configuration keys.
var flagKeys = map[string]string{
	"input":           "input",
	"root-type":       "root_type",
	"output":          "output",
	"category":        "category",
	"method-category": "method_category",
	"initials":        "initials",
	"extension":       "extension",
	"line-ending":     "line_ending",
	"force-clean":     "force_clean",
	"go-package":      "go_package",
	"go-output":       "go_output",
	"nuget-package":   "nuget.package",
	"nuget-version":   "nuget.version",
	"nuget-index":     "nuget.index",
	"json-logs":       "log.json",
	"verbose":         "log.verbose",
}

// NewRootCommand creates the stexport command tree. Running it without a
// subcommand performs an export.
func NewRootCommand() *cobra.Command {
	v := config.New()
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "stexport",
		Short: "Export a .NET object model as Smalltalk FileTree classes",
		Long: `stexport reads the type catalog of a .NET assembly (or a YAML/JSON catalog
manifest), selects every exported descendant of a root type and writes one
FileTree class directory per type: properties.json, methodProperties.json
and an accessor/mutator method pair per property.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, v, configFile)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default ./stexport.yaml)")
	flags.StringP("input", "i", "", "assembly, .winmd or catalog manifest (.yaml, .yml, .json) to read")
	flags.String("root-type", "", "full name of the root type (default TdLib.TdApi.Object)")
	flags.StringP("output", "o", "", "directory receiving the <Class>.class directories (default ./output/)")
	flags.String("category", "", "class category written to properties.json")
	flags.String("method-category", "", "method category format; %s receives the category")
	flags.String("initials", "", "author initials of method stamps")
	flags.String("extension", "", "method file extension")
	flags.String("line-ending", "", "method file line ending (lf or crlf)")
	flags.Bool("force-clean", false, "clean a non-empty output directory without asking")
	flags.String("go-package", "", "package name of the Go mirror")
	flags.String("go-output", "", "write a Go struct mirror of the class model to this file")
	flags.String("nuget-package", "", "NuGet package providing the input assembly")
	flags.String("nuget-version", "", "NuGet package version (default latest)")
	flags.String("nuget-index", "", "NuGet v3 service index")
	flags.Bool("json-logs", false, "write logs as JSON")
	flags.BoolP("verbose", "v", false, "enable debug logging")

	for flag, key := range flagKeys {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(errors.Wrapf(err, "binding flag %s", flag))
		}
	}

	rootCmd.AddCommand(NewGenerateCommand(v, &configFile))
	rootCmd.AddCommand(NewFetchCommand(v, &configFile))
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// NewGenerateCommand creates the generate command
func NewGenerateCommand(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Export the class model (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, v, *configFile)
		},
	}
}

// NewFetchCommand creates the fetch command
func NewFetchCommand(v *viper.Viper, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the input assembly from NuGet",
		Long:  "Download nuget.package (at nuget.version, default latest) and store its assembly at the input path.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(v, *configFile)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if cfg.Nuget.Package == "" {
				return errors.WithHint(errors.New("no package to fetch"), "set nuget.package or pass --nuget-package")
			}
			return fetch(cmd.Context(), cfg)
		},
	}
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			titleColor := color.New(color.FgCyan, color.Bold)
			out := cmd.OutOrStdout()

			titleColor.Fprint(out, "stexport version: ")
			fmt.Fprintln(out, Version)
			titleColor.Fprint(out, "Git commit: ")
			fmt.Fprintln(out, GitCommit)
			titleColor.Fprint(out, "Build date: ")
			fmt.Fprintln(out, BuildDate)
			titleColor.Fprint(out, "Go version: ")
			fmt.Fprintln(out, runtime.Version())
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			errorColor.Fprintf(rootCmd.ErrOrStderr(), "Hint: %s\n", hint)
		}
		return err
	}
	return nil
}

func setup(v *viper.Viper, configFile string) (*config.Config, error) {
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := logger.Initialize(cfg.Log.JSON, cfg.Log.Verbose); err != nil {
		return nil, errors.Wrap(err, "initializing logger")
	}
	return cfg, nil
}
