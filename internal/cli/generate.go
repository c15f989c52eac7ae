package cli

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"stexport/internal/config"
	"stexport/internal/errors"
	"stexport/internal/generation"
	"stexport/internal/logger"
	"stexport/internal/metadata"
	"stexport/internal/model"
)

func runGenerate(cmd *cobra.Command, v *viper.Viper, configFile string) error {
	cfg, err := setup(v, configFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	log := logger.Named("cli")
	fs := afero.NewOsFs()

	if cfg.Input == "" {
		return errors.WithHint(errors.New("no input given"), "pass --input or set nuget.package to download one")
	}
	exists, err := afero.Exists(fs, cfg.Input)
	if err != nil {
		return errors.Wrapf(err, "checking input %s", cfg.Input)
	}
	if !exists {
		if cfg.Nuget.Package == "" {
			return errors.Mark(errors.Newf("input %s does not exist", cfg.Input), errors.ErrCatalogUnavailable)
		}
		if err := fetch(cmd.Context(), cfg); err != nil {
			return err
		}
	}

	catalog, err := openCatalog(fs, cfg.Input)
	if err != nil {
		return err
	}

	classes, err := model.Extractor{RootType: cfg.RootType}.Extract(catalog)
	if err != nil {
		return err
	}
	log.Infow("Extracted class model",
		logger.FieldFile, cfg.Input,
		logger.FieldRootType, cfg.RootType,
		logger.FieldCount, len(classes))

	prompt := Prompt{In: cmd.InOrStdin(), Out: cmd.OutOrStdout()}
	if err := ClearDirectoryIfNotEmpty(fs, cfg.Output, cfg.ForceClean, prompt); err != nil {
		return err
	}

	generator := generation.NewGenerator(cfg.Options(), fs)
	generator.Register(classes...)
	if err := generator.Generate(); err != nil {
		return err
	}

	if cfg.GoOutput != "" {
		mirror := generation.GoMirror{PackageName: cfg.GoPackage}
		if err := mirror.Save(fs, cfg.GoOutput, classes); err != nil {
			return err
		}
		log.Infow("Wrote Go mirror", logger.FieldFile, cfg.GoOutput)
	}
	return nil
}

// openCatalog reads manifests by extension and everything else as a PE
// assembly.
func openCatalog(fs afero.Fs, path string) (metadata.Catalog, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		catalog, err := metadata.LoadManifest(fs, path)
		if err != nil {
			return nil, err
		}
		return catalog, nil
	default:
		reader, err := metadata.NewReader(path)
		if err != nil {
			return nil, err
		}
		return reader, nil
	}
}

func fetch(ctx context.Context, cfg *config.Config) error {
	downloader := metadata.NewDownloader()
	downloader.IndexURL = cfg.Nuget.Index

	if dir := filepath.Dir(cfg.Input); dir != "." {
		if err := downloader.Fs.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "creating %s", dir)
		}
	}

	version, err := downloader.DownloadPackage(ctx, cfg.Nuget.Package, cfg.Nuget.Version, cfg.Input)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "fetching %s", cfg.Nuget.Package), errors.ErrCatalogUnavailable)
	}
	logger.Named("cli").Infow("Fetched package",
		logger.FieldPackage, cfg.Nuget.Package,
		logger.FieldVersion, version,
		logger.FieldFile, cfg.Input)
	return nil
}
