package generation

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"stexport/internal/errors"
	"stexport/internal/logger"
	"stexport/internal/model"
)

// Generator renders and writes registered classes one after another.
type Generator struct {
	Classes  []model.Class
	Renderer Renderer
	Writer   DirectoryWriter

	log *zap.SugaredLogger
}

func NewGenerator(options Options, fs afero.Fs) *Generator {
	return &Generator{
		Classes:  make([]model.Class, 0),
		Renderer: NewRenderer(options),
		Writer:   DirectoryWriter{Fs: fs, Root: options.OutputRoot},
		log:      logger.Named("generator"),
	}
}

// WithLogger replaces the generator's logger.
func (generator *Generator) WithLogger(log *zap.SugaredLogger) *Generator {
	generator.log = log
	return generator
}

func (generator *Generator) Register(classes ...model.Class) {
	generator.Classes = append(generator.Classes, classes...)
}

// Generate writes every registered class in registration order and stops
// at the first failure.
func (generator *Generator) Generate() error {
	if err := generator.Writer.Fs.MkdirAll(generator.Writer.Root, directoryMode); err != nil {
		return errors.Wrapf(err, "creating output directory %s", generator.Writer.Root)
	}

	for _, class := range generator.Classes {
		artifacts := generator.Renderer.Render(class)
		if err := generator.Writer.Write(class, artifacts); err != nil {
			return errors.Wrapf(err, "writing class %s", class.ClassName)
		}
		generator.log.Debugw("Wrote class",
			logger.FieldClass, class.ClassName,
			logger.FieldBase, class.BaseTypeName,
			logger.FieldCount, len(class.Properties))
	}

	generator.log.Infow("Generated classes",
		logger.FieldCount, len(generator.Classes),
		logger.FieldPath, generator.Writer.Root)
	return nil
}
