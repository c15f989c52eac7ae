package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for structured logging across stexport.
const (
	FieldComponent = "component"
	FieldClass     = "class"
	FieldBase      = "super"
	FieldCount     = "count"
	FieldPath      = "path"
	FieldFile      = "file"
	FieldRootType  = "root_type"
	FieldPackage   = "package"
	FieldVersion   = "version"
	FieldURL       = "url"
)

var (
	// Global logger instance
	Logger *zap.SugaredLogger
	// JSONOutput is true when Initialize selected machine-readable output
	JSONOutput bool
)

func init() {
	// No-op until Initialize is called so packages can log unconditionally.
	Logger = zap.NewNop().Sugar()
}

// Initialize sets up the global logger. Console output goes to stderr so
// generated content written to stdout stays clean.
func Initialize(jsonOutput bool, verbose bool) error {
	JSONOutput = jsonOutput

	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}

	var zapLogger *zap.Logger
	var err error

	if jsonOutput {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		zapLogger, err = config.Build()
	} else {
		encoderConfig := zap.NewDevelopmentEncoderConfig()
		encoderConfig.TimeKey = ""
		encoderConfig.CallerKey = ""
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapLogger = zap.New(
			zapcore.NewCore(
				zapcore.NewConsoleEncoder(encoderConfig),
				zapcore.AddSync(os.Stderr),
				level,
			),
		)
	}

	if err != nil {
		return err
	}

	Logger = zapLogger.Sugar()
	return nil
}

// Named returns a child of the global logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Logger.Named(component).With(FieldComponent, component)
}

// Sync flushes buffered entries. Errors from syncing stderr are ignored.
func Sync() {
	_ = Logger.Sync()
}
