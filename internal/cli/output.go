package cli

import (
	"bufio"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/afero"

	"stexport/internal/errors"
	"stexport/internal/logger"
)

// Prompt asks the user for confirmations.
type Prompt struct {
	In  io.Reader
	Out io.Writer
}

// Confirm prints question and reports whether the answer was "Y".
func (prompt Prompt) Confirm(question string) bool {
	color.New(color.FgYellow).Fprintf(prompt.Out, "%s [Y/n] ", question)

	response, err := bufio.NewReader(prompt.In).ReadString('\n')
	if err != nil && response == "" {
		return false
	}
	return strings.ToUpper(strings.TrimSpace(response)) == "Y"
}

// ClearDirectoryIfNotEmpty removes the contents of path before an export.
// Unless silent, the user has to agree first. A missing or empty directory
// is left alone.
func ClearDirectoryIfNotEmpty(fs afero.Fs, path string, silent bool, prompt Prompt) error {
	exists, err := afero.DirExists(fs, path)
	if err != nil {
		return errors.Wrapf(err, "checking output directory %s", path)
	}
	if !exists {
		return nil
	}

	empty, err := afero.IsEmpty(fs, path)
	if err != nil {
		return errors.Wrapf(err, "reading output directory %s", path)
	}
	if empty {
		return nil
	}

	if !silent && !prompt.Confirm("Output directory is not empty. Continuation will result in removing all output files. Proceed?") {
		return errors.WithHint(errors.New("explicit agreement was not given"), "pass --force-clean to clean the output directory without asking")
	}

	logger.Named("cli").Infow("Cleaning output directory", logger.FieldPath, path)
	if err := fs.RemoveAll(path); err != nil {
		return errors.Wrapf(err, "cleaning output directory %s", path)
	}
	return nil
}
