package generation

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"stexport/internal/errors"
	"stexport/internal/model"
)

const (
	classDirectorySuffix = ".class"
	instanceDirectory    = "instance"
	propertiesFile       = "properties.json"
	methodPropertiesFile = "methodProperties.json"

	directoryMode os.FileMode = 0755
	fileMode      os.FileMode = 0644
)

// DirectoryWriter writes rendered classes below Root, one directory per
// class. Existing files are overwritten; nothing is ever deleted.
type DirectoryWriter struct {
	Fs   afero.Fs
	Root string
}

// ClassDirectory returns the directory holding the files of class.
func (writer DirectoryWriter) ClassDirectory(class model.Class) string {
	return filepath.Join(writer.Root, class.ClassName+classDirectorySuffix)
}

// Write creates <Root>/<Class>.class/instance and writes both descriptors
// and every stub. The first failure is returned; files written before it
// stay on disk.
func (writer DirectoryWriter) Write(class model.Class, artifacts Artifacts) error {
	classDirectory := writer.ClassDirectory(class)
	stubDirectory := filepath.Join(classDirectory, instanceDirectory)

	if err := writer.Fs.MkdirAll(stubDirectory, directoryMode); err != nil {
		return errors.Wrapf(err, "creating %s", stubDirectory)
	}

	if err := writer.writeJSON(filepath.Join(classDirectory, methodPropertiesFile), artifacts.MethodProperties); err != nil {
		return err
	}
	if err := writer.writeJSON(filepath.Join(classDirectory, propertiesFile), artifacts.ClassProperties); err != nil {
		return err
	}

	for _, stub := range artifacts.Stubs {
		path := filepath.Join(stubDirectory, stub.FileName)
		if err := afero.WriteFile(writer.Fs, path, []byte(stub.Content), fileMode); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
	}
	return nil
}

func (writer DirectoryWriter) writeJSON(path string, value interface{}) error {
	content, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", path)
	}
	if err := afero.WriteFile(writer.Fs, path, content, fileMode); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}
