package generation

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stexport/internal/model"
)

func mirrorClasses() []model.Class {
	return []model.Class{
		model.NewClass("Object", "AbstractUpdate", nil, "TdLib.TdApi.Update"),
		model.NewClass("Update", "UpdateNewMessage", []model.Property{
			model.NewProperty("chatId", "Int64"),
			model.NewProperty("Message", "Message"),
			model.NewProperty("Ids", "Int32[]"),
			model.NewProperty("Extra", "Dictionary`2"),
			model.NewProperty("chatId", "Int32"),
		}, "TdLib.TdApi.UpdateNewMessage"),
		model.NewClass("Object", "Message", []model.Property{model.NewProperty("Text", "String")}, "TdLib.TdApi.Message"),
		model.NewClass("Object", "Result`1_T", nil, "TdLib.TdApi.Result`1"),
		model.NewClass("System.Object", "AbstractObject", nil, "TdLib.TdApi.Object"),
	}
}

func TestGoMirrorFile(t *testing.T) {
	var buffer bytes.Buffer
	require.NoError(t, GoMirror{PackageName: "tdapi"}.File(mirrorClasses()).Render(&buffer))
	source := buffer.String()

	assert.Contains(t, source, "// Code generated by stexport. DO NOT EDIT.")
	assert.Contains(t, source, "package tdapi")
	assert.Contains(t, source, "// UpdateNewMessage mirrors TdLib.TdApi.UpdateNewMessage.")
	assert.Regexp(t, `type UpdateNewMessage struct \{\s+AbstractUpdate\s+ChatId\s+int64\s+Message\s+\*Message\s+Ids\s+\[\]int32\s+Extra\s+interface\{\}\s+\}`, source)
	assert.Regexp(t, `type AbstractUpdate struct \{\s+AbstractObject\s+\}`, source)
	assert.Regexp(t, "type Result_1_T struct", source)
	assert.Regexp(t, `type AbstractObject struct\{\}`, source)
}

func TestGoMirrorSave(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, GoMirror{PackageName: "tdapi"}.Save(fs, "/mirror.go", mirrorClasses()))

	content, err := afero.ReadFile(fs, "/mirror.go")
	require.NoError(t, err)
	assert.Contains(t, string(content), "type Message struct")
}

func TestIdentifiers(t *testing.T) {
	assert.Equal(t, "Result_1_T", goIdentifier("Result`1_T"))
	assert.Equal(t, "_2D", goIdentifier("2D"))
	assert.Equal(t, "ChatId", exportedIdentifier("chatId"))
	assert.Equal(t, "X_id", exportedIdentifier("_id"))
}
