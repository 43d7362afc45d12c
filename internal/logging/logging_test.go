package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_LevelAndFormat(t *testing.T) {
	l := logrus.New()
	var out bytes.Buffer

	closer, err := apply(l, Options{Level: "debug", Format: "json"}, &out)
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
	l.WithField("logger", "test").Debug("Hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &line), "JSON format should emit one object per line")
	assert.Equal(t, "Hello", line["msg"])
	assert.Equal(t, "test", line["logger"])
}

func TestApply_Invalid(t *testing.T) {
	_, err := apply(logrus.New(), Options{Level: "loud"}, &bytes.Buffer{})
	assert.Error(t, err)

	_, err = apply(logrus.New(), Options{Format: "xml"}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestApply_File(t *testing.T) {
	l := logrus.New()
	var out bytes.Buffer
	path := filepath.Join(t.TempDir(), "nts.log")

	closer, err := apply(l, Options{File: FileOptions{Filename: path}}, &out)
	require.NoError(t, err)

	l.Info("To both")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "To both")
	assert.Contains(t, out.String(), "To both", "File logging should keep stdout output")
}

func TestNamed(t *testing.T) {
	e := Named("registry")
	assert.Equal(t, "registry", e.Data["logger"])
}

func TestDefaultOptions(t *testing.T) {
	o := DefaultOptions()
	assert.Equal(t, "info", o.Level)
	assert.Equal(t, 100, o.File.MaxSize)
	assert.Equal(t, 5, o.File.MaxBackups)
	assert.Equal(t, 30, o.File.MaxAge)
	assert.True(t, o.File.Compress)
}
