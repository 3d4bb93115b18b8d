package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mig.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `
Output = "gen"
Safe = true
Defines = ["KERNEL_USER", "DEBUG=0"]
MaxMessageSize = 8192
ServerInterface = true
Jobs = 2
`)
	cfg := Default()
	require.NoError(t, Load(path, &cfg))

	assert.Equal(t, "gen", cfg.Output)
	assert.True(t, cfg.Safe)
	assert.True(t, cfg.AnyPart())
	assert.Equal(t, []string{"KERNEL_USER", "DEBUG=0"}, cfg.Defines)
	assert.Equal(t, uint32(8192), cfg.MaxMessageSize)
	assert.True(t, cfg.ServerInterface)
	assert.Equal(t, 2, cfg.Jobs)
	// untouched keys keep their defaults
	assert.Equal(t, ColorAuto, cfg.Color)
	assert.False(t, cfg.Async)
}

func TestLoadUnknownField(t *testing.T) {
	path := writeFile(t, "Outptu = \"gen\"\n")
	cfg := Default()
	err := Load(path, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Outptu")
	assert.True(t, strings.HasPrefix(err.Error(), path+", "), "error %q lacks the file name", err)
}

func TestLoadSyntaxError(t *testing.T) {
	path := writeFile(t, "Output = \n")
	cfg := Default()
	assert.Error(t, Load(path, &cfg))
}

func TestLoadMissingFile(t *testing.T) {
	cfg := Default()
	err := Load(filepath.Join(t.TempDir(), "none.toml"), &cfg)
	assert.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())

	cfg.Color = "sometimes"
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Jobs = -1
	assert.Error(t, cfg.Validate())

	path := writeFile(t, "Color = \"rainbow\"\n")
	cfg = Default()
	assert.Error(t, Load(path, &cfg))
}

func TestDumpRoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Output = "out"
	cfg.Async = true
	cfg.Undefines = []string{"KERNEL_SERVER"}

	var buf bytes.Buffer
	require.NoError(t, Dump(&buf, &cfg))
	assert.Contains(t, buf.String(), "Async")

	path := writeFile(t, buf.String())
	got := Config{}
	require.NoError(t, Load(path, &got))
	assert.Equal(t, cfg.Output, got.Output)
	assert.Equal(t, cfg.Async, got.Async)
	assert.Equal(t, cfg.Undefines, got.Undefines)
	assert.Equal(t, cfg.Jobs, got.Jobs)
	assert.Equal(t, cfg.Color, got.Color)
}
