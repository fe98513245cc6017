package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRoutesCommand(t *testing.T) {
	out, err := execute(t, "routes")
	require.NoError(t, err)
	for _, route := range []string{"/section", "/playback/toggle", "/playback/ended", "/qr/panel", "/qr/image.png", "/metrics"} {
		assert.Contains(t, out, route)
	}
}

func TestQRCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "code.png")
	out, err := execute(t, "qr", "--out", path, "--public-url", "https://heritage.example/")
	require.NoError(t, err)
	assert.Contains(t, out, "https://heritage.example/")

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())
}

func TestContentValidateCommand(t *testing.T) {
	out, err := execute(t, "content", "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "(embedded): ok")

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("region: \"\"\nlandmarks: []\n"), 0o644))
	_, err = execute(t, "content", "validate", bad)
	require.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "routes", "--public-url", "relative/path")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "public_url")
}
