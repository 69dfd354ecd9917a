package main

import (
	"bytes"
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	saved := log.Logger
	t.Cleanup(func() { log.Logger = saved })

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	out, err := runCLI(t, "normalize",
		"https://github.com/aki3note/musicbook1/blob/main/inu.wav",
		"https://example.com/audio.mp3",
	)
	require.NoError(t, err)
	assert.Equal(t,
		"https://raw.githubusercontent.com/aki3note/musicbook1/main/inu.wav\nhttps://example.com/audio.mp3\n",
		out)
}

func TestLayoutCommandAdHoc(t *testing.T) {
	cfg := writeConfig(t, "")
	out, err := runCLI(t, "-c", cfg, "layout", "--rows", "4", "--cols", "4", "--bounds", "16.5,4.5,91,77", "--gap", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "21.25")
	assert.Contains(t, out, "75.75")
	assert.Contains(t, out, "74.25")
	assert.Contains(t, out, "16")

	_, err = runCLI(t, "-c", cfg, "layout", "--rows", "4", "--cols", "4", "--bounds", "0,0,3,50", "--gap", "2")
	require.ErrorIs(t, err, ErrInvalidGridConfiguration)

	_, err = runCLI(t, "-c", cfg, "layout", "--bounds", "1,2,3")
	require.Error(t, err)
}

func TestLayoutCommandBoard(t *testing.T) {
	cfg := writeConfig(t, `
[[boards]]
name = "musicbook"
image = "missing.jpg"
audio = ["https://github.com/aki3note/musicbook1/blob/main/inu.wav"]
[boards.layout]
rows = 2
cols = 2
[boards.layout.bounds]
width = 100.0
height = 100.0
`)
	out, err := runCLI(t, "-c", cfg, "layout", "--board", "musicbook")
	require.NoError(t, err)
	assert.Contains(t, out, "raw.githubusercontent.com/aki3note/musicbook1/main/inu.wav")

	_, err = runCLI(t, "-c", cfg, "layout", "--board", "other")
	require.Error(t, err)
}

func TestCropCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, imaging.Save(imaging.New(60, 40, color.Black), filepath.Join(dir, "tiles.png")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "jukebox.toml"), []byte(`
[[boards]]
name = "tiles"
image = "tiles.png"
[boards.layout]
mode = "pixel"
rows = 2
cols = 3
gap = 1.0
`), 0o644))

	outDir := filepath.Join(dir, "out")
	out, err := runCLI(t, "-c", filepath.Join(dir, "jukebox.toml"), "crop", "--board", "tiles", "--out", outDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote 6 cells")

	for _, name := range []string{"01.png", "06.png"} {
		img, err := imaging.Open(filepath.Join(outDir, name))
		require.NoError(t, err)
		assert.Positive(t, img.Bounds().Dx())
	}
}

func TestServeHaltsOnImageFailure(t *testing.T) {
	cfg := writeConfig(t, `
[server]
addr = "127.0.0.1:0"

[[boards]]
name = "broken"
image = "does-not-exist.png"
[boards.layout]
rows = 1
cols = 1
[boards.layout.bounds]
width = 10.0
height = 10.0
`)
	_, err := runCLI(t, "-c", cfg, "serve")
	require.ErrorIs(t, err, ErrImageLoad)
}

func TestConfigSampleCommand(t *testing.T) {
	out, err := runCLI(t, "config", "sample")
	require.NoError(t, err)
	assert.Equal(t, SampleConfig(), out)
}
