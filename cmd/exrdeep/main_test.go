package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrjoshuak/go-deepexr/deep"
	"github.com/mrjoshuak/go-deepexr/exrdeep"
)

func TestParseArgs(t *testing.T) {
	opts, err := parseArgs([]string{"-v", "-workers", "3", "sample", "in.exr", "-1", "2", "-half", "R, G,"})
	require.NoError(t, err)
	assert.True(t, opts.verbose)
	assert.Equal(t, 3, opts.workers)
	assert.Equal(t, "sample", opts.command)
	assert.Equal(t, []string{"in.exr", "-1", "2"}, opts.args)
	assert.True(t, opts.halfSet)
	assert.Equal(t, []string{"R", "G"}, opts.half)

	opts, err = parseArgs([]string{"info", "a.exr"})
	require.NoError(t, err)
	assert.Equal(t, -1, opts.workers)
	assert.False(t, opts.halfSet)

	for _, args := range [][]string{
		nil,
		{"-v"},
		{"-bogus", "info"},
		{"info", "-workers"},
		{"-workers", "-2", "info"},
	} {
		_, err := parseArgs(args)
		assert.Error(t, err, "%v", args)
	}
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, `
workers = 4
compression = "rle"
half_channels = ["A"]
filter = "tent"
`)
	cfg, err := loadConfig(path, true)
	require.NoError(t, err)
	assert.Equal(t, Config{Workers: 4, Compression: "rle", HalfChannels: []string{"A"}, Filter: "tent"}, cfg)
	require.NoError(t, cfg.validate())
	assert.Equal(t, exrdeep.CompressionRLE, cfg.compression())

	cfg, err = loadConfig(filepath.Join(dir, "missing.toml"), false)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	_, err = loadConfig(filepath.Join(dir, "missing.toml"), true)
	assert.Error(t, err)

	_, err = loadConfig(writeConfig(t, dir, "threads = 2\n"), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys")

	cfg, err = loadConfig(writeConfig(t, dir, `compression = "piz"`), true)
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.validate(), exrdeep.ErrUnsupportedCompression)
}

func TestOptionsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", home)
	require.NoError(t, os.MkdirAll(filepath.Join(home, "exrdeep"), 0o755))
	writeConfig(t, filepath.Join(home, "exrdeep"), "workers = 2\nfilter = \"tent\"\n")

	opts, err := parseArgs([]string{"-filter", "box", "-half", "", "info", "x.exr"})
	require.NoError(t, err)
	cfg, err := opts.config()
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers, "from the default config file")
	assert.Equal(t, "box", cfg.Filter, "flags override the file")
	assert.Empty(t, cfg.HalfChannels)
	assert.Equal(t, "zips", cfg.Compression)

	opts, err = parseArgs([]string{"-filter", "lanczos", "info", "x.exr"})
	require.NoError(t, err)
	_, err = opts.config()
	assert.Error(t, err)
}

// writeDeepFile writes a 2x2 RGBA file. Pixel (0, 0) has two samples,
// (1, 1) has one and the others are empty.
func writeDeepFile(t *testing.T, path string) {
	t.Helper()
	opts := exrdeep.DefaultWriterOptions(2, 2)
	opts.Compression = exrdeep.CompressionRLE
	w, err := exrdeep.Create(path, opts)
	require.NoError(t, err)

	p := deep.NewRGBA(2)
	require.NoError(t, p.AddSample(2, []float32{0, 1, 0, 1}))
	require.NoError(t, p.AddSample(1, []float32{0.5, 0, 0, 0.5}))
	require.NoError(t, w.WritePixel(0, 0, p))

	q := deep.NewRGBA(1)
	require.NoError(t, q.AddSample(4, []float32{0, 0, 1, 1}))
	require.NoError(t, w.WritePixel(1, 1, q))
	require.NoError(t, w.Close())
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	opts, err := parseArgs(args)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Workers = 2
	out := new(bytes.Buffer)
	err = run(context.Background(), opts, cfg, out)
	return out.String(), err
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.exr")
	writeDeepFile(t, in)

	t.Run("info", func(t *testing.T) {
		out, err := runCommand(t, "info", in)
		require.NoError(t, err)
		assert.Contains(t, out, "channel A")
		assert.Contains(t, out, "channel Z")
		assert.Contains(t, out, "compression     rle")
		assert.Contains(t, out, "maxSamples      2")
		assert.Contains(t, out, "samples         3 (max 2 per pixel)")
	})

	t.Run("sample", func(t *testing.T) {
		out, err := runCommand(t, "sample", in, "0", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "(0, 0): 2 samples")
		assert.Contains(t, out, "composite")

		out, err = runCommand(t, "sample", in, "1", "0")
		require.NoError(t, err)
		assert.Contains(t, out, "no samples")
	})

	t.Run("flatten", func(t *testing.T) {
		out := filepath.Join(dir, "flat.exr")
		_, err := runCommand(t, "flatten", in, out)
		require.NoError(t, err)
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, []byte{0x76, 0x2f, 0x31, 0x01}, data[:4])
		assert.False(t, exrdeep.CanRead(out), "flat files are not deep")
	})

	t.Run("merge", func(t *testing.T) {
		out := filepath.Join(dir, "merged.exr")
		_, err := runCommand(t, "merge", in, in, out)
		require.NoError(t, err)

		r, err := exrdeep.Open(out)
		require.NoError(t, err)
		defer r.Close()
		p, err := r.ReadPixel(0, 0)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 4, p.NumSamples())
	})

	t.Run("resize", func(t *testing.T) {
		out := filepath.Join(dir, "small.exr")
		_, err := runCommand(t, "resize", in, out, "1", "1")
		require.NoError(t, err)

		r, err := exrdeep.Open(out)
		require.NoError(t, err)
		defer r.Close()
		assert.Equal(t, 1, r.DataWindow().Width())
		p, err := r.ReadPixel(0, 0)
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, 2, p.NumSamples(), "depths follow the first contributor")
	})

	t.Run("errors", func(t *testing.T) {
		_, err := runCommand(t, "explode", in)
		assert.Error(t, err)
		_, err = runCommand(t, "flatten", in)
		assert.Error(t, err)
		_, err = runCommand(t, "resize", in, filepath.Join(dir, "x.exr"), "wide", "1")
		assert.Error(t, err)
		_, err = runCommand(t, "info", filepath.Join(dir, "missing.exr"))
		assert.Error(t, err)
	})
}
