package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/exrdeep"
)

// command runs one subcommand. nargs is the exact argument count, or the
// minimum when variadic is set.
type command struct {
	nargs    int
	variadic bool
	run      func(ctx context.Context, cfg Config, out io.Writer, args []string) error
}

var commands = map[string]command{
	"info":    {nargs: 1, variadic: true, run: runInfo},
	"flatten": {nargs: 2, run: runFlatten},
	"resize":  {nargs: 4, run: runResize},
	"merge":   {nargs: 3, run: runMerge},
	"sample":  {nargs: 3, run: runSample},
}

func run(ctx context.Context, opts *options, cfg Config, out io.Writer) error {
	cmd, ok := commands[opts.command]
	if !ok {
		return fmt.Errorf("unknown command: %s", opts.command)
	}
	if len(opts.args) < cmd.nargs || (!cmd.variadic && len(opts.args) > cmd.nargs) {
		return fmt.Errorf("%s: wrong number of arguments", opts.command)
	}
	return cmd.run(ctx, cfg, out, opts.args)
}

func runInfo(ctx context.Context, cfg Config, out io.Writer, args []string) error {
	for i, path := range args {
		if i > 0 {
			fmt.Fprintln(out)
		}
		if err := printInfo(ctx, cfg, out, path); err != nil {
			return err
		}
	}
	return nil
}

func printInfo(ctx context.Context, cfg Config, out io.Writer, path string) error {
	r, err := exrdeep.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	fmt.Fprintf(out, "file %s:\n", path)
	h := r.Header()
	for _, ch := range h.Channels() {
		fmt.Fprintf(out, "  channel %-12s %s\n", ch.Name, ch.Type)
	}
	dw := r.DataWindow()
	fmt.Fprintf(out, "  dataWindow      (%d %d) - (%d %d)\n", dw.Min.X, dw.Min.Y, dw.Max.X, dw.Max.Y)
	dsp := r.DisplayWindow()
	fmt.Fprintf(out, "  displayWindow   (%d %d) - (%d %d)\n", dsp.Min.X, dsp.Min.Y, dsp.Max.X, dsp.Max.Y)
	fmt.Fprintf(out, "  compression     %s\n", r.Compression())
	if n, ok := h.Int("maxSamplesPerPixel"); ok {
		fmt.Fprintf(out, "  maxSamples      %d\n", n)
	}

	known := map[string]bool{
		"channels": true, "compression": true, "dataWindow": true, "displayWindow": true,
	}
	var extra []string
	for _, a := range h.Attributes() {
		if !known[a.Name] {
			extra = append(extra, fmt.Sprintf("%s (%s)", a.Name, a.Type))
		}
	}
	if len(extra) > 0 {
		fmt.Fprintf(out, "  attributes      %s\n", strings.Join(extra, ", "))
	}

	if !r.IsComplete() {
		fmt.Fprintln(out, "  incomplete      yes")
		return nil
	}
	img, err := r.ReadImage(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  samples         %d (max %d per pixel)\n", img.TotalSamples(), img.MaxSamples())
	return nil
}

func runFlatten(ctx context.Context, cfg Config, out io.Writer, args []string) error {
	img, _, err := readImage(ctx, args[0])
	if err != nil {
		return err
	}
	flat, err := deepimg.Flatten(ctx, img, cfg.poolOptions())
	if err != nil {
		return err
	}

	f, err := os.Create(args[1])
	if err != nil {
		return err
	}
	err = exrdeep.WriteFlat(f, flat, exrdeep.FlatOptions{
		Compression:  cfg.compression(),
		HalfChannels: cfg.HalfChannels,
	})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("flatten %s: %w", args[1], err)
	}
	slog.Info("flattened", "in", args[0], "out", args[1], "samples", img.TotalSamples())
	return nil
}

func runResize(ctx context.Context, cfg Config, out io.Writer, args []string) error {
	width, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("resize: invalid width %q", args[2])
	}
	height, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("resize: invalid height %q", args[3])
	}

	img, src, err := readImage(ctx, args[0])
	if err != nil {
		return err
	}
	resized, err := deepimg.Resize(ctx, img, width, height, cfg.filter(), cfg.poolOptions())
	if err != nil {
		return err
	}
	return writeDeep(args[1], resized, cfg, src)
}

func runMerge(ctx context.Context, cfg Config, out io.Writer, args []string) error {
	a, src, err := readImage(ctx, args[0])
	if err != nil {
		return err
	}
	b, _, err := readImage(ctx, args[1])
	if err != nil {
		return err
	}
	merged, err := deepimg.Merge(a, b)
	if err != nil {
		return fmt.Errorf("merge %s %s: %w", args[0], args[1], err)
	}
	return writeDeep(args[2], merged, cfg, src)
}

func runSample(ctx context.Context, cfg Config, out io.Writer, args []string) error {
	x, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("sample: invalid x %q", args[1])
	}
	y, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("sample: invalid y %q", args[2])
	}

	r, err := exrdeep.Open(args[0])
	if err != nil {
		return err
	}
	defer r.Close()
	p, err := r.ReadPixel(x, y)
	if err != nil {
		return err
	}
	if p == nil {
		fmt.Fprintf(out, "(%d, %d): no samples\n", x, y)
		return nil
	}

	fmt.Fprintf(out, "(%d, %d): %d samples\n", x, y, p.NumSamples())
	fmt.Fprintf(out, "  %10s", "Z")
	for _, name := range p.ChannelNames() {
		fmt.Fprintf(out, " %10s", name)
	}
	fmt.Fprintln(out)
	for i := 0; i < p.NumSamples(); i++ {
		depth, _ := p.Depth(i)
		data, _ := p.ChannelData(i)
		fmt.Fprintf(out, "  %10.4g", depth)
		for _, v := range data {
			fmt.Fprintf(out, " %10.4g", v)
		}
		fmt.Fprintln(out)
	}

	composite := make([]float32, p.NumChannels())
	if err := p.Composite(composite); err != nil {
		return err
	}
	fmt.Fprintf(out, "  %10s", "composite")
	for _, v := range composite {
		fmt.Fprintf(out, " %10.4g", v)
	}
	fmt.Fprintln(out)
	return nil
}

// readImage reads a whole deep file. The returned reader is closed; its
// header stays available.
func readImage(ctx context.Context, path string) (*deepimg.Image, *exrdeep.Reader, error) {
	r, err := exrdeep.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	if !r.IsComplete() {
		return nil, nil, fmt.Errorf("%s: %w", path, exrdeep.ErrIncomplete)
	}
	img, err := r.ReadImage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, r, nil
}

// writeDeep writes img as a deep file spanning (0, 0) to the image's
// bottom-right corner, carrying the camera matrices of src.
func writeDeep(path string, img *deepimg.Image, cfg Config, src *exrdeep.Reader) error {
	if img.DataWindow.Min.X < 0 || img.DataWindow.Min.Y < 0 {
		slog.Warn("pixels left of or above the origin are not written", "path", path, "dataWindow", img.DataWindow)
	}
	ndc, camera := src.WorldToNDC(), src.WorldToCamera()
	w, err := exrdeep.Create(path, exrdeep.WriterOptions{
		Channels:      img.Channels,
		Resolution:    image.Pt(max(img.DataWindow.Max.X, 1), max(img.DataWindow.Max.Y, 1)),
		HalfChannels:  cfg.HalfChannels,
		Compression:   cfg.compression(),
		WorldToNDC:    &ndc,
		WorldToCamera: &camera,
	})
	if err != nil {
		return err
	}
	if err := w.WriteImage(img); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	slog.Info("wrote", "path", path, "samples", img.TotalSamples())
	return nil
}
