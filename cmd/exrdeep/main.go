// exrdeep inspects and processes OpenEXR deep scanline files.
//
// Usage:
//
//	exrdeep [options] <command> [arguments]
//
// Commands:
//
//	info <file> ...                 print the header and sample statistics
//	flatten <in> <out>              composite every pixel into a flat image
//	resize <in> <out> <w> <h>       resample to a new resolution
//	merge <a> <b> <out>             combine the samples of two images
//	sample <file> <x> <y>           print the samples of one pixel
//
// Options:
//
//	-config <path>       config file (default $XDG_CONFIG_HOME/exrdeep/config.toml)
//	-workers <n>         parallel scanline workers, 0 for one per CPU
//	-compression <name>  none, rle, zips or zip (zip for flat output only)
//	-half <list>         comma separated channels stored as half floats
//	-filter <name>       resize filter: box or tent
//	-v                   verbose logging
//	-h, --help           print this message
//	--version            print version information
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/exrdeep"
)

const version = "0.1.0"

type options struct {
	configPath  string
	verbose     bool
	workers     int // -1 when not given
	compression string
	half        []string
	halfSet     bool
	filter      string
	command     string
	args        []string
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			usageMessage(os.Stdout)
			os.Exit(0)
		}
		if arg == "--version" {
			fmt.Printf("exrdeep (go-deepexr) %s\n", version)
			os.Exit(0)
		}
	}

	opts, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "exrdeep: %v\n", err)
		usageMessage(os.Stderr)
		os.Exit(2)
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	exrdeep.SetLogger(logger)
	deepimg.SetLogger(logger)

	cfg, err := opts.config()
	if err != nil {
		fmt.Fprintf(os.Stderr, "exrdeep: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := run(ctx, opts, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "exrdeep: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func parseArgs(args []string) (*options, error) {
	opts := &options{workers: -1}
	var positional []string

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-v":
			opts.verbose = true
		case "-config", "-workers", "-compression", "-half", "-filter":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("%s requires an argument", arg)
			}
			i++
			if err := opts.setValue(arg, args[i]); err != nil {
				return nil, err
			}
		default:
			if strings.HasPrefix(arg, "-") && !isNumber(arg) {
				return nil, fmt.Errorf("unknown option: %s", arg)
			}
			positional = append(positional, arg)
		}
	}

	if len(positional) == 0 {
		return nil, fmt.Errorf("no command specified")
	}
	opts.command = positional[0]
	opts.args = positional[1:]
	return opts, nil
}

func (o *options) setValue(flag, value string) error {
	switch flag {
	case "-config":
		o.configPath = value
	case "-workers":
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return fmt.Errorf("invalid worker count: %s", value)
		}
		o.workers = n
	case "-compression":
		o.compression = value
	case "-half":
		o.halfSet = true
		o.half = nil
		for _, name := range strings.Split(value, ",") {
			if name = strings.TrimSpace(name); name != "" {
				o.half = append(o.half, name)
			}
		}
	case "-filter":
		o.filter = value
	}
	return nil
}

// config loads the config file and applies the command line on top.
func (o *options) config() (Config, error) {
	path, explicit := o.configPath, o.configPath != ""
	if !explicit {
		path = defaultConfigPath()
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return cfg, err
	}

	if o.workers >= 0 {
		cfg.Workers = o.workers
	}
	if o.compression != "" {
		cfg.Compression = o.compression
	}
	if o.halfSet {
		cfg.HalfChannels = o.half
	}
	if o.filter != "" {
		cfg.Filter = o.filter
	}
	return cfg, cfg.validate()
}

func isNumber(s string) bool {
	_, err := strconv.Atoi(s)
	return err == nil
}

func usageMessage(w io.Writer) {
	fmt.Fprintln(w, "Usage: exrdeep [options] <command> [arguments]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  info <file> ...             print the header and sample statistics")
	fmt.Fprintln(w, "  flatten <in> <out>          composite every pixel into a flat image")
	fmt.Fprintln(w, "  resize <in> <out> <w> <h>   resample to a new resolution")
	fmt.Fprintln(w, "  merge <a> <b> <out>         combine the samples of two images")
	fmt.Fprintln(w, "  sample <file> <x> <y>       print the samples of one pixel")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Options:")
	fmt.Fprintln(w, "  -config <path>       config file (default $XDG_CONFIG_HOME/exrdeep/config.toml)")
	fmt.Fprintln(w, "  -workers <n>         parallel scanline workers, 0 for one per CPU")
	fmt.Fprintln(w, "  -compression <name>  none, rle, zips or zip (zip for flat output only)")
	fmt.Fprintln(w, "  -half <list>         comma separated channels stored as half floats")
	fmt.Fprintln(w, "  -filter <name>       resize filter: box or tent")
	fmt.Fprintln(w, "  -v                   verbose logging")
	fmt.Fprintln(w, "  -h, --help           print this message")
	fmt.Fprintln(w, "  --version            print version information")
}
