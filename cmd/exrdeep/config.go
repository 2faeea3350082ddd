package main

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/mrjoshuak/go-deepexr/deepimg"
	"github.com/mrjoshuak/go-deepexr/exrdeep"
)

// Config holds the settings shared by every command. Values given on the
// command line override the ones read from the config file.
//
// Example file:
//
//	workers = 8
//	compression = "rle"
//	half_channels = ["R", "G", "B"]
//	filter = "tent"
type Config struct {
	Workers      int      `toml:"workers"`
	Compression  string   `toml:"compression"`
	HalfChannels []string `toml:"half_channels"`
	Filter       string   `toml:"filter"`
}

// DefaultConfig matches exrdeep.DefaultWriterOptions.
func DefaultConfig() Config {
	return Config{
		Compression:  "zips",
		HalfChannels: []string{"R", "G", "B", "A"},
		Filter:       "box",
	}
}

// defaultConfigPath returns $XDG_CONFIG_HOME/exrdeep/config.toml, falling
// back to ~/.config.
func defaultConfigPath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "exrdeep", "config.toml")
}

// loadConfig decodes path over DefaultConfig. When explicit is false a
// missing file yields the defaults.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: %w", err)
	}

	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return cfg, fmt.Errorf("config %s: unknown keys:\n%s", path, strict.String())
		}
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative: %d", c.Workers)
	}
	if _, err := exrdeep.ParseCompression(c.Compression); err != nil {
		return err
	}
	if _, err := deepimg.ParseFilter(c.Filter); err != nil {
		return err
	}
	return nil
}

// The accessors below assume validate has passed.

func (c Config) compression() exrdeep.Compression {
	comp, _ := exrdeep.ParseCompression(c.Compression)
	return comp
}

func (c Config) filter() deepimg.Filter {
	f, _ := deepimg.ParseFilter(c.Filter)
	return f
}

func (c Config) poolOptions() deepimg.Options {
	return deepimg.Options{Workers: c.Workers}
}
