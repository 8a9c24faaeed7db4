package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/dshills/typebus/internal/config/loader"
)

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	fs        loader.FileSystem
	envPrefix string
	env       bool
}

// WithFileSystem reads configuration files through fsys.
func WithFileSystem(fsys loader.FileSystem) LoadOption {
	return func(c *loadConfig) {
		if fsys != nil {
			c.fs = fsys
		}
	}
}

// WithEnvPrefix changes the environment variable prefix.
func WithEnvPrefix(prefix string) LoadOption {
	return func(c *loadConfig) {
		if prefix != "" {
			c.envPrefix = prefix
		}
	}
}

// WithoutEnv ignores the environment.
func WithoutEnv() LoadOption {
	return func(c *loadConfig) {
		c.env = false
	}
}

// Load builds a Config from the defaults, the file at path and the
// environment. An empty path or a missing file leaves the defaults in place.
func Load(path string, opts ...LoadOption) (*Config, error) {
	lc := loadConfig{
		fs:        loader.DefaultFS(),
		envPrefix: loader.DefaultEnvPrefix,
		env:       true,
	}
	for _, opt := range opts {
		opt(&lc)
	}

	var layers map[string]any
	if path != "" {
		l, err := loader.ForPath(lc.fs, path)
		if err != nil {
			return nil, err
		}
		fileLayer, err := l.Load()
		if err != nil {
			return nil, err
		}
		layers = loader.DeepMerge(layers, fileLayer)
	}
	if lc.env {
		envLayer, err := loader.NewEnvLoader(lc.envPrefix).Load()
		if err != nil {
			return nil, err
		}
		layers = loader.DeepMerge(layers, envLayer)
	}

	cfg := Default()
	if err := decode(layers, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode overlays the merged layers on cfg, rejecting unknown keys.
func decode(layers map[string]any, cfg *Config) error {
	if len(layers) == 0 {
		return nil
	}
	data, err := yaml.Marshal(layers)
	if err != nil {
		return fmt.Errorf("encoding merged config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}
