// Package config loads a target struct from a config file and the
// environment, applying `default` tags first and `validate` tags last.
package config

import (
	"sync"

	"github.com/spf13/viper"

	"github.com/kochabx/courier/core/validator"
	"github.com/kochabx/courier/log"
)

// Config manages one configuration target
type Config struct {
	mu       sync.RWMutex
	viper    *viper.Viper
	validate validator.Validator
	target   any
	loader   Loader
	name     string
	paths    []string
	watch    bool
}

// New creates a Config for target. Without options it reads "config.yaml"
// from the working directory.
func New(target any, opts ...Option) *Config {
	c := &Config{
		viper:    viper.New(),
		validate: validator.Validate,
		target:   target,
		name:     "config.yaml",
		paths:    []string{"."},
		watch:    true,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.loader == nil {
		c.loader = NewFileLoader(c.name, c.paths, c.viper, c.validate)
	}

	return c
}

// Load reads the configuration into the target
func (c *Config) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loader.Load(c.target)
}

// Watch reloads the target whenever the loader reports a change. It does
// nothing when watching was disabled with WithWatch(false).
func (c *Config) Watch() error {
	if !c.watch {
		return nil
	}

	return c.loader.Watch(func() {
		log.Info().Msg("config change detected")

		if err := c.Load(); err != nil {
			log.Error().Err(err).Msg("failed to reload config after change")
			return
		}

		log.Info().Msg("config reloaded successfully")
	})
}

// Read runs fn with the target while holding the read lock, so fn never
// observes a half-applied reload.
func (c *Config) Read(fn func(target any)) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn(c.target)
}

// GetViper returns the underlying viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.viper
}
