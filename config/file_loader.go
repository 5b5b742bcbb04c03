package config

import (
	"path"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/kochabx/courier/core/tag"
	"github.com/kochabx/courier/core/validator"
	"github.com/kochabx/courier/errors"
)

// FileLoader loads configuration from a file, with environment overrides
// (key "a.b" is read from A_B).
type FileLoader struct {
	viper    *viper.Viper
	validate validator.Validator
	name     string
	paths    []string
}

// NewFileLoader creates a new file loader
func NewFileLoader(name string, paths []string, v *viper.Viper, validate validator.Validator) *FileLoader {
	for _, configPath := range paths {
		v.AddConfigPath(configPath)
	}

	v.SetConfigName(name)
	v.SetConfigType(strings.TrimPrefix(path.Ext(name), "."))

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &FileLoader{
		viper:    v,
		paths:    paths,
		name:     name,
		validate: validate,
	}
}

// Load implements Loader
func (l *FileLoader) Load(target any) error {
	// defaults first so keys absent from the file keep them
	if err := tag.ApplyDefaults(target); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to apply defaults")
	}

	if err := l.viper.ReadInConfig(); err != nil {
		return errors.Wrap(err, errors.CodeNotFound, "config file %s not found", l.name)
	}

	if err := l.viper.Unmarshal(target); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "config parse error")
	}

	if l.validate != nil {
		if err := l.validate.Struct(target); err != nil {
			return errors.Wrap(err, errors.CodeBadRequest, "config validation failed")
		}
	}

	return nil
}

// Watch implements Loader
func (l *FileLoader) Watch(callback func()) error {
	l.viper.OnConfigChange(func(fsnotify.Event) {
		if callback != nil {
			callback()
		}
	})

	l.viper.WatchConfig()
	return nil
}
