package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// Value sources reported by Environment.Lookup and Settings.Source.
const (
	SourceDefault     = "default"
	SourceFile        = "file"
	SourceDotenv      = "dotenv"
	SourceEnvironment = "environment"
	SourceFlag        = "flag"
)

// Environment is a read-only view over process variables layered above an
// optional dotfile. Process variables always win over dotfile entries.
type Environment struct {
	lookup  func(string) (string, bool)
	dotfile map[string]string
}

// NewEnvironment builds an Environment from a lookup function and dotfile
// contents. Either may be nil.
func NewEnvironment(lookup func(string) (string, bool), dotfile map[string]string) *Environment {
	if lookup == nil {
		lookup = func(string) (string, bool) { return "", false }
	}
	return &Environment{lookup: lookup, dotfile: dotfile}
}

// MapEnvironment returns an Environment backed by a fixed map.
func MapEnvironment(vars map[string]string) *Environment {
	copied := make(map[string]string, len(vars))
	for k, v := range vars {
		copied[k] = v
	}
	return NewEnvironment(func(key string) (string, bool) {
		v, ok := copied[key]
		return v, ok
	}, nil)
}

// OSEnvironment returns the process environment layered above the dotfile at
// path. A missing dotfile is ignored; an empty path skips it entirely.
func OSEnvironment(path string) (*Environment, error) {
	dotfile, err := readDotenv(path)
	if err != nil {
		return nil, err
	}
	return NewEnvironment(os.LookupEnv, dotfile), nil
}

func readDotenv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dotenv %s: %w", path, err)
	}
	return values, nil
}

// Lookup returns the value of key and where it came from.
func (e *Environment) Lookup(key string) (string, string, bool) {
	if v, ok := e.lookup(key); ok {
		return v, SourceEnvironment, true
	}
	if v, ok := e.dotfile[key]; ok {
		return v, SourceDotenv, true
	}
	return "", SourceDefault, false
}
