// Package config loads the CLI's own project file (hostjs.yaml), distinct
// from anything the parsed scripts declare. It is grounded on
// a13labs-doxyllm-it's .doxyllm.yaml.yaml project file, which is likewise
// read once at CLI startup with gopkg.in/yaml.v2 and has nothing to do
// with the language it processes.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// Config is the on-disk shape of hostjs.yaml.
type Config struct {
	// IncludeRoot is the filesystem directory ProjectIncludeLoader resolves
	// `include("...")` arguments under.
	IncludeRoot string `yaml:"includeRoot"`

	// EmbeddedIncludes maps a logical include name straight to its script
	// text, for projects that want includes resolvable without touching
	// disk (e.g. bundled fixtures).
	EmbeddedIncludes map[string]string `yaml:"embeddedIncludes"`

	// APIClasses lists host object stubs the CLI should register before
	// parsing, so `hostjs parse`/`hostjs check` can validate scripts that
	// reference a host's API surface without embedding the real host.
	APIClasses []APIClassStub `yaml:"apiClasses"`
}

// APIClassStub declares one host API class's constants and methods for the
// CLI's stand-in registration; hosts embedding the Engine directly register
// real APIClass values instead of going through this file.
type APIClassStub struct {
	Name      string            `yaml:"name"`
	Constants []string          `yaml:"constants"`
	Methods   []APIMethodStub   `yaml:"methods"`
}

// APIMethodStub is one method entry in an APIClassStub.
type APIMethodStub struct {
	Name  string `yaml:"name"`
	Arity int    `yaml:"arity"`
}

// Load reads and parses path. A missing file is not an error: it returns a
// zero-value Config so a project without hostjs.yaml still runs with
// default (empty) configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}
