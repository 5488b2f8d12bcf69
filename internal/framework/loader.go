package framework

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed definitions/*.yaml
var definitions embed.FS

// Parse decodes a YAML framework definition. Unknown keys are rejected.
func Parse(data []byte) (*Framework, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode framework definition: %w", err)
	}
	return New(def)
}

// LoadFile reads a framework definition from disk.
func LoadFile(file string) (*Framework, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("read framework file: %w", err)
	}
	return Parse(data)
}

// Builtin returns the embedded sample frameworks keyed by name.
func Builtin() (Registry, error) {
	entries, err := fs.ReadDir(definitions, "definitions")
	if err != nil {
		return nil, err
	}

	registry := make(Registry, len(entries))
	for _, entry := range entries {
		data, err := definitions.ReadFile(path.Join("definitions", entry.Name()))
		if err != nil {
			return nil, err
		}
		f, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		registry[f.Name()] = f
	}

	return registry, nil
}

// Registry maps framework names to frameworks.
type Registry map[string]*Framework

// Names lists the registered frameworks alphabetically.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns ErrFrameworkNotFound for unknown names.
func (r Registry) Get(name string) (*Framework, error) {
	f, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFrameworkNotFound, name)
	}
	return f, nil
}
