package vocabulary

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c360/mmif/errors"
)

// Category separates annotation types from document types.
type Category string

const (
	CategoryAnnotation Category = "annotation"
	CategoryDocument   Category = "document"
)

// Definition describes one registered vocabulary type.
type Definition struct {
	// Base is the vocabulary URI prefix; empty means ClamsBase.
	Base    string
	Name    string
	Parent  string
	Version string
	// Category is the explicit category; empty means inherited from Parent.
	Category Category
	// PropertyAliases maps a property name to older synonyms of it, e.g.
	// label -> [frameType] for TimeFrame.
	PropertyAliases map[string][]string
}

// AliasesOf returns the names that are synonyms of prop for this type, in
// both directions of the alias table.
func (d Definition) AliasesOf(prop string) []string {
	var out []string
	if alts, ok := d.PropertyAliases[prop]; ok {
		out = append(out, alts...)
	}
	for canonical, alts := range d.PropertyAliases {
		for _, alt := range alts {
			if alt == prop && canonical != prop {
				out = append(out, canonical)
			}
		}
	}
	return out
}

//go:embed clams.yaml
var builtinYAML []byte

// Global type registry
var (
	registryMu   sync.RWMutex
	typeRegistry = make(map[string]Definition)
	builtinOnce  sync.Once
)

// Option is a functional option for configuring type registration.
type Option func(*Definition)

// WithParent sets the parent type name.
func WithParent(parent string) Option {
	return func(d *Definition) {
		d.Parent = parent
	}
}

// WithVersion sets the current version of the type, e.g. "v5".
func WithVersion(version string) Option {
	return func(d *Definition) {
		d.Version = version
	}
}

// WithCategory sets the category explicitly instead of inheriting it.
func WithCategory(c Category) Option {
	return func(d *Definition) {
		d.Category = c
	}
}

// WithBase places the type under a vocabulary other than CLAMS.
func WithBase(base string) Option {
	return func(d *Definition) {
		d.Base = strings.TrimRight(base, "/")
	}
}

// WithAlias declares synonyms for a property of the type.
//
// Example:
//
//	Register("TimeFrame", WithParent("Interval"), WithAlias("label", "frameType"))
func WithAlias(prop string, synonyms ...string) Option {
	return func(d *Definition) {
		if d.PropertyAliases == nil {
			d.PropertyAliases = make(map[string][]string)
		}
		d.PropertyAliases[prop] = append(d.PropertyAliases[prop], synonyms...)
	}
}

// Register registers a vocabulary type in the global registry. Registering
// an existing name replaces its definition.
func Register(name string, opts ...Option) {
	ensureBuiltin()

	def := Definition{Base: ClamsBase, Name: name}
	for _, opt := range opts {
		opt(&def)
	}

	registryMu.Lock()
	defer registryMu.Unlock()
	typeRegistry[name] = def
}

// Lookup returns the definition registered under name.
func Lookup(name string) (Definition, bool) {
	ensureBuiltin()

	registryMu.RLock()
	defer registryMu.RUnlock()
	def, ok := typeRegistry[name]
	return def, ok
}

// CategoryOf resolves the category of a registered type by walking its
// parents. Unknown names report false.
func CategoryOf(name string) (Category, bool) {
	ensureBuiltin()

	registryMu.RLock()
	defer registryMu.RUnlock()

	seen := make(map[string]struct{})
	for name != "" {
		if _, loop := seen[name]; loop {
			return "", false
		}
		seen[name] = struct{}{}

		def, ok := typeRegistry[name]
		if !ok {
			return "", false
		}
		if def.Category != "" {
			return def.Category, true
		}
		name = def.Parent
	}
	return "", false
}

// Names returns every registered type name, sorted.
func Names() []string {
	ensureBuiltin()

	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(typeRegistry))
	for name := range typeRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// definitionFile is the YAML layout of a vocabulary definition.
type definitionFile struct {
	Base  string `yaml:"base"`
	Types []struct {
		Name     string              `yaml:"name"`
		Parent   string              `yaml:"parent"`
		Version  string              `yaml:"version"`
		Category string              `yaml:"category"`
		Aliases  map[string][]string `yaml:"aliases"`
	} `yaml:"types"`
}

// LoadDefinitions registers every type described by a YAML vocabulary
// definition. Parents must be registered already or defined in the same
// document. Nothing is registered when the document is invalid.
func LoadDefinitions(r io.Reader) error {
	ensureBuiltin()
	return loadDefinitions(r)
}

func loadDefinitions(r io.Reader) error {
	var file definitionFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"vocabulary", "LoadDefinitions", "decode YAML")
	}
	base := strings.TrimRight(file.Base, "/")
	if base == "" {
		base = ClamsBase
	}

	defs := make([]Definition, 0, len(file.Types))
	local := make(map[string]struct{}, len(file.Types))
	for i, t := range file.Types {
		if t.Name == "" {
			return errors.WrapInvalid(fmt.Errorf("%w: type %d has no name", errors.ErrInvalidConfig, i),
				"vocabulary", "LoadDefinitions", "check types")
		}
		cat := Category(t.Category)
		if cat != "" && cat != CategoryAnnotation && cat != CategoryDocument {
			return errors.WrapInvalid(fmt.Errorf("%w: type %s has unknown category %q", errors.ErrInvalidConfig, t.Name, t.Category),
				"vocabulary", "LoadDefinitions", "check types")
		}
		local[t.Name] = struct{}{}
		defs = append(defs, Definition{
			Base:            base,
			Name:            t.Name,
			Parent:          t.Parent,
			Version:         t.Version,
			Category:        cat,
			PropertyAliases: t.Aliases,
		})
	}

	registryMu.Lock()
	defer registryMu.Unlock()

	for _, d := range defs {
		if d.Parent == "" {
			continue
		}
		_, inFile := local[d.Parent]
		_, known := typeRegistry[d.Parent]
		if !inFile && !known {
			return errors.WrapInvalid(fmt.Errorf("%w: type %s has unknown parent %q", errors.ErrInvalidConfig, d.Name, d.Parent),
				"vocabulary", "LoadDefinitions", "check parents")
		}
	}
	for _, d := range defs {
		typeRegistry[d.Name] = d
	}
	return nil
}

// Reset drops every custom registration and reloads the built-in
// vocabulary. This is primarily useful for testing.
func Reset() {
	ensureBuiltin()

	registryMu.Lock()
	typeRegistry = make(map[string]Definition)
	registryMu.Unlock()
	mustLoadBuiltin()
}

func ensureBuiltin() {
	builtinOnce.Do(mustLoadBuiltin)
}

func mustLoadBuiltin() {
	if err := loadDefinitions(bytes.NewReader(builtinYAML)); err != nil {
		panic(fmt.Sprintf("vocabulary: built-in definitions: %v", err))
	}
}
