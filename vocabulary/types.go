package vocabulary

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/c360/mmif/errors"
)

// ClamsBase is the URI prefix of the CLAMS vocabulary.
const ClamsBase = "http://mmif.clams.ai"

var (
	versionPattern = regexp.MustCompile(`^v\d+$`)
	specPattern    = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
)

// Type is a vocabulary type: a category name within a vocabulary plus the
// type version decoded from its URI.
//
// Compare types with Equal (strict) or FuzzyEqual (version tolerant);
// the zero Type names nothing.
type Type struct {
	Base    string
	Name    string
	Version string

	// uri is the text the type was parsed from when it differs from the
	// canonical form, so legacy URIs survive a round trip unchanged.
	uri string
}

// Of returns the current version of a registered type.
func Of(name string) (Type, bool) {
	def, ok := Lookup(name)
	if !ok {
		return Type{}, false
	}
	return Type{Base: def.Base, Name: def.Name, Version: def.Version}, true
}

// Parse decodes a type from its URI. Accepted forms:
//
//	http://mmif.clams.ai/vocabulary/TimeFrame/v5   current CLAMS form
//	http://mmif.clams.ai/0.4.2/vocabulary/TimeFrame legacy CLAMS form
//	TimeFrame                                       bare registered name
//	http://vocab.lappsgrid.org/Token                any other vocabulary
func Parse(s string) (Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Type{}, errors.WrapInvalid(fmt.Errorf("%w: empty type", errors.ErrInvalidValue),
			"vocabulary", "Parse", "parse type")
	}

	if !strings.Contains(s, "/") {
		if t, ok := Of(s); ok {
			return t, nil
		}
		if strings.Contains(s, ":") {
			return Type{}, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrInvalidValue, s),
				"vocabulary", "Parse", "parse type")
		}
		return Type{Name: s}, nil
	}

	if rest, ok := strings.CutPrefix(s, ClamsBase+"/"); ok {
		return parseClams(s, rest)
	}

	i := strings.LastIndexAny(s, "/#")
	if i <= 0 || i == len(s)-1 {
		return Type{}, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrInvalidValue, s),
			"vocabulary", "Parse", "parse type")
	}
	t := Type{Base: s[:i], Name: s[i+1:]}
	if s[i] == '#' {
		t.uri = s
	}
	return t, nil
}

func parseClams(full, rest string) (Type, error) {
	parts := strings.Split(rest, "/")
	malformed := errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrInvalidValue, full),
		"vocabulary", "Parse", "parse CLAMS type")

	switch {
	case len(parts) >= 2 && parts[0] == "vocabulary":
		t := Type{Base: ClamsBase, Name: parts[1]}
		if t.Name == "" || len(parts) > 3 {
			return Type{}, malformed
		}
		if len(parts) == 3 {
			if !versionPattern.MatchString(parts[2]) {
				return Type{}, malformed
			}
			t.Version = parts[2]
		}
		return t, nil

	case len(parts) == 3 && specPattern.MatchString(parts[0]) && parts[1] == "vocabulary" && parts[2] != "":
		return Type{
			Base:    ClamsBase,
			Name:    parts[2],
			Version: legacyVersion(parts[0], parts[2]),
			uri:     full,
		}, nil
	}
	return Type{}, malformed
}

// legacyVersion maps a type named in a pre-1.0 specification URI to the
// type version it corresponds to.
func legacyVersion(specver, name string) string {
	if name == "Annotation" && strings.HasPrefix(specver, "0.4.") {
		switch specver {
		case "0.4.0", "0.4.1":
			return "v1"
		default:
			return "v2"
		}
	}
	return "v1"
}

// MustParse is Parse that panics on error.
func MustParse(s string) Type {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// IsZero reports whether t names nothing.
func (t Type) IsZero() bool {
	return t.Base == "" && t.Name == "" && t.Version == ""
}

// String returns the type URI.
func (t Type) String() string {
	if t.uri != "" {
		return t.uri
	}
	switch {
	case t.Base == "":
		return t.Name
	case t.Base == ClamsBase:
		if t.Version == "" {
			return ClamsBase + "/vocabulary/" + t.Name
		}
		return ClamsBase + "/vocabulary/" + t.Name + "/" + t.Version
	default:
		return t.Base + "/" + t.Name
	}
}

// Key identifies the type regardless of version. Types that are
// FuzzyEqual share a Key.
func (t Type) Key() string {
	if t.Base == "" {
		return t.Name
	}
	return t.Base + "/" + t.Name
}

// Equal reports strict equality: same vocabulary, name and version.
func (t Type) Equal(other Type) bool {
	return t.Base == other.Base && t.Name == other.Name && t.Version == other.Version
}

// FuzzyEqual reports whether both types name the same category in the same
// vocabulary, ignoring versions. A version difference is reported once on
// the version-mismatch channel and does not make the types unequal.
func (t Type) FuzzyEqual(other Type) bool {
	if t.Base != other.Base || t.Name != other.Name {
		return false
	}
	if t.Version != other.Version && t.Version != "" && other.Version != "" {
		reportMismatch(VersionMismatch{Checked: t, Against: other})
	}
	return true
}

// Prefix returns the short prefix used for generated identifiers: the
// upper-case letters of the name, lower-cased (TimeFrame -> tf).
func (t Type) Prefix() string {
	var b strings.Builder
	for _, r := range t.Name {
		if unicode.IsUpper(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	if t.Name == "" {
		return "a"
	}
	return strings.ToLower(t.Name[:1])
}

// Definition returns the registered definition of the type, if any.
func (t Type) Definition() (Definition, bool) {
	def, ok := Lookup(t.Name)
	if !ok || def.Base != t.Base {
		return Definition{}, false
	}
	return def, true
}

// Category returns the registered category of the type.
func (t Type) Category() (Category, bool) {
	if _, ok := t.Definition(); !ok {
		return "", false
	}
	return CategoryOf(t.Name)
}

// IsDocument reports whether the type is a document type.
func (t Type) IsDocument() bool {
	c, ok := t.Category()
	return ok && c == CategoryDocument
}

// IsA reports whether t is ancestor or one of its registered descendants.
// Versions are ignored.
func (t Type) IsA(ancestor Type) bool {
	if t.Base != ancestor.Base {
		return false
	}
	name := t.Name
	for i := 0; name != "" && i < 64; i++ {
		if name == ancestor.Name {
			return true
		}
		def, ok := Lookup(name)
		if !ok {
			return false
		}
		name = def.Parent
	}
	return false
}

// Aliases returns the registered synonyms of prop for this type.
func (t Type) Aliases(prop string) []string {
	def, ok := t.Definition()
	if !ok {
		return nil
	}
	return def.AliasesOf(prop)
}

// MarshalText encodes the type as its URI.
func (t Type) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a type URI.
func (t *Type) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
