package mmif

import (
	"context"
	"fmt"
	"mime"
	"path/filepath"

	"golang.org/x/text/language"

	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

var textShape = model.Shape{
	Entity:   "Text",
	Known:    []string{"@language"},
	Required: []string{"@value"},
}

// Document is an annotation whose type is a document type: a media or text
// artifact with an optional location and, for text documents, a text value.
type Document struct {
	*Annotation

	// root is set while the document is a top-level document.
	root *Mmif
}

// NewDocument creates a detached document. The type must be a registered
// document type.
func NewDocument(t vocabulary.Type, id string) (*Document, error) {
	if !t.IsDocument() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %s is not a document type", errors.ErrInvalidValue, t),
			"Document", "New", "check type")
	}
	a, err := NewAnnotation(t, id)
	if err != nil {
		return nil, err
	}
	return a.asDocument(), nil
}

// NewTextDocument creates a detached TextDocument holding text.
func NewTextDocument(id, text, lang string) (*Document, error) {
	d, err := NewDocument(vocabulary.TextDocument, id)
	if err != nil {
		return nil, err
	}
	if err := d.SetText(text, lang); err != nil {
		return nil, err
	}
	return d, nil
}

// DocumentFromJSON decodes a detached document.
func DocumentFromJSON(src any) (*Document, error) {
	a, err := AnnotationFromJSON(src)
	if err != nil {
		return nil, err
	}
	d, ok := a.AsDocument()
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %s is not a document type", errors.ErrStructural, a.Type()),
			"Document", "Decode", "check type")
	}
	return d, nil
}

// Location returns the location URI, or "".
func (d *Document) Location() string {
	v, _ := d.props.Get("location")
	s, _ := v.Str()
	return s
}

// SetLocation sets the location. A plain path becomes a file URI.
func (d *Document) SetLocation(location string) error {
	if location == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty location", errors.ErrInvalidLocation),
			"Document", "SetLocation", "check location")
	}
	if _, err := docloc.Parse(location); err != nil {
		uri, perr := docloc.FromPath(location)
		if perr != nil {
			return perr
		}
		location = uri
	}
	d.props.Set("location", model.String(location))
	return nil
}

// LocationScheme returns the scheme of the location, or "".
func (d *Document) LocationScheme() string {
	u, err := docloc.Parse(d.Location())
	if err != nil {
		return ""
	}
	return u.Scheme
}

// LocationAddress returns host and path of the location, or "".
func (d *Document) LocationAddress() string {
	u, err := docloc.Parse(d.Location())
	if err != nil {
		return ""
	}
	return docloc.Address(u)
}

// LocationPath returns the path component of the location, whatever the
// scheme. Use ResolveLocation to get a local file.
func (d *Document) LocationPath() string {
	u, err := docloc.Parse(d.Location())
	if err != nil {
		return ""
	}
	if u.Scheme == docloc.FileScheme {
		return filepath.FromSlash(u.Path)
	}
	return u.Path
}

// ResolveLocation resolves the location to a local path through reg, or
// docloc.Default when reg is nil.
func (d *Document) ResolveLocation(ctx context.Context, reg *docloc.Registry) (string, error) {
	loc := d.Location()
	if loc == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: document %q has no location", errors.ErrInvalidLocation, d.LongID()),
			"Document", "ResolveLocation", "read location")
	}
	if reg == nil {
		reg = docloc.Default
	}
	return reg.Resolve(ctx, loc)
}

// TextValue returns the text value, or "".
func (d *Document) TextValue() string {
	return d.textField("@value")
}

// TextLanguage returns the language tag of the text, or "".
func (d *Document) TextLanguage() string {
	return d.textField("@language")
}

func (d *Document) textField(name string) string {
	v, ok := d.props.Get("text")
	if !ok || v.Map() == nil {
		return ""
	}
	f, _ := v.Map().Get(name)
	s, _ := f.Str()
	return s
}

// SetText sets the text value. A non-empty lang must be a BCP 47 tag.
func (d *Document) SetText(value, lang string) error {
	text := model.NewMap()
	text.Set("@value", model.String(value))
	if lang != "" {
		if _, err := language.Parse(lang); err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: language %q: %v", errors.ErrInvalidValue, lang, err),
				"Document", "SetText", "parse language")
		}
		text.Set("@language", model.String(lang))
	}
	d.props.Set("text", model.Object(text))
	return nil
}

// Mime returns the MIME type property, or "".
func (d *Document) Mime() string {
	v, _ := d.props.Get("mime")
	s, _ := v.Str()
	return s
}

// SetMime sets the MIME type. An empty value guesses it from the location's
// extension.
func (d *Document) SetMime(mimeType string) error {
	if mimeType == "" {
		mimeType = mime.TypeByExtension(filepath.Ext(d.LocationAddress()))
	}
	if mimeType == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: unknown mime type", errors.ErrInvalidValue),
			"Document", "SetMime", "guess mime type")
	}
	if _, _, err := mime.ParseMediaType(mimeType); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidValue, err),
			"Document", "SetMime", "parse mime type")
	}
	d.props.Set("mime", model.String(mimeType))
	return nil
}

// textValue checks a text property: a closed {@value, @language} object
// with a string @value. A bare string is accepted as @value. Language tags
// are parsed only when checkLang is set.
func textValue(v model.Value, checkLang bool) (model.Value, error) {
	if s, ok := v.Str(); ok {
		m := model.NewMap()
		m.Set("@value", model.String(s))
		return model.Object(m), nil
	}
	if v.Kind() != model.KindMap {
		return model.Null(), errors.WrapInvalid(fmt.Errorf("%w: text must be an object", errors.ErrInvalidValue),
			"Document", "AddProperty", "check text")
	}
	raw, err := model.Marshal(v)
	if err != nil {
		return model.Null(), err
	}
	td, err := model.DecodeObject(raw, textShape)
	if err != nil {
		return model.Null(), err
	}
	if _, err := td.String("@value"); err != nil {
		return model.Null(), err
	}
	lang, err := td.String("@language")
	if err != nil {
		return model.Null(), err
	}
	if checkLang && lang != "" {
		if _, err := language.Parse(lang); err != nil {
			return model.Null(), errors.WrapInvalid(fmt.Errorf("%w: language %q: %v", errors.ErrInvalidValue, lang, err),
				"Document", "AddProperty", "parse language")
		}
	}
	return v, nil
}
