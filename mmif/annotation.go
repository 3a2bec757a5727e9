package mmif

import (
	"fmt"
	"slices"
	"strings"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

// IDDelimiter joins a view id and a local id into a long id.
const IDDelimiter = ":"

var annotationShape = model.Shape{
	Entity:   "Annotation",
	Required: []string{"@type", "properties"},
	Open:     true,
}

// Annotation is one unit of analysis output: a vocabulary type plus an open
// property map that always carries the local "id".
//
// An annotation added to a view keeps the view's id and a lookup pointer
// to it. Neither is serialized.
type Annotation struct {
	typ    vocabulary.Type
	props  *model.Map
	extras *model.Map

	parent string
	view   *View

	aligned []alignmentLink
	doc     *Document
}

type alignmentLink struct {
	alignment   *Annotation
	counterpart *Annotation
}

// NewAnnotation creates a detached annotation. An empty id is allowed; the
// view assigns one when the annotation is added.
func NewAnnotation(t vocabulary.Type, id string) (*Annotation, error) {
	if t.IsZero() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: annotation needs a type", errors.ErrInvalidValue),
			"Annotation", "New", "check type")
	}
	a := &Annotation{typ: t, props: model.NewMap(), extras: model.NewMap()}
	a.props.Set("id", model.String(""))
	if id != "" {
		if err := a.SetID(id); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Type returns the vocabulary type.
func (a *Annotation) Type() vocabulary.Type { return a.typ }

// ID returns the local identifier.
func (a *Annotation) ID() string {
	v, _ := a.props.Get("id")
	s, _ := v.Str()
	return s
}

// LongID returns the identifier as referenced from outside the owning view:
// "view:local". Top-level documents have no view and keep their local id.
func (a *Annotation) LongID() string {
	id := a.ID()
	if a.parent == "" || strings.Contains(id, IDDelimiter) {
		return id
	}
	return a.parent + IDDelimiter + id
}

// Parent returns the owning view's id, or "" for top-level documents and
// detached annotations.
func (a *Annotation) Parent() string { return a.parent }

// View returns the owning view, if any.
func (a *Annotation) View() *View { return a.view }

// SetID sets the local identifier. A long id naming the owning view is
// shortened; any other delimiter fails with errors.ErrMalformedID. Attached
// annotations keep their id and fail with errors.ErrImmutableID.
func (a *Annotation) SetID(id string) error {
	if a.view != nil || a.isTopLevel() {
		return errors.WrapInvalid(fmt.Errorf("%w: %q is attached", errors.ErrImmutableID, a.ID()),
			"Annotation", "SetID", "check attachment")
	}
	local, err := localID(id, a.parent)
	if err != nil {
		return err
	}
	a.props.Set("id", model.String(local))
	return nil
}

func (a *Annotation) isTopLevel() bool {
	return a.doc != nil && a.doc.root != nil
}

// localID validates a local identifier, shortening "view:local" when view
// is the owner.
func localID(id, view string) (string, error) {
	if id == "" {
		return "", errors.WrapInvalid(fmt.Errorf("%w: empty id", errors.ErrMalformedID),
			"Annotation", "SetID", "check id")
	}
	prefix, local, found := strings.Cut(id, IDDelimiter)
	if !found {
		return id, nil
	}
	if view != "" && prefix == view && local != "" && !strings.Contains(local, IDDelimiter) {
		return local, nil
	}
	return "", errors.WrapInvalid(fmt.Errorf("%w: %q contains %q", errors.ErrMalformedID, id, IDDelimiter),
		"Annotation", "SetID", "check id")
}

// Properties returns the property map. Use AddProperty to change it.
func (a *Annotation) Properties() *model.Map { return a.props }

// Property returns one of the annotation's own properties.
func (a *Annotation) Property(key string) (model.Value, bool) {
	return a.props.Get(key)
}

// AddProperty sets a property, overwriting an existing one. Reserved names
// and "id" fail with errors.ErrReservedName; values are converted with
// model.ValueOf.
func (a *Annotation) AddProperty(key string, value any) error {
	if key == "id" || model.IsReserved(key) {
		return errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrReservedName, key),
			"Annotation", "AddProperty", "check key")
	}
	if key == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty property name", errors.ErrInvalidValue),
			"Annotation", "AddProperty", "check key")
	}
	v, err := model.ValueOf(value)
	if err != nil {
		return err
	}
	if a.IsDocument() {
		switch key {
		case "text":
			if v, err = textValue(v, true); err != nil {
				return err
			}
		case "location":
			s, ok := v.Str()
			if !ok {
				return errors.WrapInvalid(fmt.Errorf("%w: location must be a string", errors.ErrInvalidValue),
					"Document", "AddProperty", "check location")
			}
			return a.asDocument().SetLocation(s)
		}
	}
	a.props.Set(key, v)
	return nil
}

// GetProperty looks a property up on the annotation, then under its
// registered aliases, then in the owning view's contains metadata for the
// annotation's type.
func (a *Annotation) GetProperty(key string) (model.Value, bool) {
	names := append([]string{key}, a.typ.Aliases(key)...)
	for _, n := range names {
		if v, ok := a.props.Get(n); ok {
			return v, true
		}
	}
	if a.view == nil {
		return model.Null(), false
	}
	c, ok := a.view.Metadata.Contains.lookup(a.typ)
	if !ok {
		return model.Null(), false
	}
	for _, n := range names {
		if v, ok := c.Metadata.Get(n); ok {
			return v, true
		}
	}
	return model.Null(), false
}

// StringProperty returns GetProperty as a string; non-strings yield "".
func (a *Annotation) StringProperty(key string) string {
	v, _ := a.GetProperty(key)
	s, _ := v.Str()
	return s
}

// Extras returns the top-level keys other than @type and properties.
func (a *Annotation) Extras() *model.Map { return a.extras }

// SetAdditional sets a top-level key next to @type and properties.
func (a *Annotation) SetAdditional(key string, value any) error {
	return annotationShape.SetAdditional(a.extras, key, value)
}

// IsDocument reports whether the annotation's type is a document type.
func (a *Annotation) IsDocument() bool { return a.typ.IsDocument() }

// IsType reports whether the annotation has the candidate type, ignoring
// versions. The candidate is a vocabulary.Type or a type URI string.
func (a *Annotation) IsType(candidate any) bool {
	var t vocabulary.Type
	switch c := candidate.(type) {
	case vocabulary.Type:
		t = c
	case string:
		parsed, err := vocabulary.Parse(c)
		if err != nil {
			return false
		}
		t = parsed
	default:
		return false
	}
	return a.typ.FuzzyEqual(t)
}

// AsDocument returns the document view of the annotation. The same
// *Document is returned on every call.
func (a *Annotation) AsDocument() (*Document, bool) {
	if !a.IsDocument() {
		return nil, false
	}
	return a.asDocument(), true
}

func (a *Annotation) asDocument() *Document {
	if a.doc == nil {
		a.doc = &Document{Annotation: a}
	}
	return a.doc
}

// AlignedToBy returns the annotation on the other end of alignment.
func (a *Annotation) AlignedToBy(alignment *Annotation) (*Annotation, bool) {
	for _, l := range a.aligned {
		if l.alignment == alignment {
			return l.counterpart, true
		}
	}
	return nil, false
}

// GetAllAligned returns every annotation aligned to this one, in the order
// the alignments were cached.
func (a *Annotation) GetAllAligned() []*Annotation {
	out := make([]*Annotation, 0, len(a.aligned))
	for _, l := range a.aligned {
		if !slices.Contains(out, l.counterpart) {
			out = append(out, l.counterpart)
		}
	}
	return out
}

// Alignments returns the cached alignment annotations linking this one.
func (a *Annotation) Alignments() []*Annotation {
	out := make([]*Annotation, 0, len(a.aligned))
	for _, l := range a.aligned {
		out = append(out, l.alignment)
	}
	return out
}

func (a *Annotation) addAlignment(alignment, counterpart *Annotation) {
	for _, l := range a.aligned {
		if l.alignment == alignment {
			return
		}
	}
	a.aligned = append(a.aligned, alignmentLink{alignment: alignment, counterpart: counterpart})
}

// Equal reports strict structural equality: same type, properties and
// extras, in order.
func (a *Annotation) Equal(other *Annotation) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.typ.Equal(other.typ) && a.typ.String() == other.typ.String() &&
		a.props.Equal(other.props) && a.extras.Equal(other.extras)
}

// MarshalJSON implements json.Marshaler.
func (a *Annotation) MarshalJSON() ([]byte, error) {
	return model.EncodeObject([]model.Field{
		{Name: "@type", Value: a.typ, Required: true},
		{Name: "properties", Value: a.props, Required: true},
	}, a.extras)
}

// Serialize encodes the annotation, optionally pretty printed.
func (a *Annotation) Serialize(pretty bool) ([]byte, error) {
	return model.Serialize(a, pretty)
}

// AnnotationFromJSON decodes a detached annotation.
func AnnotationFromJSON(src any) (*Annotation, error) {
	data, err := model.Bytes(src)
	if err != nil {
		return nil, err
	}
	return decodeAnnotation(data)
}

func decodeAnnotation(data []byte) (*Annotation, error) {
	d, err := model.DecodeObject(data, annotationShape)
	if err != nil {
		return nil, err
	}
	raw, err := d.String("@type")
	if err != nil {
		return nil, err
	}
	t, err := vocabulary.Parse(raw)
	if err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStructural, err),
			"Annotation", "Decode", "parse @type")
	}
	props, err := d.Map("properties")
	if err != nil {
		return nil, err
	}
	idv, ok := props.Get("id")
	if !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: properties missing required attribute %q", errors.ErrStructural, "id"),
			"Annotation", "Decode", "check id")
	}
	if _, ok := idv.Str(); !ok {
		return nil, errors.WrapFatal(fmt.Errorf("%w: id must be a string", errors.ErrStructural),
			"Annotation", "Decode", "check id")
	}
	if t.IsDocument() {
		if tv, ok := props.Get("text"); ok {
			if _, err := textValue(tv, false); err != nil {
				return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrStructural, err),
					"Document", "Decode", "check text")
			}
		}
	}
	return &Annotation{typ: t, props: props, extras: d.Extras}, nil
}

// clone deep-copies the serialized state of the annotation, detached.
func (a *Annotation) clone() *Annotation {
	return &Annotation{typ: a.typ, props: a.props.Clone(), extras: a.extras.Clone()}
}
