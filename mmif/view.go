package mmif

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

var (
	viewShape = model.Shape{Entity: "View", Required: []string{"id", "metadata", "annotations"}}

	generatedID = regexp.MustCompile(`^([a-z]+)_(\d+)$`)
)

// View is the output of one app run: metadata plus an ordered list of
// annotations, some of which may be documents.
type View struct {
	id          string
	Metadata    *ViewMetadata
	annotations *model.List[*Annotation]

	// counters holds the last number used per generated id prefix.
	counters map[string]int
	root     *Mmif
}

func annotationKey(a *Annotation) string { return a.ID() }

// NewView creates a detached, empty view. An empty id is assigned when the
// view is added to a root.
func NewView(id string) *View {
	return &View{
		id:          id,
		Metadata:    NewViewMetadata(),
		annotations: model.NewList(annotationKey),
		counters:    make(map[string]int),
	}
}

// ID returns the view id.
func (v *View) ID() string { return v.id }

// Root returns the Mmif the view belongs to, if any.
func (v *View) Root() *Mmif { return v.root }

// Len returns the number of annotations.
func (v *View) Len() int { return v.annotations.Len() }

// Annotations returns the annotations in order.
func (v *View) Annotations() []*Annotation { return v.annotations.Items() }

// AnnotationOption configures View.NewAnnotation.
type AnnotationOption func(*annotationConfig)

type annotationConfig struct {
	id        string
	props     []propertyKV
	overwrite bool
}

type propertyKV struct {
	key   string
	value any
}

// WithID sets the annotation id instead of generating one.
func WithID(id string) AnnotationOption {
	return func(c *annotationConfig) { c.id = id }
}

// WithProperty sets one property.
func WithProperty(key string, value any) AnnotationOption {
	return func(c *annotationConfig) { c.props = append(c.props, propertyKV{key, value}) }
}

// WithProperties sets several properties in key order.
func WithProperties(props map[string]any) AnnotationOption {
	return func(c *annotationConfig) {
		keys := make([]string, 0, len(props))
		for k := range props {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			c.props = append(c.props, propertyKV{k, props[k]})
		}
	}
}

// Overwrite replaces an annotation with the same id instead of failing.
func Overwrite() AnnotationOption {
	return func(c *annotationConfig) { c.overwrite = true }
}

// NewAnnotation creates an annotation of type t and adds it to the view.
// Without WithID a fresh id "<prefix>_<n>" is generated.
func (v *View) NewAnnotation(t vocabulary.Type, opts ...AnnotationOption) (*Annotation, error) {
	var cfg annotationConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	local := ""
	if cfg.id != "" {
		var err error
		if local, err = localID(cfg.id, v.id); err != nil {
			return nil, err
		}
	}
	a, err := NewAnnotation(t, local)
	if err != nil {
		return nil, err
	}
	for _, p := range cfg.props {
		if err := a.AddProperty(p.key, p.value); err != nil {
			return nil, err
		}
	}
	return v.AddAnnotation(a, cfg.overwrite)
}

// AddAnnotation adds a detached annotation, generating an id when it has
// none, and advertises its type in the contains map. An existing id fails
// with errors.ErrDuplicateID unless overwrite is set.
func (v *View) AddAnnotation(a *Annotation, overwrite bool) (*Annotation, error) {
	if a.view != nil && a.view != v {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %q belongs to view %q", errors.ErrImmutableID, a.ID(), a.parent),
			"View", "AddAnnotation", "check owner")
	}
	if a.isTopLevel() {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %q is a top-level document", errors.ErrImmutableID, a.ID()),
			"View", "AddAnnotation", "check owner")
	}
	if err := v.insert(a, overwrite); err != nil {
		return nil, err
	}
	v.Metadata.Contains.NewContain(a.typ, nil)
	if v.root != nil && isAlignment(a) {
		v.root.cacheAlignment(v, a)
	}
	return a, nil
}

func (v *View) insert(a *Annotation, overwrite bool) error {
	original := a.ID()
	id := original
	if id == "" {
		id = v.nextID(a.typ.Prefix())
	} else {
		local, err := localID(id, v.id)
		if err != nil {
			return err
		}
		id = local
	}
	a.props.Set("id", model.String(id))
	if err := v.annotations.Append(a, overwrite); err != nil {
		// a rejected annotation stays as the caller built it
		a.props.Set("id", model.String(original))
		return errors.WrapInvalid(fmt.Errorf("%w: annotation %q in view %q", errors.ErrDuplicateID, id, v.id),
			"View", "AddAnnotation", "insert")
	}
	v.bump(id)
	a.parent = v.id
	a.view = v
	return nil
}

func (v *View) nextID(prefix string) string {
	n := v.counters[prefix]
	for {
		n++
		id := prefix + "_" + strconv.Itoa(n)
		if !v.annotations.Has(id) {
			v.counters[prefix] = n
			return id
		}
	}
}

func (v *View) bump(id string) {
	m := generatedID.FindStringSubmatch(id)
	if m == nil {
		return
	}
	n, err := strconv.Atoi(m[2])
	if err == nil && n > v.counters[m[1]] {
		v.counters[m[1]] = n
	}
}

// NewTextDocument creates a TextDocument in the view.
func (v *View) NewTextDocument(text, lang string, opts ...AnnotationOption) (*Document, error) {
	var cfg annotationConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	d, err := NewTextDocument("", text, lang)
	if err != nil {
		return nil, err
	}
	if cfg.id != "" {
		local, err := localID(cfg.id, v.id)
		if err != nil {
			return nil, err
		}
		d.props.Set("id", model.String(local))
	}
	for _, p := range cfg.props {
		if err := d.AddProperty(p.key, p.value); err != nil {
			return nil, err
		}
	}
	return v.AddDocument(d, cfg.overwrite)
}

// AddDocument adds a detached document to the view.
func (v *View) AddDocument(d *Document, overwrite bool) (*Document, error) {
	if _, err := v.AddAnnotation(d.Annotation, overwrite); err != nil {
		return nil, err
	}
	return d, nil
}

// GetAnnotationByID returns an annotation by local id or by long id naming
// this view.
func (v *View) GetAnnotationByID(id string) (*Annotation, error) {
	local := id
	if viewID, ann, found := strings.Cut(id, IDDelimiter); found {
		if viewID == "" || ann == "" || strings.Contains(ann, IDDelimiter) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrMalformedID, id),
				"View", "GetAnnotationByID", "parse id")
		}
		if viewID != v.id {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: %q is not in view %q", errors.ErrNotFound, id, v.id),
				"View", "GetAnnotationByID", "lookup")
		}
		local = ann
	}
	if local == "" {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: empty id", errors.ErrMalformedID),
			"View", "GetAnnotationByID", "parse id")
	}
	a, ok := v.annotations.Get(local)
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: annotation %q in view %q", errors.ErrNotFound, local, v.id),
			"View", "GetAnnotationByID", "lookup")
	}
	return a, nil
}

// GetDocumentByID returns a document of the view by local or long id.
func (v *View) GetDocumentByID(id string) (*Document, error) {
	a, err := v.GetAnnotationByID(id)
	if err != nil {
		return nil, err
	}
	d, ok := a.AsDocument()
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %q is not a document", errors.ErrNotFound, id),
			"View", "GetDocumentByID", "lookup")
	}
	return d, nil
}

// GetDocuments returns the documents of the view in order.
func (v *View) GetDocuments() []*Document {
	var out []*Document
	for _, a := range v.annotations.All() {
		if d, ok := a.AsDocument(); ok {
			out = append(out, d)
		}
	}
	return out
}

// AnnotationQuery filters View.GetAnnotations. The zero query matches
// everything.
type AnnotationQuery struct {
	// Type matches annotations of this type, at any version unless Strict.
	Type vocabulary.Type
	// Properties must all match, on the annotation or in the view's
	// contains metadata for its type.
	Properties map[string]any
	Strict     bool
}

func (q AnnotationQuery) matchType(a *Annotation) bool {
	switch {
	case q.Type.IsZero():
		return true
	case q.Strict:
		return a.typ.Equal(q.Type)
	case a.typ.Equal(q.Type):
		return true
	default:
		return a.typ.FuzzyEqual(q.Type)
	}
}

// GetAnnotations returns the annotations matching q, in order.
func (v *View) GetAnnotations(q AnnotationQuery) ([]*Annotation, error) {
	want := make(map[string]model.Value, len(q.Properties))
	for k, raw := range q.Properties {
		val, err := model.ValueOf(raw)
		if err != nil {
			return nil, err
		}
		want[k] = val
	}
	var out []*Annotation
	for _, a := range v.annotations.All() {
		if !q.matchType(a) {
			continue
		}
		if matchProperties(a, want) {
			out = append(out, a)
		}
	}
	return out, nil
}

func matchProperties(a *Annotation, want map[string]model.Value) bool {
	for k, w := range want {
		got, ok := a.GetProperty(k)
		if !ok || !got.Equal(w) {
			return false
		}
	}
	return true
}

// HasAnnotationOf reports whether any annotation has type t at any
// version. Version differences are not reported.
func (v *View) HasAnnotationOf(t vocabulary.Type) bool {
	_, ok := v.annotations.Find(func(a *Annotation) bool { return a.typ.Key() == t.Key() })
	return ok
}

// SetError marks the view failed. Its annotations and contains map are
// dropped; consumers must not trust a failed view's contents.
func (v *View) SetError(message, stackTrace string) {
	v.Metadata.Error = &ErrorInfo{Message: message, StackTrace: stackTrace, Extras: model.NewMap()}
	v.Metadata.Contains.Clear()
	v.annotations.Clear()
}

// HasError reports whether the view failed.
func (v *View) HasError() bool { return v.Metadata.Error != nil }

// HasWarnings reports whether the view carries warnings.
func (v *View) HasWarnings() bool { return len(v.Metadata.Warnings) > 0 }

// AddWarnings records non-fatal problems as "<Kind>: <message>", where Kind
// is the error's type name, or "Warning" for plain errors.
func (v *View) AddWarnings(warnings ...error) {
	for _, w := range warnings {
		if w == nil {
			continue
		}
		v.Metadata.Warnings = append(v.Metadata.Warnings, warningKind(w)+": "+w.Error())
	}
}

// AddWarning records a warning with an explicit kind.
func (v *View) AddWarning(kind, message string) {
	if kind == "" {
		kind = "Warning"
	}
	v.Metadata.Warnings = append(v.Metadata.Warnings, kind+": "+message)
}

func warningKind(err error) string {
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.Name()
	if name == "" || !unicode.IsUpper(rune(name[0])) {
		return "Warning"
	}
	return name
}

// AddParameter records a runtime parameter of the producing app.
func (v *View) AddParameter(key string, value any) error {
	if key == "" {
		return errors.WrapInvalid(fmt.Errorf("%w: empty parameter name", errors.ErrInvalidValue),
			"View", "AddParameter", "check key")
	}
	return v.Metadata.Parameters.SetAny(key, value)
}

// GetParameter returns a runtime parameter.
func (v *View) GetParameter(key string) (model.Value, error) {
	val, ok := v.Metadata.Parameters.Get(key)
	if !ok {
		return model.Null(), errors.WrapInvalid(fmt.Errorf("%w: parameter %q in view %q", errors.ErrNotFound, key, v.id),
			"View", "GetParameter", "lookup")
	}
	return val, nil
}

// SetAdditional always fails with errors.ErrUndeclaredProperty: a view
// holds only id, metadata and annotations. App-specific keys belong in
// Metadata.
func (v *View) SetAdditional(key string, value any) error {
	return viewShape.SetAdditional(nil, key, value)
}

// Equal reports strict structural equality.
func (v *View) Equal(other *View) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.id != other.id || !v.Metadata.Equal(other.Metadata) || v.Len() != other.Len() {
		return false
	}
	a, b := v.Annotations(), other.Annotations()
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// MarshalJSON implements json.Marshaler.
func (v *View) MarshalJSON() ([]byte, error) {
	return model.EncodeObject([]model.Field{
		{Name: "id", Value: v.id, Required: true},
		{Name: "metadata", Value: v.Metadata, Required: true},
		{Name: "annotations", Value: v.annotations, Required: true},
	}, nil)
}

// Serialize encodes the view, optionally pretty printed.
func (v *View) Serialize(pretty bool) ([]byte, error) {
	return model.Serialize(v, pretty)
}

// ViewFromJSON decodes a detached view.
func ViewFromJSON(src any) (*View, error) {
	data, err := model.Bytes(src)
	if err != nil {
		return nil, err
	}
	return decodeView(data)
}

func decodeView(data []byte) (*View, error) {
	d, err := model.DecodeObject(data, viewShape)
	if err != nil {
		return nil, err
	}
	id, err := d.String("id")
	if err != nil {
		return nil, err
	}
	if id == "" || strings.Contains(id, IDDelimiter) {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %w: view id %q", errors.ErrStructural, errors.ErrMalformedID, id),
			"View", "Decode", "check id")
	}
	v := NewView(id)
	rawMeta, _ := d.Raw("metadata")
	if v.Metadata, err = decodeViewMetadata(rawMeta); err != nil {
		return nil, err
	}

	rawAnns, _ := d.Raw("annotations")
	decoded := model.NewList(annotationKey)
	if err := model.DecodeList(rawAnns, decoded, decodeAnnotation); err != nil {
		if errors.Is(err, errors.ErrDuplicateID) {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrStructural, err), "View", "Decode", "read annotations")
		}
		return nil, err
	}
	for _, a := range decoded.All() {
		if err := v.insert(a, false); err != nil {
			return nil, errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrStructural, err), "View", "Decode", "read annotations")
		}
	}
	return v, nil
}

func (v *View) clone() *View {
	out := NewView(v.id)
	out.Metadata = v.Metadata.clone()
	for _, a := range v.annotations.All() {
		c := a.clone()
		_ = out.insert(c, false)
	}
	for k, n := range v.counters {
		out.counters[k] = n
	}
	return out
}

func isAlignment(a *Annotation) bool {
	return a.typ.Key() == vocabulary.Alignment.Key()
}
