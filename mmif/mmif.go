package mmif

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/schema"
)

var rootShape = model.Shape{Entity: "Mmif", Required: []string{"metadata", "documents", "views"}}

const viewPrefix = "v_"

// Observer receives codec and validation events. metric.Metrics implements
// it.
type Observer interface {
	ObserveCodec(entity, op string, err error)
	ObserveSchemaFindings(n int)
}

// Mmif is the root of an MMIF graph: metadata, top-level documents and
// views, both in insertion order.
//
// A Mmif is not safe for concurrent mutation.
type Mmif struct {
	Metadata  *Metadata
	documents *model.List[*Document]
	views     *model.List[*View]

	// nextView is the number of the next generated view id. It only grows.
	nextView int

	validate  bool
	validator schema.Validator
	resolvers *docloc.Registry
	clock     func() time.Time
	observer  Observer
}

// Option configures a Mmif.
type Option func(*Mmif)

// WithValidation makes FromJSON validate its input against the schema
// before decoding. Findings fail with errors.ErrSchemaViolation.
func WithValidation() Option {
	return func(m *Mmif) { m.validate = true }
}

// WithValidator replaces the schema validator.
func WithValidator(v schema.Validator) Option {
	return func(m *Mmif) { m.validator = v }
}

// WithResolvers sets the location resolvers used for documents.
func WithResolvers(reg *docloc.Registry) Option {
	return func(m *Mmif) { m.resolvers = reg }
}

// WithClock sets the clock stamping new views.
func WithClock(now func() time.Time) Option {
	return func(m *Mmif) { m.clock = now }
}

// WithObserver reports codec and validation events to o.
func WithObserver(o Observer) Option {
	return func(m *Mmif) { m.observer = o }
}

func documentKey(d *Document) string { return d.ID() }

func viewKey(v *View) string { return v.id }

// New creates an empty Mmif of the current MMIF version.
func New(opts ...Option) *Mmif {
	m := &Mmif{
		Metadata:  &Metadata{Mmif: SpecVersion, Extras: model.NewMap()},
		documents: model.NewList(documentKey),
		views:     model.NewList(viewKey),
		validator: schema.Default(),
		resolvers: docloc.Default,
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// FromJSON decodes a Mmif from src: []byte, string, io.Reader or a parsed
// JSON value.
func FromJSON(src any, opts ...Option) (*Mmif, error) {
	m := New(opts...)
	data, err := model.Bytes(src)
	if err != nil {
		m.observe("Mmif", "decode", err)
		return nil, err
	}
	if m.validate {
		findings, err := m.validator.Validate(data)
		if err == nil {
			m.observeFindings(len(findings))
			err = schema.Violation(findings)
		}
		if err != nil {
			m.observe("Mmif", "decode", err)
			return nil, err
		}
	}
	err = m.decode(data)
	m.observe("Mmif", "decode", err)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mmif) decode(data []byte) error {
	d, err := model.DecodeObject(data, rootShape)
	if err != nil {
		return err
	}
	raw, _ := d.Raw("metadata")
	if m.Metadata, err = decodeMetadata(raw); err != nil {
		return err
	}

	raw, _ = d.Raw("documents")
	docs := model.NewList(documentKey)
	if err := model.DecodeList(raw, docs, decodeTopLevelDocument); err != nil {
		return structural(err, "read documents")
	}
	for _, doc := range docs.All() {
		if err := m.AddDocument(doc, false); err != nil {
			return structural(err, "read documents")
		}
	}

	raw, _ = d.Raw("views")
	views := model.NewList(viewKey)
	if err := model.DecodeList(raw, views, decodeView); err != nil {
		return structural(err, "read views")
	}
	for _, v := range views.All() {
		if err := m.attachView(v, false, false); err != nil {
			return structural(err, "read views")
		}
	}
	for _, v := range m.views.All() {
		m.cacheAlignments(v)
	}
	return nil
}

func decodeTopLevelDocument(data []byte) (*Document, error) {
	a, err := decodeAnnotation(data)
	if err != nil {
		return nil, err
	}
	if !a.IsDocument() {
		return nil, errors.WrapFatal(fmt.Errorf("%w: top-level %s is not a document", errors.ErrStructural, a.Type()),
			"Mmif", "Decode", "read documents")
	}
	return a.asDocument(), nil
}

func structural(err error, action string) error {
	if errors.Is(err, errors.ErrStructural) {
		return err
	}
	return errors.WrapFatal(fmt.Errorf("%w: %w", errors.ErrStructural, err), "Mmif", "Decode", action)
}

// MarshalJSON implements json.Marshaler.
func (m *Mmif) MarshalJSON() ([]byte, error) {
	return model.EncodeObject([]model.Field{
		{Name: "metadata", Value: m.Metadata, Required: true},
		{Name: "documents", Value: m.documents, Required: true},
		{Name: "views", Value: m.views, Required: true},
	}, nil)
}

// Serialize encodes the Mmif, optionally pretty printed.
func (m *Mmif) Serialize(pretty bool) ([]byte, error) {
	b, err := model.Serialize(m, pretty)
	m.observe("Mmif", "encode", err)
	if err != nil {
		return nil, errors.Wrap(err, "Mmif", "Serialize", "encode")
	}
	return b, nil
}

// SetAdditional always fails with errors.ErrUndeclaredProperty: the root
// holds only metadata, documents and views. Extra keys belong in Metadata.
func (m *Mmif) SetAdditional(key string, value any) error {
	return rootShape.SetAdditional(nil, key, value)
}

// Documents returns the top-level documents in order.
func (m *Mmif) Documents() []*Document { return m.documents.Items() }

// Views returns the views in order.
func (m *Mmif) Views() []*View { return m.views.Items() }

// AddDocument adds a top-level document. An existing id fails with
// errors.ErrDuplicateID unless overwrite is set; a replaced document keeps
// its position.
func (m *Mmif) AddDocument(d *Document, overwrite bool) error {
	if d.view != nil || (d.root != nil && d.root != m) {
		return errors.WrapInvalid(fmt.Errorf("%w: document %q is attached elsewhere", errors.ErrImmutableID, d.ID()),
			"Mmif", "AddDocument", "check owner")
	}
	id := d.ID()
	if id == "" || strings.Contains(id, IDDelimiter) {
		return errors.WrapInvalid(fmt.Errorf("%w: document id %q", errors.ErrMalformedID, id),
			"Mmif", "AddDocument", "check id")
	}
	if err := m.documents.Append(d, overwrite); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: document %q", errors.ErrDuplicateID, id),
			"Mmif", "AddDocument", "insert")
	}
	d.root = m
	return nil
}

// AddView adds a view, assigning a fresh id when it has none. An existing
// id fails with errors.ErrDuplicateID unless overwrite is set.
func (m *Mmif) AddView(v *View, overwrite bool) error {
	return m.attachView(v, overwrite, true)
}

func (m *Mmif) attachView(v *View, overwrite, cache bool) error {
	if v.root != nil && v.root != m {
		return errors.WrapInvalid(fmt.Errorf("%w: view %q belongs to another root", errors.ErrImmutableID, v.id),
			"Mmif", "AddView", "check owner")
	}
	if v.id == "" {
		v.id = m.newViewID()
		for _, a := range v.annotations.All() {
			a.parent = v.id
		}
	}
	if strings.Contains(v.id, IDDelimiter) {
		return errors.WrapInvalid(fmt.Errorf("%w: view id %q", errors.ErrMalformedID, v.id),
			"Mmif", "AddView", "check id")
	}
	if err := m.views.Append(v, overwrite); err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: view %q", errors.ErrDuplicateID, v.id),
			"Mmif", "AddView", "insert")
	}
	m.bumpView(v.id)
	v.root = m
	if cache {
		m.cacheAlignments(v)
	}
	return nil
}

// NewView appends an empty view with a fresh id, stamped with the current
// time.
func (m *Mmif) NewView() *View {
	v := NewView(m.newViewID())
	v.Metadata.SetTimestamp(m.clock())
	// The id is fresh, so the insert cannot collide.
	_ = m.attachView(v, false, false)
	return v
}

func (m *Mmif) newViewID() string {
	for {
		id := viewPrefix + strconv.Itoa(m.nextView)
		m.nextView++
		if !m.views.Has(id) {
			return id
		}
	}
}

func (m *Mmif) bumpView(id string) {
	n, err := strconv.Atoi(strings.TrimPrefix(id, viewPrefix))
	if err != nil || !strings.HasPrefix(id, viewPrefix) {
		return
	}
	if n >= m.nextView {
		m.nextView = n + 1
	}
}

// RemoveView drops a view. Its id is never generated again.
func (m *Mmif) RemoveView(id string) error {
	v, ok := m.views.Get(id)
	if !ok {
		return errors.WrapInvalid(fmt.Errorf("%w: view %q", errors.ErrNotFound, id),
			"Mmif", "RemoveView", "lookup")
	}
	m.views.Remove(id)
	v.root = nil
	return nil
}

// GetViewByID returns a view.
func (m *Mmif) GetViewByID(id string) (*View, error) {
	if id == "" || strings.Contains(id, IDDelimiter) {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: view id %q", errors.ErrMalformedID, id),
			"Mmif", "GetViewByID", "parse id")
	}
	v, ok := m.views.Get(id)
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: view %q", errors.ErrNotFound, id),
			"Mmif", "GetViewByID", "lookup")
	}
	return v, nil
}

// GetDocumentByID returns a top-level document by id, or a view document
// by long id.
func (m *Mmif) GetDocumentByID(id string) (*Document, error) {
	viewID, local, err := splitRef(id)
	if err != nil {
		return nil, err
	}
	if viewID != "" {
		v, err := m.GetViewByID(viewID)
		if err != nil {
			return nil, err
		}
		return v.GetDocumentByID(local)
	}
	d, ok := m.documents.Get(local)
	if !ok {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: document %q", errors.ErrNotFound, id),
			"Mmif", "GetDocumentByID", "lookup")
	}
	return d, nil
}

// GetAnnotation is Resolve.
func (m *Mmif) GetAnnotation(ref string, scope *View) (*Annotation, error) {
	return m.Resolve(ref, scope)
}

// Resolve finds the annotation or document a reference names. Long ids
// name a view explicitly; short ids are looked up in scope (if any) and
// then among the top-level documents.
func (m *Mmif) Resolve(ref string, scope *View) (*Annotation, error) {
	viewID, local, err := splitRef(ref)
	if err != nil {
		return nil, err
	}
	if viewID != "" {
		v, err := m.GetViewByID(viewID)
		if err != nil {
			return nil, err
		}
		return v.GetAnnotationByID(local)
	}
	if scope != nil {
		if a, ok := scope.annotations.Get(local); ok {
			return a, nil
		}
	}
	if d, ok := m.documents.Get(local); ok {
		return d.Annotation, nil
	}
	return nil, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrNotFound, ref),
		"Mmif", "Resolve", "lookup")
}

// Lookup returns the *Document, *View or *Annotation an id names. An id
// naming both a top-level document and a view fails with
// errors.ErrDuplicateID.
func (m *Mmif) Lookup(id string) (any, error) {
	viewID, local, err := splitRef(id)
	if err != nil {
		return nil, err
	}
	if viewID != "" {
		return m.Resolve(id, nil)
	}
	d, isDoc := m.documents.Get(local)
	v, isView := m.views.Get(local)
	switch {
	case isDoc && isView:
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %q names a document and a view", errors.ErrDuplicateID, id),
			"Mmif", "Lookup", "lookup")
	case isDoc:
		return d, nil
	case isView:
		return v, nil
	}
	return nil, errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrNotFound, id), "Mmif", "Lookup", "lookup")
}

// splitRef splits "view:local" or "local". Empty parts or more than one
// delimiter fail with errors.ErrMalformedID.
func splitRef(ref string) (viewID, local string, err error) {
	parts := strings.Split(ref, IDDelimiter)
	switch {
	case len(parts) == 1 && parts[0] != "":
		return "", parts[0], nil
	case len(parts) == 2 && parts[0] != "" && parts[1] != "":
		return parts[0], parts[1], nil
	}
	return "", "", errors.WrapInvalid(fmt.Errorf("%w: %q", errors.ErrMalformedID, ref),
		"Mmif", "Resolve", "parse id")
}

// canonicalRef returns the root-wide form of a reference made from view
// scope: long ids unchanged, short ids of scope annotations made long,
// anything else as written.
func (m *Mmif) canonicalRef(ref string, scope *View) string {
	if strings.Contains(ref, IDDelimiter) || scope == nil {
		return ref
	}
	if scope.annotations.Has(ref) {
		return scope.id + IDDelimiter + ref
	}
	return ref
}

// Equal reports strict structural equality of two graphs.
func (m *Mmif) Equal(other *Mmif) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.Metadata.Mmif != other.Metadata.Mmif || !m.Metadata.Extras.Equal(other.Metadata.Extras) {
		return false
	}
	if m.documents.Len() != other.documents.Len() || m.views.Len() != other.views.Len() {
		return false
	}
	da, db := m.Documents(), other.Documents()
	for i := range da {
		if !da[i].Equal(db[i].Annotation) {
			return false
		}
	}
	va, vb := m.Views(), other.Views()
	for i := range va {
		if !va[i].Equal(vb[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy sharing the options of m.
func (m *Mmif) Clone() *Mmif {
	out := &Mmif{
		Metadata:  &Metadata{Mmif: m.Metadata.Mmif, Extras: m.Metadata.Extras.Clone()},
		documents: model.NewList(documentKey),
		views:     model.NewList(viewKey),
		nextView:  m.nextView,
		validate:  m.validate,
		validator: m.validator,
		resolvers: m.resolvers,
		clock:     m.clock,
		observer:  m.observer,
	}
	for _, d := range m.documents.All() {
		_ = out.AddDocument(d.clone().asDocument(), false)
	}
	for _, v := range m.views.All() {
		_ = out.attachView(v.clone(), false, false)
	}
	for _, v := range out.views.All() {
		out.cacheAlignments(v)
	}
	return out
}

func (m *Mmif) observe(entity, op string, err error) {
	if m.observer != nil {
		m.observer.ObserveCodec(entity, op, err)
	}
}

func (m *Mmif) observeFindings(n int) {
	if m.observer != nil {
		m.observer.ObserveSchemaFindings(n)
	}
}
