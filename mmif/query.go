package mmif

import (
	"context"
	"fmt"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

// MatchOption tunes type matching in document queries.
type MatchOption func(*matchConfig)

type matchConfig struct {
	strict bool
}

// Strict requires type versions to match exactly.
func Strict() MatchOption {
	return func(c *matchConfig) { c.strict = true }
}

func (c matchConfig) matches(got, want vocabulary.Type) bool {
	if c.strict {
		return got.Equal(want)
	}
	return sameType(got, want)
}

// GetDocumentsByType returns the documents of type t: top-level documents
// first, then view documents in view order. Failed views are skipped.
func (m *Mmif) GetDocumentsByType(t vocabulary.Type, opts ...MatchOption) []*Document {
	var cfg matchConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	var out []*Document
	for _, d := range m.documents.All() {
		if cfg.matches(d.typ, t) {
			out = append(out, d)
		}
	}
	for _, v := range m.views.All() {
		if v.HasError() {
			continue
		}
		for _, d := range v.GetDocuments() {
			if cfg.matches(d.typ, t) {
				out = append(out, d)
			}
		}
	}
	return out
}

// GetAllViewsContain returns the views advertising every one of types.
// Failed views are skipped.
func (m *Mmif) GetAllViewsContain(types ...vocabulary.Type) []*View {
	if len(types) == 0 {
		return nil
	}
	return m.views.Filter(func(v *View) bool {
		if v.HasError() {
			return false
		}
		for _, t := range types {
			if !v.Metadata.Contains.Has(t) {
				return false
			}
		}
		return true
	})
}

// GetViewsContain is GetAllViewsContain.
func (m *Mmif) GetViewsContain(types ...vocabulary.Type) []*View {
	return m.GetAllViewsContain(types...)
}

// GetViewsContainAny returns the views advertising any of types.
func (m *Mmif) GetViewsContainAny(types ...vocabulary.Type) []*View {
	return m.views.Filter(func(v *View) bool {
		if v.HasError() {
			return false
		}
		for _, t := range types {
			if v.Metadata.Contains.Has(t) {
				return true
			}
		}
		return false
	})
}

// GetViewContains returns the most recent view advertising every one of
// types.
func (m *Mmif) GetViewContains(types ...vocabulary.Type) (*View, bool) {
	views := m.GetAllViewsContain(types...)
	if len(views) == 0 {
		return nil, false
	}
	return views[len(views)-1], true
}

// GetDocumentsByApp returns the documents of every view produced by app.
func (m *Mmif) GetDocumentsByApp(app string) []*Document {
	var out []*Document
	for _, v := range m.views.All() {
		if v.Metadata.App == app && !v.HasError() {
			out = append(out, v.GetDocuments()...)
		}
	}
	return out
}

// GetDocumentsByProperty returns the documents whose property key equals
// value: view documents in view order, then top-level documents.
func (m *Mmif) GetDocumentsByProperty(key string, value any) ([]*Document, error) {
	want, err := model.ValueOf(value)
	if err != nil {
		return nil, err
	}
	match := func(d *Document) bool {
		got, ok := d.GetProperty(key)
		return ok && got.Equal(want)
	}
	var out []*Document
	for _, v := range m.views.All() {
		if v.HasError() {
			continue
		}
		for _, d := range v.GetDocuments() {
			if match(d) {
				out = append(out, d)
			}
		}
	}
	out = append(out, m.documents.Filter(match)...)
	return out, nil
}

// GetDocumentsInView returns the documents of one view.
func (m *Mmif) GetDocumentsInView(viewID string) ([]*Document, error) {
	v, err := m.GetViewByID(viewID)
	if err != nil {
		return nil, err
	}
	return v.GetDocuments(), nil
}

// GetDocumentsLocations maps the ids of top-level documents of type t to
// their resolved local paths. Documents whose location does not resolve
// map to the raw location; documents without one are left out.
func (m *Mmif) GetDocumentsLocations(ctx context.Context, t vocabulary.Type) map[string]string {
	out := make(map[string]string)
	for _, d := range m.documents.All() {
		if !sameType(d.typ, t) || d.Location() == "" {
			continue
		}
		p, err := d.ResolveLocation(ctx, m.resolvers)
		if err != nil {
			p = d.Location()
		}
		out[d.ID()] = p
	}
	return out
}

// GetDocumentLocation resolves the location of the first top-level
// document of type t.
func (m *Mmif) GetDocumentLocation(ctx context.Context, t vocabulary.Type) (string, error) {
	for _, d := range m.documents.All() {
		if sameType(d.typ, t) && d.Location() != "" {
			return d.ResolveLocation(ctx, m.resolvers)
		}
	}
	return "", errors.WrapInvalid(fmt.Errorf("%w: no %s document with a location", errors.ErrNotFound, t.Name),
		"Mmif", "GetDocumentLocation", "lookup")
}

// GetViewsForDocument returns the views anchored to a document: views
// computed from it, and views whose annotations reference it through
// "document", "targets" or an alignment, directly or through other
// anchored annotations.
func (m *Mmif) GetViewsForDocument(docID string) ([]*View, error) {
	doc, err := m.GetDocumentByID(docID)
	if err != nil {
		return nil, err
	}
	key := doc.LongID()

	anchored := map[string]bool{key: true}
	for changed := true; changed; {
		changed = false
		for _, v := range m.views.All() {
			if v.HasError() {
				continue
			}
			for _, a := range v.annotations.All() {
				if anchored[a.LongID()] {
					continue
				}
				refs := m.referencesOf(v, a)
				if !anyAnchored(refs, anchored) {
					continue
				}
				anchored[a.LongID()] = true
				changed = true
				if isAlignment(a) {
					for _, r := range refs {
						anchored[r] = true
					}
				}
			}
		}
	}

	var out []*View
	for _, v := range m.views.All() {
		if v.HasError() {
			continue
		}
		if v.Metadata.Document != "" && m.canonicalRef(v.Metadata.Document, v) == key {
			out = append(out, v)
			continue
		}
		for _, a := range v.annotations.All() {
			if a != doc.Annotation && anchored[a.LongID()] {
				out = append(out, v)
				break
			}
		}
	}
	return out, nil
}

// referencesOf returns the root-wide ids an annotation points at.
func (m *Mmif) referencesOf(v *View, a *Annotation) []string {
	var refs []string
	add := func(val model.Value) {
		if s, ok := val.Str(); ok && s != "" {
			refs = append(refs, m.canonicalRef(s, v))
			return
		}
		for _, s := range val.Strings() {
			refs = append(refs, m.canonicalRef(s, v))
		}
	}
	for _, prop := range []string{"document", "targets", "source", "target"} {
		if val, ok := a.GetProperty(prop); ok {
			add(val)
		}
	}
	return refs
}

func anyAnchored(refs []string, anchored map[string]bool) bool {
	for _, r := range refs {
		if anchored[r] {
			return true
		}
	}
	return false
}

// ViewsWithError returns the failed views.
func (m *Mmif) ViewsWithError() []*View {
	return m.views.Filter((*View).HasError)
}

// ViewsWithWarnings returns the views carrying warnings.
func (m *Mmif) ViewsWithWarnings() []*View {
	return m.views.Filter((*View).HasWarnings)
}

// LastError returns the error of the most recent failed view.
func (m *Mmif) LastError() (*ErrorInfo, bool) {
	for _, v := range m.views.Reversed() {
		if v.HasError() {
			return v.Metadata.Error, true
		}
	}
	return nil, false
}
