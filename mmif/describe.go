package mmif

// Summary is a compact description of a Mmif, suitable for printing.
type Summary struct {
	SpecVersion string            `json:"specVersion"`
	Documents   []DocumentSummary `json:"documents"`
	Views       []ViewSummary     `json:"views"`
}

// DocumentSummary describes one top-level document.
type DocumentSummary struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Location string `json:"location,omitempty"`
}

// ViewSummary describes one view.
type ViewSummary struct {
	ID          string         `json:"id"`
	App         string         `json:"app"`
	Timestamp   string         `json:"timestamp,omitempty"`
	Annotations int            `json:"annotations"`
	Contains    map[string]int `json:"contains"`
	Error       string         `json:"error,omitempty"`
	Warnings    int            `json:"warnings,omitempty"`
}

// Describe summarizes m. ViewSummary.Contains counts the annotations of
// each advertised type.
func Describe(m *Mmif) Summary {
	s := Summary{
		SpecVersion: m.Metadata.Mmif,
		Documents:   make([]DocumentSummary, 0, m.documents.Len()),
		Views:       make([]ViewSummary, 0, m.views.Len()),
	}
	for _, d := range m.documents.All() {
		s.Documents = append(s.Documents, DocumentSummary{ID: d.ID(), Type: d.typ.String(), Location: d.Location()})
	}
	for _, v := range m.views.All() {
		vs := ViewSummary{
			ID:          v.id,
			App:         v.Metadata.App,
			Timestamp:   v.Metadata.RawTimestamp,
			Annotations: v.Len(),
			Contains:    make(map[string]int, v.Metadata.Contains.Len()),
			Warnings:    len(v.Metadata.Warnings),
		}
		if v.HasError() {
			vs.Error = v.Metadata.Error.Message
		}
		for uri, c := range v.Metadata.Contains.entries.All() {
			n := 0
			for _, a := range v.annotations.All() {
				if a.typ.Key() == c.Type.Key() {
					n++
				}
			}
			vs.Contains[uri] = n
		}
		s.Views = append(s.Views, vs)
	}
	return s
}
