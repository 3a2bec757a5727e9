package mmif

import (
	"log/slog"

	"github.com/c360/mmif/vocabulary"
)

// cacheAlignments links the ends of every Alignment annotation in v.
func (m *Mmif) cacheAlignments(v *View) {
	for _, a := range v.annotations.All() {
		if isAlignment(a) {
			m.cacheAlignment(v, a)
		}
	}
}

// cacheAlignment records a back-link on both ends of alignment. Ends that
// do not resolve are skipped; the cache only ever grows.
func (m *Mmif) cacheAlignment(v *View, alignment *Annotation) {
	source, target, ok := m.alignmentEnds(v, alignment)
	if !ok {
		return
	}
	source.addAlignment(alignment, target)
	target.addAlignment(alignment, source)
}

func (m *Mmif) alignmentEnds(v *View, alignment *Annotation) (source, target *Annotation, ok bool) {
	srcRef := alignment.StringProperty("source")
	tgtRef := alignment.StringProperty("target")
	if srcRef == "" || tgtRef == "" {
		return nil, nil, false
	}
	source, err := m.Resolve(srcRef, v)
	if err != nil {
		slog.Default().Debug("alignment source unresolved", "alignment", alignment.LongID(), "source", srcRef, "error", err)
		return nil, nil, false
	}
	target, err = m.Resolve(tgtRef, v)
	if err != nil {
		slog.Default().Debug("alignment target unresolved", "alignment", alignment.LongID(), "target", tgtRef, "error", err)
		return nil, nil, false
	}
	return source, target, true
}

// GetAlignments returns, per view id, the Alignment annotations whose ends
// have types t1 and t2 in either order. Failed views are skipped. A view
// whose contains metadata declares sourceType and targetType is matched on
// those alone.
func (m *Mmif) GetAlignments(t1, t2 vocabulary.Type) map[string][]*Annotation {
	out := make(map[string][]*Annotation)
	for _, v := range m.views.All() {
		if v.HasError() {
			continue
		}
		meta, ok := v.Metadata.Contains.Get(vocabulary.Alignment)
		if !ok {
			continue
		}
		if st, tt, declared := declaredEnds(meta); declared {
			if pairMatches(st, tt, t1, t2) {
				for _, a := range v.annotations.All() {
					if isAlignment(a) {
						out[v.id] = append(out[v.id], a)
					}
				}
			}
			continue
		}
		for _, a := range v.annotations.All() {
			if !isAlignment(a) {
				continue
			}
			source, target, ok := m.alignmentEnds(v, a)
			if !ok {
				continue
			}
			if pairMatches(source.typ, target.typ, t1, t2) {
				out[v.id] = append(out[v.id], a)
			}
		}
	}
	return out
}

func declaredEnds(c *Contain) (source, target vocabulary.Type, ok bool) {
	sv, sok := c.Metadata.Get("sourceType")
	tv, tok := c.Metadata.Get("targetType")
	if !sok || !tok {
		return vocabulary.Type{}, vocabulary.Type{}, false
	}
	ss, _ := sv.Str()
	ts, _ := tv.Str()
	var err error
	if source, err = vocabulary.Parse(ss); err != nil {
		return vocabulary.Type{}, vocabulary.Type{}, false
	}
	if target, err = vocabulary.Parse(ts); err != nil {
		return vocabulary.Type{}, vocabulary.Type{}, false
	}
	return source, target, true
}

func pairMatches(a, b, t1, t2 vocabulary.Type) bool {
	if sameType(a, t1) && sameType(b, t2) {
		return true
	}
	return sameType(a, t2) && sameType(b, t1)
}

// sameType is the version-tolerant comparison used by queries. Strictly
// equal types never produce a version report.
func sameType(a, b vocabulary.Type) bool {
	return a.Equal(b) || a.FuzzyEqual(b)
}
