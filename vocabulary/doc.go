// Package vocabulary provides the vocabulary types that classify MMIF
// annotations and documents.
//
// # Types
//
// A Type names a category in a vocabulary together with the version found in
// its URI:
//
//	http://mmif.clams.ai/vocabulary/TimeFrame/v5
//
// Pre-1.0 URIs that carry the specification version instead
// (http://mmif.clams.ai/0.4.2/vocabulary/TimeFrame) are mapped to type
// versions through a compatibility table and serialize back unchanged.
// Types from other vocabularies, such as http://vocab.lappsgrid.org/Token,
// keep their base and name and carry no version.
//
// # Equality
//
// Equal is strict and compares vocabulary, name and version. FuzzyEqual
// ignores the version but reports every masked difference on the
// version-mismatch channel:
//
//	remove := vocabulary.OnVersionMismatch(func(m vocabulary.VersionMismatch) {
//	    log.Println(m)
//	})
//	defer remove()
//
// Key returns the version-free identity shared by fuzzy-equal types.
//
// # Registry
//
// Known types live in a registry loaded from an embedded YAML definition
// (clams.yaml). Each entry records the parent type, the current version, an
// optional category and a property alias table (a TimeFrame "label" was once
// called "frameType"). Additional vocabularies are registered with
// LoadDefinitions or, one type at a time, with functional options:
//
//	vocabulary.Register("Sentence",
//	    vocabulary.WithParent("Span"),
//	    vocabulary.WithVersion("v1"))
//
// The registry is safe for concurrent use.
package vocabulary
