// Package mmif implements the MMIF object model: a root holding top-level
// documents and an ordered list of views, each view holding the typed
// annotations one app produced.
//
// # Building
//
//	m := mmif.New()
//	doc, _ := mmif.NewTextDocument("d1", "hello world", "en")
//	_ = m.AddDocument(doc, false)
//
//	v := m.NewView()
//	v.Metadata.App = "http://apps.clams.ai/tokenizer/v1"
//	span, _ := v.NewAnnotation(vocabulary.Span,
//	    mmif.WithProperty("start", 0),
//	    mmif.WithProperty("end", 5),
//	    mmif.WithProperty("document", "d1"))
//	fmt.Println(span.LongID()) // v_0:s_1
//
// # Identifiers
//
// Annotation ids are local to their view. Outside the view an annotation is
// named by its long id, "view:local". Lookups accept both forms and fail
// with errors.ErrNotFound when nothing matches and errors.ErrMalformedID
// when the id cannot name anything. Generated view ids are v_0, v_1, ...
// and are never reused, even after RemoveView.
//
// # Type matching
//
// Discovery queries (GetDocumentsByType, GetViewsContain, GetAnnotations,
// IsType, GetAlignments) compare vocabulary types fuzzily: a version
// difference matches and is reported through vocabulary.OnVersionMismatch.
// Identity is strict: contains entries are keyed by the exact type URI, and
// Strict options require equal versions.
//
// # Failed views
//
// SetError marks a view failed and empties it. Queries over the root skip
// failed views; ViewsWithError and LastError report them.
//
// A Mmif is built by one pipeline step at a time and is not safe for
// concurrent mutation.
package mmif
