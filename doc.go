// Package mmif is the root of the MMIF toolkit: an object model, codec and
// command-line tool for the Multi-Media Interchange Format, the JSON format
// in which media-analysis apps exchange documents, views and annotations.
//
// # Layers
//
//	┌─────────────────────────────────────┐
//	│        cmd/mmif                     │  validate, sanitize,
//	│  (CLI and HTTP server)              │  describe, serve
//	└─────────────────────────────────────┘
//	           ↓ uses
//	┌─────────────────────────────────────┐
//	│        mmif                         │  Mmif, View, Annotation,
//	│  (object model, queries, sanitize)  │  Document, alignments
//	└─────────────────────────────────────┘
//	           ↓ built on
//	┌─────────────────────────────────────┐
//	│  model, vocabulary, schema, docloc  │  ordered JSON values,
//	│                                     │  type URIs, validation,
//	│                                     │  document locations
//	└─────────────────────────────────────┘
//
// # Packages
//
// Object model:
//   - mmif: the Mmif root, views, annotations, documents and their queries
//   - model: ordered JSON values and the generic object codec
//   - vocabulary: annotation type URIs, versions and the type registry
//   - schema: JSON Schema validation of serialized MMIF
//   - docloc, docloc/httploc: resolving document locations to local paths
//
// Infrastructure:
//   - errors: classified errors (invalid, fatal, transient)
//   - metric: Prometheus metrics for codec, schema, vocabulary and HTTP
//   - health: component health tracking for the server
//   - pkg/retry: exponential backoff for downloads
//   - pkg/cache: LRU cache of downloaded documents
//   - pkg/worker: worker pool for checking many files
//   - pkg/tlsutil: server and client TLS configuration
//
// # Quick Start
//
//	m, err := mmif.FromJSON(data)
//	if err != nil {
//	    return err
//	}
//	v := m.NewView()
//	v.Metadata.App = "http://apps.clams.ai/tokenizer/v1"
//	a, err := v.NewAnnotation(vocabulary.Span)
//	...
//	out, err := m.Serialize(true)
package mmif
