package mmif

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/vocabulary"
)

const tokenizerApp = "http://apps.clams.ai/tokenizer/v1"

var fixedTime = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

// newFixture builds a root with TextDocument d1 and view v_0 holding Span
// s1 over "hello".
func newFixture(t *testing.T) *Mmif {
	t.Helper()
	m := New(WithClock(fixedClock))

	d1, err := NewTextDocument("d1", "hello world", "en")
	require.NoError(t, err)
	require.NoError(t, m.AddDocument(d1, false))

	v := m.NewView()
	v.Metadata.App = tokenizerApp
	_, err = v.NewAnnotation(vocabulary.Span,
		WithID("s1"),
		WithProperty("start", 0),
		WithProperty("end", 5),
		WithProperty("document", "d1"))
	require.NoError(t, err)
	return m
}

// countMismatches counts version-mismatch reports until the test ends.
func countMismatches(t *testing.T) *atomic.Int32 {
	t.Helper()
	var n atomic.Int32
	remove := vocabulary.OnVersionMismatch(func(vocabulary.VersionMismatch) { n.Add(1) })
	t.Cleanup(remove)
	return &n
}

func ids[T interface{ ID() string }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID())
	}
	return out
}

func mustType(t *testing.T, uri string) vocabulary.Type {
	t.Helper()
	typ, err := vocabulary.Parse(uri)
	require.NoError(t, err)
	return typ
}
