package mmif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/vocabulary"
)

func TestDescribe(t *testing.T) {
	m, video := newPipeline(t)
	v0, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	v0.Metadata.Contains.Set(vocabulary.BoundingBox, nil)

	s := Describe(m)
	assert.Equal(t, SpecVersion, s.SpecVersion)

	require.Len(t, s.Documents, 2)
	assert.Equal(t, DocumentSummary{ID: "d1", Type: vocabulary.TextDocument.String()}, s.Documents[0])
	assert.Equal(t, "vd1", s.Documents[1].ID)
	assert.Contains(t, s.Documents[1].Location, video)

	require.Len(t, s.Views, 3)
	assert.Equal(t, ViewSummary{
		ID:          "v_0",
		App:         tokenizerApp,
		Timestamp:   "2026-01-02T03:04:05Z",
		Annotations: 1,
		Contains: map[string]int{
			vocabulary.Span.String():        1,
			vocabulary.BoundingBox.String(): 0,
		},
	}, s.Views[0])
	assert.Equal(t, 3, s.Views[1].Annotations)
	assert.Equal(t, "out of memory", s.Views[2].Error)
}
