package mmif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/model"
	"github.com/c360/mmif/vocabulary"
)

func TestAlignmentCache(t *testing.T) {
	m, _ := newPipeline(t)
	tf, err := m.Resolve("v_1:tf_1", nil)
	require.NoError(t, err)
	td, err := m.Resolve("v_1:td_1", nil)
	require.NoError(t, err)
	al, err := m.Resolve("v_1:a_1", nil)
	require.NoError(t, err)

	got, ok := tf.AlignedToBy(al)
	require.True(t, ok)
	assert.Same(t, td, got)
	got, ok = td.AlignedToBy(al)
	require.True(t, ok)
	assert.Same(t, tf, got, "links are symmetric")

	assert.Equal(t, []*Annotation{td}, tf.GetAllAligned())
	assert.Equal(t, []*Annotation{al}, tf.Alignments())

	span, err := m.Resolve("v_0:s1", nil)
	require.NoError(t, err)
	assert.Empty(t, span.GetAllAligned())
}

func TestAlignmentCacheAfterDecode(t *testing.T) {
	m, _ := newPipeline(t)
	out, err := m.Serialize(false)
	require.NoError(t, err)
	back, err := FromJSON(out)
	require.NoError(t, err)

	tf, err := back.Resolve("v_1:tf_1", nil)
	require.NoError(t, err)
	aligned := tf.GetAllAligned()
	require.Len(t, aligned, 1)
	assert.Equal(t, "v_1:td_1", aligned[0].LongID())

	c := back.Clone()
	tf2, err := c.Resolve("v_1:tf_1", nil)
	require.NoError(t, err)
	require.Len(t, tf2.GetAllAligned(), 1)
	assert.NotSame(t, aligned[0], tf2.GetAllAligned()[0], "clones link their own annotations")
}

func TestAlignmentAcrossViews(t *testing.T) {
	m, _ := newPipeline(t)
	v := m.NewView()
	v.Metadata.App = "http://apps.clams.ai/aligner/v1"
	al, err := v.NewAnnotation(vocabulary.Alignment,
		WithProperty("source", "v_0:s1"), WithProperty("target", "v_1:td_1"))
	require.NoError(t, err)
	_, err = v.NewAnnotation(vocabulary.Alignment,
		WithProperty("source", "v_0:s1"), WithProperty("target", "v_9:missing"))
	require.NoError(t, err, "unresolved ends are tolerated")

	span, err := m.Resolve("v_0:s1", nil)
	require.NoError(t, err)
	require.Len(t, span.GetAllAligned(), 1)
	assert.Equal(t, "v_1:td_1", span.GetAllAligned()[0].LongID())
	assert.Equal(t, []*Annotation{al}, span.Alignments())

	top, err := m.Resolve("d1", nil)
	require.NoError(t, err)
	_, ok := top.AlignedToBy(al)
	assert.False(t, ok)
}

func TestGetAlignments(t *testing.T) {
	m, _ := newPipeline(t)

	got := m.GetAlignments(vocabulary.TimeFrame, vocabulary.TextDocument)
	require.Contains(t, got, "v_1")
	assert.Equal(t, []string{"a_1"}, ids(got["v_1"]))

	reversed := m.GetAlignments(vocabulary.TextDocument, vocabulary.TimeFrame)
	assert.Equal(t, got, reversed, "end order does not matter")

	assert.Empty(t, m.GetAlignments(vocabulary.Span, vocabulary.TimeFrame))
}

func TestGetAlignmentsDeclaredEnds(t *testing.T) {
	m := New(WithClock(fixedClock))
	v := m.NewView()
	v.Metadata.App = "http://apps.clams.ai/aligner/v1"
	meta, err := model.MapOf(
		"sourceType", vocabulary.TimePoint.String(),
		"targetType", vocabulary.BoundingBox.String())
	require.NoError(t, err)
	v.Metadata.Contains.Set(vocabulary.Alignment, meta)
	_, err = v.NewAnnotation(vocabulary.Alignment, WithProperty("source", "elsewhere:tp1"), WithProperty("target", "elsewhere:bb1"))
	require.NoError(t, err)

	got := m.GetAlignments(vocabulary.BoundingBox, vocabulary.TimePoint)
	assert.Len(t, got[v.ID()], 1, "declared end types are trusted without resolving")
	assert.Empty(t, m.GetAlignments(vocabulary.TimeFrame, vocabulary.TimePoint))
}
