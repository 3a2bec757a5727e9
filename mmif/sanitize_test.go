package mmif

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/schema"
	"github.com/c360/mmif/vocabulary"
)

// withStaleEntry advertises BoundingBox in v_0 without any annotation of it.
func withStaleEntry(t *testing.T) *Mmif {
	t.Helper()
	m := newFixture(t)
	v, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	v.Metadata.Contains.Set(vocabulary.BoundingBox, nil)
	return m
}

func TestSanitize_DropsOnlyStaleEntries(t *testing.T) {
	m := withStaleEntry(t)

	clean, findings, err := m.Sanitize()
	require.NoError(t, err)
	assert.Empty(t, findings)

	v, err := clean.GetViewByID("v_0")
	require.NoError(t, err)
	types := v.Metadata.Contains.Types()
	require.Len(t, types, 1)
	assert.True(t, types[0].Equal(vocabulary.Span))

	orig, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	assert.Equal(t, 2, orig.Metadata.Contains.Len(), "the receiver is untouched by default")
}

func TestSanitize_Idempotent(t *testing.T) {
	m := withStaleEntry(t)
	once, _, err := m.Sanitize()
	require.NoError(t, err)
	twice, _, err := once.Sanitize()
	require.NoError(t, err)

	a, err := once.Serialize(false)
	require.NoError(t, err)
	b, err := twice.Serialize(false)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestSanitize_InPlace(t *testing.T) {
	m := withStaleEntry(t)
	got, _, err := m.Sanitize(InPlace(), WithoutValidation())
	require.NoError(t, err)
	assert.Same(t, m, got)

	v, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	assert.Equal(t, 1, v.Metadata.Contains.Len())
}

func TestSanitize_KeepsOtherVersions(t *testing.T) {
	mismatches := countMismatches(t)
	m := newFixture(t)
	v, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	v.Metadata.Contains.Set(mustType(t, "http://mmif.clams.ai/vocabulary/Span/v1"), nil)

	_, _, err = m.Sanitize(InPlace())
	require.NoError(t, err)
	assert.Equal(t, 2, v.Metadata.Contains.Len(), "an annotation of the type at any version keeps the entry")
	assert.Equal(t, int32(0), mismatches.Load())
}

func TestSanitize_Findings(t *testing.T) {
	reject := schema.ValidatorFunc(func([]byte) ([]schema.Error, error) {
		return []schema.Error{{Field: "views.0", Description: "rejected"}}, nil
	})
	m := New(WithValidator(reject))
	out, findings, err := m.Sanitize()
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Len(t, findings, 1)

	_, findings, err = m.Sanitize(FailOnFindings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaViolation))
	assert.Len(t, findings, 1)

	broken := schema.ValidatorFunc(func([]byte) ([]schema.Error, error) {
		return nil, errors.New("validator unavailable")
	})
	_, _, err = New(WithValidator(broken)).Sanitize()
	assert.Error(t, err)
}
