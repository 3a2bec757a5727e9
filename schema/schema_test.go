package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
)

const validMMIF = `{
  "metadata": {"mmif": "http://mmif.clams.ai/1.0.0"},
  "documents": [
    {"@type": "http://mmif.clams.ai/vocabulary/TextDocument/v1",
     "properties": {"id": "d1", "text": {"@value": "hello world"}}}
  ],
  "views": [
    {"id": "v_0",
     "metadata": {"app": "http://apps.clams.ai/tokenizer/v1", "contains": {}},
     "annotations": [
       {"@type": "http://mmif.clams.ai/vocabulary/Span/v5",
        "properties": {"id": "s1", "start": 0, "end": 5, "document": "d1"}}
     ]}
  ]
}`

func TestDefault_Valid(t *testing.T) {
	findings, err := Default().Validate([]byte(validMMIF))
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestDefault_Findings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
	}{
		{"missing views", func(doc map[string]any) { delete(doc, "views") }},
		{"unknown top-level key", func(doc map[string]any) { doc["extra"] = true }},
		{"bad spec version", func(doc map[string]any) {
			doc["metadata"] = map[string]any{"mmif": "1.0"}
		}},
		{"view without app", func(doc map[string]any) {
			view := doc["views"].([]any)[0].(map[string]any)
			delete(view["metadata"].(map[string]any), "app")
		}},
		{"view without contains, error or warnings", func(doc map[string]any) {
			view := doc["views"].([]any)[0].(map[string]any)
			delete(view["metadata"].(map[string]any), "contains")
		}},
		{"colon in view id", func(doc map[string]any) {
			doc["views"].([]any)[0].(map[string]any)["id"] = "v:0"
		}},
		{"text without value", func(doc map[string]any) {
			d := doc["documents"].([]any)[0].(map[string]any)
			d["properties"].(map[string]any)["text"] = map[string]any{"@language": "en"}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal([]byte(validMMIF), &doc))
			tt.mutate(doc)
			data, err := json.Marshal(doc)
			require.NoError(t, err)

			findings, err := Default().Validate(data)
			require.NoError(t, err)
			assert.NotEmpty(t, findings)
			for _, f := range findings {
				assert.NotEmpty(t, f.Description)
			}
		})
	}
}

func TestDefault_NotJSON(t *testing.T) {
	_, err := Default().Validate([]byte(`{"metadata":`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStructural))
}

func TestNew_InvalidSchema(t *testing.T) {
	_, err := New([]byte(`{"type": 12}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestViolation(t *testing.T) {
	assert.NoError(t, Violation(nil))

	err := Violation([]Error{
		{Field: "views.0.metadata", Description: "app is required"},
		{Field: "(root)", Description: "views is required"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaViolation))
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "views.0.metadata: app is required (and 1 more)")
}

func TestValidatorFunc(t *testing.T) {
	var v Validator = ValidatorFunc(func([]byte) ([]Error, error) {
		return []Error{{Field: "x", Description: "y"}}, nil
	})
	findings, err := v.Validate(nil)
	require.NoError(t, err)
	assert.Equal(t, "x: y", findings[0].String())
}

func TestSource(t *testing.T) {
	src := Source()
	assert.True(t, json.Valid(src))
	src[0] = 'X'
	assert.True(t, json.Valid(Source()), "Source returns a copy")
}
