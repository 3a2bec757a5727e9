package mmif

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/schema"
	"github.com/c360/mmif/vocabulary"
)

type MmifSuite struct {
	suite.Suite
	m *Mmif
}

func TestMmifSuite(t *testing.T) {
	suite.Run(t, new(MmifSuite))
}

func (s *MmifSuite) SetupTest() {
	s.m = newFixture(s.T())
}

func (s *MmifSuite) TestRoundTrip() {
	out, err := s.m.Serialize(false)
	s.Require().NoError(err)

	back, err := FromJSON(out)
	s.Require().NoError(err)
	s.True(s.m.Equal(back))

	again, err := back.Serialize(false)
	s.Require().NoError(err)
	s.Equal(string(out), string(again))

	span, err := back.Resolve("v_0:s1", nil)
	s.Require().NoError(err)
	s.True(span.IsType(vocabulary.Span))
	start, ok := span.Property("start")
	s.Require().True(ok)
	n, _ := start.Int()
	s.Equal(int64(0), n)

	docs := back.GetDocumentsByType(vocabulary.TextDocument)
	s.Equal([]string{"d1"}, ids(docs))
	s.Equal("hello world", docs[0].TextValue())
}

func (s *MmifSuite) TestSerializedShape() {
	out, err := s.m.Serialize(false)
	s.Require().NoError(err)
	s.JSONEq(`{
		"metadata": {"mmif": "http://mmif.clams.ai/1.0.0"},
		"documents": [{
			"@type": "http://mmif.clams.ai/vocabulary/TextDocument/v1",
			"properties": {"id": "d1", "text": {"@value": "hello world", "@language": "en"}}
		}],
		"views": [{
			"id": "v_0",
			"metadata": {
				"timestamp": "2026-01-02T03:04:05Z",
				"app": "http://apps.clams.ai/tokenizer/v1",
				"contains": {"http://mmif.clams.ai/vocabulary/Span/v5": {}}
			},
			"annotations": [{
				"@type": "http://mmif.clams.ai/vocabulary/Span/v5",
				"properties": {"id": "s1", "start": 0, "end": 5, "document": "d1"}
			}]
		}]
	}`, string(out))

	pretty, err := s.m.Serialize(true)
	s.Require().NoError(err)
	s.Contains(string(pretty), "\n  \"documents\"")
	s.JSONEq(string(out), string(pretty))
}

func (s *MmifSuite) TestViewCounter() {
	m := New()
	var got []string
	for range 3 {
		got = append(got, m.NewView().ID())
	}
	s.Equal([]string{"v_0", "v_1", "v_2"}, got)
	s.Require().NoError(m.RemoveView("v_1"))
	s.Equal("v_3", m.NewView().ID(), "removed ids are not reused")

	s.True(errors.Is(m.RemoveView("v_1"), errors.ErrNotFound))
}

func (s *MmifSuite) TestParsedViewIDsAdvanceCounter() {
	src := `{"metadata":{"mmif":"http://mmif.clams.ai/1.0.0"},"documents":[],"views":[` +
		`{"id":"v_5","metadata":{"app":"a","contains":{}},"annotations":[]},` +
		`{"id":"custom","metadata":{"app":"b","contains":{}},"annotations":[]}]}`
	m, err := FromJSON(src)
	s.Require().NoError(err)
	s.Equal("v_6", m.NewView().ID())
}

func (s *MmifSuite) TestAddViewAssignsID() {
	v := NewView("")
	_, err := v.NewAnnotation(vocabulary.TimeFrame, WithID("tf1"))
	s.Require().NoError(err)
	s.Require().NoError(s.m.AddView(v, false))
	s.Equal("v_1", v.ID())
	s.Equal("v_1:tf1", v.Annotations()[0].LongID())

	s.True(errors.Is(s.m.AddView(NewView("v_1"), false), errors.ErrDuplicateID))
	s.True(errors.Is(s.m.AddView(NewView("a:b"), false), errors.ErrMalformedID))
	s.Require().NoError(s.m.AddView(NewView("v_1"), true))

	other := New()
	s.True(errors.Is(other.AddView(v, false), errors.ErrImmutableID))
}

func (s *MmifSuite) TestAddDocument() {
	dup, err := NewTextDocument("d1", "other", "")
	s.Require().NoError(err)
	err = s.m.AddDocument(dup, false)
	s.True(errors.Is(err, errors.ErrDuplicateID))
	s.True(errors.IsInvalid(err))

	d2, err := NewTextDocument("d2", "second", "")
	s.Require().NoError(err)
	s.Require().NoError(s.m.AddDocument(d2, false))
	s.Require().NoError(s.m.AddDocument(dup, true))
	s.Equal([]string{"d1", "d2"}, ids(s.m.Documents()))
	s.Equal("other", s.m.Documents()[0].TextValue())

	s.True(errors.Is(dup.SetID("d3"), errors.ErrImmutableID), "top-level ids are fixed")
}

func (s *MmifSuite) TestLookupErrors() {
	tests := []struct {
		ref  string
		want error
	}{
		{"d9", errors.ErrNotFound},
		{"v_9:s1", errors.ErrNotFound},
		{"v_0:s9", errors.ErrNotFound},
		{"", errors.ErrMalformedID},
		{"v_0:", errors.ErrMalformedID},
		{"a:b:c", errors.ErrMalformedID},
	}
	for _, tt := range tests {
		_, err := s.m.Resolve(tt.ref, nil)
		s.True(errors.Is(err, tt.want), "%q: %v", tt.ref, err)
	}

	_, err := s.m.GetViewByID("v_9")
	s.True(errors.Is(err, errors.ErrNotFound))
	_, err = s.m.GetDocumentByID("v_0:s1")
	s.True(errors.Is(err, errors.ErrNotFound), "a span is not a document")
}

func (s *MmifSuite) TestResolveScope() {
	v, err := s.m.GetViewByID("v_0")
	s.Require().NoError(err)

	a, err := s.m.Resolve("s1", v)
	s.Require().NoError(err)
	s.Equal("v_0:s1", a.LongID())

	_, err = s.m.Resolve("s1", nil)
	s.True(errors.Is(err, errors.ErrNotFound), "short ids need a scope")

	d, err := s.m.GetAnnotation("d1", v)
	s.Require().NoError(err)
	s.True(d.IsDocument(), "short ids fall back to top-level documents")
}

func (s *MmifSuite) TestLookup() {
	got, err := s.m.Lookup("d1")
	s.Require().NoError(err)
	s.IsType(&Document{}, got)

	got, err = s.m.Lookup("v_0")
	s.Require().NoError(err)
	s.IsType(&View{}, got)

	got, err = s.m.Lookup("v_0:s1")
	s.Require().NoError(err)
	s.IsType(&Annotation{}, got)

	clash, err := NewTextDocument("v_0", "confusing", "")
	s.Require().NoError(err)
	s.Require().NoError(s.m.AddDocument(clash, false))
	_, err = s.m.Lookup("v_0")
	s.True(errors.Is(err, errors.ErrDuplicateID))
}

func (s *MmifSuite) TestValidate() {
	findings, err := s.m.Validate()
	s.Require().NoError(err)
	s.Empty(findings)

	out, err := s.m.Serialize(false)
	s.Require().NoError(err)
	_, err = FromJSON(out, WithValidation())
	s.Require().NoError(err)
}

func (s *MmifSuite) TestWithValidationRejects() {
	src := `{"metadata":{"mmif":"http://mmif.clams.ai/1.0.0"},"documents":"nope","views":[]}`
	_, err := FromJSON(src, WithValidation())
	s.Require().Error(err)
	s.True(errors.Is(err, errors.ErrSchemaViolation))

	_, err = FromJSON(src)
	s.True(errors.Is(err, errors.ErrStructural), "without validation the decoder reports it")

	calls := 0
	custom := schema.ValidatorFunc(func([]byte) ([]schema.Error, error) {
		calls++
		return []schema.Error{{Field: "(root)", Description: "rejected"}}, nil
	})
	out, err := s.m.Serialize(false)
	s.Require().NoError(err)
	_, err = FromJSON(out, WithValidation(), WithValidator(custom))
	s.True(errors.Is(err, errors.ErrSchemaViolation))
	s.Equal(1, calls)
}

func (s *MmifSuite) TestFromJSONErrors() {
	tests := []struct {
		name string
		src  any
	}{
		{"nil", nil},
		{"truncated", `{"metadata":`},
		{"missing views", `{"metadata":{"mmif":"x"},"documents":[]}`},
		{"unknown root key", `{"metadata":{"mmif":"x"},"documents":[],"views":[],"extra":1}`},
		{"duplicate documents", `{"metadata":{"mmif":"x"},"documents":[` +
			`{"@type":"http://mmif.clams.ai/vocabulary/TextDocument/v1","properties":{"id":"d1"}},` +
			`{"@type":"http://mmif.clams.ai/vocabulary/TextDocument/v1","properties":{"id":"d1"}}],"views":[]}`},
		{"non-document at top level", `{"metadata":{"mmif":"x"},"documents":[` +
			`{"@type":"http://mmif.clams.ai/vocabulary/Span/v1","properties":{"id":"s1"}}],"views":[]}`},
		{"duplicate views", `{"metadata":{"mmif":"x"},"documents":[],"views":[` +
			`{"id":"v_0","metadata":{"app":"a"},"annotations":[]},` +
			`{"id":"v_0","metadata":{"app":"a"},"annotations":[]}]}`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			_, err := FromJSON(tt.src)
			s.Require().Error(err)
			s.True(errors.Is(err, errors.ErrStructural), err)
		})
	}
}

func (s *MmifSuite) TestFromJSONReader() {
	out, err := s.m.Serialize(true)
	s.Require().NoError(err)
	back, err := FromJSON(strings.NewReader(string(out)))
	s.Require().NoError(err)
	s.True(s.m.Equal(back))
}

func (s *MmifSuite) TestClone() {
	c := s.m.Clone()
	s.True(s.m.Equal(c))

	v, err := c.GetViewByID("v_0")
	s.Require().NoError(err)
	_, err = v.NewAnnotation(vocabulary.TimeFrame)
	s.Require().NoError(err)
	s.False(s.m.Equal(c))

	orig, err := s.m.GetViewByID("v_0")
	s.Require().NoError(err)
	s.Equal(1, orig.Len())
	s.Equal("v_1", c.NewView().ID())
}

type recordingObserver struct {
	codec    []string
	findings []int
}

func (o *recordingObserver) ObserveCodec(entity, op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	o.codec = append(o.codec, entity+"/"+op+"/"+status)
}

func (o *recordingObserver) ObserveSchemaFindings(n int) { o.findings = append(o.findings, n) }

func (s *MmifSuite) TestObserver() {
	obs := &recordingObserver{}
	m, err := FromJSON(`{"metadata":{"mmif":"http://mmif.clams.ai/1.0.0"},"documents":[],"views":[]}`,
		WithObserver(obs), WithValidation())
	s.Require().NoError(err)
	_, err = m.Serialize(false)
	s.Require().NoError(err)
	_, err = FromJSON(`{`, WithObserver(obs))
	s.Require().Error(err)

	s.Equal([]string{"Mmif/decode/ok", "Mmif/encode/ok", "Mmif/decode/error"}, obs.codec)
	s.Equal([]int{0}, obs.findings)
}
