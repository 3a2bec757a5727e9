package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/mmif"
	"github.com/c360/mmif/vocabulary"
)

const sampleMMIF = `{"metadata":{"mmif":"http://mmif.clams.ai/1.0.0"},` +
	`"documents":[{"@type":"http://mmif.clams.ai/vocabulary/TextDocument/v1","properties":{"id":"d1","text":{"@value":"hello world"}}}],` +
	`"views":[{"id":"v_0","metadata":{"app":"http://apps.clams.ai/tokenizer/v1","contains":{` +
	`"http://mmif.clams.ai/vocabulary/Span/v5":{},"http://mmif.clams.ai/vocabulary/BoundingBox/v4":{}}},` +
	`"annotations":[{"@type":"http://mmif.clams.ai/vocabulary/Span/v5","properties":{"id":"s1","start":0,"end":5,"document":"d1"}}]}]}`

func testGlobals(t *testing.T) (*Globals, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &Globals{
		LogLevel:    "error",
		LogFormat:   "json",
		HTTPTimeout: time.Second,
		HTTPRetries: 1,
		HTTPCache:   8,
		stdout:      &out,
		stderr:      &bytes.Buffer{},
	}, &out
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestParseFlags(t *testing.T) {
	t.Setenv("MMIF_LOG_FORMAT", "text")
	t.Setenv("MMIF_ADDR", ":9999")

	var cli CLI
	parser, err := kong.New(&cli, kong.Name(appName), kong.Exit(func(int) {}))
	require.NoError(t, err)

	ctx, err := parser.Parse([]string{"--log-level", "debug", "serve"})
	require.NoError(t, err)
	assert.Equal(t, "serve", ctx.Command())
	assert.Equal(t, "debug", cli.LogLevel)
	assert.Equal(t, "text", cli.LogFormat)
	assert.Equal(t, ":9999", cli.Serve.Addr)
	assert.Equal(t, 30*time.Second, cli.HTTPTimeout)

	_, err = parser.Parse([]string{"serve", "--tls-min-version", "1.3", "--tls-allowed-cn", "ingest"})
	require.NoError(t, err)
	assert.Equal(t, "1.3", cli.Serve.TLS.MinVersion)
	assert.Equal(t, []string{"ingest"}, cli.Serve.TLS.AllowedCN)
	assert.False(t, cli.Serve.TLS.config().Enabled())

	_, err = parser.Parse([]string{"--log-level", "loud", "version"})
	assert.Error(t, err)
}

func TestValidateCmd(t *testing.T) {
	g, out := testGlobals(t)
	good := writeFile(t, "good.json", sampleMMIF)

	require.NoError(t, (&ValidateCmd{Files: []string{good}}).Run(g))
	assert.Equal(t, good+": ok\n", out.String())

	out.Reset()
	bad := writeFile(t, "bad.json", `{"metadata":{"mmif":"1.0"},"documents":[],"views":[]}`)
	err := (&ValidateCmd{Files: []string{good, bad}, JSON: true}).Run(g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSchemaViolation))
	assert.Contains(t, out.String(), `"valid": false`)
	assert.Contains(t, out.String(), "metadata.mmif")
}

func TestValidateCmd_Stdin(t *testing.T) {
	g, out := testGlobals(t)
	g.stdin = strings.NewReader(`{"metadata":`)

	err := (&ValidateCmd{}).Run(g)
	require.Error(t, err)
	assert.Contains(t, out.String(), "-: ")
}

func TestSanitizeCmd_InPlace(t *testing.T) {
	g, _ := testGlobals(t)
	p := writeFile(t, "in.json", sampleMMIF)

	require.NoError(t, (&SanitizeCmd{File: p, InPlace: true}).Run(g))

	data, err := os.ReadFile(p)
	require.NoError(t, err)
	m, err := mmif.FromJSON(data)
	require.NoError(t, err)
	v, err := m.GetViewByID("v_0")
	require.NoError(t, err)
	assert.True(t, v.Metadata.Contains.Has(vocabulary.Span))
	assert.False(t, v.Metadata.Contains.Has(vocabulary.BoundingBox))

	err = (&SanitizeCmd{InPlace: true}).Run(g)
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestSanitizeCmd_Stdout(t *testing.T) {
	g, out := testGlobals(t)
	g.stdin = strings.NewReader(sampleMMIF)

	require.NoError(t, (&SanitizeCmd{Pretty: true}).Run(g))
	assert.Contains(t, out.String(), "\n  \"views\"")
	assert.NotContains(t, out.String(), "BoundingBox")
}

func TestDescribeCmd(t *testing.T) {
	g, out := testGlobals(t)
	p := writeFile(t, "in.json", sampleMMIF)

	require.NoError(t, (&DescribeCmd{File: p, Compact: true}).Run(g))
	assert.Contains(t, out.String(), `"id":"v_0"`)
	assert.Contains(t, out.String(), `"http://mmif.clams.ai/vocabulary/BoundingBox/v4":0`)
}

func TestVocabularyFlag(t *testing.T) {
	t.Cleanup(vocabulary.Reset)
	g, _ := testGlobals(t)
	g.Vocabulary = []string{writeFile(t, "extra.yaml", `
base: http://example.org/vocab
types:
  - name: Shot
    parent: TimeFrame
    version: v1
`)}

	e, err := g.setup()
	require.NoError(t, err)
	defer e.stop()

	_, ok := vocabulary.Lookup("Shot")
	assert.True(t, ok)

	g.Vocabulary = []string{filepath.Join(t.TempDir(), "missing.yaml")}
	_, err = g.setup()
	assert.True(t, errors.Is(err, errors.ErrInvalidConfig))
}

func TestVersionCmd(t *testing.T) {
	g, out := testGlobals(t)
	require.NoError(t, (&VersionCmd{}).Run(g))
	assert.True(t, strings.HasPrefix(out.String(), "mmif version "+Version))
}

func TestValidateCmd_ConcurrentKeepsOrder(t *testing.T) {
	g, out := testGlobals(t)
	var files []string
	for _, name := range []string{"a.json", "b.json", "c.json", "d.json"} {
		files = append(files, writeFile(t, name, sampleMMIF))
	}
	files = append(files, filepath.Join(t.TempDir(), "missing.json"))

	err := (&ValidateCmd{Files: files, Jobs: 2}).Run(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 5 inputs invalid")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 5)
	for i, f := range files[:4] {
		assert.Equal(t, f+": ok", lines[i])
	}
	assert.True(t, strings.HasPrefix(lines[4], files[4]+": cli.read: read "))
}
