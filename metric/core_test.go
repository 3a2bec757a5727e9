package metric

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/errors"
	"github.com/c360/mmif/mmif"
	"github.com/c360/mmif/vocabulary"
)

func TestMetrics_ObserveCodec(t *testing.T) {
	m := NewMetrics()

	m.ObserveCodec("Mmif", "decode", nil)
	m.ObserveCodec("Mmif", "decode", errors.WrapFatal(errors.ErrStructural, "Mmif", "Decode", "parse"))
	m.ObserveCodec("Mmif", "decode", errors.WrapInvalid(errors.ErrSchemaViolation, "schema", "Validate", "check"))
	m.ObserveCodec("Mmif", "encode", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodecOperations.WithLabelValues("Mmif", "decode", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodecOperations.WithLabelValues("Mmif", "decode", "fatal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodecOperations.WithLabelValues("Mmif", "decode", "invalid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CodecOperations.WithLabelValues("Mmif", "encode", "ok")))
}

func TestMetrics_ObserveSchemaFindings(t *testing.T) {
	m := NewMetrics()
	m.ObserveSchemaFindings(0)
	m.ObserveSchemaFindings(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SchemaFindings))
}

func TestMetrics_RecordRequest(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/validate", 0, 10*time.Millisecond)
	m.RecordRequest("/validate", http.StatusUnprocessableEntity, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/validate", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/validate", "422")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestInstrument(t *testing.T) {
	m := NewMetrics()
	reg := docloc.NewRegistry()
	stop := Instrument(m, reg)
	t.Cleanup(stop)

	_, err := reg.Resolve(context.Background(), "s3://bucket/a.wav")
	require.Error(t, err)
	_, err = reg.Resolve(context.Background(), "file:///tmp/a.wav")
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocationResolves.WithLabelValues("s3", "fatal")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LocationResolves.WithLabelValues("file", "ok")))

	older, err := vocabulary.Parse("http://mmif.clams.ai/vocabulary/TimeFrame/v1")
	require.NoError(t, err)
	assert.True(t, vocabulary.TimeFrame.FuzzyEqual(older))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionMismatches.WithLabelValues("TimeFrame")))

	stop()
	vocabulary.TimeFrame.FuzzyEqual(older)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.VersionMismatches.WithLabelValues("TimeFrame")), "stopped")
}

func TestMetrics_AsMmifObserver(t *testing.T) {
	registry := NewMetricsRegistry()
	core := registry.CoreMetrics()

	doc := mmif.New(mmif.WithObserver(core))
	out, err := doc.Serialize(false)
	require.NoError(t, err)
	_, err = mmif.FromJSON(out, mmif.WithObserver(core), mmif.WithValidation())
	require.NoError(t, err)
	_, err = mmif.FromJSON(`{"metadata":`, mmif.WithObserver(core))
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(core.CodecOperations.WithLabelValues("Mmif", "encode", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.CodecOperations.WithLabelValues("Mmif", "decode", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(core.CodecOperations.WithLabelValues("Mmif", "decode", "fatal")))

	rec := httptest.NewRecorder()
	registry.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `mmif_codec_operations_total{entity="Mmif",op="decode",status="fatal"} 1`)
}
