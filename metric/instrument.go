package metric

import (
	"github.com/c360/mmif/docloc"
	"github.com/c360/mmif/vocabulary"
)

// Instrument subscribes m to vocabulary version reports and to the
// resolutions of reg (docloc.Default when nil). The returned function stops
// the vocabulary subscription; registry observers stay for its lifetime.
func Instrument(m *Metrics, reg *docloc.Registry) (stop func()) {
	if reg == nil {
		reg = docloc.Default
	}
	reg.Observe(m.RecordResolve)
	return vocabulary.OnVersionMismatch(m.RecordVersionMismatch)
}
