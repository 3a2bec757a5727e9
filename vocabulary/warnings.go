package vocabulary

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"
)

// VersionMismatch is reported whenever a fuzzy comparison matches two
// types whose versions differ.
type VersionMismatch struct {
	Checked Type
	Against Type
}

// String describes the mismatch.
func (m VersionMismatch) String() string {
	return fmt.Sprintf("%s: version %s compared against %s", m.Checked.Name, m.Checked.Version, m.Against.Version)
}

type mismatchSink struct {
	fn func(VersionMismatch)
}

var (
	sinkMu sync.RWMutex
	sinks  []*mismatchSink
)

// OnVersionMismatch subscribes fn to version-mismatch reports. The
// returned function removes the subscription. Every report is also logged
// at WARN through slog.Default.
func OnVersionMismatch(fn func(VersionMismatch)) (remove func()) {
	s := &mismatchSink{fn: fn}

	sinkMu.Lock()
	sinks = append(sinks, s)
	sinkMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			sinkMu.Lock()
			defer sinkMu.Unlock()
			sinks = slices.DeleteFunc(sinks, func(x *mismatchSink) bool { return x == s })
		})
	}
}

func reportMismatch(m VersionMismatch) {
	slog.Default().Warn("vocabulary version mismatch",
		"type", m.Checked.Key(),
		"version", m.Checked.Version,
		"compared_to", m.Against.Version)

	sinkMu.RLock()
	current := slices.Clone(sinks)
	sinkMu.RUnlock()

	for _, s := range current {
		s.fn(m)
	}
}
