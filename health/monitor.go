package health

import (
	"slices"
	"sync"
	"time"

	"github.com/c360/mmif/errors"
)

// Monitor tracks the health of named components. It is safe for
// concurrent use.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{statuses: make(map[string]Status)}
}

// Update records status under name, setting its component name and, when
// missing, its timestamp.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// Get returns the status recorded under name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.statuses[name]
	return s, ok
}

// Count returns the number of tracked components.
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.statuses)
}

// Remove stops tracking name.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.statuses, name)
}

// AggregateHealth folds every tracked status, ordered by name, into one.
func (m *Monitor) AggregateHealth(system string) Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	slices.Sort(names)
	subs := make([]Status, 0, len(names))
	for _, name := range names {
		subs = append(subs, m.statuses[name])
	}
	m.mu.RUnlock()

	return Aggregate(system, subs)
}

// ObserveResolve records the outcome of a document location resolution
// under "docloc/<scheme>". Transient failures degrade the scheme and count
// up until a success resets it. Other failures are ignored, so unknown
// schemes never become tracked.
func (m *Monitor) ObserveResolve(scheme string, err error) {
	name := "docloc/" + scheme

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case err == nil:
		m.statuses[name] = New(name, StateHealthy, "last resolution succeeded")
	case errors.IsTransient(err):
		s := FromError(name, err)
		s.Failures = m.statuses[name].Failures + 1
		m.statuses[name] = s
	}
}
