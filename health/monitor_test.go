package health

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/mmif/errors"
)

func TestMonitor_Update(t *testing.T) {
	m := NewMonitor()
	m.Update("schema", Status{Component: "wrong-name", Status: StateHealthy})

	s, ok := m.Get("schema")
	require.True(t, ok)
	assert.Equal(t, "schema", s.Component)
	assert.False(t, s.Timestamp.IsZero())
	assert.Equal(t, 1, m.Count())

	m.Remove("schema")
	_, ok = m.Get("schema")
	assert.False(t, ok)
}

func TestMonitor_AggregateHealthOrdersByName(t *testing.T) {
	m := NewMonitor()
	m.Update("vocabulary", New("", StateHealthy, "8 types"))
	m.Update("schema", New("", StateHealthy, "compiled"))
	m.Update("docloc/http", New("", StateDegraded, "slow"))

	s := m.AggregateHealth("mmif")
	assert.Equal(t, StateDegraded, s.Status)
	require.Len(t, s.SubStatuses, 3)
	assert.Equal(t, "docloc/http", s.SubStatuses[0].Component)
	assert.Equal(t, "schema", s.SubStatuses[1].Component)
	assert.Equal(t, "vocabulary", s.SubStatuses[2].Component)
}

func TestMonitor_ObserveResolve(t *testing.T) {
	m := NewMonitor()
	transient := errors.WrapTransient(fmt.Errorf("%w: timeout", errors.ErrFetchFailed), "httploc", "fetch", "download")
	invalid := errors.WrapInvalid(errors.ErrInvalidLocation, "docloc", "Resolve", "parse")

	m.ObserveResolve("s3", invalid)
	_, ok := m.Get("docloc/s3")
	assert.False(t, ok, "a bad location is not a resolver failure")

	m.Update("docloc/http", New("", StateHealthy, "resolver registered"))
	m.ObserveResolve("http", transient)
	m.ObserveResolve("http", transient)
	s, ok := m.Get("docloc/http")
	require.True(t, ok)
	assert.True(t, s.IsDegraded())
	assert.Equal(t, 2, s.Failures)

	m.ObserveResolve("http", invalid)
	s, _ = m.Get("docloc/http")
	assert.True(t, s.IsDegraded(), "only a success recovers the scheme")

	m.ObserveResolve("http", nil)
	s, _ = m.Get("docloc/http")
	assert.True(t, s.IsHealthy())
	assert.Zero(t, s.Failures)
}

func TestMonitor_Concurrent(t *testing.T) {
	m := NewMonitor()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.ObserveResolve(fmt.Sprintf("s%d", i%4), nil)
			_ = m.AggregateHealth("mmif")
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 4, m.Count())
}
