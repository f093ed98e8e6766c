package monitoring

import (
	"sync"
	"time"
)

// Monitor keeps the in-process status figures served by the status endpoint.
// Outlet figures are replaced wholesale on every record; counters only grow.
type Monitor struct {
	mu       sync.RWMutex
	started  time.Time
	values   map[string]interface{}
	counters map[string]int64
	outlets  map[string]outletFigures
}

type outletFigures struct {
	figures map[string]interface{}
	at      time.Time
}

// NewMonitor creates an empty monitor
func NewMonitor() *Monitor {
	return &Monitor{
		started:  time.Now(),
		values:   make(map[string]interface{}),
		counters: make(map[string]int64),
		outlets:  make(map[string]outletFigures),
	}
}

// Set stores a single value
func (m *Monitor) Set(name string, value interface{}) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.values[name] = value
	m.mu.Unlock()
}

// Increment adds one to a counter
func (m *Monitor) Increment(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.counters[name]++
	m.mu.Unlock()
}

// Count returns the current value of a counter
func (m *Monitor) Count(name string) int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[name]
}

// RecordOutlet replaces the figures of one outlet
func (m *Monitor) RecordOutlet(outletID string, figures map[string]interface{}) {
	if m == nil {
		return
	}
	copied := make(map[string]interface{}, len(figures))
	for k, v := range figures {
		copied[k] = v
	}
	m.mu.Lock()
	m.outlets[outletID] = outletFigures{figures: copied, at: time.Now()}
	m.mu.Unlock()
}

// Snapshot flattens everything into one map. Outlet figures are keyed
// "<outlet>_<name>" and carry an "<outlet>_updated_at" timestamp.
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]interface{}, len(m.values)+len(m.counters)+1)
	for k, v := range m.values {
		out[k] = v
	}
	for k, n := range m.counters {
		out[k] = n
	}
	for outlet, o := range m.outlets {
		for k, v := range o.figures {
			out[outlet+"_"+k] = v
		}
		out[outlet+"_updated_at"] = o.at.Format(time.RFC3339)
	}
	out["uptime_seconds"] = time.Since(m.started).Seconds()
	return out
}
