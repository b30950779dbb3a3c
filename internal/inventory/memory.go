package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pairmatch/pairmatch/pkg/types"
)

// Commit records one committed assignment.
type Commit struct {
	RunID       string
	Pairing     types.Pairing
	SensorID    string
	WorstMargin float64
	CommittedAt time.Time
}

// Memory is a thread-safe in-memory inventory keyed by id.
type Memory struct {
	mu      sync.RWMutex
	comps   map[string]types.Component
	cals    map[string]types.SensorCalibration
	commits []Commit
	now     func() time.Time // injectable for deterministic tests
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		comps: make(map[string]types.Component),
		cals:  make(map[string]types.SensorCalibration),
		now:   time.Now,
	}
}

// Load stores or replaces every record of snap.
func (m *Memory) Load(snap *Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range snap.Components {
		m.comps[c.ID] = c
	}
	for _, c := range snap.Calibrations {
		m.cals[c.ID] = c
	}
}

// PutComponent stores or replaces c.
func (m *Memory) PutComponent(c types.Component) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comps[c.ID] = c
}

// PutCalibration stores or replaces c.
func (m *Memory) PutCalibration(c types.SensorCalibration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cals[c.ID] = c
}

// ListFreeComponents returns the unallocated components of family, by id.
func (m *Memory) ListFreeComponents(_ context.Context, family types.Family) ([]types.Component, error) {
	return m.components(func(c types.Component) bool { return c.Family == family && !c.Allocated }), nil
}

// ListBatch returns every component of one batch, by id.
func (m *Memory) ListBatch(_ context.Context, family types.Family, batch string) ([]types.Component, error) {
	return m.components(func(c types.Component) bool { return c.Family == family && c.Batch == batch }), nil
}

// ListFreeCalibrations returns the unallocated calibrations, by id.
func (m *Memory) ListFreeCalibrations(_ context.Context) ([]types.SensorCalibration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.SensorCalibration, 0, len(m.cals))
	for _, c := range m.cals {
		if !c.Allocated {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CommitAssignment allocates both components and the sensor of a.
func (m *Memory) CommitAssignment(_ context.Context, runID string, a types.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ca, okA := m.comps[a.Pairing.A]
	cb, okB := m.comps[a.Pairing.B]
	s, okS := m.cals[a.SensorID]
	switch {
	case !okA || !okB:
		return fmt.Errorf("inventory: pairing %s: unknown component", a.Pairing.Key())
	case !okS:
		return fmt.Errorf("inventory: unknown sensor %q", a.SensorID)
	case ca.Allocated || cb.Allocated:
		return fmt.Errorf("inventory: pairing %s: component already allocated", a.Pairing.Key())
	case s.Allocated:
		return fmt.Errorf("inventory: sensor %q already allocated", a.SensorID)
	}

	ca.Allocated, cb.Allocated, s.Allocated = true, true, true
	m.comps[ca.ID], m.comps[cb.ID], m.cals[s.ID] = ca, cb, s
	m.commits = append(m.commits, Commit{
		RunID:       runID,
		Pairing:     a.Pairing,
		SensorID:    a.SensorID,
		WorstMargin: a.WorstMargin,
		CommittedAt: m.now(),
	})
	return nil
}

// Commits returns the committed assignments in commit order.
func (m *Memory) Commits() []Commit {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Commit(nil), m.commits...)
}

func (m *Memory) components(keep func(types.Component) bool) []types.Component {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Component, 0, len(m.comps))
	for _, c := range m.comps {
		if keep(c) {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
