package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/candlestream/indicators"
	"github.com/rustyeddy/candlestream/market"
)

type memSeries struct {
	version int64
	cps     []indicators.Checkpoint
}

// Memory is an in-process StateStore for tests and single-node replays.
// It also keeps partition snapshots.
type Memory struct {
	mu        sync.Mutex
	retention int
	series    map[market.SeriesKey]*memSeries
	snapshots map[market.PartitionKey][]byte
}

func NewMemory(retention int) *Memory {
	return &Memory{
		retention: retentionOrDefault(retention),
		series:    make(map[market.SeriesKey]*memSeries),
		snapshots: make(map[market.PartitionKey][]byte),
	}
}

func (m *Memory) GetState(_ context.Context, key market.SeriesKey) (*indicators.State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[key]
	if !ok || len(s.cps) == 0 {
		return nil, nil
	}
	st := s.cps[len(s.cps)-1].State.Clone()
	st.Version = s.version
	return &st, nil
}

func (m *Memory) PutState(_ context.Context, key market.SeriesKey, cp indicators.Checkpoint, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(key)
	if s.version != expectedVersion {
		return false, nil
	}
	start := cp.Candle.IntervalStart
	i := sort.Search(len(s.cps), func(i int) bool { return !s.cps[i].Candle.IntervalStart.Before(start) })
	s.cps = append(s.cps[:i:i], cloneCheckpoint(cp, expectedVersion+1))
	s.version = expectedVersion + 1
	m.trim(s)
	return true, nil
}

func (m *Memory) CheckpointBefore(_ context.Context, key market.SeriesKey, t time.Time) (*indicators.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[key]
	if !ok {
		return nil, nil
	}
	i := sort.Search(len(s.cps), func(i int) bool { return !s.cps[i].Candle.IntervalStart.Before(t) })
	if i == 0 {
		return nil, nil
	}
	cp := cloneCheckpoint(s.cps[i-1], s.cps[i-1].State.Version)
	return &cp, nil
}

func (m *Memory) CheckpointsFrom(_ context.Context, key market.SeriesKey, t time.Time) ([]indicators.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.series[key]
	if !ok {
		return nil, nil
	}
	i := sort.Search(len(s.cps), func(i int) bool { return !s.cps[i].Candle.IntervalStart.Before(t) })
	out := make([]indicators.Checkpoint, 0, len(s.cps)-i)
	for _, cp := range s.cps[i:] {
		out = append(out, cloneCheckpoint(cp, cp.State.Version))
	}
	return out, nil
}

func (m *Memory) ReplaceFrom(_ context.Context, key market.SeriesKey, t time.Time, cps []indicators.Checkpoint, expectedVersion int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.get(key)
	if s.version != expectedVersion {
		return false, nil
	}
	i := sort.Search(len(s.cps), func(i int) bool { return !s.cps[i].Candle.IntervalStart.Before(t) })
	kept := append([]indicators.Checkpoint(nil), s.cps[:i]...)
	for _, cp := range cps {
		kept = append(kept, cloneCheckpoint(cp, expectedVersion+1))
	}
	s.cps = kept
	s.version = expectedVersion + 1
	m.trim(s)
	return true, nil
}

// LoadSnapshot returns a copy of the snapshot saved for p.
func (m *Memory) LoadSnapshot(_ context.Context, p market.PartitionKey) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.snapshots[p]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), data...), true, nil
}

func (m *Memory) SaveSnapshot(_ context.Context, p market.PartitionKey, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[p] = append([]byte(nil), data...)
	return nil
}

// Keys lists every series with state.
func (m *Memory) Keys() []market.SeriesKey {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]market.SeriesKey, 0, len(m.series))
	for k := range m.series {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

func (m *Memory) get(key market.SeriesKey) *memSeries {
	s, ok := m.series[key]
	if !ok {
		s = &memSeries{}
		m.series[key] = s
	}
	return s
}

func (m *Memory) trim(s *memSeries) {
	if over := len(s.cps) - m.retention; over > 0 {
		s.cps = append([]indicators.Checkpoint(nil), s.cps[over:]...)
	}
}

func cloneCheckpoint(cp indicators.Checkpoint, version int64) indicators.Checkpoint {
	c := indicators.Checkpoint{Candle: cp.Candle, State: cp.State.Clone()}
	c.State.Version = version
	return c
}
