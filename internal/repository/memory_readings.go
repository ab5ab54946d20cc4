package repository

import (
	"context"
	"sync"
	"time"

	"github.com/VaTka/wakame/internal/domain"
)

// MemoryReadingLog 用于 DB 未就绪时的联测
// - ID 自增，从 1 开始
// - 聚合直接调用 domain.Aggregate，与 SQL 路径规则一致
type MemoryReadingLog struct {
	mu       sync.RWMutex
	readings []domain.Reading
	nextID   int64
}

func NewMemoryReadingLog() *MemoryReadingLog {
	return &MemoryReadingLog{nextID: 1}
}

var _ ReadingLog = (*MemoryReadingLog)(nil)

func (m *MemoryReadingLog) Append(_ context.Context, r domain.Reading) (domain.Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID
	m.nextID++
	m.readings = append(m.readings, r)
	return r, nil
}

func (m *MemoryReadingLog) ListRecent(_ context.Context, process domain.Process, limit int) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = domain.ClampListLimit(limit)
	out := []domain.Reading{}
	for i := len(m.readings) - 1; i >= 0 && len(out) < limit; i-- {
		if matchProcess(m.readings[i], process) {
			out = append(out, m.readings[i])
		}
	}
	return out, nil
}

func (m *MemoryReadingLog) Latest(_ context.Context, process domain.Process) (*domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := len(m.readings) - 1; i >= 0; i-- {
		if matchProcess(m.readings[i], process) {
			r := m.readings[i]
			return &r, nil
		}
	}
	return nil, nil
}

func (m *MemoryReadingLog) ListRange(_ context.Context, process domain.Process, from, to time.Time, afterID int64, limit int) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = domain.ClampListLimit(limit)
	window := domain.Window{From: from, To: to}
	out := []domain.Reading{}
	for _, r := range m.readings {
		if len(out) >= limit {
			break
		}
		if r.ID > afterID && matchProcess(r, process) && window.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryReadingLog) ListRangeNewest(_ context.Context, process domain.Process, from, to time.Time, limit int) ([]domain.Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit = domain.ClampListLimit(limit)
	window := domain.Window{From: from, To: to}
	out := []domain.Reading{}
	for i := len(m.readings) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.readings[i]
		if matchProcess(r, process) && window.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *MemoryReadingLog) Aggregate(_ context.Context, process domain.Process, now time.Time, windowMinutes, stepMinutes int) ([]domain.Bucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]domain.Reading, 0, len(m.readings))
	for _, r := range m.readings {
		if matchProcess(r, process) {
			matched = append(matched, r)
		}
	}
	return domain.Aggregate(matched, now, windowMinutes, stepMinutes), nil
}

func matchProcess(r domain.Reading, process domain.Process) bool {
	return process == "" || r.Process == process
}
