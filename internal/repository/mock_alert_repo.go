package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/notifyhub/order-alerts/internal/domain"
)

// MockAlertRepository is a hand-written, in-memory AlertRepository used in
// unit tests.
type MockAlertRepository struct {
	mu     sync.RWMutex
	alerts map[string]*domain.Alert

	// Optional error overrides, set in tests to simulate failure paths.
	RecordErr error
	RecentErr error
}

func NewMockAlertRepository() *MockAlertRepository {
	return &MockAlertRepository{alerts: make(map[string]*domain.Alert)}
}

func (m *MockAlertRepository) Record(_ context.Context, a *domain.Alert) error {
	if m.RecordErr != nil {
		return m.RecordErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.alerts[a.ID]; ok {
		return nil
	}
	clone := *a
	m.alerts[a.ID] = &clone
	return nil
}

func (m *MockAlertRepository) Recent(_ context.Context, limit int) ([]*domain.Alert, error) {
	if m.RecentErr != nil {
		return nil, m.RecentErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Alert, 0, len(m.alerts))
	for _, a := range m.alerts {
		clone := *a
		out = append(out, &clone)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Len returns the number of recorded alerts.
func (m *MockAlertRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.alerts)
}

var _ AlertRepository = (*MockAlertRepository)(nil)
