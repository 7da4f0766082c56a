package state

import (
	"context"
	"sync"
)

// Manager hands out one container per user and keeps them alive for the
// background refresh job.
type Manager struct {
	store    Store
	notifier Notifier

	mu         sync.Mutex
	containers map[string]*Container
}

func NewManager(store Store, notifier Notifier) *Manager {
	return &Manager{
		store:      store,
		notifier:   notifier,
		containers: make(map[string]*Container),
	}
}

// Get returns the user's container, restoring its persisted snapshot on
// first access.
func (m *Manager) Get(ctx context.Context, userID string) *Container {
	m.mu.Lock()
	if c, ok := m.containers[userID]; ok {
		m.mu.Unlock()
		return c
	}
	m.mu.Unlock()

	// Restore outside the lock; Redis may be slow.
	c := NewContainer(ctx, userID, m.store, m.notifier)

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.containers[userID]; ok {
		return existing
	}
	m.containers[userID] = c
	return c
}

// All returns every live container.
func (m *Manager) All() []*Container {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Container, 0, len(m.containers))
	for _, c := range m.containers {
		out = append(out, c)
	}
	return out
}
