package docstore

import (
	"context"
	"sync"
)

// Memory is a process-local backend for tests and throwaway runs.
type Memory struct {
	mu     sync.RWMutex
	data   []byte
	exists bool
}

func NewMemory() *Memory {
	return &Memory{}
}

// NewMemoryWith returns a Memory backend already holding data.
func NewMemoryWith(data []byte) *Memory {
	m := &Memory{}
	m.data = append([]byte(nil), data...)
	m.exists = true
	return m
}

func (m *Memory) Driver() string { return DriverMemory }

func (m *Memory) Read(_ context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.exists {
		return nil, ErrNotExist
	}
	return append([]byte(nil), m.data...), nil
}

func (m *Memory) Write(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	m.exists = true
	return nil
}

func (m *Memory) Ping(_ context.Context) error { return nil }

func (m *Memory) Close() error { return nil }
