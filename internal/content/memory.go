package content

import (
	"context"
	"sync"
)

// Memory is an in-memory Source.
type Memory struct {
	mu       sync.RWMutex
	items    []Item
	settings map[string]string
}

// NewMemory creates a store holding items and settings.
func NewMemory(items []Item, settings map[string]string) *Memory {
	m := &Memory{settings: make(map[string]string, len(settings))}
	m.items = append(m.items, items...)
	for k, v := range settings {
		m.settings[k] = v
	}
	return m
}

// FindAll returns a copy of the items in insertion order.
func (m *Memory) FindAll(ctx context.Context) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Item, len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *Memory) Read(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.settings[key]
	if !ok {
		return "", settingNotFound(key)
	}
	return v, nil
}

// Add appends an item.
func (m *Memory) Add(item Item) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

// Set stores a setting.
func (m *Memory) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
}

func (m *Memory) Close() error { return nil }
