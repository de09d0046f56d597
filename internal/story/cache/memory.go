package cache

import (
	"sync"

	"nestnarrator/internal/story/audio"
)

// Memory is the process-lifetime tier of decoded buffers. Nothing is ever evicted.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*audio.Buffer
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*audio.Buffer)}
}

func (m *Memory) Get(key string) (*audio.Buffer, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	buf, ok := m.entries[key]
	return buf, ok
}

func (m *Memory) Put(key string, buf *audio.Buffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = buf
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
