package pipeline

import "sync"

// Hook is an ordered list of named callbacks of type F.
type Hook[F any] struct {
	mu   sync.RWMutex
	taps []tap[F]
}

type tap[F any] struct {
	name string
	fn   F
}

// Tap registers fn under the plugin name.
func (h *Hook[F]) Tap(name string, fn F) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.taps = append(h.taps, tap[F]{name: name, fn: fn})
}

// Taps returns a snapshot of the registered callbacks in registration order.
func (h *Hook[F]) Taps() []F {
	h.mu.RLock()
	defer h.mu.RUnlock()
	fns := make([]F, len(h.taps))
	for i, t := range h.taps {
		fns[i] = t.fn
	}
	return fns
}

// Len returns the number of registered callbacks.
func (h *Hook[F]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.taps)
}

// HookMap holds one Hook per key, created on first use.
type HookMap[F any] struct {
	mu    sync.Mutex
	hooks map[string]*Hook[F]
}

// For returns the hook registered for key, creating it if needed.
func (m *HookMap[F]) For(key string) *Hook[F] {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.hooks == nil {
		m.hooks = make(map[string]*Hook[F])
	}
	h, ok := m.hooks[key]
	if !ok {
		h = &Hook[F]{}
		m.hooks[key] = h
	}
	return h
}

// Get returns the hook for key without creating it.
func (m *HookMap[F]) Get(key string) (*Hook[F], bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hooks[key]
	return h, ok
}
