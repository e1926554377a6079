package preview

import "sync"

// Theme is the host-owned dark/light mode. Panels follow it through
// explicit subscriptions.
type Theme struct {
	mu   sync.Mutex
	dark bool
	subs map[int]func(dark bool)
	next int
}

// NewTheme creates a theme source.
func NewTheme(dark bool) *Theme {
	return &Theme{dark: dark, subs: make(map[int]func(bool))}
}

// Dark reports the current mode.
func (t *Theme) Dark() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dark
}

// Set changes the mode and notifies subscribers if it changed.
func (t *Theme) Set(dark bool) {
	t.mu.Lock()
	if t.dark == dark {
		t.mu.Unlock()
		return
	}
	t.dark = dark
	subs := make([]func(bool), 0, len(t.subs))
	for _, fn := range t.subs {
		subs = append(subs, fn)
	}
	t.mu.Unlock()

	for _, fn := range subs {
		fn(dark)
	}
}

// Subscribe registers fn for changes and returns the function that
// removes it.
func (t *Theme) Subscribe(fn func(dark bool)) (unsubscribe func()) {
	t.mu.Lock()
	id := t.next
	t.next++
	t.subs[id] = fn
	t.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			t.mu.Unlock()
		})
	}
}
