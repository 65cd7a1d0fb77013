package notify

import (
	"sync"

	"github.com/kmathy/carlink/core/logger"
)

// Listener is called after a refresh completed for a vehicle the caller
// subscribed to. Listeners receive no payload: they pull fresh state from
// the garage cache, which keeps notification independent of data shape.
type Listener func()

// Registry maps vehicle identifiers to update listeners. Listener lifetime
// is caller-owned; the registry only holds handles.
type Registry struct {
	mu        sync.RWMutex
	listeners map[string][]*handle
	log       logger.Logger
}

type handle struct {
	fn Listener
}

// Handle identifies one subscription for later removal.
type Handle struct {
	vin string
	h   *handle
}

// NewRegistry creates an empty Registry.
func NewRegistry(log logger.Logger) *Registry {
	return &Registry{listeners: make(map[string][]*handle), log: log}
}

// Subscribe registers fn for updates on vin and returns its handle.
func (r *Registry) Subscribe(vin string, fn Listener) Handle {
	h := &handle{fn: fn}
	r.mu.Lock()
	r.listeners[vin] = append(r.listeners[vin], h)
	r.mu.Unlock()
	return Handle{vin: vin, h: h}
}

// Unsubscribe removes the subscription. Unknown handles are a no-op.
func (r *Registry) Unsubscribe(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	subs := r.listeners[h.vin]
	for i, cur := range subs {
		if cur == h.h {
			r.listeners[h.vin] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(r.listeners[h.vin]) == 0 {
		delete(r.listeners, h.vin)
	}
}

// Count returns the number of listeners registered for vin.
func (r *Registry) Count(vin string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[vin])
}

// Notify invokes every listener registered for vin. Each invocation is
// isolated: a panicking listener is logged and the remaining listeners still
// run.
func (r *Registry) Notify(vin string) {
	r.mu.RLock()
	subs := make([]*handle, len(r.listeners[vin]))
	copy(subs, r.listeners[vin])
	r.mu.RUnlock()

	for _, h := range subs {
		r.invoke(vin, h.fn)
	}
}

func (r *Registry) invoke(vin string, fn Listener) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Errorf("update listener for %s panicked: %v", vin, rec)
		}
	}()
	fn()
}
