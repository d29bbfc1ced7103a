package recommender

import "sync/atomic"

// Holder publishes the current Engine. Queries load the engine once and use
// it for the whole request, so a swap never affects work in flight.
type Holder struct {
	current atomic.Pointer[Engine]
}

// NewHolder returns a Holder containing e, which may be nil.
func NewHolder(e *Engine) *Holder {
	h := &Holder{}
	if e != nil {
		h.current.Store(e)
	}
	return h
}

// Load returns the current engine, or nil before the first catalog load.
func (h *Holder) Load() *Engine {
	return h.current.Load()
}

// Swap installs e and returns the engine it replaced.
func (h *Holder) Swap(e *Engine) *Engine {
	return h.current.Swap(e)
}
