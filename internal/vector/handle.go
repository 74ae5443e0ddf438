package vector

import "sync/atomic"

// Handle publishes an immutable Index by atomic pointer swap, so a rebuild
// never exposes a half-built index to in-flight queries.
type Handle struct {
	p atomic.Pointer[Index]
}

// NewHandle returns an empty handle. Searches against it return nothing until
// an index is published.
func NewHandle() *Handle {
	return &Handle{}
}

// Publish makes x the current index. x must not be mutated afterwards.
func (h *Handle) Publish(x *Index) {
	h.p.Store(x)
}

// Current returns the published index, or nil when none is published.
func (h *Handle) Current() *Index {
	return h.p.Load()
}

// Search queries the published index; safe with no index published.
func (h *Handle) Search(query []float32, k int) []Result {
	return h.p.Load().Search(query, k)
}

// Size returns the published index size, or 0.
func (h *Handle) Size() int {
	return h.p.Load().Size()
}
