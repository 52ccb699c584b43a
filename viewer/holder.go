package viewer

import (
	"context"
	"sync"
)

// Holder owns the current viewer. Readers call State, while only the
// session, login and logout flows call SetViewer and Clear. The viewer is
// always replaced wholesale.
type Holder struct {
	mu      sync.RWMutex
	viewer  *Viewer
	loading bool
}

// NewHolder returns a holder in the loading state.
func NewHolder() *Holder {
	return &Holder{loading: true}
}

// State returns a copy of the current viewer and whether the initial fetch
// is still in flight.
func (h *Holder) State() (*Viewer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.viewer.Clone(), h.loading
}

// SetViewer replaces the viewer and ends the loading state.
func (h *Holder) SetViewer(v *Viewer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewer = v.Clone()
	h.loading = false
}

// Clear drops the viewer and ends the loading state.
func (h *Holder) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.viewer = nil
	h.loading = false
}

type holderKey struct{}

// WithHolder attaches h to ctx.
func WithHolder(ctx context.Context, h *Holder) context.Context {
	return context.WithValue(ctx, holderKey{}, h)
}

// FromContext returns the request's holder. Requests that never passed
// through the session middleware get a settled holder with no viewer.
func FromContext(ctx context.Context) *Holder {
	if h, ok := ctx.Value(holderKey{}).(*Holder); ok {
		return h
	}
	return &Holder{}
}

// Current is a shorthand for FromContext(ctx).State() that drops the
// loading flag.
func Current(ctx context.Context) *Viewer {
	v, _ := FromContext(ctx).State()
	return v
}
