package client

import "sync"

// Host performs effects outside the document tree: reloads, viewport and
// transitions, and user-visible warnings.
type Host interface {
	// Reload performs a hard reload of path.
	Reload(path string)

	// ScrollToTop resets the viewport.
	ScrollToTop()

	// AwaitTransitions calls done once pending transition animations have
	// completed. It is called on the session loop; done must be run there
	// too (use Session.Post from another goroutine).
	AwaitTransitions(done func())

	// Warn shows msg to the user.
	Warn(msg string)
}

// HeadlessHost is a Host with no display. It records every call and has
// no transitions to wait for.
type HeadlessHost struct {
	// OnReload, if set, is called for every reload.
	OnReload func(path string)

	mu       sync.Mutex
	reloads  []string
	scrolls  int
	warnings []string
}

// Reload implements Host.
func (h *HeadlessHost) Reload(path string) {
	h.mu.Lock()
	h.reloads = append(h.reloads, path)
	fn := h.OnReload
	h.mu.Unlock()
	if fn != nil {
		fn(path)
	}
}

// ScrollToTop implements Host.
func (h *HeadlessHost) ScrollToTop() {
	h.mu.Lock()
	h.scrolls++
	h.mu.Unlock()
}

// AwaitTransitions implements Host.
func (h *HeadlessHost) AwaitTransitions(done func()) { done() }

// Warn implements Host.
func (h *HeadlessHost) Warn(msg string) {
	h.mu.Lock()
	h.warnings = append(h.warnings, msg)
	h.mu.Unlock()
}

// Reloads returns the reloaded paths in order.
func (h *HeadlessHost) Reloads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.reloads...)
}

// Scrolls returns the number of ScrollToTop calls.
func (h *HeadlessHost) Scrolls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.scrolls
}

// Warnings returns the warnings shown so far.
func (h *HeadlessHost) Warnings() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.warnings...)
}
