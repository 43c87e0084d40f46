package patch

import (
	"sync"
	"time"
)

// Ticker schedules work for the next scheduler iteration.
type Ticker interface {
	// Schedule arranges for fn to run once on the next tick.
	Schedule(fn func())
}

// DefaultFrameInterval approximates one display frame.
const DefaultFrameInterval = 16 * time.Millisecond

// FrameTicker fires after a fixed interval and hands the callback to Post,
// which must run it on the goroutine that owns the document.
type FrameTicker struct {
	Interval time.Duration
	Post     func(func())
}

// Schedule implements Ticker.
func (t *FrameTicker) Schedule(fn func()) {
	interval := t.Interval
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	time.AfterFunc(interval, func() { t.Post(fn) })
}

// ManualTicker runs scheduled callbacks only when Tick is called.
type ManualTicker struct {
	mu      sync.Mutex
	pending []func()
}

// Schedule implements Ticker.
func (t *ManualTicker) Schedule(fn func()) {
	t.mu.Lock()
	t.pending = append(t.pending, fn)
	t.mu.Unlock()
}

// Tick runs every callback scheduled before the call and returns how many
// ran. Callbacks scheduled while ticking wait for the next Tick.
func (t *ManualTicker) Tick() int {
	t.mu.Lock()
	fns := t.pending
	t.pending = nil
	t.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of callbacks waiting for a tick.
func (t *ManualTicker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
