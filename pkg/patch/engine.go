package patch

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
	"github.com/vango-dev/livesync/pkg/registry"
)

// Binder binds and unbinds event handlers derived from reserved properties.
type Binder interface {
	Bind(n *dom.Node, names []string)
	Unbind(n *dom.Node, names []string)
	BindDocument(pageUID string, n *dom.Node, names []string)
	UnbindDocument(pageUID string, n *dom.Node, names []string)

	// UnbindAll removes every element and document binding of n.
	UnbindAll(n *dom.Node)
}

// Metrics receives engine measurements. pkg/metrics implements it.
type Metrics interface {
	PatchApplied(op string)
	BatchDrained(size int, d time.Duration)
}

// Options configures an Engine.
type Options struct {
	// Ticker schedules batch drains. Required.
	Ticker Ticker

	// PageUID returns the current page UID for document bindings.
	PageUID func() string

	Logger  *slog.Logger
	Metrics Metrics
}

// Engine applies patches through a tick-batched mutation queue.
// It must only be used from the goroutine that owns the document.
type Engine struct {
	doc     *dom.Document
	reg     *registry.Registry
	binder  Binder
	ticker  Ticker
	pageUID func() string
	logger  *slog.Logger
	metrics Metrics

	queue     []mutation
	after     []func()
	scheduled bool
	gen       uint64 // Invalidates ticks scheduled before a Flush
	draining  bool
}

type mutation struct {
	name string
	uid  string
	fn   func() error
}

// New creates an engine.
func New(doc *dom.Document, reg *registry.Registry, binder Binder, opts Options) *Engine {
	if opts.Ticker == nil {
		panic("patch: Options.Ticker is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pageUID := opts.PageUID
	if pageUID == nil {
		pageUID = func() string { return "" }
	}
	return &Engine{
		doc:     doc,
		reg:     reg,
		binder:  binder,
		ticker:  opts.Ticker,
		pageUID: pageUID,
		logger:  logger.With("component", "patch"),
		metrics: opts.Metrics,
	}
}

// Draining reports whether a batch is being applied right now.
func (e *Engine) Draining() bool { return e.draining }

// Pending returns the number of queued mutations.
func (e *Engine) Pending() int { return len(e.queue) }

// Apply queues one mutation per patch, in order, for the next tick.
func (e *Engine) Apply(patches []protocol.Patch) {
	for i := range patches {
		p := patches[i]
		e.enqueue(mutation{name: p.Op.String(), uid: p.UID, fn: func() error { return e.apply(p) }})
	}
}

// Enqueue queues an arbitrary mutation closure for the next tick.
func (e *Engine) Enqueue(name string, fn func() error) {
	e.enqueue(mutation{name: name, fn: fn})
}

// AfterBatch runs fn once everything queued so far has drained.
func (e *Engine) AfterBatch(fn func()) {
	e.after = append(e.after, fn)
	e.schedule()
}

func (e *Engine) enqueue(m mutation) {
	e.queue = append(e.queue, m)
	e.schedule()
}

func (e *Engine) schedule() {
	if e.scheduled {
		return
	}
	e.scheduled = true
	gen := e.gen
	e.ticker.Schedule(func() {
		if gen == e.gen {
			e.drain()
		}
	})
}

// drain applies the current batch to completion. Work queued while draining
// goes to the next tick.
func (e *Engine) drain() {
	e.gen++
	e.scheduled = false
	batch := e.queue
	after := e.after
	e.queue = nil
	e.after = nil

	start := time.Now()
	e.draining = true
	for _, m := range batch {
		e.run(m)
	}
	e.draining = false

	if e.metrics != nil && len(batch) > 0 {
		e.metrics.BatchDrained(len(batch), time.Since(start))
	}
	for _, fn := range after {
		e.safe("after-batch", fn)
	}
}

func (e *Engine) run(m mutation) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("mutation panic",
				"op", m.name,
				"uid", m.uid,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	if err := m.fn(); err != nil {
		attrs := []any{"op", m.name, "uid", m.uid, "error", err}
		var se *errors.SyncError
		if errors.As(err, &se) {
			attrs = append(attrs, se.LogAttrs()...)
		}
		e.logger.Warn("mutation failed", attrs...)
		return
	}
	if e.metrics != nil {
		e.metrics.PatchApplied(m.name)
	}
}

func (e *Engine) safe(name string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("callback panic",
				"callback", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// Flush drains queued work immediately, outside the tick. Used on teardown
// and by hosts that render synchronously.
func (e *Engine) Flush() {
	if len(e.queue) == 0 && len(e.after) == 0 {
		return
	}
	e.drain()
}
