// Package drift detects changes to managed nodes made outside the patch
// engine. Such changes desynchronize the displayed tree from the
// authority's model; they are reported, never reverted.
package drift

import (
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/registry"
)

// Engine reports whether the patch engine is applying a batch.
type Engine interface {
	Draining() bool
}

// Warner shows a user-visible warning.
type Warner interface {
	Warn(msg string)
}

// Metrics counts drift. pkg/metrics implements it.
type Metrics interface {
	Drift()
}

// Warning is the user-visible message.
const Warning = "The page was modified outside of livesync; what you see may no longer match the server."

// Options configures a Monitor.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics

	// WarnEvery is the minimum interval between user-visible warnings.
	// Default: 30s.
	WarnEvery time.Duration
}

// Monitor observes a document for drift. It must only be used from the
// goroutine that owns the document.
type Monitor struct {
	doc     *dom.Document
	reg     *registry.Registry
	engine  Engine
	warner  Warner
	logger  *slog.Logger
	metrics Metrics
	limiter *rate.Limiter

	stop  func()
	count int
}

// New creates a monitor. Call Start to begin observing.
func New(doc *dom.Document, reg *registry.Registry, engine Engine, warner Warner, opts Options) *Monitor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	every := opts.WarnEvery
	if every <= 0 {
		every = 30 * time.Second
	}
	return &Monitor{
		doc:     doc,
		reg:     reg,
		engine:  engine,
		warner:  warner,
		logger:  logger.With("component", "drift"),
		metrics: opts.Metrics,
		limiter: rate.NewLimiter(rate.Every(every), 1),
	}
}

// Start subscribes to document mutations. It is a no-op if already started.
func (m *Monitor) Start() {
	if m.stop != nil {
		return
	}
	m.stop = m.doc.Observe(m.observe)
}

// Stop unsubscribes.
func (m *Monitor) Stop() {
	if m.stop != nil {
		m.stop()
		m.stop = nil
	}
}

// Count returns the number of drift mutations seen.
func (m *Monitor) Count() int { return m.count }

func (m *Monitor) observe(mu dom.Mutation) {
	if m.engine.Draining() {
		return
	}
	uid, ok := m.managed(mu.Target)
	if !ok {
		return
	}

	m.count++
	if m.metrics != nil {
		m.metrics.Drift()
	}

	serr := errors.New(errors.CodeDrift).
		With("uid", uid).
		With("mutation", mu.Type.String())
	attrs := serr.LogAttrs()
	if mu.Name != "" {
		attrs = append(attrs, "name", mu.Name)
	}
	if len(mu.Added) > 0 || len(mu.Removed) > 0 {
		attrs = append(attrs, "added", len(mu.Added), "removed", len(mu.Removed))
	}
	if mu.Target != nil && mu.Target.Kind == dom.KindElement {
		attrs = append(attrs, "tag", mu.Target.Tag)
	}
	m.logger.Warn("managed node changed outside the patch engine", attrs...)

	if m.warner != nil && m.limiter.Allow() {
		m.warner.Warn(Warning)
	}
}

// managed returns the UID of the registered node the mutation touches.
// Text data belongs to its parent element.
func (m *Monitor) managed(n *dom.Node) (string, bool) {
	if n == nil {
		return "", false
	}
	if n.Kind == dom.KindText {
		n = n.Parent()
		if n == nil {
			return "", false
		}
	}
	uid := n.Meta.UID
	if uid == "" {
		return "", false
	}
	if got, ok := m.reg.Get(uid); !ok || got != n {
		return "", false
	}
	return uid, true
}
