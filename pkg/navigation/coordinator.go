// Package navigation coordinates tree transitions with the authority.
//
// A Coordinator turns a navigation request into a NAVIGATE_TO frame, applies
// the NAVIGATION_RESULT patches through the patch engine, maintains the page
// UID and session history, and finalizes the page (scroll, init hooks,
// DOMContentLoaded) once the last batch has drained and transitions settle.
// When the authority has no reference point to diff against, it falls back
// to a full reload.
package navigation

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/url"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/internal/tracing"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// State is the coordinator's request state.
type State int

const (
	Idle State = iota
	Requesting
	Applying
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Applying:
		return "applying"
	default:
		return "unknown"
	}
}

var (
	// ErrInFlight is returned when a request arrives while another is pending (E501).
	ErrInFlight = errors.New(errors.CodeNavInFlight)

	// ErrInvalidPath is returned for targets that are not relative paths.
	ErrInvalidPath = stderrors.New("navigation: invalid path")
)

// Channel is the outbound side of the connection.
type Channel interface {
	Open() bool
	Send(f protocol.Frame)
}

// Applier queues patch batches. *patch.Engine implements it.
type Applier interface {
	Apply(patches []protocol.Patch)
	AfterBatch(fn func())
}

// PageUnbinder drops the document-scoped bindings of a page.
// *events.Dispatcher implements it.
type PageUnbinder interface {
	UnbindPage(pageUID string)
}

// Host performs the effects that live outside the document tree.
type Host interface {
	// Reload performs a hard reload of path.
	Reload(path string)

	// ScrollToTop resets the viewport.
	ScrollToTop()

	// AwaitTransitions calls done once pending transition animations
	// have completed. done must run on the session goroutine.
	AwaitTransitions(done func())
}

// Metrics receives navigation outcomes. pkg/metrics implements it.
type Metrics interface {
	Navigation(outcome string)
}

// Options configures a Coordinator.
type Options struct {
	Logger  *slog.Logger
	Metrics Metrics
	Tracer  *tracing.Tracer
}

// Coordinator owns page identity and navigation for one session.
// It must only be used from the goroutine that owns the document.
type Coordinator struct {
	doc      *dom.Document
	ch       Channel
	engine   Applier
	unbinder PageUnbinder
	host     Host
	logger   *slog.Logger
	metrics  Metrics
	tracer   *tracing.Tracer

	state   State
	pageUID string
	pending *pending
	inits   []func()
}

type pending struct {
	path    string
	push    bool
	started time.Time
	span    trace.Span
}

// New creates a coordinator.
func New(doc *dom.Document, ch Channel, engine Applier, unbinder PageUnbinder, host Host, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		doc:      doc,
		ch:       ch,
		engine:   engine,
		unbinder: unbinder,
		host:     host,
		logger:   logger.With("component", "navigation"),
		metrics:  opts.Metrics,
		tracer:   opts.Tracer,
	}
}

// State returns the request state.
func (c *Coordinator) State() State { return c.state }

// PageUID returns the current page UID, or "" before the first page.
func (c *Coordinator) PageUID() string { return c.pageUID }

// SetPageUID adopts uid as the current page without a navigation, as after
// the initial render. The current history entry is replaced.
func (c *Coordinator) SetPageUID(uid string) {
	if c.pageUID != "" && c.pageUID != uid {
		c.unbinder.UnbindPage(c.pageUID)
	}
	c.pageUID = uid
	c.doc.History.Replace(dom.Entry{UID: uid, Path: c.currentPath()})
}

// OnPageInit registers a one-time page initialisation hook. Hooks run in
// registration order after every final navigation result.
func (c *Coordinator) OnPageInit(fn func()) {
	c.inits = append(c.inits, fn)
}

// Navigate requests a transition to path and pushes a history entry.
func (c *Coordinator) Navigate(ctx context.Context, path string) error {
	return c.request(ctx, path, "", true)
}

// Back traverses history one entry back and re-requests it without pushing.
func (c *Coordinator) Back(ctx context.Context) error {
	if c.state != Idle {
		c.reject("")
		return ErrInFlight
	}
	entry, ok := c.doc.History.Back()
	if !ok {
		return nil
	}
	return c.request(ctx, entry.Path, entry.UID, false)
}

func (c *Coordinator) request(ctx context.Context, path string, knownNext string, push bool) error {
	if c.state != Idle {
		c.reject(path)
		return ErrInFlight
	}

	canon, err := canonicalizePath(path)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidPath, path, err)
	}

	switch {
	case !c.ch.Open():
		c.fallback(canon, "channel not open")
		return nil
	case c.pageUID == "":
		c.fallback(canon, "no current page")
		return nil
	case c.doc.Origin() == "":
		c.fallback(canon, "no trusted origin")
		return nil
	}

	_, span := c.tracer.StartNavigation(ctx, canon, c.pageUID)
	c.state = Requesting
	c.pending = &pending{path: canon, push: push, started: time.Now(), span: span}

	c.logger.Debug("navigate", "path", canon, "page_uid", c.pageUID, "push", push)
	c.ch.Send((&protocol.NavigateTo{
		CurrentPageUID: c.pageUID,
		KnownNextUID:   knownNext,
		Path:           canon,
		Headers:        c.Headers(),
	}).Frame())
	return nil
}

// PendingSince returns when the outstanding request was sent. ok is false
// unless the coordinator is waiting for a NAVIGATION_RESULT.
func (c *Coordinator) PendingSince() (sent time.Time, ok bool) {
	if c.state != Requesting || c.pending == nil {
		return time.Time{}, false
	}
	return c.pending.started, true
}

// Abort gives up on a request still waiting for its result, as when the
// channel drops before the authority answers. The coordinator returns to
// Idle and the pending path is hard-reloaded. Once the result has arrived
// the transition completes locally, so Abort is a no-op outside Requesting.
func (c *Coordinator) Abort(reason string) bool {
	p := c.pending
	if c.state != Requesting || p == nil {
		return false
	}
	c.logger.Warn("navigation aborted; reloading",
		"code", errors.CodeChannelClosed, "path", p.path, "reason", reason)
	c.done("aborted", stderrors.New(reason))
	c.host.Reload(p.path)
	return true
}

func (c *Coordinator) reject(path string) {
	c.logger.Warn("navigation rejected: request in flight",
		"code", errors.CodeNavInFlight, "path", path, "state", c.state.String())
	c.outcome("rejected")
}

func (c *Coordinator) fallback(path, reason string) {
	c.logger.Info("navigation falling back to full reload", "path", path, "reason", reason)
	c.outcome("reload")
	c.host.Reload(path)
}

// Headers returns the synthetic request headers sent with NAVIGATE_TO so
// the authority can treat the transition like a fresh request.
func (c *Coordinator) Headers() map[string]string {
	h := make(map[string]string, 4)
	if c.doc.URL != nil {
		if origin := c.doc.Origin(); origin != "" {
			h["Referer"] = origin + c.doc.URL.RequestURI()
		}
		if c.doc.URL.Host != "" {
			h["Host"] = c.doc.URL.Host
		}
	}
	if c.doc.UserAgent != "" {
		h["User-Agent"] = c.doc.UserAgent
	}
	if c.doc.Cookie != "" {
		h["Cookie"] = c.doc.Cookie
	}
	return h
}

// HandleResult applies one NAVIGATION_RESULT.
func (c *Coordinator) HandleResult(r *protocol.NavigationResult) {
	p := c.pending
	if p == nil {
		// Authority-initiated transition (redirect or server navigate).
		c.logger.Debug("unsolicited navigation result", "path", r.Path)
		_, span := c.tracer.StartNavigation(context.Background(), r.Path, c.pageUID)
		p = &pending{path: r.Path, push: true, started: time.Now(), span: span}
		c.pending = p
	}

	if r.FullReload {
		c.logger.Info("authority requested full reload", "path", r.Path)
		c.done("reload", nil)
		c.host.Reload(r.Path)
		return
	}

	c.state = Applying
	if len(r.Patches) > 0 {
		c.engine.Apply(r.Patches)
	}

	if r.NextPageUID != "" && r.NextPageUID != c.pageUID {
		if c.pageUID != "" {
			c.unbinder.UnbindPage(c.pageUID)
		}
		c.logger.Debug("page changed", "from", c.pageUID, "to", r.NextPageUID)
		c.pageUID = r.NextPageUID
	}

	path := r.Path
	if path == "" {
		path = p.path
	}
	c.commit(path, p.push)

	if r.Final {
		c.engine.AfterBatch(func() {
			c.host.AwaitTransitions(c.finish)
		})
	}
}

// commit updates the document location and history.
func (c *Coordinator) commit(path string, push bool) {
	if ref, err := url.Parse(path); err == nil && c.doc.URL != nil {
		next := c.doc.URL.ResolveReference(ref)
		if next.String() != c.doc.URL.String() {
			c.doc.Referrer = c.doc.URL.String()
		}
		c.doc.URL = next
	}

	entry := dom.Entry{UID: c.pageUID, Path: path}
	if push {
		if c.doc.History.Push(entry) {
			c.logger.Debug("history push", "path", path, "page_uid", c.pageUID)
		}
		return
	}
	c.doc.History.Replace(entry)
}

// finish runs after the final batch drained and transitions settled.
func (c *Coordinator) finish() {
	c.host.ScrollToTop()
	for i, fn := range c.inits {
		c.runInit(i, fn)
	}
	c.doc.FireContentLoaded()
	c.done("ok", nil)
}

func (c *Coordinator) runInit(i int, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("page init hook panicked",
				"hook", i,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

func (c *Coordinator) done(outcome string, err error) {
	if p := c.pending; p != nil {
		tracing.End(p.span, err,
			attribute.String("livesync.outcome", outcome),
			attribute.String("livesync.next_page_uid", c.pageUID),
			attribute.Int64("livesync.duration_ms", time.Since(p.started).Milliseconds()))
	}
	c.pending = nil
	c.state = Idle
	c.outcome(outcome)
}

func (c *Coordinator) outcome(o string) {
	if c.metrics != nil {
		c.metrics.Navigation(o)
	}
}

// currentPath returns the document's request URI.
func (c *Coordinator) currentPath() string {
	if c.doc.URL == nil {
		return "/"
	}
	return c.doc.URL.RequestURI()
}
