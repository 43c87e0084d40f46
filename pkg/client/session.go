package client

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/internal/tracing"
	"github.com/vango-dev/livesync/pkg/conn"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/drift"
	"github.com/vango-dev/livesync/pkg/events"
	"github.com/vango-dev/livesync/pkg/jsexec"
	"github.com/vango-dev/livesync/pkg/navigation"
	"github.com/vango-dev/livesync/pkg/patch"
	"github.com/vango-dev/livesync/pkg/protocol"
	"github.com/vango-dev/livesync/pkg/registry"
)

// ErrSessionClosed is returned by operations on a closed session.
var ErrSessionClosed = stderrors.New("client: session closed")

// Session is one live connection between a displayed document and its
// authority. Every document access happens on the session loop goroutine;
// other goroutines hand work to it with Post or Do.
type Session struct {
	id     string
	config *Config
	logger *slog.Logger
	host   Host
	codec  *protocol.Codec

	doc    *dom.Document
	reg    *registry.Registry
	engine *patch.Engine
	disp   *events.Dispatcher
	bridge *jsexec.Bridge
	nav    *navigation.Coordinator
	conn   *conn.Manager
	drift  *drift.Monitor

	ctx    context.Context
	cancel context.CancelFunc

	loop      chan func()
	done      chan struct{}
	stopped   chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// Loop-owned.
	stopLinks func()

	// OnBatch, if set, runs on the loop after every drained patch batch.
	OnBatch func()
}

// New creates a session. Nothing runs until Start.
func New(cfg *Config, host Host) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	cfg = cfg.Clone()
	cfg.fill()
	if cfg.URL == "" {
		return nil, errors.New(errors.CodeConfig).WithDetail("authority URL is required")
	}
	if host == nil {
		host = &HeadlessHost{}
	}

	loc := &url.URL{Path: "/"}
	if cfg.Location != "" {
		u, err := url.Parse(cfg.Location)
		if err != nil {
			return nil, errors.New(errors.CodeConfig).WithDetailf("invalid location %q", cfg.Location).Wrap(err)
		}
		loc = u
	}

	id := uuid.NewString()
	logger := cfg.Logger.With("session_id", id)
	tracer := cfg.Tracer
	if tracer == nil {
		tracer = tracing.New(tracing.WithSessionID(id))
	}

	s := &Session{
		id:      id,
		config:  cfg,
		logger:  logger,
		host:    host,
		codec:   protocol.NewCodec(),
		reg:     registry.New(),
		loop:    make(chan func(), cfg.EventQueue),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.doc = dom.New(loc)
	s.doc.Cookie = cfg.Cookie
	s.doc.UserAgent = cfg.UserAgent
	s.doc.Logger = logger.With("component", "dom")

	header := http.Header{}
	if cfg.Cookie != "" {
		header.Set("Cookie", cfg.Cookie)
	}
	header.Set("User-Agent", cfg.UserAgent)

	s.conn = conn.New(conn.Options{
		URL:          cfg.URL,
		Header:       header,
		Codec:        s.codec,
		Handler:      s.receive,
		OnOpen:       s.opened,
		OnState:      s.stateChanged,
		Backoff:      cfg.Backoff,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PingInterval: cfg.PingInterval,
		SendQueue:    cfg.SendQueue,
		Logger:       logger,
		Metrics:      cfg.Metrics,
	})

	pageUID := func() string { return s.nav.PageUID() }
	s.disp = events.New(s.doc, s.conn, pageUID, logger)
	s.engine = patch.New(s.doc, s.reg, s.disp, patch.Options{
		Ticker: &patch.FrameTicker{
			Interval: cfg.FrameInterval,
			Post:     func(fn func()) { s.Post(fn) },
		},
		PageUID: pageUID,
		Logger:  logger,
		Metrics: cfg.Metrics,
	})
	s.nav = navigation.New(s.doc, s.conn, s.engine, s.disp, host, navigation.Options{
		Logger:  logger,
		Metrics: cfg.Metrics,
		Tracer:  tracer,
	})
	s.bridge = jsexec.New(s.conn, jsexec.Options{
		Logger:  logger,
		Metrics: cfg.Metrics,
		Tracer:  tracer,
		Globals: cfg.Globals,
	})
	s.drift = drift.New(s.doc, s.reg, s.engine, host, drift.Options{
		Logger:    logger,
		Metrics:   cfg.Metrics,
		WarnEvery: cfg.DriftWarnEvery,
	})
	return s, nil
}

// ID returns the session ID.
func (s *Session) ID() string { return s.id }

// Logger returns the session logger.
func (s *Session) Logger() *slog.Logger { return s.logger }

// Conn returns the connection manager.
func (s *Session) Conn() *conn.Manager { return s.conn }

// Start runs the session loop, installs link interception and drift
// monitoring, and connects. A failed first dial starts the reconnect
// sequence and is returned.
func (s *Session) Start(ctx context.Context) error {
	s.startOnce.Do(func() {
		go s.run()
	})
	err := s.Do(ctx, func() {
		s.drift.Start()
		if s.stopLinks == nil {
			s.stopLinks = s.nav.InterceptLinks(s.ctx)
		}
	})
	if err != nil {
		return err
	}
	if err := s.conn.Connect(ctx); err != nil {
		s.logger.Warn("initial connect failed", "error", err)
		s.conn.Reconnect()
		return err
	}
	return nil
}

// Mount adopts the document body as the root node rootUID of page pageUID,
// the state left by the initial render.
func (s *Session) Mount(ctx context.Context, pageUID, rootUID string) error {
	var err error
	doErr := s.Do(ctx, func() {
		s.engine.Enqueue("mount", func() error {
			body := s.doc.Body()
			if err = s.reg.Register(rootUID, body); err != nil {
				return err
			}
			body.SetAttr(dom.PropUID, rootUID)
			return nil
		})
		s.engine.Flush()
		if err == nil {
			s.nav.SetPageUID(pageUID)
		}
	})
	if doErr != nil {
		return doErr
	}
	return err
}

// Navigate requests a transition to path.
func (s *Session) Navigate(ctx context.Context, path string) error {
	var err error
	if doErr := s.Do(ctx, func() { err = s.nav.Navigate(s.ctx, path) }); doErr != nil {
		return doErr
	}
	return err
}

// Back traverses history one entry back.
func (s *Session) Back(ctx context.Context) error {
	var err error
	if doErr := s.Do(ctx, func() { err = s.nav.Back(s.ctx) }); doErr != nil {
		return doErr
	}
	return err
}

// OnPageInit registers a hook re-run after every completed navigation.
// Hooks run on the loop.
func (s *Session) OnPageInit(ctx context.Context, fn func()) error {
	return s.Do(ctx, func() { s.nav.OnPageInit(fn) })
}

// Dispatch fires ev on the document, as user input would.
func (s *Session) Dispatch(ctx context.Context, ev *dom.Event) error {
	return s.Do(ctx, func() { s.doc.Dispatch(ev) })
}

// Inspect runs fn on the loop with the document and registry.
func (s *Session) Inspect(ctx context.Context, fn func(doc *dom.Document, reg *registry.Registry)) error {
	return s.Do(ctx, func() { fn(s.doc, s.reg) })
}

// HTML returns the markup of the synced tree.
func (s *Session) HTML(ctx context.Context) (string, error) {
	var out string
	err := s.Do(ctx, func() { out = s.doc.Body().InnerHTML() })
	return out, err
}

// Post queues fn on the session loop. It returns false once the session is
// closed.
func (s *Session) Post(fn func()) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.loop <- fn:
		return true
	case <-s.done:
		return false
	}
}

// Do runs fn on the session loop and waits for it to finish. It must not
// be called from the loop itself.
func (s *Session) Do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrSessionClosed
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.stopped:
		return ErrSessionClosed
	}
}

// run is the session loop.
func (s *Session) run() {
	defer close(s.stopped)
	for {
		select {
		case fn := <-s.loop:
			s.execute(fn)
		case <-s.done:
			return
		}
	}
}

// execute runs fn with panic recovery.
func (s *Session) execute(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("session loop panic",
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	fn()
}

// receive is the connection's frame handler; it runs on the read goroutine.
func (s *Session) receive(f protocol.Frame) {
	s.Post(func() { s.route(f) })
}

// opened flushes the deferred initial DOMContentLoaded once per session.
func (s *Session) opened() {
	go s.Post(func() {
		if !s.doc.Ready() {
			s.doc.FireContentLoaded()
		}
	})
}

// stateChanged runs with the manager's lock held, so the loop work is
// handed off from a new goroutine.
func (s *Session) stateChanged(st conn.State) {
	if st == conn.Connected {
		return
	}
	lost := time.Now()
	go s.Post(func() {
		// A request sent after the drop travelled on the new channel.
		if sent, ok := s.nav.PendingSince(); ok && !sent.After(lost) {
			s.nav.Abort("channel " + st.String())
		}
	})
}

// route handles one inbound frame on the loop.
func (s *Session) route(f protocol.Frame) {
	switch f.Op {
	case protocol.OpApplyPatch:
		patches, err := protocol.DecodeApplyPatch(f)
		if err != nil {
			s.dropped(f, err)
			return
		}
		s.engine.Apply(patches)
		s.afterBatch()

	case protocol.OpExecuteJS:
		req, err := protocol.DecodeExecuteJS(f)
		if err != nil {
			s.dropped(f, err)
			return
		}
		if err := s.bridge.Execute(s.ctx, req); err != nil {
			s.logger.Debug("exec not queued", "correlation_uid", req.CorrelationUID, "error", err)
		}

	case protocol.OpNavigationResult:
		res, err := protocol.DecodeNavigationResult(f)
		if err != nil {
			s.dropped(f, err)
			return
		}
		s.nav.HandleResult(res)
		s.afterBatch()

	case protocol.OpComponentUnknown:
		cu, err := protocol.DecodeComponentUnknown(f)
		if err != nil {
			s.dropped(f, err)
			return
		}
		if cu.MustReload {
			path := s.doc.URL.RequestURI()
			s.logger.Warn("authority lost this page; reloading",
				"code", errors.CodeDesync, "path", path, "page_uid", s.nav.PageUID())
			s.host.Reload(path)
		}

	default:
		s.logger.Warn("unexpected frame from authority", "code", errors.CodeUnknownOpcode, "opcode", f.Op.String())
	}
}

func (s *Session) afterBatch() {
	if s.OnBatch != nil {
		s.engine.AfterBatch(s.OnBatch)
	}
}

func (s *Session) dropped(f protocol.Frame, err error) {
	if s.config.Metrics != nil {
		s.config.Metrics.DecodeError()
	}
	serr := errors.FromError(err, errors.CodeDecode)
	s.logger.Warn("dropping malformed frame", append(serr.LogAttrs(), "opcode", f.Op.String(), "error", err)...)
}

// Close stops the bridge, the connection and the loop. It is safe to call
// more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		s.bridge.Close()
		s.conn.Close()
		close(s.done)
		s.startOnce.Do(func() { close(s.stopped) })
		<-s.stopped

		// The loop has exited; nothing else touches the document.
		s.drift.Stop()
		if s.stopLinks != nil {
			s.stopLinks()
		}
		s.logger.Debug("session closed", "nodes", s.reg.Len())
	})
	return nil
}
