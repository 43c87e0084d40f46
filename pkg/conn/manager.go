package conn

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/livesync/internal/errors"
	"github.com/vango-dev/livesync/pkg/protocol"
)

// State is the lifecycle state of the channel.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
	Reconnecting
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	default:
		return "unknown"
	}
}

// Handler receives decoded inbound frames with a known opcode.
// It is called from the read goroutine.
type Handler func(f protocol.Frame)

// Metrics receives channel statistics. pkg/metrics implements it.
type Metrics interface {
	Frame(direction, opcode string, n int)
	DecodeError()
	Reconnect(outcome string)
	Connected(open bool)
}

const (
	inbound  = "in"
	outbound = "out"
)

// Options configures a Manager.
type Options struct {
	// URL is the authority's WebSocket endpoint (ws:// or wss://).
	URL string

	// Header is sent with the upgrade request (Cookie, User-Agent).
	Header http.Header

	// Dialer defaults to websocket.DefaultDialer.
	Dialer *websocket.Dialer

	// Codec defaults to protocol.NewCodec().
	Codec *protocol.Codec

	Handler Handler

	// OnOpen runs once per Manager, after the first successful open.
	OnOpen func()

	// OnState observes every state transition.
	OnState func(State)

	Backoff Backoff

	// Wait replaces the backoff sleep. Tests use it to record delays.
	Wait WaitFunc

	// DialTimeout bounds each dial made by Connect callers and the backoff
	// loop.
	DialTimeout time.Duration

	// SendDialTimeout bounds the single dial Send makes when the channel is
	// not open. It is capped at DialTimeout.
	SendDialTimeout time.Duration

	// ReadTimeout is the read deadline, extended by every frame and pong.
	ReadTimeout time.Duration

	// WriteTimeout is the deadline for each write.
	WriteTimeout time.Duration

	// PingInterval is the keepalive period.
	PingInterval time.Duration

	// SendQueue is the outbound buffer size per connection.
	SendQueue int

	Logger  *slog.Logger
	Metrics Metrics
}

func (o *Options) setDefaults() {
	if o.Dialer == nil {
		o.Dialer = websocket.DefaultDialer
	}
	if o.Codec == nil {
		o.Codec = protocol.NewCodec()
	}
	if o.Backoff.Attempts <= 0 {
		o.Backoff = DefaultBackoff()
	}
	if o.Wait == nil {
		o.Wait = Sleep
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = 10 * time.Second
	}
	if o.SendDialTimeout <= 0 {
		o.SendDialTimeout = 2 * time.Second
	}
	if o.SendDialTimeout > o.DialTimeout {
		o.SendDialTimeout = o.DialTimeout
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = 60 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.SendQueue <= 0 {
		o.SendQueue = 64
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Manager owns the channel to the authority: it dials, pumps frames in
// both directions and reconnects with bounded backoff when the link drops.
// All methods are safe for concurrent use.
type Manager struct {
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	state        State
	link         *link
	opened       bool
	reconnecting bool
	abort        context.CancelFunc
	closed       bool

	wg sync.WaitGroup
}

// link is one open WebSocket with its pump goroutines.
type link struct {
	ws       *websocket.Conn
	out      chan []byte
	ctx      context.Context
	cancel   context.CancelFunc
	detached atomic.Bool
}

// New creates a Manager. Nothing is dialed until Connect.
func New(opts Options) *Manager {
	opts.setDefaults()
	return &Manager{
		opts:   opts,
		logger: opts.Logger.With("component", "conn"),
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Open reports whether a channel is open.
func (m *Manager) Open() bool {
	return m.State() == Connected
}

// Reconnecting reports whether a backoff sequence is running.
func (m *Manager) Reconnecting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reconnecting
}

// Connect tears down any existing channel and opens a new one. A
// successful Connect aborts a pending backoff sleep.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New(errors.CodeChannelClosed).WithDetail("manager is closed")
	}
	old := m.link
	m.link = nil
	if !m.reconnecting {
		m.setState(Connecting)
	}
	m.mu.Unlock()

	if old != nil {
		m.detach(old)
		if m.opts.Metrics != nil {
			m.opts.Metrics.Connected(false)
		}
	}

	ws, _, err := m.opts.Dialer.DialContext(ctx, m.opts.URL, m.opts.Header)
	if err != nil {
		m.mu.Lock()
		if !m.reconnecting && m.link == nil {
			m.setState(Disconnected)
		}
		m.mu.Unlock()
		return errors.New(errors.CodeChannelClosed).Wrap(err).With("url", m.opts.URL)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		ws.Close()
		return errors.New(errors.CodeChannelClosed).WithDetail("manager closed while dialing")
	}
	if m.link != nil {
		// A concurrent Connect finished first; its link is replaced.
		m.detach(m.link)
		if m.opts.Metrics != nil {
			m.opts.Metrics.Connected(false)
		}
	}
	lctx, cancel := context.WithCancel(context.Background())
	l := &link{
		ws:     ws,
		out:    make(chan []byte, m.opts.SendQueue),
		ctx:    lctx,
		cancel: cancel,
	}
	m.link = l
	m.setState(Connected)
	if m.abort != nil {
		m.abort()
	}
	first := !m.opened
	m.opened = true
	m.wg.Add(2)
	m.mu.Unlock()

	if m.opts.Metrics != nil {
		m.opts.Metrics.Connected(true)
	}
	m.logger.Info("channel open", "url", m.opts.URL)

	go m.readLoop(l)
	go m.writeLoop(l)

	if first && m.opts.OnOpen != nil {
		m.opts.OnOpen()
	}
	return nil
}

// detach stops l without triggering a reconnect.
func (m *Manager) detach(l *link) {
	l.detached.Store(true)
	l.cancel()
}

// setState must be called with mu held.
func (m *Manager) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.opts.OnState != nil {
		m.opts.OnState(s)
	}
}

// Send encodes f and queues it on the open channel. When the channel is
// not open it reconnects once and retries, unless a backoff sequence is
// already running, in which case f is dropped without dialing. Failures are
// logged, never returned.
func (m *Manager) Send(f protocol.Frame) {
	data, err := m.opts.Codec.Encode(f)
	if err != nil {
		m.logger.Error("encode failed", "opcode", f.Op.String(), "error", err)
		return
	}
	if m.enqueue(f.Op, data) {
		return
	}

	if m.Reconnecting() {
		m.logger.Warn("send dropped: reconnecting", "code", errors.CodeChannelClosed, "opcode", f.Op.String())
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SendDialTimeout)
	defer cancel()
	if err := m.Connect(ctx); err != nil {
		serr := errors.FromError(err, errors.CodeChannelClosed)
		m.logger.Warn("send dropped: channel not open", append(serr.LogAttrs(), "opcode", f.Op.String(), "error", err)...)
		return
	}
	if !m.enqueue(f.Op, data) {
		m.logger.Warn("send dropped after reconnect", "code", errors.CodeChannelClosed, "opcode", f.Op.String())
	}
}

func (m *Manager) enqueue(op protocol.Opcode, data []byte) bool {
	m.mu.Lock()
	l := m.link
	m.mu.Unlock()
	if l == nil {
		return false
	}
	select {
	case l.out <- data:
		if m.opts.Metrics != nil {
			m.opts.Metrics.Frame(outbound, op.String(), len(data))
		}
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (m *Manager) readLoop(l *link) {
	defer m.wg.Done()
	defer l.cancel()

	ws := l.ws
	ws.SetReadLimit(int64(protocol.MaxFrameSize))
	ws.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
	})

	for {
		typ, msg, err := ws.ReadMessage()
		if err != nil {
			if l.detached.Load() {
				return
			}
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				m.logger.Warn("read error", "error", err)
			} else {
				m.logger.Debug("channel closed", "error", err)
			}
			m.lost(l)
			return
		}
		ws.SetReadDeadline(time.Now().Add(m.opts.ReadTimeout))
		if typ != websocket.BinaryMessage {
			m.logger.Debug("ignoring non-binary message", "type", typ)
			continue
		}
		m.dispatch(msg)
	}
}

func (m *Manager) dispatch(msg []byte) {
	f, err := m.opts.Codec.Decode(msg)
	if err != nil {
		if m.opts.Metrics != nil {
			m.opts.Metrics.DecodeError()
		}
		serr := errors.FromError(err, errors.CodeDecode)
		m.logger.Warn("dropping undecodable frame", append(serr.LogAttrs(), "bytes", len(msg), "error", err)...)
		return
	}
	if !f.Op.Known() {
		if m.opts.Metrics != nil {
			m.opts.Metrics.DecodeError()
		}
		m.logger.Warn("dropping frame with unknown opcode", "code", errors.CodeUnknownOpcode, "opcode", int(f.Op))
		return
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.Frame(inbound, f.Op.String(), len(msg))
	}
	if m.opts.Handler != nil {
		m.opts.Handler(f)
	}
}

func (m *Manager) writeLoop(l *link) {
	defer m.wg.Done()

	ping := time.NewTicker(m.opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-l.ctx.Done():
			l.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(m.opts.WriteTimeout))
			l.ws.Close()
			return

		case data := <-l.out:
			l.ws.SetWriteDeadline(time.Now().Add(m.opts.WriteTimeout))
			if err := l.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
				m.logger.Warn("write error", "error", err)
				l.cancel()
			}

		case <-ping.C:
			if err := l.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.opts.WriteTimeout)); err != nil {
				m.logger.Debug("ping failed", "error", err)
				l.cancel()
			}
		}
	}
}

// lost handles an unexpected close of l.
func (m *Manager) lost(l *link) {
	m.mu.Lock()
	if m.link != l {
		m.mu.Unlock()
		return
	}
	m.link = nil
	m.setState(Reconnecting)
	m.mu.Unlock()

	if m.opts.Metrics != nil {
		m.opts.Metrics.Connected(false)
	}
	m.Reconnect()
}

// Reconnect starts a backoff sequence. It is a no-op returning false when
// one is already running or the manager is closed.
func (m *Manager) Reconnect() bool {
	m.mu.Lock()
	if m.reconnecting || m.closed {
		m.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.reconnecting = true
	m.abort = cancel
	m.setState(Reconnecting)
	m.wg.Add(1)
	m.mu.Unlock()

	go m.retry(ctx, cancel)
	return true
}

func (m *Manager) retry(ctx context.Context, cancel context.CancelFunc) {
	defer m.wg.Done()
	defer cancel()

	attempts, err := m.opts.Backoff.Retry(ctx, func(ctx context.Context) error {
		m.logger.Debug("reconnect attempt", "url", m.opts.URL)
		dctx, cancel := context.WithTimeout(ctx, m.opts.DialTimeout)
		defer cancel()
		return m.Connect(dctx)
	}, m.opts.Wait)

	m.mu.Lock()
	m.reconnecting = false
	m.abort = nil
	if m.state != Connected {
		m.setState(Disconnected)
	}
	m.mu.Unlock()

	outcome := "ok"
	switch {
	case err == nil:
		m.logger.Info("reconnected", "attempts", attempts)
	case ctx.Err() != nil:
		outcome = "aborted"
		m.logger.Debug("reconnect aborted", "attempts", attempts)
	default:
		outcome = "exhausted"
		serr := errors.New(errors.CodeReconnectFailed).Wrap(err).With("attempts", attempts)
		m.logger.Error("reconnect gave up", append(serr.LogAttrs(), "error", err)...)
	}
	if m.opts.Metrics != nil {
		m.opts.Metrics.Reconnect(outcome)
	}
}

// Close aborts any backoff sequence, closes the channel and waits for all
// goroutines to exit.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.abort != nil {
		m.abort()
	}
	l := m.link
	m.link = nil
	wasOpen := m.state == Connected
	m.setState(Disconnected)
	m.mu.Unlock()

	if l != nil {
		m.detach(l)
	}
	m.wg.Wait()
	if wasOpen && m.opts.Metrics != nil {
		m.opts.Metrics.Connected(false)
	}
	return nil
}
