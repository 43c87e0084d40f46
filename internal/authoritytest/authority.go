// Package authoritytest provides an in-process fake authority for
// connection-level tests. It serves a chi router over httptest and upgrades
// /live to a WebSocket speaking the livesync frame codec.
package authoritytest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/livesync/pkg/protocol"
)

// Path is the WebSocket route.
const Path = "/live"

// Authority is a fake authority server.
type Authority struct {
	Server *httptest.Server

	codec    *protocol.Codec
	upgrader websocket.Upgrader
	peers    chan *Peer

	mu       sync.Mutex
	refuse   bool
	accepted int
	headers  []http.Header
	open     []*Peer
	onFrame  func(p *Peer, f protocol.Frame)
}

// New starts an Authority and registers its shutdown with t.Cleanup.
func New(t testing.TB) *Authority {
	t.Helper()
	a := &Authority{
		codec: protocol.NewCodec(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(chan *Peer, 16),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(Path, a.handleLive)
	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<!doctype html><body></body>"))
	})

	a.Server = httptest.NewServer(r)
	t.Cleanup(a.Close)
	return a
}

// URL returns the ws:// URL of the live route.
func (a *Authority) URL() string {
	return "ws" + strings.TrimPrefix(a.Server.URL, "http") + Path
}

// Refuse makes subsequent upgrade requests fail with 503.
func (a *Authority) Refuse(refuse bool) {
	a.mu.Lock()
	a.refuse = refuse
	a.mu.Unlock()
}

// OnFrame installs a callback run on the peer's read goroutine for every
// inbound frame, before the frame is queued for Next.
func (a *Authority) OnFrame(fn func(p *Peer, f protocol.Frame)) {
	a.mu.Lock()
	a.onFrame = fn
	a.mu.Unlock()
}

// Accepted returns the number of upgraded connections.
func (a *Authority) Accepted() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.accepted
}

// Headers returns the upgrade request headers seen so far.
func (a *Authority) Headers() []http.Header {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]http.Header(nil), a.headers...)
}

// Accept waits for the next upgraded connection.
func (a *Authority) Accept(t testing.TB, timeout time.Duration) *Peer {
	t.Helper()
	select {
	case p := <-a.peers:
		return p
	case <-time.After(timeout):
		t.Fatalf("no connection within %v", timeout)
		return nil
	}
}

// Close shuts the server down and drops every upgraded connection.
func (a *Authority) Close() {
	a.mu.Lock()
	open := a.open
	a.open = nil
	a.mu.Unlock()
	for _, p := range open {
		p.Drop()
	}
	a.Server.Close()
}

func (a *Authority) handleLive(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	refuse := a.refuse
	a.mu.Unlock()
	if refuse {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	p := &Peer{
		a:      a,
		ws:     ws,
		frames: make(chan protocol.Frame, 64),
	}

	a.mu.Lock()
	a.accepted++
	a.headers = append(a.headers, r.Header.Clone())
	a.open = append(a.open, p)
	a.mu.Unlock()

	go p.readLoop()
	a.peers <- p
}

// Peer is the authority side of one connection.
type Peer struct {
	a      *Authority
	ws     *websocket.Conn
	frames chan protocol.Frame

	wmu sync.Mutex
}

// Send writes f to the client.
func (p *Peer) Send(f protocol.Frame) error {
	data, err := p.a.codec.Encode(f)
	if err != nil {
		return err
	}
	return p.SendRaw(data)
}

// SendRaw writes bytes as one binary message.
func (p *Peer) SendRaw(data []byte) error {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	return p.ws.WriteMessage(websocket.BinaryMessage, data)
}

// Next waits for the next frame sent by the client.
func (p *Peer) Next(t testing.TB, timeout time.Duration) protocol.Frame {
	t.Helper()
	select {
	case f, ok := <-p.frames:
		if !ok {
			t.Fatal("connection closed before a frame arrived")
		}
		return f
	case <-time.After(timeout):
		t.Fatalf("no frame within %v", timeout)
	}
	return protocol.Frame{}
}

// Drop closes the underlying connection without a close handshake.
func (p *Peer) Drop() {
	p.ws.Close()
}

func (p *Peer) readLoop() {
	defer close(p.frames)
	for {
		_, msg, err := p.ws.ReadMessage()
		if err != nil {
			return
		}
		f, err := p.a.codec.Decode(msg)
		if err != nil {
			continue
		}
		p.a.mu.Lock()
		fn := p.a.onFrame
		p.a.mu.Unlock()
		if fn != nil {
			fn(p, f)
		}
		select {
		case p.frames <- f:
		default:
		}
	}
}
