package client

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/livesync/internal/authoritytest"
	"github.com/vango-dev/livesync/pkg/conn"
	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/protocol"
	"github.com/vango-dev/livesync/pkg/registry"
)

const waitTimeout = 2 * time.Second

type fixture struct {
	auth    *authoritytest.Authority
	host    *HeadlessHost
	sess    *Session
	batches chan struct{}
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()
	f := &fixture{
		auth:    authoritytest.New(t),
		host:    &HeadlessHost{},
		batches: make(chan struct{}, 16),
	}
	cfg := DefaultConfig().
		WithURL(f.auth.URL()).
		WithLocation("http://app.test/start").
		WithCookie("sid=42").
		WithBackoff(conn.Backoff{Initial: time.Millisecond, Factor: 2, Attempts: 2})
	cfg.FrameInterval = time.Millisecond
	if mutate != nil {
		mutate(cfg)
	}

	sess, err := New(cfg, f.host)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess.OnBatch = func() {
		select {
		case f.batches <- struct{}{}:
		default:
		}
	}
	f.sess = sess
	t.Cleanup(func() { sess.Close() })
	return f
}

func (f *fixture) start(t *testing.T) *authoritytest.Peer {
	t.Helper()
	ctx := context.Background()
	if err := f.sess.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.sess.Mount(ctx, "p1", "root"); err != nil {
		t.Fatalf("Mount: %v", err)
	}
	return f.auth.Accept(t, waitTimeout)
}

func (f *fixture) waitBatch(t *testing.T) {
	t.Helper()
	select {
	case <-f.batches:
	case <-time.After(waitTimeout):
		t.Fatal("no batch drained")
	}
}

func (f *fixture) node(t *testing.T, uid string) *dom.Node {
	t.Helper()
	var n *dom.Node
	err := f.sess.Inspect(context.Background(), func(_ *dom.Document, reg *registry.Registry) {
		n, _ = reg.Get(uid)
	})
	if err != nil || n == nil {
		t.Fatalf("node %q not registered (err=%v)", uid, err)
	}
	return n
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewRequiresURL(t *testing.T) {
	if _, err := New(DefaultConfig(), nil); err == nil {
		t.Fatal("expected error without URL")
	}
	if _, err := New(DefaultConfig().WithURL("ws://x").WithLocation("http://[::1"), nil); err == nil {
		t.Fatal("expected error for bad location")
	}
}

func TestApplyPatchFromAuthority(t *testing.T) {
	f := newFixture(t, nil)
	peer := f.start(t)

	peer.Send(protocol.ApplyPatchFrame([]protocol.Patch{
		protocol.NewInsertNodePatch("root", 0, protocol.NewElementWire("p", "msg", map[string]string{"class": "note"},
			protocol.NewTextWire("hello"))),
	}))
	f.waitBatch(t)

	html, err := f.sess.HTML(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(html, `<p class="note" data-ls-uid="msg">hello</p>`) {
		t.Errorf("HTML = %s", html)
	}
}

func TestEventRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	peer := f.start(t)

	peer.Send(protocol.ApplyPatchFrame([]protocol.Patch{
		protocol.NewInsertNodePatch("root", 0, protocol.NewElementWire("button", "b1",
			map[string]string{dom.PropEvents: "click"})),
	}))
	f.waitBatch(t)

	button := f.node(t, "b1")
	if err := f.sess.Dispatch(context.Background(), &dom.Event{Type: "click", Target: button}); err != nil {
		t.Fatal(err)
	}

	ev, err := protocol.DecodeComponentEvent(peer.Next(t, waitTimeout))
	if err != nil {
		t.Fatal(err)
	}
	if ev.PageUID != "p1" || ev.TargetUID != "b1" || ev.Name != "click" || ev.DocumentScoped {
		t.Errorf("event = %+v", ev)
	}
}

func TestExecuteJSFeedback(t *testing.T) {
	f := newFixture(t, nil)
	peer := f.start(t)

	peer.Send((&protocol.ExecuteJS{
		Code:           "var x = 1",
		ResultExpr:     "x + 1",
		NeedsFeedback:  true,
		CorrelationUID: "c1",
	}).Frame())

	res, err := protocol.DecodeExecResult(peer.Next(t, waitTimeout))
	if err != nil {
		t.Fatal(err)
	}
	if res.Result != int64(2) || res.Err != "" || res.CorrelationUID != "c1" {
		t.Errorf("result = %+v", res)
	}
}

func TestNavigationRoundTrip(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.OnFrame(func(p *authoritytest.Peer, fr protocol.Frame) {
		if fr.Op != protocol.OpNavigateTo {
			return
		}
		req, err := protocol.DecodeNavigateTo(fr)
		if err != nil {
			return
		}
		p.Send((&protocol.NavigationResult{
			Path:        req.Path,
			NextPageUID: "p2",
			Patches: []protocol.Patch{
				protocol.NewAlterTextPatch("root", "page two"),
			},
			Final: true,
		}).Frame())
	})
	peer := f.start(t)

	inits := 0
	if err := f.sess.OnPageInit(context.Background(), func() { inits++ }); err != nil {
		t.Fatal(err)
	}
	if err := f.sess.Navigate(context.Background(), "/two"); err != nil {
		t.Fatal(err)
	}
	req, err := protocol.DecodeNavigateTo(peer.Next(t, waitTimeout))
	if err != nil {
		t.Fatal(err)
	}
	if req.CurrentPageUID != "p1" || req.Headers["Cookie"] != "sid=42" || req.Headers["Host"] != "app.test" {
		t.Errorf("request = %+v", req)
	}

	f.waitBatch(t)
	var (
		cur   dom.Entry
		text  string
		ready bool
		ran   int
	)
	f.sess.Inspect(context.Background(), func(doc *dom.Document, _ *registry.Registry) {
		cur, _ = doc.History.Current()
		text = doc.Body().TextContent()
		ready = doc.Ready()
		ran = inits
	})
	if ran != 1 {
		t.Errorf("page init hooks ran %d times, want 1", ran)
	}
	if cur != (dom.Entry{UID: "p2", Path: "/two"}) {
		t.Errorf("history = %+v", cur)
	}
	if text != "page two" || !ready {
		t.Errorf("text = %q, ready = %v", text, ready)
	}
	if f.host.Scrolls() != 1 {
		t.Errorf("scrolls = %d", f.host.Scrolls())
	}
}

func TestNavigationAbortedWhenChannelDrops(t *testing.T) {
	f := newFixture(t, nil)
	peer := f.start(t)
	ctx := context.Background()

	if err := f.sess.Navigate(ctx, "/next"); err != nil {
		t.Fatal(err)
	}
	if _, err := protocol.DecodeNavigateTo(peer.Next(t, waitTimeout)); err != nil {
		t.Fatal(err)
	}
	peer.Drop()

	second := f.auth.Accept(t, waitTimeout)
	eventually(t, "reload of the pending path", func() bool {
		got := f.host.Reloads()
		return len(got) == 1 && got[0] == "/next"
	})
	eventually(t, "channel reopened", f.sess.Conn().Open)

	if err := f.sess.Navigate(ctx, "/other"); err != nil {
		t.Fatalf("Navigate after drop = %v", err)
	}
	req, err := protocol.DecodeNavigateTo(second.Next(t, waitTimeout))
	if err != nil {
		t.Fatal(err)
	}
	if req.Path != "/other" {
		t.Errorf("request path = %q, want /other", req.Path)
	}
}

func TestComponentUnknownReloads(t *testing.T) {
	f := newFixture(t, nil)
	peer := f.start(t)

	peer.Send((&protocol.ComponentUnknown{MustReload: false}).Frame())
	peer.Send((&protocol.ComponentUnknown{MustReload: true}).Frame())

	deadline := time.Now().Add(waitTimeout)
	for len(f.host.Reloads()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.host.Reloads(); len(got) != 1 || got[0] != "/start" {
		t.Errorf("reloads = %v", got)
	}
}

func TestNavigateWhileClosedReloads(t *testing.T) {
	f := newFixture(t, nil)
	f.auth.Refuse(true)

	ctx := context.Background()
	if err := f.sess.Start(ctx); err == nil {
		t.Fatal("Start should report the failed dial")
	}
	if err := f.sess.Mount(ctx, "p1", "root"); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(waitTimeout)
	for f.sess.Conn().Reconnecting() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := f.sess.Navigate(ctx, "/next"); err != nil {
		t.Fatal(err)
	}
	if got := f.host.Reloads(); len(got) != 1 || got[0] != "/next" {
		t.Errorf("reloads = %v", got)
	}
	if f.auth.Accepted() != 0 {
		t.Error("no connection should have been accepted")
	}
}

func TestContentLoadedFlushedOnOpen(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	deadline := time.Now().Add(waitTimeout)
	for time.Now().Before(deadline) {
		var ready bool
		f.sess.Inspect(context.Background(), func(doc *dom.Document, _ *registry.Registry) { ready = doc.Ready() })
		if ready {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("DOMContentLoaded not fired after open")
}

func TestDriftWarnsHost(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)

	root := f.node(t, "root")
	f.sess.Do(context.Background(), func() { root.SetAttr("class", "tampered") })

	if got := f.host.Warnings(); len(got) != 1 {
		t.Errorf("warnings = %v, want 1", got)
	}
}

func TestClosedSession(t *testing.T) {
	f := newFixture(t, nil)
	f.start(t)
	f.sess.Close()

	if err := f.sess.Navigate(context.Background(), "/x"); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Navigate after Close = %v", err)
	}
	if f.sess.Post(func() {}) {
		t.Error("Post after Close should fail")
	}
	f.sess.Close()
}

func TestConfigCloneAndDefaults(t *testing.T) {
	base := DefaultConfig().WithGlobal("appName", "demo")
	clone := base.Clone()
	clone.Globals["appName"] = "changed"
	if base.Globals["appName"] != "demo" {
		t.Error("Clone shares Globals")
	}

	cfg := &Config{URL: "ws://x"}
	cfg.fill()
	d := DefaultConfig()
	if cfg.Backoff != d.Backoff || cfg.FrameInterval != d.FrameInterval || cfg.Logger == nil {
		t.Errorf("fill left zero values: %+v", cfg)
	}

	var nilCfg *Config
	if nilCfg.Clone() != nil {
		t.Error("nil Clone should be nil")
	}
}
