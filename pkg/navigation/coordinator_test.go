package navigation

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/events"
	"github.com/vango-dev/livesync/pkg/patch"
	"github.com/vango-dev/livesync/pkg/protocol"
	"github.com/vango-dev/livesync/pkg/registry"
)

type fakeChannel struct {
	open bool
	sent []protocol.Frame
}

func (c *fakeChannel) Open() bool { return c.open }
func (c *fakeChannel) Send(f protocol.Frame) { c.sent = append(c.sent, f) }
func (c *fakeChannel) last() protocol.Frame { return c.sent[len(c.sent)-1] }

type fakeHost struct {
	reloads  []string
	scrolls  int
	awaiting []func()
}

func (h *fakeHost) Reload(path string) { h.reloads = append(h.reloads, path) }
func (h *fakeHost) ScrollToTop() { h.scrolls++ }
func (h *fakeHost) AwaitTransitions(done func()) { h.awaiting = append(h.awaiting, done) }

func (h *fakeHost) settle() {
	pending := h.awaiting
	h.awaiting = nil
	for _, done := range pending {
		done()
	}
}

type fakeMetrics struct{ outcomes []string }

func (m *fakeMetrics) Navigation(o string) { m.outcomes = append(m.outcomes, o) }

type harness struct {
	doc     *dom.Document
	reg     *registry.Registry
	ch      *fakeChannel
	host    *fakeHost
	metrics *fakeMetrics
	ticker  *patch.ManualTicker
	disp    *events.Dispatcher
	eng     *patch.Engine
	nav     *Coordinator
	root    *dom.Node
}

func newHarness(t *testing.T, location string) *harness {
	t.Helper()
	u, err := url.Parse(location)
	if err != nil {
		t.Fatal(err)
	}
	h := &harness{
		doc:     dom.New(u),
		reg:     registry.New(),
		ch:      &fakeChannel{open: true},
		host:    &fakeHost{},
		metrics: &fakeMetrics{},
		ticker:  &patch.ManualTicker{},
	}
	h.doc.UserAgent = "livesync-test"
	h.doc.Cookie = "sid=abc"

	pageUID := func() string { return h.nav.PageUID() }
	h.disp = events.New(h.doc, h.ch, pageUID, nil)
	h.eng = patch.New(h.doc, h.reg, h.disp, patch.Options{Ticker: h.ticker, PageUID: pageUID})
	h.nav = New(h.doc, h.ch, h.eng, h.disp, h.host, Options{Metrics: h.metrics})

	h.root = h.doc.CreateElement("main")
	h.doc.Body().AppendChild(h.root)
	if err := h.reg.Register("root", h.root); err != nil {
		t.Fatal(err)
	}
	return h
}

func (h *harness) navigateTo(t *testing.T) *protocol.NavigateTo {
	t.Helper()
	if len(h.ch.sent) == 0 {
		t.Fatal("no frame sent")
	}
	req, err := protocol.DecodeNavigateTo(h.ch.last())
	if err != nil {
		t.Fatalf("DecodeNavigateTo: %v", err)
	}
	return req
}

func TestFallbackToReload(t *testing.T) {
	tests := []struct {
		name     string
		location string
		open     bool
		pageUID  string
	}{
		{"channel closed", "https://example.com/start", false, "p1"},
		{"no page uid", "https://example.com/start", true, ""},
		{"no trusted origin", "/start", true, "p1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.location)
			h.ch.open = tt.open
			if tt.pageUID != "" {
				h.nav.SetPageUID(tt.pageUID)
			}

			if err := h.nav.Navigate(context.Background(), "/next"); err != nil {
				t.Fatalf("Navigate: %v", err)
			}
			if len(h.ch.sent) != 0 {
				t.Errorf("sent %d frames, want none", len(h.ch.sent))
			}
			if len(h.host.reloads) != 1 || h.host.reloads[0] != "/next" {
				t.Errorf("reloads = %v", h.host.reloads)
			}
			if h.nav.State() != Idle {
				t.Errorf("State = %v, want idle", h.nav.State())
			}
		})
	}
}

func TestNavigateSendsRequest(t *testing.T) {
	h := newHarness(t, "https://example.com/start?tab=1")
	h.nav.SetPageUID("p1")

	if err := h.nav.Navigate(context.Background(), "next/"); err != nil {
		t.Fatal(err)
	}
	if h.nav.State() != Requesting {
		t.Fatalf("State = %v, want requesting", h.nav.State())
	}

	req := h.navigateTo(t)
	if req.CurrentPageUID != "p1" || req.Path != "/next" || req.KnownNextUID != "" {
		t.Errorf("request = %+v", req)
	}
	want := map[string]string{
		"Referer":    "https://example.com/start?tab=1",
		"Host":       "example.com",
		"User-Agent": "livesync-test",
		"Cookie":     "sid=abc",
	}
	for k, v := range want {
		if req.Headers[k] != v {
			t.Errorf("header %s = %q, want %q", k, req.Headers[k], v)
		}
	}

	err := h.nav.Navigate(context.Background(), "/other")
	if !errors.Is(err, ErrInFlight) {
		t.Errorf("second Navigate = %v, want ErrInFlight", err)
	}
	if len(h.ch.sent) != 1 {
		t.Errorf("rejected request sent a frame")
	}
}

func TestAbortReturnsToIdle(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")

	if h.nav.Abort("channel reconnecting") {
		t.Error("Abort while idle should report nothing to abort")
	}
	if err := h.nav.Navigate(context.Background(), "/next"); err != nil {
		t.Fatal(err)
	}
	if _, ok := h.nav.PendingSince(); !ok {
		t.Fatal("PendingSince reported no request in flight")
	}

	if !h.nav.Abort("channel reconnecting") {
		t.Fatal("Abort did not abort the pending request")
	}
	if h.nav.State() != Idle {
		t.Errorf("State = %v, want idle", h.nav.State())
	}
	if len(h.host.reloads) != 1 || h.host.reloads[0] != "/next" {
		t.Errorf("reloads = %v, want [/next]", h.host.reloads)
	}
	if got := h.metrics.outcomes; len(got) != 1 || got[0] != "aborted" {
		t.Errorf("outcomes = %v, want [aborted]", got)
	}

	if err := h.nav.Navigate(context.Background(), "/other"); err != nil {
		t.Fatalf("Navigate after Abort = %v", err)
	}
	if req := h.navigateTo(t); req.Path != "/other" {
		t.Errorf("second request path = %q", req.Path)
	}
}

func TestAbortIgnoredOnceResultArrived(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")
	h.nav.Navigate(context.Background(), "/next")
	h.nav.HandleResult(&protocol.NavigationResult{Path: "/next", NextPageUID: "p2", Final: true})

	if h.nav.Abort("channel reconnecting") {
		t.Error("Abort interrupted a transition that was already applying")
	}
	if h.nav.State() != Applying {
		t.Errorf("State = %v, want applying", h.nav.State())
	}
	if len(h.host.reloads) != 0 {
		t.Errorf("reloads = %v, want none", h.host.reloads)
	}
}

func TestInvalidPath(t *testing.T) {
	h := newHarness(t, "https://example.com/")
	h.nav.SetPageUID("p1")
	for _, p := range []string{"//evil.com/x", "https://evil.com", "/a\\b"} {
		if err := h.nav.Navigate(context.Background(), p); !errors.Is(err, ErrInvalidPath) {
			t.Errorf("Navigate(%q) = %v, want ErrInvalidPath", p, err)
		}
	}
	if len(h.ch.sent) != 0 || h.nav.State() != Idle {
		t.Error("invalid path must not start a request")
	}
}

func TestResultAppliesAndFinalizes(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")

	keyTarget := h.doc.CreateElement("div")
	h.root.AppendChild(keyTarget)
	h.disp.BindDocument("p1", keyTarget, []string{"keydown"})

	var inits, loaded int
	h.nav.OnPageInit(func() { inits++ })
	h.doc.AddEventListener(dom.EventContentLoaded, func(*dom.Event) { loaded++ })

	if err := h.nav.Navigate(context.Background(), "/next"); err != nil {
		t.Fatal(err)
	}
	h.nav.HandleResult(&protocol.NavigationResult{
		Path:        "/next",
		NextPageUID: "p2",
		Patches: []protocol.Patch{
			protocol.NewInsertNodePatch("root", 0, protocol.NewElementWire("h1", "title", nil, protocol.NewTextWire("Next"))),
		},
		Final: true,
	})

	if h.nav.PageUID() != "p2" {
		t.Errorf("PageUID = %q, want p2", h.nav.PageUID())
	}
	if h.disp.HandlerCount() != 0 {
		t.Errorf("old page bindings survive: %d handlers", h.disp.HandlerCount())
	}
	if h.nav.State() != Applying {
		t.Errorf("State = %v, want applying", h.nav.State())
	}
	if inits != 0 || loaded != 0 || h.host.scrolls != 0 {
		t.Fatal("page finalized before the batch drained")
	}

	h.ticker.Tick()
	if _, ok := h.reg.Get("title"); !ok {
		t.Fatal("batch not applied")
	}
	if len(h.host.awaiting) != 1 {
		t.Fatalf("AwaitTransitions calls = %d, want 1", len(h.host.awaiting))
	}
	if loaded != 0 {
		t.Fatal("content loaded fired before transitions settled")
	}

	h.host.settle()
	if h.host.scrolls != 1 || inits != 1 || loaded != 1 {
		t.Errorf("scrolls=%d inits=%d loaded=%d, want 1 each", h.host.scrolls, inits, loaded)
	}
	if h.nav.State() != Idle {
		t.Errorf("State = %v, want idle", h.nav.State())
	}

	cur, _ := h.doc.History.Current()
	if cur != (dom.Entry{UID: "p2", Path: "/next"}) || h.doc.History.Len() != 2 {
		t.Errorf("history current = %+v, len %d", cur, h.doc.History.Len())
	}
	if h.doc.URL.Path != "/next" || h.doc.Referrer != "https://example.com/start" {
		t.Errorf("URL = %v, Referrer = %q", h.doc.URL, h.doc.Referrer)
	}
	if got := h.metrics.outcomes; len(got) != 1 || got[0] != "ok" {
		t.Errorf("outcomes = %v", got)
	}
}

func TestPartialResultsStayApplying(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")
	h.nav.Navigate(context.Background(), "/list")

	h.nav.HandleResult(&protocol.NavigationResult{Path: "/list", NextPageUID: "p2"})
	h.ticker.Tick()
	if h.nav.State() != Applying || len(h.host.awaiting) != 0 {
		t.Fatalf("non-final result finalized the page")
	}

	h.nav.HandleResult(&protocol.NavigationResult{Path: "/list", NextPageUID: "p2", Final: true})
	h.ticker.Tick()
	h.host.settle()
	if h.nav.State() != Idle {
		t.Errorf("State = %v, want idle", h.nav.State())
	}
	if h.doc.History.Len() != 2 {
		t.Errorf("history len = %d, want 2", h.doc.History.Len())
	}
}

func TestNavigateToCurrentPushesNothing(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")

	h.nav.Navigate(context.Background(), "/start")
	h.nav.HandleResult(&protocol.NavigationResult{Path: "/start", NextPageUID: "p1", Final: true})
	h.ticker.Tick()
	h.host.settle()

	if h.doc.History.Len() != 1 {
		t.Errorf("history len = %d, want 1", h.doc.History.Len())
	}
}

func TestFullReloadResult(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")
	h.nav.Navigate(context.Background(), "/admin")

	h.nav.HandleResult(&protocol.NavigationResult{Path: "/login", FullReload: true})

	if len(h.host.reloads) != 1 || h.host.reloads[0] != "/login" {
		t.Errorf("reloads = %v", h.host.reloads)
	}
	if h.nav.State() != Idle || h.nav.PageUID() != "p1" {
		t.Errorf("State = %v, PageUID = %q", h.nav.State(), h.nav.PageUID())
	}
}

func TestBack(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")
	h.nav.Navigate(context.Background(), "/next")
	h.nav.HandleResult(&protocol.NavigationResult{Path: "/next", NextPageUID: "p2", Final: true})
	h.ticker.Tick()
	h.host.settle()

	if err := h.nav.Back(context.Background()); err != nil {
		t.Fatal(err)
	}
	req := h.navigateTo(t)
	if req.Path != "/start" || req.KnownNextUID != "p1" || req.CurrentPageUID != "p2" {
		t.Errorf("back request = %+v", req)
	}

	h.nav.HandleResult(&protocol.NavigationResult{Path: "/start", NextPageUID: "p3", Final: true})
	h.ticker.Tick()
	h.host.settle()

	if h.doc.History.Len() != 2 {
		t.Errorf("history len = %d, want 2 (no push on back)", h.doc.History.Len())
	}
	cur, _ := h.doc.History.Current()
	if cur != (dom.Entry{UID: "p3", Path: "/start"}) {
		t.Errorf("current = %+v", cur)
	}
	if fwd, ok := h.doc.History.Forward(); !ok || fwd.Path != "/next" {
		t.Errorf("forward entry = %+v, %v", fwd, ok)
	}
}

func TestInitHookPanicRecovered(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")
	ran := false
	h.nav.OnPageInit(func() { panic("boom") })
	h.nav.OnPageInit(func() { ran = true })

	h.nav.Navigate(context.Background(), "/x")
	h.nav.HandleResult(&protocol.NavigationResult{Path: "/x", NextPageUID: "p2", Final: true})
	h.ticker.Tick()
	h.host.settle()

	if !ran || h.nav.State() != Idle {
		t.Errorf("ran = %v, State = %v", ran, h.nav.State())
	}
}

func TestUnsolicitedResult(t *testing.T) {
	h := newHarness(t, "https://example.com/start")
	h.nav.SetPageUID("p1")

	h.nav.HandleResult(&protocol.NavigationResult{Path: "/pushed", NextPageUID: "p9", Final: true})
	h.ticker.Tick()
	h.host.settle()

	if h.nav.PageUID() != "p9" || h.doc.History.Len() != 2 || h.nav.State() != Idle {
		t.Errorf("PageUID = %q, history len = %d, State = %v", h.nav.PageUID(), h.doc.History.Len(), h.nav.State())
	}
}

func TestCanonicalizePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "/", false},
		{"/", "/", false},
		{"about", "/about", false},
		{"/a//b/", "/a/b", false},
		{"/search?q=go", "/search?q=go", false},
		{"/doc#section", "/doc", false},
		{"/a?", "/a", false},
		{"//host/x", "", true},
		{"http://host/x", "", true},
		{"/a\\b", "", true},
		{"/a\x00", "", true},
	}
	for _, tt := range tests {
		got, err := canonicalizePath(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("canonicalizePath(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("canonicalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
