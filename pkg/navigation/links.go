package navigation

import (
	"context"
	"net/url"

	"github.com/vango-dev/livesync/pkg/dom"
	"github.com/vango-dev/livesync/pkg/routepath"
)

// canonicalizePath normalizes a relative navigation target. The query is
// kept; a fragment is dropped.
func canonicalizePath(path string) (string, error) {
	res, err := routepath.Canonicalize(path)
	if err != nil {
		return "", err
	}
	return res.String(), nil
}

// InterceptLinks routes same-origin anchor clicks through Navigate.
// Clicks with a modifier key or a non-primary button, anchors with a target
// or download attribute, foreign origins and in-page fragment jumps are left
// alone. The returned func removes the listener.
func (c *Coordinator) InterceptLinks(ctx context.Context) (stop func()) {
	id := c.doc.AddEventListener("click", func(ev *dom.Event) {
		target, ok := c.linkTarget(ev)
		if !ok {
			return
		}
		ev.PreventDefault()
		if err := c.Navigate(ctx, target); err != nil {
			c.logger.Debug("link navigation not started", "path", target, "error", err)
		}
	})
	return func() { c.doc.RemoveEventListener("click", id) }
}

// linkTarget returns the request URI of the anchor activated by ev.
func (c *Coordinator) linkTarget(ev *dom.Event) (string, bool) {
	if ev.DefaultPrevented() || ev.Target == nil {
		return "", false
	}
	if ev.Button != 0 || ev.Modifiers.Any() {
		return "", false
	}
	a := ev.Target.Closest("a")
	if a == nil {
		return "", false
	}
	href, ok := a.Attr("href")
	if !ok || href == "" {
		return "", false
	}
	if t, ok := a.Attr("target"); ok && t != "" && t != "_self" {
		return "", false
	}
	if a.HasAttr("download") {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil || c.doc.URL == nil {
		return "", false
	}
	dest := c.doc.URL.ResolveReference(ref)
	if dest.Scheme != "http" && dest.Scheme != "https" {
		return "", false
	}
	origin := c.doc.Origin()
	if origin == "" || dest.Scheme+"://"+dest.Host != origin {
		return "", false
	}
	if routepath.SameDocument(c.doc.URL.RequestURI(), dest.RequestURI()+"#"+dest.Fragment) {
		return "", false
	}
	return dest.RequestURI(), true
}
