package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"finitefield.org/ledgerline-web/internal/sections"
	"finitefield.org/ledgerline-web/internal/seo"
)

// htmx client events raised through HX-Trigger; public/assets/app.js
// performs the actual scrolling and meta updates.
const (
	eventScrollTop = "nav:scroll-top"
	eventScrollTo  = "nav:scroll-to"
	eventResetMeta = "nav:reset-meta"
)

// htmxNavigator collects router side effects and flushes them as htmx
// response headers.
type htmxNavigator struct {
	path     string
	defaults seo.Meta
	pushURL  string
	events   map[string]any
}

func newHTMXNavigator(path string, defaults seo.Meta) *htmxNavigator {
	return &htmxNavigator{path: cleanNavPath(path), defaults: defaults, events: map[string]any{}}
}

// cleanNavPath only accepts same-origin absolute paths.
func cleanNavPath(p string) string {
	p = strings.TrimSpace(p)
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") {
		return "/"
	}
	return p
}

func (n *htmxNavigator) Path() string { return n.path }

func (n *htmxNavigator) PushFragment(fragment string) {
	if fragment == "" {
		n.pushURL = n.path
		return
	}
	n.pushURL = n.path + "#" + fragment
}

func (n *htmxNavigator) ScrollToTop() {
	n.events[eventScrollTop] = map[string]any{"behavior": "smooth"}
}

func (n *htmxNavigator) ScrollToAnchor(anchor sections.Anchor) {
	n.events[eventScrollTo] = map[string]any{"id": anchor.ID, "behavior": "smooth"}
}

func (n *htmxNavigator) ResetMeta() {
	n.events[eventResetMeta] = map[string]any{
		"title":       n.defaults.Title,
		"description": n.defaults.Description,
		"canonical":   n.defaults.Canonical,
	}
}

// flush writes the collected directives. It must run before the body.
func (n *htmxNavigator) flush(w http.ResponseWriter) {
	if n.pushURL != "" {
		w.Header().Set("HX-Push-Url", n.pushURL)
	}
	if len(n.events) == 0 {
		return
	}
	b, err := json.Marshal(n.events)
	if err != nil {
		return
	}
	w.Header().Set("HX-Trigger", string(b))
}
