// Package sectionrouter keeps the active landing page section, the location
// fragment, the scroll position and analytics page views in agreement.
//
// The router has two states, Home and Section(id). It never touches a
// browser: every side effect goes through the injected Navigator, which the
// web layer implements as htmx response directives.
package sectionrouter

import (
	"context"
	"math"

	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/chrome"
	"finitefield.org/ledgerline-web/internal/sections"
)

// State is the visitor's navigation state. Fragment is "" (home) or a
// registered section id.
type State struct {
	Fragment string  `json:"f,omitempty"`
	ScrollY  float64 `json:"y,omitempty"`
}

// Kind names the router state.
type Kind string

const (
	KindHome    Kind = "home"
	KindSection Kind = "section"
)

// Kind reports the router state for s.
func (s State) Kind() Kind {
	if s.Fragment == "" {
		return KindHome
	}
	return KindSection
}

// Navigator is the navigation context the router drives.
type Navigator interface {
	// Path is the current location path without fragment, e.g. "/".
	Path() string
	// PushFragment records fragment in history in place of the browser's
	// default link navigation.
	PushFragment(fragment string)
	ScrollToTop()
	// ScrollToAnchor smooth-scrolls to a registered anchor.
	ScrollToAnchor(anchor sections.Anchor)
	// ResetMeta restores the default page title and description.
	ResetMeta()
}

// Transition describes the outcome of one fragment change.
type Transition struct {
	From      State
	To        State
	Kind      Kind
	Requested string // normalised fragment as requested, kept even when unknown
	Known     bool
	Anchor    sections.Anchor
	Chrome    chrome.State
}

// Router applies fragment changes and scroll samples to a State.
type Router struct {
	registry *sections.Registry
	gate     chrome.Gate
	tracker  analytics.Tracker
	logger   *zap.Logger
}

// Option configures a Router.
type Option func(*Router)

// WithTracker sets the analytics capability. Defaults to analytics.Nop.
func WithTracker(t analytics.Tracker) Option {
	return func(r *Router) {
		if t != nil {
			r.tracker = t
		}
	}
}

// WithLogger sets the logger used for swallowed analytics failures.
func WithLogger(l *zap.Logger) Option {
	return func(r *Router) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithGate overrides the chrome gate. Defaults to the stock policy.
func WithGate(g chrome.Gate) Option {
	return func(r *Router) { r.gate = g }
}

// New builds a router over a section registry.
func New(registry *sections.Registry, opts ...Option) *Router {
	r := &Router{
		registry: registry,
		gate:     chrome.NewGate(chrome.DefaultPolicy()),
		tracker:  analytics.Nop,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = sections.New()
	}
	return r
}

// Registry exposes the read-only section registry.
func (r *Router) Registry() *sections.Registry { return r.registry }

// Activate handles an in-page link: the fragment is pushed to history and the
// state transitions to it.
func (r *Router) Activate(ctx context.Context, nav Navigator, st *State, fragment string) Transition {
	id := sections.Normalize(fragment)
	nav.PushFragment(id)
	return r.apply(ctx, nav, st, id)
}

// Sync re-derives state after an external fragment change (initial load,
// back/forward). History is left alone.
func (r *Router) Sync(ctx context.Context, nav Navigator, st *State, fragment string) Transition {
	return r.apply(ctx, nav, st, sections.Normalize(fragment))
}

// Scroll records a scroll sample and returns the recomputed chrome. It emits
// nothing and has no other side effects. Non-finite samples are ignored.
func (r *Router) Scroll(st *State, y float64) chrome.State {
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return r.Chrome(*st)
	}
	if y < 0 {
		y = 0
	}
	st.ScrollY = y
	return r.Chrome(*st)
}

// Chrome derives chrome for a state.
func (r *Router) Chrome(st State) chrome.State {
	return r.gate.Evaluate(st.Fragment, st.ScrollY)
}

func (r *Router) apply(ctx context.Context, nav Navigator, st *State, id string) Transition {
	t := Transition{From: *st, Requested: id}

	anchor, known := r.registry.Lookup(id)
	switch {
	case id == "":
		st.Fragment = ""
		st.ScrollY = 0
		nav.ScrollToTop()
		nav.ResetMeta()
		t.Known = true
	case known:
		st.Fragment = anchor.ID
		nav.ScrollToAnchor(anchor)
		t.Known = true
		t.Anchor = anchor
	default:
		// Unknown fragments behave like home without moving the page.
		st.Fragment = ""
		r.logger.Debug("unknown fragment", zap.String("fragment", id))
	}

	t.To = *st
	t.Kind = st.Kind()
	t.Chrome = r.Chrome(*st)
	r.pageView(ctx, nav.Path(), id)
	return t
}

func (r *Router) pageView(ctx context.Context, path, fragment string) {
	if path == "" {
		path = "/"
	}
	if fragment != "" {
		path += "#" + fragment
	}
	if err := r.tracker.Track(ctx, analytics.EventPageView, map[string]any{"path": path}); err != nil {
		r.logger.Warn("page view tracking failed", zap.String("path", path), zap.Error(err))
	}
}
