package sectionrouter

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/chrome"
	"finitefield.org/ledgerline-web/internal/sections"
)

type fakeNav struct {
	path      string
	pushed    []string
	scrollTop int
	scrolled  []string
	metaReset int
}

func (f *fakeNav) Path() string                     { return f.path }
func (f *fakeNav) PushFragment(fragment string)     { f.pushed = append(f.pushed, fragment) }
func (f *fakeNav) ScrollToTop()                     { f.scrollTop++ }
func (f *fakeNav) ScrollToAnchor(a sections.Anchor) { f.scrolled = append(f.scrolled, a.ID) }
func (f *fakeNav) ResetMeta()                       { f.metaReset++ }

func testRegistry() *sections.Registry {
	return sections.New(
		sections.Anchor{ID: "about", Kind: "about"},
		sections.Anchor{ID: "contact", Kind: "contact"},
		sections.Anchor{ID: "pricing", Kind: "pricing"},
		sections.Anchor{ID: "free-trial", Kind: "cta"},
		sections.Anchor{ID: "feature-inventory", Kind: "feature"},
		sections.Anchor{ID: "case-study-acme", Kind: "case-study", Title: "Acme Foods"},
		sections.Anchor{ID: "blog-v2-release", Kind: "blog"},
	)
}

func TestActivateKnownFragments(t *testing.T) {
	reg := testRegistry()
	r := New(reg)

	for _, id := range reg.IDs() {
		nav := &fakeNav{path: "/"}
		var st State
		tr := r.Activate(context.Background(), nav, &st, "#"+id)

		require.Equal(t, id, st.Fragment)
		require.Equal(t, KindSection, tr.Kind)
		require.True(t, tr.Known)
		require.Equal(t, []string{id}, nav.pushed)
		require.Equal(t, []string{id}, nav.scrolled)
		require.Zero(t, nav.scrollTop)
		require.Zero(t, nav.metaReset)
	}
}

func TestActivateHomeResetsScrollAndMeta(t *testing.T) {
	r := New(testRegistry())
	nav := &fakeNav{path: "/"}
	st := State{Fragment: "about", ScrollY: 1800}

	tr := r.Activate(context.Background(), nav, &st, "")

	require.Equal(t, State{}, st)
	require.Equal(t, KindHome, tr.Kind)
	require.Equal(t, State{Fragment: "about", ScrollY: 1800}, tr.From)
	require.Equal(t, 1, nav.scrollTop)
	require.Equal(t, 1, nav.metaReset)
	require.Equal(t, []string{""}, nav.pushed)
	require.False(t, tr.Chrome.StickyVisible)
	require.Equal(t, chrome.HeaderOverlay, tr.Chrome.Header)
}

func TestUnknownFragmentFallsBackToHomeWithoutScrolling(t *testing.T) {
	rec := &analytics.Recorder{}
	r := New(testRegistry(), WithTracker(rec))
	nav := &fakeNav{path: "/"}
	st := State{Fragment: "about", ScrollY: 900}

	tr := r.Sync(context.Background(), nav, &st, "#does-not-exist")

	require.Equal(t, "", st.Fragment)
	require.Equal(t, 900.0, st.ScrollY)
	require.Equal(t, KindHome, tr.Kind)
	require.False(t, tr.Known)
	require.Equal(t, "does-not-exist", tr.Requested)
	require.Zero(t, nav.scrollTop)
	require.Empty(t, nav.scrolled)
	require.Zero(t, nav.metaReset)

	views := rec.Named(analytics.EventPageView)
	require.Len(t, views, 1)
	require.Equal(t, "/#does-not-exist", views[0].Props["path"])
}

func TestSyncDoesNotPushHistory(t *testing.T) {
	r := New(testRegistry())
	nav := &fakeNav{path: "/"}
	var st State
	r.Sync(context.Background(), nav, &st, "#pricing")
	require.Empty(t, nav.pushed)
	require.Equal(t, "pricing", st.Fragment)
}

func TestEveryTransitionEmitsOnePageView(t *testing.T) {
	rec := &analytics.Recorder{}
	r := New(testRegistry(), WithTracker(rec))
	nav := &fakeNav{path: "/"}
	var st State

	r.Sync(context.Background(), nav, &st, "")
	r.Activate(context.Background(), nav, &st, "#about")
	r.Sync(context.Background(), nav, &st, "#pricing")
	r.Scroll(&st, 1000)

	var paths []any
	for _, e := range rec.Named(analytics.EventPageView) {
		paths = append(paths, e.Props["path"])
	}
	require.Equal(t, []any{"/", "/#about", "/#pricing"}, paths)
}

func TestAnalyticsFailureIsLoggedAndIgnored(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	r := New(testRegistry(),
		WithTracker(&analytics.Recorder{Err: errors.New("dataLayer missing")}),
		WithLogger(zap.New(core)),
	)
	nav := &fakeNav{path: "/"}
	var st State

	tr := r.Activate(context.Background(), nav, &st, "#about")

	require.Equal(t, "about", st.Fragment)
	require.True(t, tr.Known)
	require.Equal(t, 1, logs.FilterMessage("page view tracking failed").Len())
}

func TestStickyBarScenario(t *testing.T) {
	r := New(testRegistry())
	nav := &fakeNav{path: "/"}
	var st State

	tr := r.Sync(context.Background(), nav, &st, "")
	require.False(t, tr.Chrome.StickyVisible)
	require.False(t, r.Scroll(&st, 2000).StickyVisible, "home never shows the sticky bar")

	r.Activate(context.Background(), nav, &st, "#about")
	require.True(t, r.Scroll(&st, 301).StickyVisible)

	tr = r.Activate(context.Background(), nav, &st, "#pricing")
	require.Equal(t, 301.0, st.ScrollY)
	require.False(t, tr.Chrome.StickyVisible)
	require.False(t, r.Scroll(&st, 800).StickyVisible)
}

func TestScrollClampsNegative(t *testing.T) {
	r := New(nil)
	st := State{Fragment: "about"}
	r.Scroll(&st, -40)
	require.Zero(t, st.ScrollY)
}

func TestScrollIgnoresNonFiniteSamples(t *testing.T) {
	r := New(testRegistry())
	st := State{Fragment: "about", ScrollY: 120}
	for _, y := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		cs := r.Scroll(&st, y)
		require.Equal(t, 120.0, st.ScrollY)
		require.False(t, cs.StickyVisible)
	}
}

func TestCustomGate(t *testing.T) {
	gate := chrome.Gate{Policy: chrome.Policy{ShowOnHome: true}, StickyThreshold: 10}
	r := New(testRegistry(), WithGate(gate))
	st := State{}
	require.True(t, r.Scroll(&st, 11).StickyVisible)
}

func TestPageViewUsesNavigatorPath(t *testing.T) {
	rec := &analytics.Recorder{}
	r := New(testRegistry(), WithTracker(rec))
	var st State
	r.Sync(context.Background(), &fakeNav{path: "/de"}, &st, "#contact")
	r.Sync(context.Background(), &fakeNav{path: ""}, &st, "")

	views := rec.Named(analytics.EventPageView)
	require.Equal(t, "/de#contact", views[0].Props["path"])
	require.Equal(t, "/", views[1].Props["path"])
}
