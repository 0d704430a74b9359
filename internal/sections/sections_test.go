package sections

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNormalizesAndKeepsFirstDuplicate(t *testing.T) {
	r := New(
		Anchor{ID: "#About", Title: "About"},
		Anchor{ID: "about", Title: "Duplicate"},
		Anchor{ID: "  "},
		Anchor{ID: "pricing", Title: "Pricing"},
	)
	require.Equal(t, 2, r.Len())
	a, ok := r.Lookup("#about")
	require.True(t, ok)
	require.Equal(t, "About", a.Title)
	require.True(t, r.Has("PRICING"))
	require.False(t, r.Has(""))
	require.Equal(t, []string{"about", "pricing"}, r.IDs())
}

func TestNilRegistryIsEmpty(t *testing.T) {
	var r *Registry
	require.False(t, r.Has("about"))
	require.Zero(t, r.Len())
	require.Nil(t, r.IDs())
}

func TestFromHTML(t *testing.T) {
	page := `<!doctype html><html><body>
<header id="top"></header>
<section id="about" data-section="about" data-section-title="About Ledgerline"></section>
<section id="pricing" data-section="pricing"></section>
<article id="case-study-acme" data-section="case-study" data-section-title="Acme Foods"></article>
<div id="not-a-section"></div>
<section data-section="orphan"></section>
</body></html>`

	r, err := FromHTML(strings.NewReader(page))
	require.NoError(t, err)
	require.Equal(t, []string{"about", "case-study-acme", "pricing"}, r.IDs())

	a, ok := r.Lookup("case-study-acme")
	require.True(t, ok)
	require.Equal(t, "case-study", a.Kind)
	require.Equal(t, "Acme Foods", a.Title)
	require.False(t, r.Has("top"))
	require.False(t, r.Has("not-a-section"))
}
