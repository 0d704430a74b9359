package seo

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAndWithPage(t *testing.T) {
	def := Defaults("Ledgerline", "https://ledgerline.dev/", "Open-source ERP", "/assets/og.png")
	assert.Equal(t, "https://ledgerline.dev/", def.Canonical)
	assert.Equal(t, "https://ledgerline.dev/assets/og.png", def.OG.Image)

	page := def.WithPage("Closing the month", "", "https://ledgerline.dev/blog/closing")
	assert.Equal(t, "Closing the month | Ledgerline", page.Title)
	assert.Equal(t, "Open-source ERP", page.Description)
	assert.Equal(t, "https://ledgerline.dev/blog/closing", page.OG.URL)
	assert.Equal(t, "Ledgerline", def.Title)

	alt := def.WithAlternates("https://ledgerline.dev", "/", []string{"en", "de"})
	require.Len(t, alt.Alternates, 3)
	assert.Equal(t, Alternate{Lang: "de", Href: "https://ledgerline.dev/?hl=de"}, alt.Alternates[1])
	assert.Equal(t, "x-default", alt.Alternates[2].Lang)
}

func TestFAQPageJSON(t *testing.T) {
	out := JSON(FAQPage([]Question{{Name: "Can I self-host?", Answer: "Yes."}}))
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "FAQPage", decoded["@type"])
	entities := decoded["mainEntity"].([]any)
	require.Len(t, entities, 1)
	q := entities[0].(map[string]any)
	assert.Equal(t, "Can I self-host?", q["name"])
	assert.Equal(t, "Yes.", q["acceptedAnswer"].(map[string]any)["text"])
}

func TestSoftwareApplicationOffers(t *testing.T) {
	m := SoftwareApplication("Ledgerline", "", "https://ledgerline.dev", []Offer{{Name: "Team", Price: "12.00", Currency: "USD"}})
	offers := m["offers"].([]map[string]any)
	require.Len(t, offers, 1)
	assert.Equal(t, "USD", offers[0]["priceCurrency"])
	_, hasDesc := m["description"]
	assert.False(t, hasDesc)
}

func TestBreadcrumbListPositions(t *testing.T) {
	m := BreadcrumbList([]BreadcrumbItem{{Name: "Home", Item: "https://x/"}, {Name: "Blog", Item: "https://x/#blog"}})
	el := m["itemListElement"].([]map[string]any)
	assert.Equal(t, 1, el[0]["position"])
	assert.Equal(t, 2, el[1]["position"])
}

func TestArticleOptionalFields(t *testing.T) {
	m := Article("Hello", "", "", "Ops", "2026-03-01", "")
	assert.Equal(t, map[string]any{"@type": "Person", "name": "Ops"}, m["author"])
	_, ok := m["dateModified"]
	assert.False(t, ok)
}

func TestWriteSitemap(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSitemap(&buf, "https://ledgerline.dev/", []SitemapEntry{
		{Path: "/", ChangeFreq: "weekly", Priority: 1},
		{Path: "/blog/closing", LastMod: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	})
	require.NoError(t, err)
	out := buf.String()
	assert.Contains(t, out, `<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
	assert.Contains(t, out, "<loc>https://ledgerline.dev/</loc>")
	assert.Contains(t, out, "<priority>1.0</priority>")
	assert.Contains(t, out, "<loc>https://ledgerline.dev/blog/closing</loc>")
	assert.Contains(t, out, "<lastmod>2026-03-01</lastmod>")
	assert.NotContains(t, out, "<priority>0.0</priority>")
}
