package cms

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, body string) {
	t.Helper()
	file := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(body), 0o644))
}

const landingYAML = `
hero:
  title: Run your books in the open
faq:
  - id: Self-Hosting
    question: Can I self-host?
    answer: "Yes. See the **install guide**.<script>alert(1)</script>"
  - id: licence
    question: Which licence?
    answer: AGPL-3.0
pricing:
  - id: team
    name: Team
    price_monthly: 1200
    currency: USD
case_studies:
  - slug: Acme
    company: Acme
`

func TestLandingLoadsAndRendersFAQ(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "landing/en.yaml", landingYAML)

	store := NewStore(dir, "en")
	l, err := store.Landing(context.Background(), "en")
	require.NoError(t, err)

	assert.Equal(t, "Run your books in the open", l.Hero.Title)
	require.Len(t, l.FAQ, 2)
	assert.Equal(t, "self-hosting", l.FAQ[0].ID)
	assert.Contains(t, string(l.FAQ[0].AnswerHTML), "<strong>install guide</strong>")
	assert.NotContains(t, string(l.FAQ[0].AnswerHTML), "<script>")

	item, ok := l.FAQItem("licence")
	require.True(t, ok)
	assert.Equal(t, "Which licence?", item.Question)
	_, ok = l.FAQItem("missing")
	assert.False(t, ok)

	tier, ok := l.Tier("team")
	require.True(t, ok)
	assert.EqualValues(t, 1200, tier.PriceMonthly)
	assert.Equal(t, "case-study-acme", l.CaseStudies[0].Fragment())
}

func TestLandingFallsBackToDefaultLanguage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "landing/en.yaml", landingYAML)

	l, err := NewStore(dir, "en").Landing(context.Background(), "de-DE")
	require.NoError(t, err)
	assert.Equal(t, "en", l.Lang)
}

func TestLandingMissing(t *testing.T) {
	_, err := NewStore(t.TempDir(), "en").Landing(context.Background(), "en")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLandingCache(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "landing/en.yaml", landingYAML)
	store := NewStore(dir, "en")

	_, err := store.Landing(context.Background(), "en")
	require.NoError(t, err)
	writeFile(t, dir, "landing/en.yaml", "hero:\n  title: Changed\n")

	l, err := store.Landing(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "Run your books in the open", l.Hero.Title)

	store.SetCacheTTL(0)
	l, err = store.Landing(context.Background(), "en")
	require.NoError(t, err)
	assert.Equal(t, "Changed", l.Hero.Title)
}

func TestCacheTTLChangesWhileServing(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "landing/en.yaml", landingYAML)
	writeFile(t, dir, "blog/en/hello.md", "---\ntitle: Hello\ndate: 2026-01-02\n---\nBody\n")
	store := NewStore(dir, "en")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := store.Landing(context.Background(), "en")
			assert.NoError(t, err)
			_, err = store.Posts(context.Background(), "en")
			assert.NoError(t, err)
		}()
		go func(i int) {
			defer wg.Done()
			store.SetCacheTTL(time.Duration(i%2) * time.Minute)
		}(i)
	}
	wg.Wait()
}

func TestPostsSortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blog/en/closing-the-month.md", `---
title: Closing the month in a day
summary: How we cut close time.
author: Ops team
date: 2026-03-01
tags: [finance]
---
## Steps

Reconcile first.
`)
	writeFile(t, dir, "blog/en/inventory-basics.md", `---
date: 2026-05-10
---
Body.
`)
	writeFile(t, dir, "blog/en/unreleased.md", "---\ndraft: true\n---\nSoon.\n")
	writeFile(t, dir, "blog/de/inventory-basics.md", "---\ntitle: Lager Grundlagen\ndate: 2026-05-10\n---\nText.\n")

	store := NewStore(dir, "en")
	posts, err := store.Posts(context.Background(), "en")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "inventory-basics", posts[0].Slug)
	assert.Equal(t, "Inventory Basics", posts[0].Title)
	assert.Equal(t, "closing-the-month", posts[1].Slug)
	assert.Equal(t, "blog-closing-the-month", posts[1].Fragment())
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), posts[1].PublishedAt)
	assert.Equal(t, posts[1].PublishedAt, posts[1].UpdatedAt)
	assert.Contains(t, string(posts[1].Body), `<h2 id="steps">Steps</h2>`)

	de, err := store.Posts(context.Background(), "de")
	require.NoError(t, err)
	require.Len(t, de, 2)
	assert.Equal(t, "Lager Grundlagen", de[0].Title)
	assert.Equal(t, "de", de[0].Lang)
	assert.Equal(t, "en", de[1].Lang)
}

func TestPostLookup(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "blog/en/hello.md", "# Hello\n")
	store := NewStore(dir, "en")

	p, err := store.Post(context.Background(), "Hello", "en")
	require.NoError(t, err)
	assert.Equal(t, "hello", p.Slug)

	_, err = store.Post(context.Background(), "../etc/passwd", "en")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = store.Post(context.Background(), "nope", "en")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestRenderMarkdownSanitises(t *testing.T) {
	html, err := RenderMarkdown("[x](javascript:alert(1)) and [ok](https://ledgerline.dev)")
	require.NoError(t, err)
	out := string(html)
	assert.NotContains(t, out, "javascript:")
	assert.True(t, strings.Contains(out, `href="https://ledgerline.dev"`))
	assert.Contains(t, out, `rel="nofollow"`)
}

func TestSplitFrontMatter(t *testing.T) {
	fm, body := splitFrontMatter("---\ntitle: x\n---\n\nbody")
	assert.Equal(t, "title: x", fm)
	assert.Equal(t, "body", body)

	fm, body = splitFrontMatter("no front matter")
	assert.Empty(t, fm)
	assert.Equal(t, "no front matter", body)
}
