// Package seo builds page metadata, schema.org JSON-LD payloads and the
// sitemap.
package seo

import "strings"

type OpenGraph struct {
	Title       string
	Description string
	Image       string
	Type        string
	URL         string
}

type Twitter struct {
	Card  string
	Site  string
	Image string
}

// Alternate is an hreflang link.
type Alternate struct {
	Lang string
	Href string
}

type Meta struct {
	Title       string
	Description string
	Canonical   string
	Robots      string
	OG          OpenGraph
	Twitter     Twitter
	Alternates  []Alternate
}

// Defaults is the metadata the section router restores when the visitor
// returns to the top of the landing page.
func Defaults(siteName, baseURL, description, ogImage string) Meta {
	baseURL = strings.TrimRight(baseURL, "/")
	return Meta{
		Title:       siteName,
		Description: description,
		Canonical:   baseURL + "/",
		OG: OpenGraph{
			Title:       siteName,
			Description: description,
			Image:       absolute(baseURL, ogImage),
			Type:        "website",
			URL:         baseURL + "/",
		},
		Twitter: Twitter{Card: "summary_large_image", Image: absolute(baseURL, ogImage)},
	}
}

// WithPage derives page metadata from defaults.
func (m Meta) WithPage(title, description, canonical string) Meta {
	out := m
	if title != "" {
		out.Title = title + " | " + m.Title
		out.OG.Title = title
	}
	if description != "" {
		out.Description = description
		out.OG.Description = description
	}
	if canonical != "" {
		out.Canonical = canonical
		out.OG.URL = canonical
	}
	out.Alternates = append([]Alternate(nil), m.Alternates...)
	return out
}

// WithAlternates sets one hreflang link per language pointing at path.
func (m Meta) WithAlternates(baseURL, path string, langs []string) Meta {
	baseURL = strings.TrimRight(baseURL, "/")
	alts := make([]Alternate, 0, len(langs)+1)
	for _, lang := range langs {
		alts = append(alts, Alternate{Lang: lang, Href: baseURL + path + "?hl=" + lang})
	}
	alts = append(alts, Alternate{Lang: "x-default", Href: baseURL + path})
	m.Alternates = alts
	return m
}

func absolute(baseURL, p string) string {
	if p == "" || strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://") {
		return p
	}
	return baseURL + "/" + strings.TrimLeft(p, "/")
}
