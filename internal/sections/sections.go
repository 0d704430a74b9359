// Package sections maps URL fragments to the landing page anchors they scroll
// to. A Registry is built once at startup and is read-only afterwards.
package sections

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// Anchor is an element on the landing page addressable by fragment.
type Anchor struct {
	ID    string // fragment without '#', e.g. "pricing" or "case-study-acme"
	Title string
	Kind  string // section kind from data-section, e.g. "faq", "case-study"
}

// Registry is the read-only fragment → anchor table.
type Registry struct {
	anchors map[string]Anchor
}

// New builds a registry from anchors. Empty ids are skipped and the first
// anchor wins on duplicates.
func New(anchors ...Anchor) *Registry {
	r := &Registry{anchors: make(map[string]Anchor, len(anchors))}
	for _, a := range anchors {
		a.ID = Normalize(a.ID)
		if a.ID == "" {
			continue
		}
		if _, dup := r.anchors[a.ID]; dup {
			continue
		}
		r.anchors[a.ID] = a
	}
	return r
}

// Normalize strips the leading '#' and whitespace and lower-cases the id.
func Normalize(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	fragment = strings.TrimPrefix(fragment, "#")
	return strings.ToLower(strings.TrimSpace(fragment))
}

// Lookup returns the anchor registered for fragment.
func (r *Registry) Lookup(fragment string) (Anchor, bool) {
	if r == nil {
		return Anchor{}, false
	}
	a, ok := r.anchors[Normalize(fragment)]
	return a, ok
}

// Has reports whether fragment is a registered anchor.
func (r *Registry) Has(fragment string) bool {
	_, ok := r.Lookup(fragment)
	return ok
}

// IDs returns registered ids in lexical order.
func (r *Registry) IDs() []string {
	if r == nil {
		return nil
	}
	out := make([]string, 0, len(r.anchors))
	for id := range r.anchors {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of anchors.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.anchors)
}

// FromHTML collects every element carrying both an id and a data-section
// attribute from rendered page markup.
func FromHTML(src io.Reader) (*Registry, error) {
	doc, err := html.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("sections: parse html: %w", err)
	}
	var anchors []Anchor
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if a, ok := anchorFromNode(n); ok {
				anchors = append(anchors, a)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return New(anchors...), nil
}

func anchorFromNode(n *html.Node) (Anchor, bool) {
	var a Anchor
	var marked bool
	for _, attr := range n.Attr {
		switch attr.Key {
		case "id":
			a.ID = attr.Val
		case "data-section":
			marked = true
			a.Kind = strings.TrimSpace(attr.Val)
		case "data-section-title":
			a.Title = strings.TrimSpace(attr.Val)
		}
	}
	if !marked || Normalize(a.ID) == "" {
		return Anchor{}, false
	}
	return a, true
}
