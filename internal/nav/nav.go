package nav

import (
	"path"
	"strings"
)

// Item is a header link to a landing page section.
type Item struct {
	Fragment string // e.g. "pricing"
	LabelKey string // i18n key, e.g. "nav.pricing"
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Fragment string
	Href     string
	LabelKey string
	Active   bool
}

// Crumb is a breadcrumb entry. If LabelKey is empty, use Label.
type Crumb struct {
	Href     string
	LabelKey string
	Label    string
	Active   bool
}

// Main is the header navigation.
var Main = []Item{
	{Fragment: "features", LabelKey: "nav.features"},
	{Fragment: "modules", LabelKey: "nav.modules"},
	{Fragment: "pricing", LabelKey: "nav.pricing"},
	{Fragment: "roi", LabelKey: "nav.roi"},
	{Fragment: "case-studies", LabelKey: "nav.case_studies"},
	{Fragment: "blog", LabelKey: "nav.blog"},
	{Fragment: "faq", LabelKey: "nav.faq"},
	{Fragment: "about", LabelKey: "nav.about"},
}

// child fragment prefixes that highlight their parent section.
var parents = map[string]string{
	"feature-":    "features",
	"case-study-": "case-studies",
	"blog-":       "blog",
	"faq-":        "faq",
}

// Section maps an active fragment to the header item it belongs to.
func Section(fragment string) string {
	fragment = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
	for prefix, parent := range parents {
		if strings.HasPrefix(fragment, prefix) {
			return parent
		}
	}
	return fragment
}

// Build renders header items. basePath is "/" on the landing page; on other
// pages links point back to the landing page's sections.
func Build(basePath, activeFragment string) []RenderedItem {
	if basePath == "" {
		basePath = "/"
	}
	prefix := ""
	if basePath != "/" {
		prefix = "/"
	}
	active := Section(activeFragment)
	items := make([]RenderedItem, 0, len(Main))
	for _, it := range Main {
		items = append(items, RenderedItem{
			Fragment: it.Fragment,
			Href:     prefix + "#" + it.Fragment,
			LabelKey: it.LabelKey,
			Active:   active != "" && active == it.Fragment,
		})
	}
	return items
}

// Breadcrumbs builds entries for article pages: Home, Blog, then the article.
func Breadcrumbs(currentPath, title string) []Crumb {
	if currentPath == "" {
		currentPath = "/"
	}
	crumbs := []Crumb{{Href: "/", LabelKey: "nav.home", Active: currentPath == "/"}}
	if currentPath == "/" {
		return crumbs
	}
	clean := path.Clean(currentPath)
	parts := strings.Split(strings.TrimPrefix(clean, "/"), "/")
	if parts[0] == "blog" {
		crumbs = append(crumbs, Crumb{Href: "/#blog", LabelKey: "nav.blog", Active: len(parts) == 1})
	} else {
		crumbs = append(crumbs, Crumb{Href: "/" + parts[0], Label: titleFromSegment(parts[0]), Active: len(parts) == 1})
	}
	if len(parts) > 1 {
		label := title
		if label == "" {
			label = titleFromSegment(parts[len(parts)-1])
		}
		crumbs = append(crumbs, Crumb{Href: clean, Label: label, Active: true})
	}
	return crumbs
}

func titleFromSegment(seg string) string {
	if seg == "" {
		return seg
	}
	s := strings.ReplaceAll(seg, "-", " ")
	s = strings.ReplaceAll(s, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}
