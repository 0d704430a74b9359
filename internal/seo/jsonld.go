package seo

import (
	"encoding/json"
	"html/template"
)

// JSON marshals v to compact JSON for a ld+json script tag. It returns an
// empty string on error.
func JSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

// Organization returns a minimal Organization schema.
func Organization(name, url, logoURL string, sameAs ...string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Organization",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if logoURL != "" {
		m["logo"] = logoURL
	}
	if len(sameAs) > 0 {
		m["sameAs"] = sameAs
	}
	return m
}

// WebSite returns a minimal WebSite schema.
func WebSite(name, url string, langs []string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "WebSite",
		"name":     name,
	}
	if url != "" {
		m["url"] = url
	}
	if len(langs) > 0 {
		m["inLanguage"] = langs
	}
	return m
}

// Offer is a priced plan of a SoftwareApplication.
type Offer struct {
	Name     string
	Price    string
	Currency string
}

// SoftwareApplication describes the product with its pricing tiers.
func SoftwareApplication(name, description, url string, offers []Offer) map[string]any {
	m := map[string]any{
		"@context":            "https://schema.org",
		"@type":               "SoftwareApplication",
		"name":                name,
		"applicationCategory": "BusinessApplication",
		"operatingSystem":     "Web, Linux",
	}
	if description != "" {
		m["description"] = description
	}
	if url != "" {
		m["url"] = url
	}
	if len(offers) > 0 {
		list := make([]map[string]any, 0, len(offers))
		for _, o := range offers {
			list = append(list, map[string]any{
				"@type":         "Offer",
				"name":          o.Name,
				"price":         o.Price,
				"priceCurrency": o.Currency,
			})
		}
		m["offers"] = list
	}
	return m
}

// Question is one FAQ entry; Answer may contain HTML.
type Question struct {
	Name   string
	Answer string
}

// FAQPage builds a schema.org FAQPage.
func FAQPage(questions []Question) map[string]any {
	entities := make([]map[string]any, 0, len(questions))
	for _, q := range questions {
		entities = append(entities, map[string]any{
			"@type": "Question",
			"name":  q.Name,
			"acceptedAnswer": map[string]any{
				"@type": "Answer",
				"text":  q.Answer,
			},
		})
	}
	return map[string]any{
		"@context":   "https://schema.org",
		"@type":      "FAQPage",
		"mainEntity": entities,
	}
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}

// Article returns a minimal Article schema payload. Dates are RFC 3339 or
// YYYY-MM-DD strings.
func Article(headline, url, imageURL, authorName, datePublished, dateModified string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "Article",
		"headline": headline,
	}
	if url != "" {
		m["url"] = url
	}
	if imageURL != "" {
		m["image"] = imageURL
	}
	if authorName != "" {
		m["author"] = map[string]any{"@type": "Person", "name": authorName}
	}
	if datePublished != "" {
		m["datePublished"] = datePublished
	}
	if dateModified != "" {
		m["dateModified"] = dateModified
	}
	return m
}
