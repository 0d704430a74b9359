// Package cms loads landing page copy and blog articles from the content
// directory: YAML for the landing page, markdown with YAML front matter for
// articles.
package cms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned for missing pages, posts or landing documents.
var ErrNotFound = errors.New("cms: not found")

const defaultContentDir = "content"

// Landing is the copy for every section of the landing page.
type Landing struct {
	Lang         string        `yaml:"-"`
	Hero         Hero          `yaml:"hero"`
	Features     []Feature     `yaml:"features"`
	Modules      []Module      `yaml:"modules"`
	Pricing      []Tier        `yaml:"pricing"`
	Testimonials []Testimonial `yaml:"testimonials"`
	CaseStudies  []CaseStudy   `yaml:"case_studies"`
	FAQ          []FAQItem     `yaml:"faq"`
	About        About         `yaml:"about"`
}

type Hero struct {
	Eyebrow      string `yaml:"eyebrow"`
	Title        string `yaml:"title"`
	Subtitle     string `yaml:"subtitle"`
	PrimaryCTA   string `yaml:"primary_cta"`
	SecondaryCTA string `yaml:"secondary_cta"`
}

type Feature struct {
	Slug    string `yaml:"slug"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary"`
	Icon    string `yaml:"icon"`
}

// Fragment is the anchor id of the feature card.
func (f Feature) Fragment() string { return "feature-" + f.Slug }

type Module struct {
	Name    string `yaml:"name"`
	Summary string `yaml:"summary"`
	Icon    string `yaml:"icon"`
}

// Tier is one pricing table column. PriceMonthly is in minor units per seat.
type Tier struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Tagline      string   `yaml:"tagline"`
	PriceMonthly int64    `yaml:"price_monthly"`
	Currency     string   `yaml:"currency"`
	Unit         string   `yaml:"unit"`
	Features     []string `yaml:"features"`
	CTA          string   `yaml:"cta"`
	CTAHref      string   `yaml:"cta_href"`
	Highlight    bool     `yaml:"highlight"`
}

type Testimonial struct {
	Quote   string `yaml:"quote"`
	Author  string `yaml:"author"`
	Role    string `yaml:"role"`
	Company string `yaml:"company"`
}

type CaseStudy struct {
	Slug     string   `yaml:"slug"`
	Company  string   `yaml:"company"`
	Industry string   `yaml:"industry"`
	Title    string   `yaml:"title"`
	Summary  string   `yaml:"summary"`
	Metrics  []Metric `yaml:"metrics"`
}

// Fragment is the anchor id of the case study card.
func (c CaseStudy) Fragment() string { return "case-study-" + c.Slug }

type Metric struct {
	Label string `yaml:"label"`
	Value string `yaml:"value"`
}

// FAQItem answers are markdown, rendered to sanitised HTML on load.
type FAQItem struct {
	ID         string        `yaml:"id"`
	Question   string        `yaml:"question"`
	Answer     string        `yaml:"answer"`
	AnswerHTML template.HTML `yaml:"-"`
}

type About struct {
	Title string `yaml:"title"`
	Body  string `yaml:"body"`
}

// FAQItem returns the item with id.
func (l Landing) FAQItem(id string) (FAQItem, bool) {
	for _, item := range l.FAQ {
		if item.ID == id {
			return item, true
		}
	}
	return FAQItem{}, false
}

// Tier returns the pricing tier with id.
func (l Landing) Tier(id string) (Tier, bool) {
	for _, t := range l.Pricing {
		if t.ID == id {
			return t, true
		}
	}
	return Tier{}, false
}

// Store reads content from disk with a short in-memory cache.
type Store struct {
	dir      string
	fallback string
	ttl      time.Duration

	mu      sync.RWMutex
	landing map[string]cacheEntry[Landing]
	posts   map[string]cacheEntry[[]Post]
}

type cacheEntry[T any] struct {
	value   T
	expires time.Time
}

// NewStore returns a store rooted at dir. fallback is the language used when
// a document is missing for the requested one.
func NewStore(dir, fallback string) *Store {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		dir = defaultContentDir
	}
	if fallback == "" {
		fallback = "en"
	}
	return &Store{
		dir:      dir,
		fallback: normalizeLang(fallback),
		ttl:      5 * time.Minute,
		landing:  map[string]cacheEntry[Landing]{},
		posts:    map[string]cacheEntry[[]Post]{},
	}
}

// SetCacheTTL overrides the cache duration; zero or negative disables caching.
func (s *Store) SetCacheTTL(d time.Duration) {
	s.mu.Lock()
	s.ttl = d
	s.landing = map[string]cacheEntry[Landing]{}
	s.posts = map[string]cacheEntry[[]Post]{}
	s.mu.Unlock()
}

// Dir returns the content root.
func (s *Store) Dir() string { return s.dir }

// Landing loads landing/<lang>.yaml, falling back to the default language.
func (s *Store) Landing(ctx context.Context, lang string) (Landing, error) {
	lang = normalizeLang(lang)
	s.mu.RLock()
	entry, ok := s.landing[lang]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return entry.value, nil
	}
	if err := ctx.Err(); err != nil {
		return Landing{}, err
	}

	var (
		l   Landing
		err error
	)
	for _, candidate := range s.langChain(lang) {
		l, err = s.readLanding(candidate)
		if !errors.Is(err, ErrNotFound) {
			break
		}
	}
	if err != nil {
		return Landing{}, err
	}
	s.mu.Lock()
	if s.ttl > 0 {
		s.landing[lang] = cacheEntry[Landing]{value: l, expires: time.Now().Add(s.ttl)}
	}
	s.mu.Unlock()
	return l, nil
}

func (s *Store) readLanding(lang string) (Landing, error) {
	file := filepath.Join(s.dir, "landing", lang+".yaml")
	raw, err := os.ReadFile(file)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Landing{}, ErrNotFound
		}
		return Landing{}, fmt.Errorf("cms: read %s: %w", file, err)
	}
	var l Landing
	if err := yaml.Unmarshal(raw, &l); err != nil {
		return Landing{}, fmt.Errorf("cms: parse %s: %w", file, err)
	}
	l.Lang = lang
	for i := range l.FAQ {
		l.FAQ[i].ID = sanitizeSlug(l.FAQ[i].ID)
		html, err := RenderMarkdown(l.FAQ[i].Answer)
		if err != nil {
			return Landing{}, fmt.Errorf("cms: faq %s: %w", l.FAQ[i].ID, err)
		}
		l.FAQ[i].AnswerHTML = html
	}
	for i := range l.Features {
		l.Features[i].Slug = sanitizeSlug(l.Features[i].Slug)
	}
	for i := range l.CaseStudies {
		l.CaseStudies[i].Slug = sanitizeSlug(l.CaseStudies[i].Slug)
	}
	return l, nil
}

func (s *Store) langChain(lang string) []string {
	if lang == s.fallback || lang == "" {
		return []string{s.fallback}
	}
	return []string{lang, s.fallback}
}

func normalizeLang(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if i := strings.IndexAny(lang, "-_"); i > 0 {
		lang = lang[:i]
	}
	return lang
}

func sanitizeSlug(slug string) string {
	slug = strings.TrimSpace(strings.ToLower(slug))
	slug = strings.Trim(slug, "/")
	if slug == "" || strings.Contains(slug, "..") || strings.ContainsAny(slug, `/\`) {
		return ""
	}
	return slug
}
