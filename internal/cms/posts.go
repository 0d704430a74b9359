package cms

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Post is a blog article rendered from markdown.
type Post struct {
	Slug        string
	Lang        string
	Title       string
	Summary     string
	Author      string
	Tags        []string
	Cover       string
	PublishedAt time.Time
	UpdatedAt   time.Time
	Draft       bool
	Body        template.HTML
}

// Fragment is the anchor id of the post's teaser card on the landing page.
func (p Post) Fragment() string { return "blog-" + p.Slug }

type postFrontMatter struct {
	Title     string   `yaml:"title"`
	Summary   string   `yaml:"summary"`
	Author    string   `yaml:"author"`
	Tags      []string `yaml:"tags"`
	Cover     string   `yaml:"cover"`
	Date      string   `yaml:"date"`
	UpdatedAt string   `yaml:"updated_at"`
	Draft     bool     `yaml:"draft"`
}

// Posts lists published articles for lang, newest first. Articles only
// present in the fallback language are included.
func (s *Store) Posts(ctx context.Context, lang string) ([]Post, error) {
	lang = normalizeLang(lang)
	s.mu.RLock()
	entry, ok := s.posts[lang]
	s.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		return clonePosts(entry.value), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := map[string]bool{}
	var posts []Post
	for _, candidate := range s.langChain(lang) {
		dir := filepath.Join(s.dir, "blog", candidate)
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("cms: list %s: %w", dir, err)
		}
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() || filepath.Ext(name) != ".md" {
				continue
			}
			slug := sanitizeSlug(strings.TrimSuffix(name, ".md"))
			if slug == "" || seen[slug] {
				continue
			}
			post, err := readPost(filepath.Join(dir, name), slug, candidate)
			if err != nil {
				return nil, err
			}
			seen[slug] = true
			if post.Draft {
				continue
			}
			posts = append(posts, post)
		}
	}
	sort.SliceStable(posts, func(i, j int) bool {
		if posts[i].PublishedAt.Equal(posts[j].PublishedAt) {
			return posts[i].Slug < posts[j].Slug
		}
		return posts[i].PublishedAt.After(posts[j].PublishedAt)
	})
	s.mu.Lock()
	if s.ttl > 0 {
		s.posts[lang] = cacheEntry[[]Post]{value: clonePosts(posts), expires: time.Now().Add(s.ttl)}
	}
	s.mu.Unlock()
	return posts, nil
}

// Post returns a single published article.
func (s *Store) Post(ctx context.Context, slug, lang string) (Post, error) {
	slug = sanitizeSlug(slug)
	if slug == "" {
		return Post{}, ErrNotFound
	}
	posts, err := s.Posts(ctx, lang)
	if err != nil {
		return Post{}, err
	}
	for _, p := range posts {
		if p.Slug == slug {
			return p, nil
		}
	}
	return Post{}, ErrNotFound
}

func readPost(file, slug, lang string) (Post, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return Post{}, fmt.Errorf("cms: read %s: %w", file, err)
	}
	fm, body := splitFrontMatter(string(data))
	front := postFrontMatter{}
	if strings.TrimSpace(fm) != "" {
		if err := yaml.Unmarshal([]byte(fm), &front); err != nil {
			return Post{}, fmt.Errorf("cms: parse front matter %s: %w", file, err)
		}
	}
	html, err := RenderMarkdown(body)
	if err != nil {
		return Post{}, err
	}
	post := Post{
		Slug:        slug,
		Lang:        lang,
		Title:       strings.TrimSpace(front.Title),
		Summary:     strings.TrimSpace(front.Summary),
		Author:      strings.TrimSpace(front.Author),
		Tags:        front.Tags,
		Cover:       strings.TrimSpace(front.Cover),
		PublishedAt: parseContentDate(front.Date),
		UpdatedAt:   parseContentDate(front.UpdatedAt),
		Draft:       front.Draft,
		Body:        html,
	}
	if post.Title == "" {
		post.Title = prettifySlug(slug)
	}
	if post.UpdatedAt.IsZero() {
		post.UpdatedAt = post.PublishedAt
	}
	return post, nil
}

func splitFrontMatter(input string) (string, string) {
	input = strings.TrimLeft(input, "\ufeff")
	lines := strings.Split(input, "\n")
	if strings.TrimSpace(lines[0]) != "---" {
		return "", input
	}
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			fm := strings.Join(lines[1:i], "\n")
			body := strings.Join(lines[i+1:], "\n")
			return fm, strings.TrimLeft(body, "\n\r")
		}
	}
	return "", input
}

func parseContentDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006/01/02"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func prettifySlug(slug string) string {
	parts := strings.Split(strings.TrimSpace(slug), "-")
	for i, part := range parts {
		if part == "" {
			continue
		}
		parts[i] = strings.ToUpper(part[:1]) + part[1:]
	}
	return strings.Join(parts, " ")
}

func clonePosts(src []Post) []Post {
	if src == nil {
		return nil
	}
	out := make([]Post, len(src))
	copy(out, src)
	return out
}
