package main

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/format"
	"finitefield.org/ledgerline-web/internal/httpx"
	"finitefield.org/ledgerline-web/internal/i18n"
	mw "finitefield.org/ledgerline-web/internal/middleware"
	"finitefield.org/ledgerline-web/internal/observability"
	"finitefield.org/ledgerline-web/internal/seo"
)

// views holds the parsed template sets: shared layout and partials, plus one
// clone per page under templates/pages.
type views struct {
	dir     string
	devMode bool
	funcs   template.FuncMap

	mu    sync.RWMutex
	cache *templateSet
}

type templateSet struct {
	shared *template.Template
	pages  map[string]*template.Template
}

func newViews(dir string, devMode bool, bundle *i18n.Bundle) (*views, error) {
	v := &views{dir: dir, devMode: devMode, funcs: templateFuncs(bundle)}
	if !devMode {
		set, err := v.parse()
		if err != nil {
			return nil, err
		}
		v.cache = set
	}
	return v, nil
}

func templateFuncs(bundle *i18n.Bundle) template.FuncMap {
	return template.FuncMap{
		"now": time.Now,
		"t": func(lang, key string) string {
			if bundle == nil {
				return key
			}
			return bundle.T(lang, key)
		},
		"currency": format.Currency,
		"money": func(v float64, lang string) string {
			return format.Money(v, currencyFor(lang), lang)
		},
		"number":  format.Number,
		"date":    format.Date,
		"jsonld":  seo.JSON,
		"isoDate": func(t time.Time) string { return t.Format("2006-01-02") },
		"deref": func(p *float64) float64 {
			if p == nil {
				return 0
			}
			return *p
		},
		"dict": func(kv ...any) (map[string]any, error) {
			if len(kv)%2 != 0 {
				return nil, fmt.Errorf("dict: odd number of arguments")
			}
			m := make(map[string]any, len(kv)/2)
			for i := 0; i < len(kv); i += 2 {
				k, ok := kv[i].(string)
				if !ok {
					return nil, fmt.Errorf("dict: key %v is not a string", kv[i])
				}
				m[k] = kv[i+1]
			}
			return m, nil
		},
	}
}

// currencyFor picks the display currency for ROI figures.
func currencyFor(lang string) string {
	if strings.HasPrefix(lang, "de") {
		return "EUR"
	}
	return "USD"
}

func (v *views) parse() (*templateSet, error) {
	var shared, pages []string
	if err := filepath.WalkDir(v.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".tmpl") {
			return nil
		}
		if filepath.Base(filepath.Dir(path)) == "pages" {
			pages = append(pages, path)
		} else {
			shared = append(shared, path)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	if len(shared) == 0 || len(pages) == 0 {
		return nil, fmt.Errorf("no templates found under %s", v.dir)
	}
	root, err := template.New("_root").Funcs(v.funcs).ParseFiles(shared...)
	if err != nil {
		return nil, err
	}
	set := &templateSet{shared: root, pages: map[string]*template.Template{}}
	for _, file := range pages {
		clone, err := root.Clone()
		if err != nil {
			return nil, err
		}
		page, err := clone.ParseFiles(file)
		if err != nil {
			return nil, err
		}
		set.pages[strings.TrimSuffix(filepath.Base(file), ".tmpl")] = page
	}
	return set, nil
}

func (v *views) set() (*templateSet, error) {
	if v.devMode {
		return v.parse()
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.cache == nil {
		return nil, fmt.Errorf("templates not initialized")
	}
	return v.cache, nil
}

// executePage renders the base layout of page into w.
func (v *views) executePage(w io.Writer, page string, data any) error {
	set, err := v.set()
	if err != nil {
		return err
	}
	t, ok := set.pages[page]
	if !ok {
		return fmt.Errorf("unknown page %q", page)
	}
	return t.ExecuteTemplate(w, "base", data)
}

// executePartial renders a named shared template into w.
func (v *views) executePartial(w io.Writer, name string, data any) error {
	set, err := v.set()
	if err != nil {
		return err
	}
	return set.shared.ExecuteTemplate(w, name, data)
}

// render buffers a full page so template errors still produce a clean 500.
func (v *views) render(w http.ResponseWriter, r *http.Request, status int, page string, data any) {
	var buf bytes.Buffer
	if err := v.executePage(&buf, page, data); err != nil {
		observability.FromContext(r.Context()).Error("template exec error", zap.String("page", page), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "template_error", "template exec error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPartial writes an htmx fragment.
func (v *views) renderPartial(w http.ResponseWriter, r *http.Request, name string, data any) {
	var buf bytes.Buffer
	if err := v.executePartial(&buf, name, data); err != nil {
		observability.FromContext(r.Context()).Error("partial exec error", zap.String("partial", name), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "template_error", "template exec error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// writeError mirrors middleware error responses: JSON for htmx, text otherwise.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, msg string) {
	if mw.IsHTMX(r.Context()) {
		httpx.WriteError(r.Context(), w, httpx.NewError(code, msg, status))
		return
	}
	http.Error(w, msg, status)
}
