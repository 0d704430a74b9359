package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/chrome"
	"finitefield.org/ledgerline-web/internal/cms"
	"finitefield.org/ledgerline-web/internal/config"
	"finitefield.org/ledgerline-web/internal/i18n"
	"finitefield.org/ledgerline-web/internal/mailer"
	mw "finitefield.org/ledgerline-web/internal/middleware"
	"finitefield.org/ledgerline-web/internal/observability"
	"finitefield.org/ledgerline-web/internal/sectionrouter"
	"finitefield.org/ledgerline-web/internal/sections"
	"finitefield.org/ledgerline-web/internal/seo"
)

// app wires the site's collaborators. It is built once per process.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	bundle   *i18n.Bundle
	content  *cms.Store
	views    *views
	sessions *mw.SessionStore
	tracker  analytics.Tracker
	router   *sectionrouter.Router
	relay    *mailer.Relay
	defaults seo.Meta
}

func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, tracker analytics.Tracker) (*app, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if tracker == nil {
		tracker = analytics.Nop
	}
	bundle, err := i18n.Load(cfg.Paths.Locales, cfg.Site.DefaultLang, cfg.Site.SupportedLangs)
	if err != nil {
		return nil, fmt.Errorf("load i18n: %w", err)
	}
	content := cms.NewStore(cfg.Paths.Content, bundle.Fallback())
	if cfg.Dev {
		content.SetCacheTTL(0)
	}
	v, err := newViews(cfg.Paths.Templates, cfg.Dev, bundle)
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	policy, err := chromePolicy(cfg.Chrome)
	if err != nil {
		return nil, err
	}
	tmpls, err := mailer.NewTemplates()
	if err != nil {
		return nil, fmt.Errorf("mail templates: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		bundle:   bundle,
		content:  content,
		views:    v,
		sessions: mw.NewSessionStore(cfg.Session.SigningKey, cfg.Session.Secure, logger),
		tracker:  tracker,
		relay: mailer.NewRelay(
			mailer.NewProvider(cfg.Email.BaseURL, cfg.Email.APIKey, cfg.Email.Timeout),
			tmpls,
			mailer.WithFrom(cfg.Email.From),
			mailer.WithMaxBody(cfg.Email.MaxBody),
			mailer.WithTracker(tracker),
		),
		defaults: seo.Defaults(cfg.Site.Name, cfg.Site.BaseURL, bundle.T(bundle.Fallback(), "meta.description"), "/assets/og.png"),
	}

	registry, err := a.buildRegistry(ctx)
	if err != nil {
		return nil, fmt.Errorf("build section registry: %w", err)
	}
	logger.Info("section registry ready", zap.Int("anchors", registry.Len()))
	a.router = sectionrouter.New(registry,
		sectionrouter.WithTracker(tracker),
		sectionrouter.WithLogger(logger.Named("router")),
		sectionrouter.WithGate(chrome.Gate{
			Policy:          policy,
			StickyThreshold: cfg.Chrome.StickyThreshold,
			HeaderThreshold: cfg.Chrome.HeaderThreshold,
		}),
	)
	return a, nil
}

func chromePolicy(c config.ChromeConfig) (chrome.Policy, error) {
	if c.PolicyFile != "" {
		p, err := chrome.LoadPolicy(c.PolicyFile)
		if err != nil {
			return chrome.Policy{}, err
		}
		return p, nil
	}
	if len(c.HiddenFragments) == 0 {
		p := chrome.DefaultPolicy()
		p.ShowOnHome = c.ShowOnHome
		return p, nil
	}
	return chrome.Policy{Hidden: c.HiddenFragments, ShowOnHome: c.ShowOnHome}, nil
}

// buildRegistry renders the landing page in every language and collects the
// anchors it declares.
func (a *app) buildRegistry(ctx context.Context) (*sections.Registry, error) {
	var anchors []sections.Anchor
	for _, lang := range a.bundle.Supported() {
		data, err := a.homeView(ctx, lang, &mw.SessionData{})
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		if err := a.views.executePage(&buf, "home", data); err != nil {
			return nil, err
		}
		reg, err := sections.FromHTML(&buf)
		if err != nil {
			return nil, err
		}
		for _, id := range reg.IDs() {
			anchor, _ := reg.Lookup(id)
			anchors = append(anchors, anchor)
		}
	}
	return sections.New(anchors...), nil
}

// routes builds the HTTP handler.
func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; only deploy behind a proxy that sets it.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLogger(a.logger))
	r.Use(observability.TraceMiddleware)
	r.Use(mw.HTMX)
	r.Use(mw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(a.cfg.Server.RequestTimeout))

	r.Get("/healthz", a.healthz)
	r.Handle("/assets/*", mw.Assets("/assets", a.cfg.Paths.Public+"/assets", a.cfg.Dev))
	r.Get("/robots.txt", a.robots)
	r.Get("/sitemap.xml", a.sitemap)

	// JSON API: no browser session, no CSRF cookie. The relay answers 405
	// itself for other methods.
	r.Handle("/api/send-email", a.relay)

	r.Group(func(r chi.Router) {
		r.Use(a.sessions.Middleware)
		r.Use(mw.Locale(a.bundle))
		r.Use(mw.CSRF(a.sessions.Secure()))
		r.Use(chimw.Compress(5))

		r.Get("/", a.home)
		r.Get("/blog/{slug}", a.blogPost)

		r.Post("/nav/activate", a.navActivate)
		r.Post("/nav/sync", a.navSync)
		r.Post("/nav/scroll", a.navScroll)
		r.Post("/faq/{id}/toggle", a.faqToggle)
		r.Post("/roi", a.roiCalculate)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not_found", "not found")
	})
	return r
}

// server returns the configured http.Server.
func (a *app) server() *http.Server {
	return &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           a.routes(),
		ReadHeaderTimeout: a.cfg.Server.ReadHeaderTimeout,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
		IdleTimeout:       a.cfg.Server.IdleTimeout,
	}
}

// trackCtx scopes analytics events to the visitor session.
func trackCtx(r *http.Request) context.Context {
	return analytics.WithClientID(r.Context(), mw.GetSession(r).ID)
}

func (a *app) healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (a *app) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = fmt.Fprintf(w, "User-agent: *\nAllow: /\nDisallow: /api/\nDisallow: /nav/\nDisallow: /faq/\n\nSitemap: %s/sitemap.xml\n", a.cfg.Site.BaseURL)
}

func (a *app) sitemap(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := a.writeSitemap(r.Context(), &buf); err != nil {
		observability.FromContext(r.Context()).Error("sitemap", zap.Error(err))
		http.Error(w, "sitemap unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = buf.WriteTo(w)
}

// shutdownTimeout bounds graceful shutdown.
func (a *app) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout <= 0 {
		return 10 * time.Second
	}
	return a.cfg.Server.ShutdownTimeout
}
