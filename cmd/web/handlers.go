package main

import (
	"context"
	"errors"
	"html/template"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"finitefield.org/ledgerline-web/internal/analytics"
	"finitefield.org/ledgerline-web/internal/chrome"
	"finitefield.org/ledgerline-web/internal/cms"
	"finitefield.org/ledgerline-web/internal/disclosure"
	mw "finitefield.org/ledgerline-web/internal/middleware"
	"finitefield.org/ledgerline-web/internal/nav"
	"finitefield.org/ledgerline-web/internal/observability"
	"finitefield.org/ledgerline-web/internal/roi"
	"finitefield.org/ledgerline-web/internal/sectionrouter"
	"finitefield.org/ledgerline-web/internal/seo"
)

const blogTeasers = 3

// layoutView carries the fields every page layout reads.
type layoutView struct {
	Lang        string
	Langs       []string
	SiteName    string
	BaseURL     string
	RepoURL     string
	Path        string
	Meta        seo.Meta
	JSONLD      []template.JS
	Nav         []nav.RenderedItem
	Breadcrumbs []nav.Crumb
	Analytics   analytics.Tags
	CSRFToken   string
	Chrome      chrome.State
	Fragment    string
	// Router enables the client glue that reports fragment and scroll
	// changes; only the landing page runs it.
	Router bool
	Year   int
}

type homeView struct {
	layoutView
	Landing cms.Landing
	Posts   []cms.Post
	FAQOpen map[string]bool
	ROI     roi.Result
	Ranges  map[string]roi.Range
}

type postView struct {
	layoutView
	Post cms.Post
}

// chromeView feeds the "chrome" partial: header variant, nav highlight and
// sticky CTA bar.
type chromeView struct {
	Lang     string
	Chrome   chrome.State
	Nav      []nav.RenderedItem
	Fragment string
}

func (a *app) layout(lang, path string, s *mw.SessionData) layoutView {
	return layoutView{
		Lang:      lang,
		Langs:     a.bundle.Supported(),
		SiteName:  a.cfg.Site.Name,
		BaseURL:   a.cfg.Site.BaseURL,
		RepoURL:   a.cfg.Site.RepoURL,
		Path:      path,
		Meta:      a.defaults.WithAlternates(a.cfg.Site.BaseURL, path, a.bundle.Supported()),
		Nav:       nav.Build(path, s.Nav.Fragment),
		Analytics: analytics.Tags{GA4MeasurementID: a.cfg.Analytics.GA4MeasurementID, GTMContainerID: a.cfg.Analytics.GTMContainerID, Debug: a.cfg.Analytics.Debug},
		CSRFToken: s.CSRFToken,
		Chrome:    chrome.State{Header: chrome.HeaderOverlay},
		Fragment:  s.Nav.Fragment,
		Year:      time.Now().Year(),
	}
}

func (a *app) homeView(ctx context.Context, lang string, s *mw.SessionData) (homeView, error) {
	landing, err := a.content.Landing(ctx, lang)
	if err != nil {
		return homeView{}, err
	}
	posts, err := a.content.Posts(ctx, lang)
	if err != nil {
		return homeView{}, err
	}
	if len(posts) > blogTeasers {
		posts = posts[:blogTeasers]
	}
	open := map[string]bool{}
	for _, id := range s.FAQOpen {
		open[id] = true
	}

	v := homeView{
		layoutView: a.layout(lang, "/", s),
		Landing:    landing,
		Posts:      posts,
		FAQOpen:    open,
		ROI:        roi.Calculate(roi.Defaults()),
		Ranges: map[string]roi.Range{
			"employees":   roi.EmployeesRange,
			"hours_saved": roi.HoursSavedRange,
			"hourly_cost": roi.HourlyCostRange,
			"seats":       roi.SeatsRange,
			"seat_price":  roi.SeatPriceRange,
		},
	}
	v.Router = true
	if a.router != nil {
		v.Chrome = a.router.Chrome(s.Nav)
	}

	offers := make([]seo.Offer, 0, len(landing.Pricing))
	for _, tier := range landing.Pricing {
		offers = append(offers, seo.Offer{
			Name:     tier.Name,
			Price:    strconv.FormatFloat(float64(tier.PriceMonthly)/100, 'f', 2, 64),
			Currency: strings.ToUpper(tier.Currency),
		})
	}
	questions := make([]seo.Question, 0, len(landing.FAQ))
	for _, item := range landing.FAQ {
		questions = append(questions, seo.Question{Name: item.Question, Answer: string(item.AnswerHTML)})
	}
	v.JSONLD = []template.JS{
		seo.JSON(seo.Organization(a.cfg.Site.Name, a.cfg.Site.BaseURL+"/", a.cfg.Site.BaseURL+"/assets/logo.svg", a.cfg.Site.RepoURL)),
		seo.JSON(seo.WebSite(a.cfg.Site.Name, a.cfg.Site.BaseURL+"/", a.bundle.Supported())),
		seo.JSON(seo.SoftwareApplication(a.cfg.Site.Name, v.Meta.Description, a.cfg.Site.BaseURL+"/", offers)),
	}
	if len(questions) > 0 {
		v.JSONLD = append(v.JSONLD, seo.JSON(seo.FAQPage(questions)))
	}
	return v, nil
}

// home renders the landing page. A fresh load starts at Home; the client
// reports the location fragment through /nav/sync right after.
func (a *app) home(w http.ResponseWriter, r *http.Request) {
	s := mw.GetSession(r)
	s.SetNav(sectionrouter.State{})
	data, err := a.homeView(r.Context(), mw.Lang(r), s)
	if err != nil {
		observability.FromContext(r.Context()).Error("home content", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "content_error", "content unavailable")
		return
	}
	a.views.render(w, r, http.StatusOK, "home", data)
}

func (a *app) blogPost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := mw.Lang(r)
	post, err := a.content.Post(ctx, chi.URLParam(r, "slug"), lang)
	if errors.Is(err, cms.ErrNotFound) {
		writeError(w, r, http.StatusNotFound, "not_found", "article not found")
		return
	}
	if err != nil {
		observability.FromContext(ctx).Error("blog content", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "content_error", "content unavailable")
		return
	}

	path := "/blog/" + post.Slug
	canonical := a.cfg.Site.BaseURL + path
	s := mw.GetSession(r)
	v := postView{layoutView: a.layout(lang, path, s), Post: post}
	v.Nav = nav.Build(path, "blog")
	v.Chrome = chrome.State{Header: chrome.HeaderSolid}
	v.Meta = v.Meta.WithPage(post.Title, post.Summary, canonical)
	v.Meta.OG.Type = "article"
	v.Breadcrumbs = nav.Breadcrumbs(path, post.Title)

	crumbs := make([]seo.BreadcrumbItem, 0, len(v.Breadcrumbs))
	for _, c := range v.Breadcrumbs {
		name := c.Label
		if c.LabelKey != "" {
			name = a.bundle.T(lang, c.LabelKey)
		}
		crumbs = append(crumbs, seo.BreadcrumbItem{Name: name, Item: a.cfg.Site.BaseURL + c.Href})
	}
	var published, modified string
	if !post.PublishedAt.IsZero() {
		published = post.PublishedAt.Format("2006-01-02")
	}
	if !post.UpdatedAt.IsZero() {
		modified = post.UpdatedAt.Format("2006-01-02")
	}
	v.JSONLD = []template.JS{
		seo.JSON(seo.Article(post.Title, canonical, post.Cover, post.Author, published, modified)),
		seo.JSON(seo.BreadcrumbList(crumbs)),
	}

	a.track(trackCtx(r), analytics.EventPageView, map[string]any{"path": path})
	a.views.render(w, r, http.StatusOK, "post", v)
}

type transitionFunc func(ctx context.Context, n sectionrouter.Navigator, st *sectionrouter.State, fragment string) sectionrouter.Transition

func (a *app) navActivate(w http.ResponseWriter, r *http.Request) {
	a.navigate(w, r, a.router.Activate)
}

func (a *app) navSync(w http.ResponseWriter, r *http.Request) {
	a.navigate(w, r, a.router.Sync)
}

func (a *app) navigate(w http.ResponseWriter, r *http.Request, apply transitionFunc) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_form", "invalid form")
		return
	}
	s := mw.GetSession(r)
	st := s.Nav
	navigator := newHTMXNavigator(r.PostForm.Get("path"), a.defaults)
	t := apply(trackCtx(r), navigator, &st, r.PostForm.Get("fragment"))
	s.SetNav(st)

	observability.FromContext(r.Context()).Debug("section transition",
		zap.String("from", t.From.Fragment),
		zap.String("to", t.To.Fragment),
		zap.String("requested", t.Requested),
		zap.Bool("known", t.Known),
	)
	navigator.flush(w)
	a.views.renderPartial(w, r, "chrome", chromeView{
		Lang:     mw.Lang(r),
		Chrome:   t.Chrome,
		Nav:      nav.Build(navigator.Path(), t.To.Fragment),
		Fragment: t.To.Fragment,
	})
}

// navScroll records a scroll sample. Unchanged chrome answers 204 so htmx
// leaves the page alone.
func (a *app) navScroll(w http.ResponseWriter, r *http.Request) {
	y, err := strconv.ParseFloat(strings.TrimSpace(r.PostFormValue("y")), 64)
	if err != nil || math.IsNaN(y) || math.IsInf(y, 0) {
		writeError(w, r, http.StatusBadRequest, "invalid_scroll", "y must be a number")
		return
	}
	s := mw.GetSession(r)
	st := s.Nav
	before := a.router.Chrome(st)
	after := a.router.Scroll(&st, y)
	s.SetNav(st)
	if before == after {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	a.views.renderPartial(w, r, "chrome", chromeView{
		Lang:     mw.Lang(r),
		Chrome:   after,
		Nav:      nav.Build("/", st.Fragment),
		Fragment: st.Fragment,
	})
}

func (a *app) faqToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	lang := mw.Lang(r)
	landing, err := a.content.Landing(ctx, lang)
	if err != nil {
		observability.FromContext(ctx).Error("faq content", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "content_error", "content unavailable")
		return
	}
	item, ok := landing.FAQItem(strings.ToLower(chi.URLParam(r, "id")))
	if !ok {
		writeError(w, r, http.StatusNotFound, "not_found", "unknown FAQ item")
		return
	}
	s := mw.GetSession(r)
	set := disclosure.FromIDs(s.FAQOpen)
	acc := disclosure.Accordion{Set: set, Tracker: a.tracker, Logger: observability.FromContext(ctx)}
	open := acc.Toggle(trackCtx(r), item.ID)
	s.SetFAQOpen(set.IDs())
	a.views.renderPartial(w, r, "faq_item", map[string]any{"Lang": lang, "Item": item, "Open": open})
}

func (a *app) roiCalculate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid_form", "invalid form")
		return
	}
	def := roi.Defaults()
	in := roi.Inputs{
		Employees:  formFloat(r, "employees", def.Employees),
		HoursSaved: formFloat(r, "hours_saved", def.HoursSaved),
		HourlyCost: formFloat(r, "hourly_cost", def.HourlyCost),
		Seats:      formFloat(r, "seats", def.Seats),
		SeatPrice:  formFloat(r, "seat_price", def.SeatPrice),
	}
	res := roi.Calculate(in)
	a.track(trackCtx(r), analytics.EventROI, map[string]any{
		"employees":      res.Inputs.Employees,
		"seats":          res.Inputs.Seats,
		"annual_savings": res.AnnualSavings,
		"net_benefit":    res.NetBenefit,
	})
	a.views.renderPartial(w, r, "roi_result", map[string]any{"Lang": mw.Lang(r), "ROI": res})
}

func formFloat(r *http.Request, key string, def float64) float64 {
	raw := strings.TrimSpace(r.PostForm.Get(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return def
	}
	return v
}

// track forwards to the tracker; failures are logged and never surface.
func (a *app) track(ctx context.Context, event string, props map[string]any) {
	if err := a.tracker.Track(ctx, event, props); err != nil {
		observability.FromContext(ctx).Warn("analytics tracking failed", zap.String("event", event), zap.Error(err))
	}
}

// writeSitemap lists the landing page and every published article.
func (a *app) writeSitemap(ctx context.Context, w io.Writer) error {
	entries := []seo.SitemapEntry{{Path: "/", ChangeFreq: "weekly", Priority: 1.0}}
	seen := map[string]bool{}
	for _, lang := range a.bundle.Supported() {
		posts, err := a.content.Posts(ctx, lang)
		if err != nil {
			return err
		}
		for _, p := range posts {
			if seen[p.Slug] {
				continue
			}
			seen[p.Slug] = true
			entries = append(entries, seo.SitemapEntry{
				Path:       "/blog/" + p.Slug,
				LastMod:    p.UpdatedAt,
				ChangeFreq: "monthly",
				Priority:   0.6,
			})
		}
	}
	return seo.WriteSitemap(w, a.cfg.Site.BaseURL, entries)
}
