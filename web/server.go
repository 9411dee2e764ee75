// ABOUTME: tagfeed HTTP server: the page shell, htmx timeline and hashtag fragments, and embedded assets.
// ABOUTME: Routes live on a single chi router; every handler reads through the timeline services.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"time"

	"github.com/2389-research/tagfeed/logging"
	"github.com/2389-research/tagfeed/mastodon"
	"github.com/2389-research/tagfeed/timeline"
	"github.com/2389-research/tagfeed/toggle"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// popularTagPeriods are the windows, in days, listed by GET /tags/popular.
var popularTagPeriods = []int{7, 30}

const popularTagLimit = 5

// HashtagService lists and records hashtag subscriptions.
type HashtagService interface {
	List() ([]string, error)
	Suggest(name string) error
}

// StatusService reads the stored timelines.
type StatusService interface {
	RetrieveStatuses(tags []string, limit int) ([]mastodon.Status, error)
	PopularStatuses(tags []string, since time.Time, limit int) ([]mastodon.Status, error)
	PopularTags(ctx context.Context, periods []int, limit int) ([]timeline.PeriodTags, error)
}

// ServerConfig holds the configuration for the web server.
type ServerConfig struct {
	Addr          string        // listen address (default: "127.0.0.1:1337")
	InstanceURL   string        // Mastodon instance shown in the page footer
	TimelineLimit int           // statuses per timeline fragment (default: 40)
	PopularWindow time.Duration // age limit for the popular timeline (default: 7 days)
}

// Server is the tagfeed HTTP server.
type Server struct {
	cfg       ServerConfig
	hashtags  HashtagService
	statuses  StatusService
	templates *TemplateEngine
	router    chi.Router
	now       func() time.Time
}

// NewServer creates a Server and builds its routes.
func NewServer(cfg ServerConfig, hashtags HashtagService, statuses StatusService) (*Server, error) {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:1337"
	}
	if cfg.TimelineLimit <= 0 {
		cfg.TimelineLimit = mastodon.PageSize
	}
	if cfg.PopularWindow <= 0 {
		cfg.PopularWindow = 7 * 24 * time.Hour
	}

	tmpl, err := NewTemplateEngine()
	if err != nil {
		return nil, fmt.Errorf("initializing templates: %w", err)
	}

	s := &Server{
		cfg:       cfg,
		hashtags:  hashtags,
		statuses:  statuses,
		templates: tmpl,
		now:       time.Now,
	}
	s.router = s.buildRouter()
	return s, nil
}

// ServeHTTP delegates to the chi router, satisfying http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// HTTPServer returns an http.Server for the configured address with timeouts
// that keep slow clients from holding connections open.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      time.Minute,
		IdleTimeout:       2 * time.Minute,
	}
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(webRequestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleIndex)
	r.Get("/about", s.handleAbout)
	r.Get("/health", s.handleHealth)

	staticFS, err := fs.Sub(StaticFS, "static")
	if err != nil {
		log.Printf("web: static sub-FS unavailable err=%v", err)
	} else {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	}

	r.Route("/timeline", func(r chi.Router) {
		r.Get("/", s.handleTimeline)
		r.Get("/popular", s.handlePopularTimeline)
	})

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", s.handleTags)
		r.Post("/", s.handleSuggestTag)
		r.Get("/popular", s.handlePopularTags)
	})

	return r
}

// PageData holds everything the full-page templates render.
type PageData struct {
	Title       string
	InstanceURL string
	Active      toggle.ActiveTimeline
	Toggle      toggle.View
	About       template.HTML // filled in by the template engine
}

func (s *Server) pageData(title string, active toggle.ActiveTimeline) PageData {
	return PageData{
		Title:       title,
		InstanceURL: s.cfg.InstanceURL,
		Active:      active,
		Toggle:      toggle.Render(active),
	}
}

// handleIndex renders the page shell. The timeline itself loads through htmx.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "index.html", s.pageData("Timeline", toggle.Recent))
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.renderPage(w, "about.html", s.pageData("About", toggle.Recent))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// TimelineData is the data for the timeline fragment.
type TimelineData struct {
	Active   toggle.ActiveTimeline
	Statuses []mastodon.Status
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	s.serveTimeline(w, r, toggle.Recent, func(tags []string) ([]mastodon.Status, error) {
		return s.statuses.RetrieveStatuses(tags, s.cfg.TimelineLimit)
	})
}

func (s *Server) handlePopularTimeline(w http.ResponseWriter, r *http.Request) {
	s.serveTimeline(w, r, toggle.Popular, func(tags []string) ([]mastodon.Status, error) {
		return s.statuses.PopularStatuses(tags, s.now().Add(-s.cfg.PopularWindow), s.cfg.TimelineLimit)
	})
}

// serveTimeline renders the fragment for htmx requests. A direct browser
// visit gets the full page with that timeline selected instead.
func (s *Server) serveTimeline(w http.ResponseWriter, r *http.Request, active toggle.ActiveTimeline, load func([]string) ([]mastodon.Status, error)) {
	w.Header().Set("Vary", HeaderRequest)
	if !IsHTMXRequest(r) {
		s.renderPage(w, "index.html", s.pageData("Timeline", active))
		return
	}

	tags, err := s.hashtags.List()
	if err != nil {
		s.serverError(w, r, "list hashtags", err)
		return
	}

	statuses := []mastodon.Status{}
	if len(tags) > 0 {
		statuses, err = load(tags)
		if err != nil {
			s.serverError(w, r, "load "+active.String()+" timeline", err)
			return
		}
	}
	logging.Debugf("web: timeline active=%s hashtags=%d statuses=%d", active, len(tags), len(statuses))

	s.renderFragment(w, r, "timeline.html", TimelineData{Active: active, Statuses: statuses})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	tags, err := s.hashtags.List()
	if err != nil {
		s.serverError(w, r, "list hashtags", err)
		return
	}
	s.renderFragment(w, r, "hashtags.html", tags)
}

func (s *Server) handlePopularTags(w http.ResponseWriter, r *http.Request) {
	periods, err := s.statuses.PopularTags(r.Context(), popularTagPeriods, popularTagLimit)
	if err != nil {
		s.serverError(w, r, "popular tags", err)
		return
	}
	s.renderFragment(w, r, "popular_tags.html", periods)
}

// handleSuggestTag records a vote for the submitted hashtag and tells htmx to
// reload the hashtag list.
func (s *Server) handleSuggestTag(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	err := s.hashtags.Suggest(r.PostForm.Get("hashtag"))
	switch {
	case errors.Is(err, timeline.ErrInvalidHashtag):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	case err != nil:
		s.serverError(w, r, "suggest hashtag", err)
		return
	}

	Trigger(w, EventTagsUpdated)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) renderPage(w http.ResponseWriter, name string, data PageData) {
	if err := s.templates.Render(w, name, data); err != nil {
		log.Printf("web: render failed template=%s err=%v", name, err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) renderFragment(w http.ResponseWriter, r *http.Request, name string, data any) {
	if err := s.templates.RenderFragment(w, name, data); err != nil {
		s.serverError(w, r, "render "+name, err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, what string, err error) {
	logging.Errorf("web: %s failed request_id=%s err=%v", what, RequestIDFrom(r.Context()), err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}
