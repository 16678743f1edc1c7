package proxy

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"resimages/resimg"
)

const defaultIndexHTML = `<!DOCTYPE html>
<html><body>
<h1>Resimages Server</h1>
<form action="/rewrite" method="post">
<h3>Rewrite HTML for a viewport</h3>
<p><label>Width <input type="number" name="w" min="1" value="1024"></label>
<label>Height <input type="number" name="h" min="1" value="768"></label>
<label><input type="checkbox" name="fluid" value="1"> Fluid</label></p>
<p><textarea name="html" rows="16" cols="80">&lt;img data-src="/content/files/photo.jpg"&gt;</textarea></p>
<p><input type="submit" value="Rewrite"></p>
</form>
<p>Scripts may POST the page itself to /rewrite?w=WIDTH&amp;h=HEIGHT and
re-resolve it later with /refresh?session=ID&amp;w=WIDTH.</p>
</body></html>`

const (
	defaultSitesDir   = "config/sites"
	defaultSessionTTL = 30 * time.Minute
	defaultMaxBodyKB  = 2048

	defaultViewportCacheSize = 4096
	defaultSiteCacheSize     = 1024

	sessionHeader   = "X-Resimages-Session"
	boundHeader     = "X-Resimages-Bound"
	refreshedHeader = "X-Resimages-Refreshed"
)

// Config describes server wiring and runtime behaviour.
type Config struct {
	IndexHTML string
	// Images are the options used for hosts without a site file.
	Images   resimg.Options
	Selector string
	// Viewport is assumed for clients that never described theirs.
	Viewport   resimg.Viewport
	SitesDir   string
	SessionTTL time.Duration
	MaxBodyKB  int
	// ViewportCacheSize bounds the number of remembered client viewports.
	ViewportCacheSize int
	// SiteCacheSize bounds the number of cached host lookups.
	SiteCacheSize int
	Logger        *zap.Logger
	Clock         func() time.Time
}

// Server exposes the HTTP handlers rewriting pages for a viewport.
type Server struct {
	cfg       Config
	mux       *http.ServeMux
	handler   http.Handler
	logger    *zap.Logger
	viewports *viewportStore
	sessions  *sessionStore
	sites     *siteConfigStore
	clock     func() time.Time
}

// New wires a new server with the provided configuration.
func New(cfg Config) *Server {
	if cfg.IndexHTML == "" {
		cfg.IndexHTML = defaultIndexHTML
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.SitesDir == "" {
		cfg.SitesDir = defaultSitesDir
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = defaultSessionTTL
	}
	if cfg.MaxBodyKB <= 0 {
		cfg.MaxBodyKB = defaultMaxBodyKB
	}
	if cfg.Viewport.Width <= 0 {
		cfg.Viewport.Width = 1024
	}
	if cfg.Viewport.Height <= 0 {
		cfg.Viewport.Height = 768
	}
	s := &Server{
		cfg:       cfg,
		mux:       http.NewServeMux(),
		logger:    cfg.Logger,
		viewports: newViewportStore(cfg.ViewportCacheSize),
		sessions:  newSessionStore(cfg.Clock, cfg.SessionTTL),
		sites:     newSiteConfigStore(cfg.SitesDir, cfg.SiteCacheSize, cfg.Logger),
		clock:     cfg.Clock,
	}
	s.registerRoutes()
	s.handler = withLogging(s.logger, s.mux)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/", s.handleRoot)
	s.mux.HandleFunc("/rewrite", s.handleRewrite)
	s.mux.HandleFunc("/refresh", s.handleRefresh)
	s.mux.HandleFunc("/ping", s.handlePing)
}
