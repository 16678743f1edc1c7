package proxy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"resimages/resimg"
)

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(len(s.cfg.IndexHTML)))
	io.WriteString(w, s.cfg.IndexHTML)
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "pong\n")
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, int64(s.cfg.MaxBodyKB)*1024)
	var body io.Reader = r.Body
	if isFormPost(r) {
		// the index page posts the document in a form field
		if err := r.ParseForm(); err != nil {
			writeBodyError(w, err)
			return
		}
		body = strings.NewReader(r.PostForm.Get("html"))
	}
	settings, selector, err := s.settingsFor(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	doc, err := resimg.ParseDocument(body)
	if err != nil {
		writeBodyError(w, err)
		return
	}
	targets, err := doc.Select(selector)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	vp := s.viewportFor(r)
	binder := resimg.NewBinder(resimg.WithLogger(s.logger))
	bound := binder.Init(vp, targets, settings)
	id := s.sessions.put(&session{doc: doc, binder: binder, targets: targets, viewport: vp})

	s.logger.Debug("Document rewritten", zap.String("session", id), zap.Int("bound", bound), zap.Int("width", vp.Width))
	w.Header().Set(sessionHeader, id)
	w.Header().Set(boundHeader, strconv.Itoa(bound))
	s.writeDocument(w, doc)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := firstNonEmpty(r.URL.Query().Get("session"), r.Header.Get(sessionHeader))
	if id == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	sess, ok := s.sessions.get(id)
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	vp, given := viewportFromRequest(r, sess.viewport)
	if given {
		s.viewports.Remember(deriveClientKey(r), vp)
	}
	sess.viewport = vp
	refreshed := sess.binder.Refresh(vp, sess.targets)

	w.Header().Set(sessionHeader, id)
	w.Header().Set(refreshedHeader, strconv.Itoa(refreshed))
	s.writeDocument(w, sess.doc)
}

// viewportFor resolves the request viewport: explicit values win, then the
// client's last known viewport, then the configured default.
func (s *Server) viewportFor(r *http.Request) resimg.Viewport {
	key := deriveClientKey(r)
	fallback, known := s.viewports.Lookup(key)
	if !known {
		fallback = s.cfg.Viewport
	}
	vp, given := viewportFromRequest(r, fallback)
	if given {
		s.viewports.Remember(key, vp)
	}
	return vp
}

// settingsFor builds settings from the host's site file, or the server
// defaults, with query overrides applied on top.
func (s *Server) settingsFor(r *http.Request) (*resimg.Settings, string, error) {
	opts := s.cfg.Images
	selector := s.cfg.Selector
	host := firstNonEmpty(r.Header.Get("X-Forwarded-Host"), r.Host)
	if site := s.sites.Find(host); site != nil {
		opts = site.Images
		if site.Selector != "" {
			selector = site.Selector
		}
	}

	q := requestValues(r)
	if v := strings.TrimSpace(q.Get("selector")); v != "" {
		selector = v
	}
	if v := strings.TrimSpace(q.Get("attr")); v != "" {
		opts.Attribute = v
	}
	if v := q.Get("fluid"); v != "" {
		mode, ok := parseBool(v)
		if !ok {
			return nil, "", fmt.Errorf("invalid fluid flag %q", v)
		}
		opts.Fluid.Mode = mode
	}
	if v := q.Get("edge"); v != "" {
		edge, ok := positiveInt(v)
		if !ok {
			return nil, "", fmt.Errorf("invalid fluid edge %q", v)
		}
		opts.Fluid.Edge = edge
	}
	settings, err := resimg.NewSettings(opts)
	if err != nil {
		return nil, "", err
	}
	return settings, selector, nil
}

func isFormPost(r *http.Request) bool {
	ct, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && ct == "application/x-www-form-urlencoded"
}

// requestValues returns the parsed form when there is one, so form posts and
// query strings are read the same way.
func requestValues(r *http.Request) url.Values {
	if r.Form != nil {
		return r.Form
	}
	return r.URL.Query()
}

func writeBodyError(w http.ResponseWriter, err error) {
	var tooBig *http.MaxBytesError
	if errors.As(err, &tooBig) {
		http.Error(w, "document too large", http.StatusRequestEntityTooLarge)
		return
	}
	http.Error(w, err.Error(), http.StatusBadRequest)
}

func (s *Server) writeDocument(w http.ResponseWriter, doc *resimg.Document) {
	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		s.logger.Error("Unable to render document", zap.Error(err))
		http.Error(w, "unable to render document", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	_, _ = w.Write(buf.Bytes())
}
