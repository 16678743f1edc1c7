package proxy

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"resimages/resimg"
)

// viewportStore remembers the last viewport each client described, so
// requests without one are rewritten for the same device. Only the most
// recently seen clients are kept.
type viewportStore struct {
	cache *lru.Cache[string, resimg.Viewport]
}

func newViewportStore(size int) *viewportStore {
	if size <= 0 {
		size = defaultViewportCacheSize
	}
	// New fails only for a non positive size
	cache, _ := lru.New[string, resimg.Viewport](size)
	return &viewportStore{cache: cache}
}

func (s *viewportStore) Remember(key string, vp resimg.Viewport) {
	s.cache.Add(key, vp)
}

func (s *viewportStore) Lookup(key string) (resimg.Viewport, bool) {
	return s.cache.Get(key)
}

func (s *viewportStore) Len() int { return s.cache.Len() }

func deriveClientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil || host == "" {
		host = r.RemoteAddr
	}
	return host + "|" + r.UserAgent()
}

// viewportFromRequest reads the viewport from query or form parameters,
// falling back to client hint headers. ok is false when no width was supplied.
func viewportFromRequest(r *http.Request, fallback resimg.Viewport) (resimg.Viewport, bool) {
	q := requestValues(r)
	vp := fallback
	width, ok := positiveInt(firstNonEmpty(q.Get("w"), r.Header.Get("Sec-CH-Viewport-Width"), r.Header.Get("Viewport-Width")))
	if ok {
		vp.Width = width
	}
	if h, hok := positiveInt(firstNonEmpty(q.Get("h"), r.Header.Get("Sec-CH-Viewport-Height"))); hok {
		vp.Height = h
	}
	if v := strings.ToLower(strings.TrimSpace(q.Get("type"))); v != "" {
		vp.Type = v
	}
	if v := strings.ToLower(strings.Trim(firstNonEmpty(q.Get("scheme"), r.Header.Get("Sec-CH-Prefers-Color-Scheme")), ` "`)); v != "" {
		vp.Scheme = v
	}
	return vp, ok
}

func positiveInt(v string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// parseBool accepts the spellings query strings use for flags.
func parseBool(v string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true, true
	case "0", "false", "off", "no":
		return false, true
	}
	return false, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
