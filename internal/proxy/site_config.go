package proxy

import (
	"bytes"
	"net"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
	yaml "gopkg.in/yaml.v3"

	"resimages/resimg"
)

// SiteConfig overrides image options for one host.
type SiteConfig struct {
	Selector string         `yaml:"selector,omitempty"`
	Images   resimg.Options `yaml:"images"`
}

// siteConfigStore resolves hosts to site files. Lookups, misses included,
// are cached for the most recently requested hosts.
type siteConfigStore struct {
	dir   string
	log   *zap.Logger
	cache *lru.Cache[string, *SiteConfig]
}

func newSiteConfigStore(dir string, size int, log *zap.Logger) *siteConfigStore {
	if log == nil {
		log = zap.NewNop()
	}
	if size <= 0 {
		size = defaultSiteCacheSize
	}
	// New fails only for a non positive size
	cache, _ := lru.New[string, *SiteConfig](size)
	return &siteConfigStore{
		dir:   dir,
		log:   log,
		cache: cache,
	}
}

// Find returns the configuration of host, trying parent domains in turn.
// It returns nil when no file exists.
func (s *siteConfigStore) Find(host string) *SiteConfig {
	host = normalizeHost(host)
	if host == "" {
		return nil
	}
	if cfg, ok := s.cache.Get(host); ok {
		return cfg
	}

	labels := strings.Split(host, ".")
	for i := 0; i < len(labels); i++ {
		candidate := strings.Join(labels[i:], ".")
		if cfg := s.load(candidate); cfg != nil {
			s.cache.Add(host, cfg)
			return cfg
		}
	}
	s.cache.Add(host, nil)
	return nil
}

func (s *siteConfigStore) load(host string) *SiteConfig {
	if s.dir == "" {
		return nil
	}
	path := filepath.Join(s.dir, host+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var cfg SiteConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		s.log.Warn("Ignoring site configuration", zap.String("path", path), zap.Error(err))
		return nil
	}
	if _, err := resimg.NewSettings(cfg.Images); err != nil {
		s.log.Warn("Ignoring site configuration", zap.String("path", path), zap.Error(err))
		return nil
	}
	cfg.Selector = strings.TrimSpace(cfg.Selector)
	return &cfg
}

func normalizeHost(host string) string {
	h := strings.ToLower(strings.TrimSpace(host))
	if hh, _, err := net.SplitHostPort(h); err == nil {
		h = hh
	}
	h = strings.TrimSuffix(h, ".")
	if strings.ContainsAny(h, `/\`) || strings.Contains(h, "..") {
		return ""
	}
	return h
}
