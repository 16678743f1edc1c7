package resimg

// Original is the layout width meaning "serve the template unscaled".
const Original = -1

// Layout is a named viewport tier. Name is kept in its canonical upper case form.
type Layout struct {
	Name  string `yaml:"name"`
	Media string `yaml:"media"`
	Width int    `yaml:"width"`
}

// DefaultLayouts returns the mobile/tablet/desktop set used when no layouts are configured.
func DefaultLayouts() []Layout {
	return []Layout{
		{Name: "MOBILE", Media: "only screen and (max-width: 639px)", Width: 640},
		{Name: "TABLET", Media: "only screen and (min-width: 640px) and (max-width: 1023px)", Width: 1024},
		{Name: "DESKTOP", Media: "only screen and (min-width: 1024px)", Width: Original},
	}
}

// MediaMatcher evaluates a media query against the current environment.
type MediaMatcher interface {
	MatchMedia(query string) bool
}

// ActiveLayout returns the first layout, in declaration order, whose media
// query matches. The second result is false when nothing matches, which is
// possible for layout sets without a catch-all entry.
func ActiveLayout(env MediaMatcher, layouts []Layout) (Layout, bool) {
	if env == nil {
		return Layout{}, false
	}
	for _, l := range layouts {
		if env.MatchMedia(l.Media) {
			return l, true
		}
	}
	return Layout{}, false
}
