package resimg

import (
	"regexp"
	"strconv"
	"strings"
)

// Element attributes read during resolution.
const (
	AttrSrc       = "data-src"
	AttrBgSrc     = "data-bg-src"
	AttrDeny      = "data-src-deny"
	AttrOriginal  = "data-src-original"
	AttrFluidMode = "data-fluid-mode"
	AttrFluidEdge = "data-fluid-edge"
)

// Element is the host's view of a target element.
type Element interface {
	Tag() string
	Attr(name string) (string, bool)
	SetAttr(name, value string)
}

// Overrides are the per element declarations consulted on every resolution.
type Overrides struct {
	Src       string
	BgSrc     string
	Deny      string
	Original  string
	FluidMode bool
	FluidEdge int
}

// ReadOverrides collects the declarative attributes of el.
func ReadOverrides(el Element) Overrides {
	var o Overrides
	o.Src, _ = el.Attr(AttrSrc)
	o.BgSrc, _ = el.Attr(AttrBgSrc)
	o.Deny, _ = el.Attr(AttrDeny)
	o.Original, _ = el.Attr(AttrOriginal)
	_, o.FluidMode = el.Attr(AttrFluidMode)
	if raw, ok := el.Attr(AttrFluidEdge); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
			o.FluidEdge = n
		}
	}
	return o
}

// Action tells Apply what to do with a Decision.
type Action int

const (
	Skip Action = iota
	Write
)

func (a Action) String() string {
	if a == Write {
		return "write"
	}
	return "skip"
}

// Decision is the outcome of Resolve.
type Decision struct {
	Action Action
	URL    string
	// Reason names the gate that produced a Skip.
	Reason string
}

func skip(reason string) Decision { return Decision{Action: Skip, Reason: reason} }

// Resolve computes the URL for an element. It never fails: anything that
// cannot be resolved leaves the element alone.
func Resolve(o Overrides, s *Settings, env Env) Decision {
	if s == nil || env == nil {
		return skip("unconfigured")
	}
	src := o.Src
	if src == "" {
		src = o.BgSrc
	}
	if src == "" {
		return skip("no source")
	}

	active, found := ActiveLayout(env, s.Layouts)
	if listMatches(o.Deny, active, found) {
		return skip("denied")
	}
	if listMatches(o.Original, active, found) {
		return Decision{Action: Write, URL: src}
	}

	var width int
	if s.Fluid.Mode || o.FluidMode {
		edge := s.Fluid.Edge
		if o.FluidEdge > 0 {
			edge = o.FluidEdge
		}
		width = env.ViewportWidth()
		if width <= 0 {
			return skip("no viewport width")
		}
		if width >= edge {
			width = Original
		}
	} else {
		if !found {
			return skip("no active layout")
		}
		width = active.Width
	}

	if width != Original {
		src = RewriteURL(src, width)
	}
	return Decision{Action: Write, URL: src}
}

var filesSegment = regexp.MustCompile(`(?i)/content/files/`)

// RewriteURL replaces the first /content/files/ segment of template with
// /images/{width}/. Templates without the segment are returned unchanged.
func RewriteURL(template string, width int) string {
	loc := filesSegment.FindStringIndex(template)
	if loc == nil {
		return template
	}
	return template[:loc[0]] + "/images/" + strconv.Itoa(width) + "/" + template[loc[1]:]
}

// listMatches reports whether a comma separated layout list names the
// active layout. The ALL token matches regardless of layout.
func listMatches(value string, active Layout, found bool) bool {
	v := strings.ToUpper(strings.TrimSpace(value))
	if v == "" {
		return false
	}
	for _, name := range strings.Split(v, ",") {
		name = strings.TrimSpace(name)
		if name == "ALL" {
			return true
		}
		if found && name != "" && name == active.Name {
			return true
		}
	}
	return false
}

// BackgroundStyle is the inline style written on non image elements.
func BackgroundStyle(url string) string {
	return `background-image:url("` + url + `");`
}

// Apply writes a Write decision to the bound element.
func Apply(b *Binding, d Decision) bool {
	if b == nil || b.Target == nil || b.Settings == nil || d.Action != Write {
		return false
	}
	if b.Image {
		b.Target.SetAttr(b.Settings.Attribute, d.URL)
	} else {
		b.Target.SetAttr("style", BackgroundStyle(d.URL))
	}
	return true
}
