package resimg

import (
	"fmt"
	"strings"
)

const (
	DefaultAttribute = "src"
	DefaultFluidEdge = 1024
)

// FluidOptions configures fluid width mode.
type FluidOptions struct {
	// Mode enables fluid mode for every element. Elements may still opt in
	// individually with data-fluid-mode.
	Mode bool `yaml:"mode"`
	// Edge is the viewport width at or above which the original image is
	// used. Zero or negative selects DefaultFluidEdge.
	Edge int `yaml:"edge,omitempty"`
}

// Options is the caller supplied configuration for a single Init call.
type Options struct {
	// Attribute written on image elements. Empty selects DefaultAttribute.
	Attribute string `yaml:"attribute,omitempty"`
	// Layouts in priority order. Empty selects DefaultLayouts.
	Layouts []Layout     `yaml:"layout,omitempty"`
	Fluid   FluidOptions `yaml:"fluid"`
}

// Fluid is the resolved fluid mode configuration.
type Fluid struct {
	Mode bool
	Edge int
}

// Settings is the immutable configuration shared by every element bound in
// one Init call.
type Settings struct {
	Attribute string
	Layouts   []Layout
	Fluid     Fluid
}

// NewSettings applies defaults to opts field by field and validates layouts.
func NewSettings(opts Options) (*Settings, error) {
	s := &Settings{
		Attribute: strings.TrimSpace(opts.Attribute),
		Fluid:     Fluid{Mode: opts.Fluid.Mode, Edge: opts.Fluid.Edge},
	}
	if s.Attribute == "" {
		s.Attribute = DefaultAttribute
	}
	if s.Fluid.Edge <= 0 {
		s.Fluid.Edge = DefaultFluidEdge
	}

	src := opts.Layouts
	if len(src) == 0 {
		src = DefaultLayouts()
	}
	seen := make(map[string]struct{}, len(src))
	s.Layouts = make([]Layout, 0, len(src))
	for i, l := range src {
		name := strings.ToUpper(strings.TrimSpace(l.Name))
		if name == "" {
			return nil, fmt.Errorf("layout #%d: empty name", i)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("layout #%d: duplicate name %q", i, name)
		}
		seen[name] = struct{}{}
		media, err := NormalizeMedia(l.Media)
		if err != nil {
			return nil, fmt.Errorf("layout %q: %w", name, err)
		}
		if l.Width < Original || l.Width == 0 {
			return nil, fmt.Errorf("layout %q: invalid width %d", name, l.Width)
		}
		s.Layouts = append(s.Layouts, Layout{Name: name, Media: media, Width: l.Width})
	}
	return s, nil
}

// MustSettings is like NewSettings but panics on error. It is intended for
// statically known options.
func MustSettings(opts Options) *Settings {
	s, err := NewSettings(opts)
	if err != nil {
		panic(err)
	}
	return s
}
