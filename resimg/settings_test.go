package resimg

import (
	"strings"
	"testing"
)

func TestNewSettingsDefaults(t *testing.T) {
	t.Parallel()
	s, err := NewSettings(Options{})
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}
	if s.Attribute != "src" {
		t.Errorf("Attribute = %q, want src", s.Attribute)
	}
	if s.Fluid.Mode || s.Fluid.Edge != 1024 {
		t.Errorf("Fluid = %+v, want {false 1024}", s.Fluid)
	}
	if len(s.Layouts) != 3 || s.Layouts[2].Width != Original {
		t.Errorf("unexpected default layouts %+v", s.Layouts)
	}
}

func TestNewSettingsFluidModeKeepsDefaultEdge(t *testing.T) {
	t.Parallel()
	s, err := NewSettings(Options{Fluid: FluidOptions{Mode: true}})
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}
	if !s.Fluid.Mode || s.Fluid.Edge != DefaultFluidEdge {
		t.Fatalf("Fluid = %+v, want mode with default edge", s.Fluid)
	}
}

func TestNewSettingsCanonicalNames(t *testing.T) {
	t.Parallel()
	s, err := NewSettings(Options{Layouts: []Layout{
		{Name: " phone ", Media: " (max-width: 500px) ", Width: 500},
		{Name: "Wide", Media: "all", Width: Original},
	}})
	if err != nil {
		t.Fatalf("NewSettings() error = %v", err)
	}
	if s.Layouts[0].Name != "PHONE" || s.Layouts[1].Name != "WIDE" {
		t.Fatalf("names not canonical: %+v", s.Layouts)
	}
	if s.Layouts[0].Media != "(max-width: 500px)" {
		t.Fatalf("media not trimmed: %q", s.Layouts[0].Media)
	}
}

func TestNewSettingsRejects(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name    string
		layouts []Layout
		wantErr string
	}{
		{"empty name", []Layout{{Name: " ", Media: "all", Width: 1}}, "empty name"},
		{"duplicate", []Layout{{Name: "a", Media: "all", Width: 1}, {Name: "A", Media: "all", Width: 2}}, "duplicate"},
		{"empty media", []Layout{{Name: "a", Media: "", Width: 1}}, "media"},
		{"zero width", []Layout{{Name: "a", Media: "all", Width: 0}}, "width"},
		{"negative width", []Layout{{Name: "a", Media: "all", Width: -5}}, "width"},
		{"unbalanced media", []Layout{
			{Name: "small", Media: "screen and (max-width: 639px", Width: 640},
			{Name: "big", Media: "(min-width: 640px)", Width: Original},
		}, "unbalanced"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewSettings(Options{Layouts: tc.layouts})
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("NewSettings() error = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}
