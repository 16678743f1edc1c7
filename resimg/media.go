package resimg

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	cssast "github.com/aymerick/douceur/css"
	"github.com/aymerick/douceur/parser"
)

// Env is the environment a resolution runs against.
type Env interface {
	MediaMatcher
	ViewportWidth() int
}

// Viewport is an Env described by plain values, used when the page is
// rewritten away from the browser that will display it.
type Viewport struct {
	Width  int
	Height int
	// Type is the media type, "screen" when empty.
	Type string
	// Scheme is the preferred color scheme, "light" when empty.
	Scheme string
}

// ViewportWidth implements Env.
func (v Viewport) ViewportWidth() int { return v.Width }

var (
	andSplit  = regexp.MustCompile(`\s+and\s+`)
	andParens = regexp.MustCompile(`\)\s*and\s*\(`)
)

// MatchMedia implements MediaMatcher. A comma separated list matches when
// any of its queries does. Unknown features are assumed to match.
func (v Viewport) MatchMedia(query string) bool {
	if strings.TrimSpace(query) == "" {
		return true
	}
	for _, raw := range strings.Split(query, ",") {
		q := strings.ToLower(strings.TrimSpace(raw))
		if q == "" {
			continue
		}
		if v.matchOne(q) {
			return true
		}
	}
	return false
}

func (v Viewport) matchOne(q string) bool {
	negate := false
	clauses := splitAnd(q)
	if len(clauses) == 0 {
		return false
	}
	head := clauses[0]
	if !strings.HasPrefix(head, "(") {
		fields := strings.Fields(head)
		switch fields[0] {
		case "only":
			fields = fields[1:]
		case "not":
			negate = true
			fields = fields[1:]
		}
		rest := strings.Join(fields, " ")
		if strings.HasPrefix(rest, "(") {
			clauses[0] = rest
		} else {
			clauses = clauses[1:]
			if !v.typeMatches(rest) {
				return negate
			}
		}
	}
	ok := true
	for _, c := range clauses {
		if !v.featureMatches(c) {
			ok = false
			break
		}
	}
	return ok != negate
}

func splitAnd(q string) []string {
	q = andParens.ReplaceAllString(q, ") and (")
	parts := andSplit.Split(q, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (v Viewport) typeMatches(mediaType string) bool {
	current := strings.ToLower(strings.TrimSpace(v.Type))
	if current == "" {
		current = "screen"
	}
	switch mediaType {
	case "", "all":
		return true
	case "screen", "handheld", "projection":
		return current == "screen"
	default:
		return mediaType == current
	}
}

func (v Viewport) featureMatches(clause string) bool {
	c := strings.TrimSpace(clause)
	if !strings.HasPrefix(c, "(") || !strings.HasSuffix(c, ")") {
		return false
	}
	c = strings.TrimSpace(c[1 : len(c)-1])
	parts := strings.SplitN(c, ":", 2)
	feature := strings.TrimSpace(parts[0])
	value := ""
	if len(parts) == 2 {
		value = strings.TrimSpace(parts[1])
	}

	width, height := float64(v.Width), float64(v.Height)
	switch feature {
	case "width":
		px, ok := cssLengthToPx(value)
		return !ok || width == px
	case "min-width":
		px, ok := cssLengthToPx(value)
		return !ok || width >= px
	case "max-width":
		px, ok := cssLengthToPx(value)
		return !ok || width <= px
	case "height":
		px, ok := cssLengthToPx(value)
		return !ok || height == px
	case "min-height":
		px, ok := cssLengthToPx(value)
		return !ok || height >= px
	case "max-height":
		px, ok := cssLengthToPx(value)
		return !ok || height <= px
	case "orientation":
		orientation := "portrait"
		if v.Width > v.Height {
			orientation = "landscape"
		}
		return value == "" || value == orientation
	case "prefers-color-scheme":
		scheme := strings.ToLower(strings.TrimSpace(v.Scheme))
		if scheme == "" {
			scheme = "light"
		}
		return value == "" || value == scheme
	default:
		return true
	}
}

// cssLengthToPx converts a media feature length. Relative units use the
// 16px initial font size. Fractions are kept: 639.98px is below 640.
func cssLengthToPx(val string) (float64, bool) {
	v := strings.ToLower(strings.TrimSpace(val))
	if v == "" {
		return 0, false
	}
	scale := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = v[:len(v)-2]
	case strings.HasSuffix(v, "rem"):
		v, scale = v[:len(v)-3], 16
	case strings.HasSuffix(v, "em"):
		v, scale = v[:len(v)-2], 16
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, false
	}
	return f * scale, true
}

// NormalizeMedia checks that query parses as an @media prelude and returns it
// trimmed of surrounding whitespace.
func NormalizeMedia(query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return "", fmt.Errorf("empty media query")
	}
	sheet, err := parser.Parse("@media " + q + " {}")
	if err != nil {
		return "", fmt.Errorf("unable to parse media query %q: %w", q, err)
	}
	if len(sheet.Rules) != 1 {
		return "", fmt.Errorf("media query %q does not form a single rule", q)
	}
	rule := sheet.Rules[0]
	if rule.Kind != cssast.AtRule || !strings.EqualFold(rule.Name, "@media") {
		return "", fmt.Errorf("media query %q is not an @media prelude", q)
	}
	prelude := strings.TrimSpace(rule.Prelude)
	if prelude == "" {
		return "", fmt.Errorf("media query %q has empty prelude", q)
	}
	if !balancedParens(prelude) {
		return "", fmt.Errorf("media query %q has unbalanced parentheses", q)
	}
	return prelude, nil
}

func balancedParens(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}
