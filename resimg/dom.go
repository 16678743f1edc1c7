package resimg

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
)

// DefaultSelector matches every element declaring a source template.
const DefaultSelector = "[data-src], [data-bg-src]"

// Document is a parsed HTML page whose elements can be bound.
type Document struct {
	doc *goquery.Document
}

// ParseDocument parses an HTML page.
func ParseDocument(r io.Reader) (*Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to parse document: %w", err)
	}
	return &Document{doc: doc}, nil
}

// NewDocument wraps an already parsed tree.
func NewDocument(root *html.Node) *Document {
	return &Document{doc: goquery.NewDocumentFromNode(root)}
}

// Select returns the elements matching a CSS selector, in document order.
// An empty selector selects DefaultSelector.
func (d *Document) Select(selector string) ([]Element, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultSelector
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		return nil, fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	sel := d.doc.FindMatcher(m)
	out := make([]Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, Node(s.Get(0)))
	})
	return out, nil
}

// Render writes the document as HTML.
func (d *Document) Render(w io.Writer) error {
	for _, n := range d.doc.Nodes {
		if err := html.Render(w, n); err != nil {
			return err
		}
	}
	return nil
}

// Node adapts an element node. Adapters of the same node compare equal, so
// they can be bound and refreshed across separate selections.
func Node(n *html.Node) Element {
	return nodeElement{n: n}
}

type nodeElement struct {
	n *html.Node
}

func (e nodeElement) Tag() string {
	if e.n == nil || e.n.Type != html.ElementNode {
		return ""
	}
	return e.n.Data
}

func (e nodeElement) Attr(name string) (string, bool) {
	if e.n == nil {
		return "", false
	}
	for _, a := range e.n.Attr {
		if a.Namespace == "" && strings.EqualFold(a.Key, name) {
			return a.Val, true
		}
	}
	return "", false
}

func (e nodeElement) SetAttr(name, value string) {
	if e.n == nil {
		return
	}
	for i := range e.n.Attr {
		if e.n.Attr[i].Namespace == "" && strings.EqualFold(e.n.Attr[i].Key, name) {
			e.n.Attr[i].Val = value
			return
		}
	}
	e.n.Attr = append(e.n.Attr, html.Attribute{Key: name, Val: value})
}

// RewriteHTML parses a page, binds every element matched by selector with s
// and writes the result. It returns the number of bound elements.
func RewriteHTML(r io.Reader, w io.Writer, env Env, s *Settings, selector string, opts ...BinderOption) (int, error) {
	doc, err := ParseDocument(r)
	if err != nil {
		return 0, err
	}
	targets, err := doc.Select(selector)
	if err != nil {
		return 0, err
	}
	n := NewBinder(opts...).Init(env, targets, s)
	if err := doc.Render(w); err != nil {
		return n, fmt.Errorf("unable to render document: %w", err)
	}
	return n, nil
}
