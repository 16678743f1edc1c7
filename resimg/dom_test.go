package resimg

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func renderDoc(t *testing.T, d *Document) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, d.Render(&buf))
	return buf.String()
}

func TestDocumentImageMobile(t *testing.T) {
	t.Parallel()
	doc, err := ParseDocument(strings.NewReader(`<html><body><img data-src="/content/files/a.jpg"></body></html>`))
	require.NoError(t, err)
	els, err := doc.Select("img")
	require.NoError(t, err)
	require.Len(t, els, 1)

	b := NewBinder()
	b.Init(Viewport{Width: 375, Height: 667}, els, MustSettings(Options{}))

	src, ok := els[0].Attr("src")
	require.True(t, ok)
	assert.Equal(t, "/images/640/a.jpg", src)
	assert.Contains(t, renderDoc(t, doc), `src="/images/640/a.jpg"`)
}

func TestDocumentBackgroundOriginal(t *testing.T) {
	t.Parallel()
	page := `<div data-bg-src="/content/files/b.jpg" data-src-original="all" style="color: red"></div>`
	for _, vp := range []Viewport{mobile(), tablet(), desktop()} {
		doc, err := ParseDocument(strings.NewReader(page))
		require.NoError(t, err)
		els, err := doc.Select("")
		require.NoError(t, err)
		require.Len(t, els, 1)

		NewBinder().Init(vp, els, MustSettings(Options{}))
		style, _ := els[0].Attr("style")
		assert.Equal(t, `background-image:url("/content/files/b.jpg");`, style)
	}
}

func TestDocumentSelectionsShareIdentity(t *testing.T) {
	t.Parallel()
	doc, err := ParseDocument(strings.NewReader(`<img class="hero" data-src="/content/files/h.jpg"><img data-src="/content/files/o.jpg">`))
	require.NoError(t, err)
	hero, err := doc.Select("img.hero")
	require.NoError(t, err)

	b := NewBinder()
	b.Init(mobile(), hero, MustSettings(Options{}))

	all, err := doc.Select("img")
	require.NoError(t, err)
	assert.Equal(t, 1, b.Refresh(tablet(), all))
	src, _ := hero[0].Attr("src")
	assert.Equal(t, "/images/1024/h.jpg", src)
	_, touched := all[1].Attr("src")
	assert.False(t, touched)
}

func TestDocumentInvalidSelector(t *testing.T) {
	t.Parallel()
	doc, err := ParseDocument(strings.NewReader(`<p>x</p>`))
	require.NoError(t, err)
	_, err = doc.Select("img[")
	assert.Error(t, err)
}

func TestNodeSetAttrReplacesCaseInsensitive(t *testing.T) {
	t.Parallel()
	doc, err := ParseDocument(strings.NewReader(`<img data-src="/content/files/a.jpg" src="placeholder.gif">`))
	require.NoError(t, err)
	els, err := doc.Select("img")
	require.NoError(t, err)
	els[0].SetAttr("SRC", "/x.jpg")
	out := renderDoc(t, doc)
	assert.Equal(t, 1, strings.Count(out, "src=\"/x.jpg\""))
	assert.NotContains(t, out, "placeholder.gif")
}

func TestRewriteHTML(t *testing.T) {
	t.Parallel()
	in := `<img data-src="/content/files/a.jpg"><div data-bg-src="/content/files/b.jpg" data-fluid-mode data-fluid-edge="2000"></div><p>text</p>`
	var out bytes.Buffer
	n, err := RewriteHTML(strings.NewReader(in), &out, Viewport{Width: 800, Height: 600}, MustSettings(Options{}), "")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Contains(t, out.String(), `src="/images/1024/a.jpg"`)
	assert.Contains(t, out.String(), `style="background-image:url(&#34;/images/800/b.jpg&#34;);"`)

	_, err = RewriteHTML(strings.NewReader(in), &out, Viewport{Width: 800}, MustSettings(Options{}), "div[")
	assert.Error(t, err)
}
