package linkaudit

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

func snapshotMappings() []routes.Mapping {
	return []routes.Mapping{
		{URL: "http://blog.test/", Target: "index.html"},
		{URL: "http://blog.test/hello/", Target: "hello/index.html"},
		{URL: "http://blog.test/tag/go/", Target: "tag/go/index.html"},
		{URL: "http://blog.test/rss/", Target: "rss/rss.xml"},
		{URL: "http://blog.test/assets/app.css", Target: "assets/app.css", Source: "/srv/theme/assets/app.css"},
		{URL: "http://blog.test/caf%C3%A9/", Target: "café/index.html"},
	}
}

func TestExtractLinks(t *testing.T) {
	doc := `<html><head><link rel="stylesheet" href="/assets/app.css"><script src="/x.js"></script></head>
<body><a href="/hello/">hi</a><img src="pic.png"><a>no href</a><iframe src=" /embed "></iframe></body></html>`
	links, err := ExtractLinks(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, []Link{
		{URL: "/assets/app.css", Tag: "link", Attribute: "href"},
		{URL: "/x.js", Tag: "script", Attribute: "src"},
		{URL: "/hello/", Tag: "a", Attribute: "href"},
		{URL: "pic.png", Tag: "img", Attribute: "src"},
		{URL: "/embed", Tag: "iframe", Attribute: "src"},
	}, links)
}

func TestInspectReportsUnknownInternalRoutes(t *testing.T) {
	a, err := New("http://blog.test/", "index.html", snapshotMappings())
	require.NoError(t, err)

	page := `<html><body>
<a href="/hello">ok without slash</a>
<a href="/hello/index.html">ok index</a>
<a href="../tag/go/#top">ok relative</a>
<a href="/caf%C3%A9/">ok escaped</a>
<a href="/rss/">ok rss</a>
<a href="/ghost/">admin</a>
<img src="/content/images/missing.png">
<a href="https://other.example/x">external</a>
<a href="mailto:me@blog.test">mail</a>
<a href="#frag">anchor</a>
<link href="/assets/app.css?v=2" rel="stylesheet">
</body></html>`

	n, err := a.Inspect("http://blog.test/hello/", strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	r := a.Report()
	assert.Equal(t, 1, r.Pages)
	assert.Equal(t, 8, r.Links)
	require.Len(t, r.Findings, 2)
	assert.Equal(t, "/content/images/missing.png", r.Findings[0].Link)
	assert.Equal(t, "img", r.Findings[0].Tag)
	assert.Equal(t, "/ghost/", r.Findings[1].Link)
	assert.Equal(t, "http://blog.test/hello/", r.Findings[1].Page)
}

func TestInspectConcurrentPages(t *testing.T) {
	a, err := New("http://blog.test/", "index.html", snapshotMappings())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := a.Inspect("http://blog.test/", strings.NewReader(`<a href="/nope/">x</a>`))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	r := a.Report()
	assert.Equal(t, 8, r.Pages)
	assert.Len(t, r.Findings, 8)
}

func TestNewRejectsBadBaseURL(t *testing.T) {
	_, err := New("not a url", "index.html", nil)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryConfig, errors.GetCategory(err))
}

func TestShouldInspect(t *testing.T) {
	assert.True(t, ShouldInspect(routes.Mapping{Target: "hello/index.html"}))
	assert.False(t, ShouldInspect(routes.Mapping{Target: "rss/rss.xml"}))
	assert.False(t, ShouldInspect(routes.Mapping{Target: "public/a.html", Source: "/srv/a.html"}))
}
