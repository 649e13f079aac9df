package fetch

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitesnap/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesnap/internal/routes"
)

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { require.NoError(t, rc.Close()) }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func TestHTTPFetcherWritesBodyVerbatimRegardlessOfStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "sitesnap-test", r.UserAgent())
		if r.URL.Path == "/missing/" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte("not here"))
			return
		}
		_, _ = w.Write([]byte("page " + r.URL.Path))
	}))
	defer srv.Close()

	f := NewHTTP(WithUserAgent("sitesnap-test"))

	rc, err := f.Fetch(t.Context(), srv.URL+"/a/")
	require.NoError(t, err)
	assert.Equal(t, "page /a/", readAll(t, rc))

	rc, err = f.Fetch(t.Context(), srv.URL+"/missing/")
	require.NoError(t, err)
	assert.Equal(t, "not here", readAll(t, rc))
}

func TestHTTPFetcherNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTP().Fetch(t.Context(), url+"/")
	require.Error(t, err)
	assert.Equal(t, errors.CategoryFetch, errors.GetCategory(err))
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTP(WithTimeout(50*time.Millisecond)).Fetch(t.Context(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, errors.CategoryFetch, errors.GetCategory(err))
}

func TestLocalFirstReadsAssetsFromDisk(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	src := filepath.Join(t.TempDir(), "app.css")
	require.NoError(t, os.WriteFile(src, []byte("local"), 0o600))

	opener := LocalFirst(NewHTTP())
	rc, err := opener.Open(t.Context(), routes.Mapping{URL: srv.URL + "/assets/app.css", Target: "assets/app.css", Source: src})
	require.NoError(t, err)
	assert.Equal(t, "local", readAll(t, rc))
	assert.Equal(t, 0, hits)

	rc, err = opener.Open(t.Context(), routes.Mapping{URL: srv.URL + "/", Target: "index.html"})
	require.NoError(t, err)
	assert.Equal(t, "remote", readAll(t, rc))
	assert.Equal(t, 1, hits)

	_, err = opener.Open(t.Context(), routes.Mapping{URL: srv.URL + "/x", Target: "x", Source: src + ".gone"})
	assert.Equal(t, errors.CategoryFetch, errors.GetCategory(err))
}

func TestRemoteAlwaysFetches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("remote"))
	}))
	defer srv.Close()

	rc, err := Remote(NewHTTP()).Open(t.Context(), routes.Mapping{URL: srv.URL + "/a.css", Target: "a.css", Source: "/does/not/matter"})
	require.NoError(t, err)
	assert.Equal(t, "remote", readAll(t, rc))
}
