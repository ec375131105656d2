package scrape

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalScrapeExtractsTitleAndText(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>
			<head><title> Acme Corp </title></head>
			<body>
				<h1>Robots</h1>
				<p>We build   friendly
				robots.</p>
			</body>
		</html>`))
	}))
	t.Cleanup(server.Close)

	local := NewLocal(LocalConfig{}, zap.NewNop())
	page, err := local.Scrape(context.Background(), server.URL)
	require.NoError(t, err)
	require.Equal(t, server.URL, page.URL)
	require.Equal(t, "Acme Corp", page.Title)
	require.Equal(t, "Robots We build friendly robots.", page.Markdown)
}

func TestLocalScrapeReturnsTypedErrorOnServerFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	local := NewLocal(LocalConfig{}, zap.NewNop())
	_, err := local.Scrape(context.Background(), server.URL)
	require.Error(t, err)

	var reqErr *RequestError
	require.ErrorAs(t, err, &reqErr)
	require.Equal(t, "scrape", reqErr.Op)
	require.Equal(t, server.URL, reqErr.URL)
}

func TestLocalDiscoverKeepsSameHostLinks(t *testing.T) {
	t.Parallel()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/about">About</a>
			<a href="` + server.URL + `/team#staff">Team</a>
			<a href="https://elsewhere.test/partner">Partner</a>
			<a href="/about">About again</a>
		</body></html>`))
	}))
	t.Cleanup(server.Close)

	local := NewLocal(LocalConfig{}, zap.NewNop())
	links, err := local.Discover(context.Background(), server.URL, 10)
	require.NoError(t, err)
	require.Equal(t, []string{server.URL + "/about", server.URL + "/team"}, links)
}

func TestLocalDiscoverHonorsLimit(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body>
			<a href="/a">a</a>
			<a href="/b">b</a>
			<a href="/c">c</a>
		</body></html>`))
	}))
	t.Cleanup(server.Close)

	local := NewLocal(LocalConfig{}, zap.NewNop())
	links, err := local.Discover(context.Background(), server.URL, 1)
	require.NoError(t, err)
	require.Len(t, links, 1)
}
