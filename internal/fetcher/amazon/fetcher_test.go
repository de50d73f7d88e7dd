package amazonfetcher

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/amzdeals/postbot/internal/poster"
)

func newTestFetcher(origin string) *Fetcher {
	return New(Config{
		Origin:    origin,
		UserAgent: "postbot-test",
		Timeout:   5 * time.Second,
	})
}

func serve(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, html)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchExtractsTitleAndImage(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body>
		<span id="productTitle">  Widget Pro Max  </span>
		<img id="landingImage" data-old-hires="https://img.example.test/widget.jpg" src="/thumb.jpg">
	</body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Widget Pro Max", got.Title)
	require.Equal(t, "https://img.example.test/widget.jpg", got.ImageURL)
}

func TestFetchFirstMatchingSelectorWins(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body>
		<h1 class="product-title-word-break">Fallback Title</h1>
		<img id="imgBlkFront" src="//img.example.test/front.jpg">
	</body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "Fallback Title", got.Title)
	require.Equal(t, "https://img.example.test/front.jpg", got.ImageURL)
}

func TestFetchResolvesSiteRelativeImage(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body>
		<span id="productTitle">Widget</span>
		<img id="main-image" src="/images/widget.png">
	</body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, srv.URL+"/images/widget.png", got.ImageURL)
}

func TestFetchDynamicImageJSONTakesFirstKey(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body>
		<span id="productTitle">Widget</span>
		<img data-a-dynamic-image='{"https://img.example.test/a.jpg":[500,500],"https://img.example.test/b.jpg":[800,800]}'>
	</body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	got, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, "https://img.example.test/a.jpg", got.ImageURL)
}

func TestFetchMissingTitle(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body><img id="landingImage" src="/x.jpg"></body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorContains(t, err, "no title")
}

func TestFetchMissingImage(t *testing.T) {
	t.Parallel()

	srv := serve(t, `<html><body><span id="productTitle">Widget</span></body></html>`)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorContains(t, err, "no image")
}

func TestFetchNonOKStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "captcha", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)
	f := newTestFetcher(srv.URL)
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.Error(t, err)
	require.ErrorContains(t, err, "503")
}

func TestFetchTimeout(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(2 * time.Second)
	}))
	t.Cleanup(srv.Close)

	f := New(Config{
		Origin:    srv.URL,
		UserAgent: "postbot-test",
		Timeout:   100 * time.Millisecond,
	})
	defer f.Close()

	_, err := f.Fetch(context.Background(), srv.URL)
	require.ErrorIs(t, err, poster.ErrFetchTimeout)
}

func TestFirstJSONKey(t *testing.T) {
	t.Parallel()

	got, err := firstJSONKey(`{"first":[1,2],"second":[3,4]}`)
	require.NoError(t, err)
	require.Equal(t, "first", got)

	_, err = firstJSONKey(`{}`)
	require.Error(t, err)

	_, err = firstJSONKey(`[1,2]`)
	require.Error(t, err)
}
