package assetcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opay/db"
	"opay/events"
)

type upstreamApp struct {
	srv      *httptest.Server
	hits     atomic.Int64
	apiHits  atomic.Int64
	respond  atomic.Bool
	shellTag string
}

// newUpstreamApp serves a tiny application shell plus an API origin. Flipping
// respond to false simulates losing the network.
func newUpstreamApp(t *testing.T) *upstreamApp {
	t.Helper()
	app := &upstreamApp{shellTag: "<html>shell v1</html>"}
	app.respond.Store(true)

	app.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !app.respond.Load() {
			// drop the connection so the client sees a transport error
			hj, ok := w.(http.Hijacker)
			require.True(t, ok)
			conn, _, err := hj.Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		switch {
		case r.URL.Path == "/api/balance":
			app.apiHits.Add(1)
			w.Write([]byte(`{"balance":"100.00"}`))
		case r.URL.Path == "/index.html" || r.URL.Path == "/":
			app.hits.Add(1)
			w.Header().Set("Content-Type", "text/html")
			w.Write([]byte(app.shellTag))
		case r.URL.Path == "/static/app.js":
			app.hits.Add(1)
			w.Header().Set("Content-Type", "application/javascript")
			w.Write([]byte("console.log('app')"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(app.srv.Close)
	return app
}

func newTestCache(t *testing.T, app *upstreamApp, version string, bus *events.EventBus) (*AssetCache, db.DatabaseProvider) {
	t.Helper()
	provider, err := db.NewBoltProvider(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { provider.Close() })

	ac, err := NewAssetCache(provider, bus, Config{
		Version:     version,
		ShellEntry:  "/index.html",
		Assets:      []string{"/index.html", "/static/app.js"},
		APIPrefix:   "/api/",
		UpstreamURL: app.srv.URL,
	})
	require.NoError(t, err)
	return ac, provider
}

func TestInstallPrefetchesShellAssets(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)

	require.NoError(t, ac.Install(context.Background()))
	assert.EqualValues(t, 2, app.hits.Load())

	cached, err := ac.lookup("/index.html")
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, http.StatusOK, cached.Status)
	assert.Equal(t, "text/html", cached.ContentType)
	assert.Equal(t, app.shellTag, string(cached.Body))
}

func TestInstallFailsWhenAnyAssetMissing(t *testing.T) {
	app := newUpstreamApp(t)
	provider, err := db.NewBoltProvider(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer provider.Close()

	ac, err := NewAssetCache(provider, nil, Config{
		Version:     "offline-pay-v1",
		ShellEntry:  "/index.html",
		Assets:      []string{"/index.html", "/does-not-exist.js"},
		APIPrefix:   "/api/",
		UpstreamURL: app.srv.URL,
	})
	require.NoError(t, err)

	require.Error(t, ac.Install(context.Background()), "a partial generation must not install")
}

func TestNetworkFirstServesAndCaches(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.shellTag, rec.Body.String())
	assert.True(t, ac.Online())
}

func TestOfflineFallsBackToCache(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	app.respond.Store(false)

	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log('app')", rec.Body.String())
	assert.False(t, ac.Online())
}

func TestOfflineNavigationRendersShell(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	app.respond.Store(false)

	// an uncached client-side route, requested as a page load
	req := httptest.NewRequest(http.MethodGet, "/payments/history", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, app.shellTag, rec.Body.String())
}

func TestOfflineUncachedAssetIs504(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	app.respond.Store(false)

	// not a navigation, so no shell fallback
	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/missing.js", nil))
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestAPIRequestsAreNeverCached(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, app.apiHits.Load())

	cached, err := ac.lookup("/api/balance")
	require.NoError(t, err)
	assert.Nil(t, cached, "API responses must never land in the cache")

	// offline API calls fail loudly instead of serving stale data
	app.respond.Store(false)
	rec = httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/balance", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestNonGETPassesThrough(t *testing.T) {
	app := newUpstreamApp(t)
	ac, _ := newTestCache(t, app, "offline-pay-v1", nil)
	require.NoError(t, ac.Activate())

	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// the proxy forwarded, but nothing landed in the cache
	cached, err := ac.lookup("/index.html")
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestActivateDropsStaleGenerations(t *testing.T) {
	app := newUpstreamApp(t)
	provider, err := db.NewBoltProvider(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer provider.Close()

	// an older generation left behind by a previous version
	v1, err := NewAssetCache(provider, nil, Config{
		Version:     "offline-pay-v1",
		ShellEntry:  "/index.html",
		Assets:      []string{"/index.html"},
		APIPrefix:   "/api/",
		UpstreamURL: app.srv.URL,
	})
	require.NoError(t, err)
	require.NoError(t, v1.Install(context.Background()))

	v2, err := NewAssetCache(provider, nil, Config{
		Version:     "offline-pay-v2",
		ShellEntry:  "/index.html",
		Assets:      []string{"/index.html"},
		APIPrefix:   "/api/",
		UpstreamURL: app.srv.URL,
	})
	require.NoError(t, err)
	require.NoError(t, v2.Install(context.Background()))
	require.NoError(t, v2.Activate())

	stale, err := v1.lookup("/index.html")
	require.NoError(t, err)
	assert.Nil(t, stale, "old generations are dropped on activation")

	current, err := v2.lookup("/index.html")
	require.NoError(t, err)
	assert.NotNil(t, current)
}

func TestConnectivityEdgesPublishOnce(t *testing.T) {
	app := newUpstreamApp(t)
	bus := events.NewEventBus()
	_, ch := bus.Subscribe()

	ac, _ := newTestCache(t, app, "offline-pay-v1", bus)
	require.NoError(t, ac.Install(context.Background()))
	require.NoError(t, ac.Activate())

	app.respond.Store(false)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
		assert.Equal(t, http.StatusOK, rec.Code, "cached copy keeps serving while offline")
	}

	app.respond.Store(true)
	rec := httptest.NewRecorder()
	ac.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/index.html", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// exactly one offline edge and one online edge, repeats are suppressed
	offline := <-ch
	assert.Equal(t, events.EventConnectivityOffline, offline.Type())
	online := <-ch
	assert.Equal(t, events.EventConnectivityOnline, online.Type())
	select {
	case extra := <-ch:
		t.Fatalf("unexpected extra event %s", extra.Type())
	default:
	}
}
