package assetcache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"opay/db"
	"opay/events"
	"opay/jsonx"
	"opay/logx"
	"opay/monitoring"
)

const cachePrefix = "cache:"

// AssetCache keeps the host application shell loadable while offline. It is
// the explicit request-routing re-expression of a service worker: versioned
// cache generations with an install/activate/cleanup transition, network-first
// routing, and a connectivity notification hook. It never touches payment
// data; API-origin requests pass straight to the network.
type AssetCache struct {
	provider db.DatabaseProvider
	bus      *events.EventBus
	upstream *url.URL
	proxy    *httputil.ReverseProxy
	client   *http.Client

	version    string
	shellEntry string
	assets     []string
	apiPrefix  string

	online atomic.Bool
	active atomic.Bool
}

type Config struct {
	Version      string
	ShellEntry   string
	Assets       []string
	APIPrefix    string
	UpstreamURL  string
	FetchTimeout time.Duration
}

// cachedResponse is the stored shape of one shell asset
type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

func NewAssetCache(provider db.DatabaseProvider, bus *events.EventBus, cfg Config) (*AssetCache, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream url %q", cfg.UpstreamURL)
	}

	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ac := &AssetCache{
		provider:   provider,
		bus:        bus,
		upstream:   upstream,
		client:     &http.Client{Timeout: timeout},
		version:    cfg.Version,
		shellEntry: cfg.ShellEntry,
		assets:     cfg.Assets,
		apiPrefix:  cfg.APIPrefix,
	}
	ac.online.Store(true)

	proxy := httputil.NewSingleHostReverseProxy(upstream)
	proxy.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		ac.markOffline("proxy")
		w.WriteHeader(http.StatusBadGateway)
	}
	ac.proxy = proxy

	return ac, nil
}

// Install pre-populates the current cache generation with the enumerated
// shell assets. The generation does not activate unless every asset landed.
func (ac *AssetCache) Install(ctx context.Context) error {
	logx.Info("ASSETCACHE", "Installing cache generation ", ac.version)
	for _, asset := range ac.assets {
		if err := ac.prefetch(ctx, asset); err != nil {
			return fmt.Errorf("install of %s failed at %s: %w", ac.version, asset, err)
		}
	}
	return nil
}

// Activate deletes every generation whose version does not match the current
// one in a single atomic batch, then starts serving.
func (ac *AssetCache) Activate() error {
	keep := []byte(generationPrefix(ac.version))

	batch := ac.provider.Batch()
	defer batch.Close()

	stale := 0
	err := ac.provider.IteratePrefix([]byte(cachePrefix), func(key, value []byte) bool {
		if !strings.HasPrefix(string(key), string(keep)) {
			batch.Delete(append([]byte{}, key...))
			stale++
		}
		return true
	})
	if err != nil {
		return fmt.Errorf("could not scan cache generations: %w", err)
	}
	if err := batch.Write(); err != nil {
		return fmt.Errorf("could not delete stale generations: %w", err)
	}

	ac.active.Store(true)
	logx.Info("ASSETCACHE", "Activated generation ", ac.version, ", removed ", stale, " stale entries")
	return nil
}

// ServeHTTP routes one application resource request.
func (ac *AssetCache) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Sensitive data must never be cached: the API origin always goes
	// straight to the network, as do non-GET requests.
	if strings.HasPrefix(r.URL.Path, ac.apiPrefix) || r.Method != http.MethodGet {
		ac.proxy.ServeHTTP(w, r)
		return
	}

	resp, body, err := ac.fetchUpstream(r.Context(), r.URL.Path)
	if err == nil {
		ac.markOnline("assetcache")
		if resp.Status == http.StatusOK && ac.active.Load() {
			// opportunistic cache population on success
			if err := ac.store(r.URL.Path, resp); err != nil {
				logx.Warn("ASSETCACHE", "Could not cache ", r.URL.Path, ": ", err)
			}
		}
		monitoring.RecordCacheServed("network")
		writeCached(w, resp, body)
		return
	}

	ac.markOffline("assetcache")

	if cached, cerr := ac.lookup(r.URL.Path); cerr == nil && cached != nil {
		monitoring.RecordCacheServed("cache")
		writeCached(w, cached, cached.Body)
		return
	}

	// a disconnected reload of any route still renders the app shell
	if isNavigation(r) {
		if cached, cerr := ac.lookup(ac.shellEntry); cerr == nil && cached != nil {
			monitoring.RecordCacheServed("cache")
			writeCached(w, cached, cached.Body)
			return
		}
	}

	http.Error(w, "offline and not cached", http.StatusGatewayTimeout)
}

// Online reports the last observed connectivity state.
func (ac *AssetCache) Online() bool {
	return ac.online.Load()
}

func (ac *AssetCache) prefetch(ctx context.Context, path string) error {
	resp, _, err := ac.fetchUpstream(ctx, path)
	if err != nil {
		return err
	}
	if resp.Status != http.StatusOK {
		return fmt.Errorf("upstream returned status %d", resp.Status)
	}
	return ac.store(path, resp)
}

func (ac *AssetCache) fetchUpstream(ctx context.Context, path string) (*cachedResponse, []byte, error) {
	target := ac.upstream.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := ac.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, nil, err
	}

	cached := &cachedResponse{
		Status:      resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}
	return cached, body, nil
}

func (ac *AssetCache) store(path string, resp *cachedResponse) error {
	data, err := jsonx.Marshal(resp)
	if err != nil {
		return err
	}
	return ac.provider.Put(ac.entryKey(path), data)
}

func (ac *AssetCache) lookup(path string) (*cachedResponse, error) {
	data, err := ac.provider.Get(ac.entryKey(path))
	if err != nil || data == nil {
		return nil, err
	}
	var cached cachedResponse
	if err := jsonx.Unmarshal(data, &cached); err != nil {
		return nil, err
	}
	return &cached, nil
}

func (ac *AssetCache) entryKey(path string) []byte {
	return []byte(generationPrefix(ac.version) + path)
}

func generationPrefix(version string) string {
	return cachePrefix + version + ":"
}

// markOnline publishes the offline-to-online edge; the caching layer's
// responsibility ends at notifying, the engine decides to sync.
func (ac *AssetCache) markOnline(source string) {
	if ac.online.CompareAndSwap(false, true) {
		logx.Info("ASSETCACHE", "Connectivity regained (", source, ")")
		if ac.bus != nil {
			ac.bus.Publish(events.NewConnectivityChanged(true, source))
		}
	}
}

func (ac *AssetCache) markOffline(source string) {
	if ac.online.CompareAndSwap(true, false) {
		logx.Warn("ASSETCACHE", "Upstream unreachable, serving from cache (", source, ")")
		if ac.bus != nil {
			ac.bus.Publish(events.NewConnectivityChanged(false, source))
		}
	}
}

func isNavigation(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func writeCached(w http.ResponseWriter, resp *cachedResponse, body []byte) {
	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.Status)
	_, _ = w.Write(body)
}
