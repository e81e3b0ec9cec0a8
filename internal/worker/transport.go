package worker

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/cyclescene/cyclescene/internal/metrics"
)

type TransportConfig struct {
	// Base performs the real requests; nil means http.DefaultTransport.
	Base http.RoundTripper
	// TileHosts are served cache-first, including their subdomains.
	TileHosts []string
	// APIHost is always sent to the network.
	APIHost    string
	MaxEntries int
	MaxAge     time.Duration
	Logger     *slog.Logger
}

// Transport intercepts outgoing requests: map tiles are answered from cache
// when possible, API calls always go to the network, and everything else
// passes through untouched.
type Transport struct {
	base       http.RoundTripper
	tileHosts  []string
	apiHost    string
	maxEntries int
	logger     *slog.Logger

	// guards eviction so the entry bound holds under concurrent misses
	mu    sync.Mutex
	seq   uint64
	cache *gocache.Cache
}

type cachedResponse struct {
	seq    uint64
	status int
	header http.Header
	body   []byte
}

func NewTransport(cfg TransportConfig) *Transport {
	if cfg.Base == nil {
		cfg.Base = http.DefaultTransport
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 5000
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 365 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	// No janitor goroutine: expired entries are skipped on read and purged
	// before eviction.
	cache := gocache.New(cfg.MaxAge, 0)
	return &Transport{
		base:       cfg.Base,
		tileHosts:  cfg.TileHosts,
		apiHost:    strings.ToLower(cfg.APIHost),
		maxEntries: cfg.MaxEntries,
		logger:     cfg.Logger,
		cache:      cache,
	}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	host := strings.ToLower(req.URL.Hostname())
	switch {
	case t.apiHost != "" && host == t.apiHost:
		metrics.TileCacheRequests.WithLabelValues(metrics.ResultBypass).Inc()
		return t.base.RoundTrip(req)
	case req.Method == http.MethodGet && t.isTileHost(host):
		return t.cacheFirst(req)
	}
	return t.base.RoundTrip(req)
}

func (t *Transport) isTileHost(host string) bool {
	for _, h := range t.tileHosts {
		h = strings.ToLower(h)
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

func (t *Transport) cacheFirst(req *http.Request) (*http.Response, error) {
	key := req.URL.String()
	if v, ok := t.cache.Get(key); ok {
		metrics.TileCacheRequests.WithLabelValues(metrics.ResultHit).Inc()
		return v.(*cachedResponse).response(req), nil
	}
	metrics.TileCacheRequests.WithLabelValues(metrics.ResultMiss).Inc()

	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	entry := &cachedResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}
	t.store(key, entry)
	return entry.response(req), nil
}

func (t *Transport) store(key string, entry *cachedResponse) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cache.ItemCount() >= t.maxEntries {
		t.cache.DeleteExpired()
	}
	for t.cache.ItemCount() >= t.maxEntries {
		if !t.evictOldest() {
			t.cache.DeleteExpired()
		}
	}
	t.seq++
	entry.seq = t.seq
	t.cache.Set(key, entry, gocache.DefaultExpiration)
	metrics.TileCacheEntries.Set(float64(t.cache.ItemCount()))
}

// evictOldest drops the least recently stored live entry.
func (t *Transport) evictOldest() bool {
	var oldest string
	var seq uint64
	for k, it := range t.cache.Items() {
		if e := it.Object.(*cachedResponse); oldest == "" || e.seq < seq {
			oldest, seq = k, e.seq
		}
	}
	if oldest == "" {
		return false
	}
	t.cache.Delete(oldest)
	t.logger.Debug("evicted tile", "url", oldest)
	return true
}

// Len returns the number of cached responses.
func (t *Transport) Len() int { return t.cache.ItemCount() }

// Purge drops every cached response.
func (t *Transport) Purge() {
	t.cache.Flush()
	metrics.TileCacheEntries.Set(0)
}

func (c *cachedResponse) response(req *http.Request) *http.Response {
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", c.status, http.StatusText(c.status)),
		StatusCode:    c.status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        c.header.Clone(),
		Body:          io.NopCloser(bytes.NewReader(c.body)),
		ContentLength: int64(len(c.body)),
		Request:       req,
	}
}
