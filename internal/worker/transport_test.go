package worker

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const tileURL = "https://a.basemaps.cartocdn.com/light_all/12/654/1462.png"

func newTransport(mock *httpmock.MockTransport, maxEntries int, maxAge time.Duration) *http.Client {
	return &http.Client{Transport: NewTransport(TransportConfig{
		Base:       mock,
		TileHosts:  []string{"basemaps.cartocdn.com"},
		APIHost:    "api.cyclescene.cc",
		MaxEntries: maxEntries,
		MaxAge:     maxAge,
	})}
}

func get(t *testing.T, c *http.Client, url string) (int, string) {
	t.Helper()
	resp, err := c.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body)
}

func TestTransportCachesTiles(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, tileURL, httpmock.NewStringResponder(200, "png-bytes"))
	c := newTransport(mock, 10, time.Hour)

	for i := 0; i < 3; i++ {
		status, body := get(t, c, tileURL)
		if status != 200 || body != "png-bytes" {
			t.Fatalf("request %d = %d %q", i, status, body)
		}
	}
	if n := mock.GetTotalCallCount(); n != 1 {
		t.Errorf("network calls = %d, want 1", n)
	}
}

func TestTransportDoesNotCacheErrors(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, tileURL, httpmock.NewStringResponder(404, "missing"))
	c := newTransport(mock, 10, time.Hour)

	get(t, c, tileURL)
	status, _ := get(t, c, tileURL)

	if status != 404 {
		t.Errorf("status = %d", status)
	}
	if n := mock.GetTotalCallCount(); n != 2 {
		t.Errorf("network calls = %d, want 2", n)
	}
}

func TestTransportAPIIsNetworkOnly(t *testing.T) {
	const api = "https://api.cyclescene.cc/v1/rides/upcoming"
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, api, httpmock.NewStringResponder(200, `[]`))
	c := newTransport(mock, 10, time.Hour)

	get(t, c, api)
	get(t, c, api)

	if n := mock.GetTotalCallCount(); n != 2 {
		t.Errorf("network calls = %d, want 2", n)
	}
}

func TestTransportPassesThroughOtherRequests(t *testing.T) {
	const other = "https://example.org/style.json"
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, other, httpmock.NewStringResponder(200, `{}`))
	mock.RegisterResponder(http.MethodPost, tileURL, httpmock.NewStringResponder(200, "posted"))
	c := newTransport(mock, 10, time.Hour)

	get(t, c, other)
	get(t, c, other)
	for i := 0; i < 2; i++ {
		resp, err := c.Post(tileURL, "text/plain", strings.NewReader("x"))
		if err != nil {
			t.Fatalf("POST: %v", err)
		}
		resp.Body.Close()
	}

	if n := mock.GetTotalCallCount(); n != 4 {
		t.Errorf("network calls = %d, want 4", n)
	}
}

func TestTransportEvictsOldest(t *testing.T) {
	urls := []string{
		"https://basemaps.cartocdn.com/light_all/1/0/0.png",
		"https://b.basemaps.cartocdn.com/light_all/1/0/1.png",
		"https://c.basemaps.cartocdn.com/light_all/1/1/0.png",
	}
	mock := httpmock.NewMockTransport()
	for _, u := range urls {
		mock.RegisterResponder(http.MethodGet, u, httpmock.NewStringResponder(200, u))
	}
	rt := NewTransport(TransportConfig{Base: mock, TileHosts: []string{"basemaps.cartocdn.com"}, MaxEntries: 2})
	c := &http.Client{Transport: rt}

	for _, u := range urls {
		get(t, c, u)
	}
	if rt.Len() != 2 {
		t.Errorf("entries = %d, want 2", rt.Len())
	}

	// The first tile was evicted; the last two are still cached.
	get(t, c, urls[0])
	get(t, c, urls[2])
	calls := mock.GetCallCountInfo()
	if n := calls["GET "+urls[0]]; n != 2 {
		t.Errorf("first tile fetched %d times, want 2", n)
	}
	if n := calls["GET "+urls[2]]; n != 1 {
		t.Errorf("last tile fetched %d times, want 1", n)
	}
}

func TestTransportExpiresEntries(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, tileURL, httpmock.NewStringResponder(200, "png"))
	c := newTransport(mock, 10, 20*time.Millisecond)

	get(t, c, tileURL)
	time.Sleep(40 * time.Millisecond)
	get(t, c, tileURL)

	if n := mock.GetTotalCallCount(); n != 2 {
		t.Errorf("network calls = %d, want 2", n)
	}
}

func TestTransportPurge(t *testing.T) {
	mock := httpmock.NewMockTransport()
	mock.RegisterResponder(http.MethodGet, tileURL, httpmock.NewStringResponder(200, "png"))
	rt := NewTransport(TransportConfig{Base: mock, TileHosts: []string{"basemaps.cartocdn.com"}})
	c := &http.Client{Transport: rt}

	get(t, c, tileURL)
	rt.Purge()
	if rt.Len() != 0 {
		t.Errorf("entries after purge = %d", rt.Len())
	}
	get(t, c, tileURL)
	if n := mock.GetTotalCallCount(); n != 2 {
		t.Errorf("network calls = %d, want 2", n)
	}
}
