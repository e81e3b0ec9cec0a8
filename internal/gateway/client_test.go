package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestParseBaseURL(t *testing.T) {
	u, err := parseBaseURL("api.example.com/ignored?x=1")
	if err != nil {
		t.Fatalf("parseBaseURL: %v", err)
	}
	if u.String() != "https://api.example.com" {
		t.Errorf("url = %q", u.String())
	}
	if _, err := parseBaseURL("  "); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestClientFetchesEndpoints(t *testing.T) {
	t.Parallel()

	var gotCity, gotUserAgent, gotAccept string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCity = r.URL.Query().Get("city")
		gotUserAgent = r.Header.Get("User-Agent")
		gotAccept = r.Header.Get("Accept")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v1/rides/upcoming":
			_, _ = w.Write([]byte(`[{"id":"r1","title":"One","date":"2024-06-01","lat":45.5,"lng":-122.6,"safetyplan":1}]`))
		case "/v1/rides/past":
			_, _ = w.Write([]byte(`[]`))
		case "/v1/routes":
			_, _ = w.Write([]byte(`[{"id":"loop","type":"Feature","geometry":{"type":"LineString","coordinates":[[-122.6,45.5,10]]},"properties":{"name":"Loop","distance_km":1,"distance_mi":0.62}}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	c, err := NewClient(server.URL, nil)
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	ctx := context.Background()

	up, err := c.FetchUpcoming(ctx, "slc")
	if err != nil {
		t.Fatalf("FetchUpcoming: %v", err)
	}
	if len(up) != 1 || up[0].ID != "r1" || !up[0].HasSafetyPlan() {
		t.Errorf("upcoming = %+v", up)
	}
	if gotCity != "slc" {
		t.Errorf("city = %q, want slc", gotCity)
	}
	if gotUserAgent != defaultUserAgent || gotAccept != "application/json" {
		t.Errorf("headers = %q, %q", gotUserAgent, gotAccept)
	}

	past, err := c.FetchPast(ctx, "slc")
	if err != nil {
		t.Fatalf("FetchPast: %v", err)
	}
	if len(past) != 0 {
		t.Errorf("past = %+v", past)
	}

	routes, err := c.FetchRoutes(ctx, "slc")
	if err != nil {
		t.Fatalf("FetchRoutes: %v", err)
	}
	if len(routes) != 1 || routes[0].Properties.Name != "Loop" {
		t.Errorf("routes = %+v", routes)
	}
}

func TestClientNetworkErrorKeepsStatusAndBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database offline", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, nil)
	_, err := c.FetchUpcoming(context.Background(), "pdx")

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %T %v, want *NetworkError", err, err)
	}
	if ne.Status != http.StatusServiceUnavailable || ne.Body != "database offline" {
		t.Errorf("status = %d, body = %q", ne.Status, ne.Body)
	}
	if !ne.Temporary() || !IsTemporary(err) {
		t.Error("503 should be temporary")
	}
}

func TestClientNotFoundIsPermanent(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c, _ := NewClient(server.URL, nil)
	_, err := c.FetchPast(context.Background(), "pdx")
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTemporary(err) {
		t.Error("404 should not be temporary")
	}
}

func TestClientMalformedBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"rides": "not an array"}`))
	}))
	defer server.Close()

	c, _ := NewClient(server.URL, nil)
	_, err := c.FetchUpcoming(context.Background(), "pdx")

	var ce *ClientError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %T %v, want *ClientError", err, err)
	}
	if IsTemporary(err) {
		t.Error("client errors are not temporary")
	}
}

func TestClientTransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c, _ := NewClient(url, nil)
	_, err := c.FetchRoutes(context.Background(), "pdx")

	var ne *NetworkError
	if !errors.As(err, &ne) {
		t.Fatalf("err = %T %v, want *NetworkError", err, err)
	}
	if ne.Status != 0 || ne.Err == nil {
		t.Errorf("status = %d, err = %v", ne.Status, ne.Err)
	}
}
