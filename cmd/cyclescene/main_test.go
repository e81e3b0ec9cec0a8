package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"os"
	"sort"
	"strings"
	"sync"
	"testing"
)

func TestSyncAndClearCommands(t *testing.T) {
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/v1/rides/upcoming":
			w.Write([]byte(`[{"id":"r1","title":"Ride","date":"2024-06-01","lat":"45.5","lng":"-122.6"}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	t.Setenv("API_BASE_URL", api.URL)
	t.Setenv("DB_PATH", filepath.Join(dir, "cyclescene.db"))
	t.Setenv("PREFS_PATH", filepath.Join(dir, "prefs.toml"))

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"sync", "--city", "slc"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}
	if !strings.Contains(out.String(), `"msg":"sync complete"`) || !strings.Contains(out.String(), `"rides":1`) {
		t.Errorf("sync output = %s", out.String())
	}

	out.Reset()
	root = newRootCmd(&out)
	root.SetArgs([]string{"clear", "--saved"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if !strings.Contains(out.String(), `"collections":["rides","saved"]`) {
		t.Errorf("clear output = %s", out.String())
	}
}

func TestSyncCityFlagOverridesPrefs(t *testing.T) {
	var mu sync.Mutex
	cities := map[string]bool{}
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		cities[r.URL.Query().Get("city")] = true
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[]`))
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	prefsPath := filepath.Join(dir, "prefs.toml")
	if err := os.WriteFile(prefsPath, []byte("city_code = \"pdx\"\n"), 0o644); err != nil {
		t.Fatalf("write prefs: %v", err)
	}
	t.Setenv("API_BASE_URL", api.URL)
	t.Setenv("DB_PATH", filepath.Join(dir, "cyclescene.db"))
	t.Setenv("PREFS_PATH", prefsPath)

	var out bytes.Buffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"sync", "--city", "slc"})
	if err := root.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	var seen []string
	for c := range cities {
		seen = append(seen, c)
	}
	sort.Strings(seen)
	if strings.Join(seen, ",") != "slc" {
		t.Errorf("requested cities = %v, want [slc]", seen)
	}
}

func TestUnknownCommand(t *testing.T) {
	root := newRootCmd(&bytes.Buffer{})
	root.SetArgs([]string{"launch"})
	if err := root.ExecuteContext(context.Background()); err == nil {
		t.Error("expected error for unknown command")
	}
}
