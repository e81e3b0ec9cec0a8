package prefs

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFile(t *testing.T) {
	p, err := Load(filepath.Join(t.TempDir(), "prefs.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.CityCode != "" {
		t.Fatalf("CityCode = %q, want empty", p.CityCode)
	}
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("city_code = \" slc \"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p.CityCode != "slc" {
		t.Fatalf("CityCode = %q, want %q", p.CityCode, "slc")
	}
}

func TestLoad_CorruptFileDegrades(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	if err := os.WriteFile(path, []byte("city_code = [unterminated"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if p != (Prefs{}) {
		t.Fatalf("prefs = %+v, want zero", p)
	}
}

func TestLoad_TildePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	if err := Save("~/.config/cyclescene/prefs.toml", Prefs{CityCode: "pdx"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".config", "cyclescene", "prefs.toml")); err != nil {
		t.Fatalf("prefs not written under home: %v", err)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "prefs.toml")
	want := Prefs{CityCode: "slc", LastSync: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	if err := Save(path, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.CityCode != want.CityCode || !got.LastSync.Equal(want.LastSync) {
		t.Fatalf("got %+v, want %+v", got, want)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("leftover temp files: %d entries", len(entries))
	}
}

func TestSave_EmptyPath(t *testing.T) {
	if err := Save("  ", Prefs{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
