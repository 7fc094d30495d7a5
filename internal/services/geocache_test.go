package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"qatar-events-collector/internal/models"
)

func TestGeoCacheWriteThrough(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "geolocation_cache.json")
	cache := NewGeoCache(path)

	point := models.NewGeoPoint(25.3594, 51.5256, "Katara Cultural Village")
	if err := cache.Put("Katara Cultural Village", point); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// A fresh cache instance must see the entry from disk.
	reopened := NewGeoCache(path)
	got, ok := reopened.Get("Katara Cultural Village")
	if !ok {
		t.Fatal("entry missing after reopen")
	}
	if !got.HasCoordinates() || *got.Lat != 25.3594 || *got.Lng != 51.5256 {
		t.Errorf("reopened entry = %+v", got)
	}
}

func TestGeoCacheMissingFile(t *testing.T) {
	cache := NewGeoCache(filepath.Join(t.TempDir(), "nonexistent.json"))
	if _, ok := cache.Get("anything"); ok {
		t.Error("expected miss on missing file")
	}
	if cache.Len() != 0 {
		t.Errorf("Len = %d, expected 0", cache.Len())
	}
}

func TestGeoCacheLegacyMigration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geolocation_cache.json")

	legacy := map[string]interface{}{
		"Souq Waqif":   "25.288400|51.532700|Souq Waqif",
		"Katara":       map[string]interface{}{"lat": 25.3594, "lng": 51.5256, "name": "Katara"},
		"Broken entry": "not-a-coordinate",
	}
	data, err := json.MarshalIndent(legacy, "", "  ")
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cache := NewGeoCache(path)

	got, ok := cache.Get("Souq Waqif")
	if !ok {
		t.Fatal("legacy flat entry not migrated")
	}
	if !got.HasCoordinates() || *got.Lat != 25.2884 || *got.Lng != 51.5327 {
		t.Errorf("migrated entry = %+v", got)
	}
	if got.Name != "Souq Waqif" {
		t.Errorf("migrated name = %q", got.Name)
	}

	if _, ok := cache.Get("Katara"); !ok {
		t.Error("object entry lost during migration")
	}
	if _, ok := cache.Get("Broken entry"); ok {
		t.Error("malformed entry survived migration")
	}
}

func TestGeoCacheCorruptFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geolocation_cache.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	cache := NewGeoCache(path)
	if cache.Len() != 0 {
		t.Errorf("Len = %d, expected 0 for corrupt file", cache.Len())
	}

	// Writing afterwards must still work.
	if err := cache.Put("Katara", models.NewGeoPoint(25.3594, 51.5256, "Katara")); err != nil {
		t.Fatalf("Put after corrupt load failed: %v", err)
	}
}

func TestGeoCachePreservesNullCoordinateEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "geolocation_cache.json")
	cache := NewGeoCache(path)

	// A hand-recorded "known unresolvable" entry must be honored verbatim.
	if err := cache.Put("Mystery Venue", models.UnresolvedGeoPoint("Mystery Venue")); err != nil {
		t.Fatal(err)
	}

	got, ok := NewGeoCache(path).Get("Mystery Venue")
	if !ok {
		t.Fatal("null-coordinate entry missing after reopen")
	}
	if got.HasCoordinates() {
		t.Error("null-coordinate entry gained coordinates")
	}
}
