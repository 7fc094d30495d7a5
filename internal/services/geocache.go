package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"qatar-events-collector/internal/models"
)

// GeoCache is a write-through, file-backed cache of geocoding results keyed
// by the verbatim location name. The backing file is plain indented JSON so
// bad entries can be fixed by hand between runs.
//
// The file is loaded lazily on first access and every successful Put is
// flushed immediately, so a run interrupted mid-way loses at most the
// lookup in flight.
type GeoCache struct {
	path string

	mu      sync.Mutex
	entries map[string]models.GeoPoint
	loaded  bool
}

// NewGeoCache creates a cache backed by the JSON file at path. The file
// does not need to exist yet.
func NewGeoCache(path string) *GeoCache {
	return &GeoCache{path: path}
}

// Get returns the cached point for a location name. Cached entries are
// returned verbatim, including null-coordinate entries recorded by hand.
func (c *GeoCache) Get(name string) (models.GeoPoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return models.GeoPoint{}, false
	}
	point, ok := c.entries[name]
	return point, ok
}

// Put stores a point under a location name and writes the cache file.
func (c *GeoCache) Put(name string, point models.GeoPoint) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return err
	}
	c.entries[name] = point
	return c.flushLocked()
}

// Flush writes the cache file even without a preceding Put. Puts already
// persist; this exists for callers that want a durable file at a known
// point, such as the end of a geocoding batch.
func (c *GeoCache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return err
	}
	return c.flushLocked()
}

// Len returns the number of cached entries.
func (c *GeoCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loadLocked(); err != nil {
		return 0
	}
	return len(c.entries)
}

// loadLocked reads the cache file once. An unreadable or malformed file
// starts an empty cache rather than failing the run; individual malformed
// entries are skipped. Callers must hold mu.
func (c *GeoCache) loadLocked() error {
	if c.loaded {
		return nil
	}

	c.entries = make(map[string]models.GeoPoint)
	c.loaded = true

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read geolocation cache: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil
	}

	for name, value := range raw {
		if point, ok := decodeCacheEntry(value, name); ok {
			c.entries[name] = point
		}
	}
	return nil
}

// decodeCacheEntry accepts both the current object form and the legacy
// "lat|lng|name" flat string form, so caches written by earlier versions
// migrate in place on the next flush.
func decodeCacheEntry(value json.RawMessage, name string) (models.GeoPoint, bool) {
	var point models.GeoPoint
	if err := json.Unmarshal(value, &point); err == nil {
		if point.Name == "" {
			point.Name = name
		}
		return point, true
	}

	var legacy string
	if err := json.Unmarshal(value, &legacy); err != nil {
		return models.GeoPoint{}, false
	}
	parts := strings.SplitN(legacy, "|", 3)
	if len(parts) < 2 {
		return models.GeoPoint{}, false
	}
	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, errLng := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLng != nil {
		return models.GeoPoint{}, false
	}
	return models.NewGeoPoint(lat, lng, name), true
}

// flushLocked writes the full cache to disk, creating the parent directory
// as needed. Callers must hold mu.
func (c *GeoCache) flushLocked() error {
	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create cache directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode geolocation cache: %w", err)
	}
	if err := os.WriteFile(c.path, data, 0644); err != nil {
		return fmt.Errorf("write geolocation cache: %w", err)
	}
	return nil
}
