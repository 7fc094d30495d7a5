package services

import (
	"context"
	"path/filepath"
	"testing"

	"qatar-events-collector/internal/models"
)

// countingResolver records lookups and serves canned results.
type countingResolver struct {
	calls   int
	results map[string]models.GeoPoint
}

func (r *countingResolver) Resolve(ctx context.Context, locationName string) (models.GeoPoint, error) {
	r.calls++
	if point, ok := r.results[locationName]; ok {
		return point, nil
	}
	return models.UnresolvedGeoPoint(locationName), nil
}

func newTestGeocoder(t *testing.T, resolver CoordinateResolver) *Geocoder {
	t.Helper()
	cache := NewGeoCache(filepath.Join(t.TempDir(), "geolocation_cache.json"))
	return NewGeocoder(resolver, cache, 0)
}

func TestGeocoderPlaceholderShortCircuit(t *testing.T) {
	testCases := []string{"", "  ", "TBA", "tba", "N/A", "To be announced", "Venue TBA", "Location TBA"}

	resolver := &countingResolver{}
	geocoder := newTestGeocoder(t, resolver)

	for _, name := range testCases {
		point, err := geocoder.Resolve(context.Background(), name)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", name, err)
		}
		if point.HasCoordinates() {
			t.Errorf("Resolve(%q) returned coordinates, expected null", name)
		}
	}

	if resolver.calls != 0 {
		t.Errorf("placeholder lookups hit the resolver %d times, expected 0", resolver.calls)
	}
	if geocoder.cache.Len() != 0 {
		t.Errorf("placeholder lookups wrote %d cache entries, expected 0", geocoder.cache.Len())
	}
}

func TestGeocoderCachesInBoundsResults(t *testing.T) {
	resolver := &countingResolver{
		results: map[string]models.GeoPoint{
			"Katara Cultural Village": models.NewGeoPoint(25.3594, 51.5256, "Katara Cultural Village"),
		},
	}
	geocoder := newTestGeocoder(t, resolver)

	first, err := geocoder.Resolve(context.Background(), "Katara Cultural Village")
	if err != nil {
		t.Fatalf("first Resolve failed: %v", err)
	}
	if !first.HasCoordinates() {
		t.Fatal("expected coordinates on first lookup")
	}

	// Second lookup must come from the cache.
	second, err := geocoder.Resolve(context.Background(), "Katara Cultural Village")
	if err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if *second.Lat != *first.Lat || *second.Lng != *first.Lng {
		t.Error("cached result differs from resolved result")
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, expected 1", resolver.calls)
	}
}

func TestGeocoderRejectsOutOfBoundsResults(t *testing.T) {
	// A plausible match in the wrong country.
	resolver := &countingResolver{
		results: map[string]models.GeoPoint{
			"Corniche": models.NewGeoPoint(24.4539, 54.3773, "Corniche"),
		},
	}
	geocoder := newTestGeocoder(t, resolver)

	point, err := geocoder.Resolve(context.Background(), "Corniche")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if point.HasCoordinates() {
		t.Error("out-of-bounds result was not rejected")
	}
	if geocoder.cache.Len() != 0 {
		t.Error("out-of-bounds result was cached")
	}

	// Rejection is not cached, so the next lookup tries again.
	if _, err := geocoder.Resolve(context.Background(), "Corniche"); err != nil {
		t.Fatalf("second Resolve failed: %v", err)
	}
	if resolver.calls != 2 {
		t.Errorf("resolver called %d times, expected 2", resolver.calls)
	}
}

func TestAnnotateEvents(t *testing.T) {
	resolver := &countingResolver{
		results: map[string]models.GeoPoint{
			"Katara Cultural Village": models.NewGeoPoint(25.3594, 51.5256, "Katara Cultural Village"),
		},
	}
	geocoder := newTestGeocoder(t, resolver)

	lat, lng := 25.28, 51.53
	events := []models.Event{
		{Name: "Garangao Night", LocationName: "Katara Cultural Village"},
		{Name: "Food Festival", LocationName: "TBA"},
		{Name: "Already Located", LocationName: "Souq Waqif", LocationLat: &lat, LocationLng: &lng},
	}

	annotated, err := geocoder.AnnotateEvents(context.Background(), events)
	if err != nil {
		t.Fatalf("AnnotateEvents failed: %v", err)
	}
	if len(annotated) != 3 {
		t.Fatalf("got %d events, expected 3", len(annotated))
	}

	if !annotated[0].HasCoordinates() {
		t.Error("resolvable event missing coordinates")
	}
	if annotated[1].HasCoordinates() {
		t.Error("placeholder event gained coordinates")
	}
	if !annotated[2].HasCoordinates() || *annotated[2].LocationLat != lat {
		t.Error("pre-annotated event lost its coordinates")
	}
	if resolver.calls != 1 {
		t.Errorf("resolver called %d times, expected 1", resolver.calls)
	}
}

func TestAnnotateEventsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	geocoder := newTestGeocoder(t, &countingResolver{})
	events := []models.Event{{Name: "One", LocationName: "Somewhere"}}

	annotated, err := geocoder.AnnotateEvents(ctx, events)
	if err == nil {
		t.Fatal("expected cancellation error")
	}
	if len(annotated) != 0 {
		t.Errorf("got %d annotated events after immediate cancel, expected 0", len(annotated))
	}
}
