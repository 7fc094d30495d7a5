package services

import (
	"context"
	"path/filepath"
	"testing"

	"qatar-events-collector/internal/config"
	"qatar-events-collector/internal/models"
)

// fakeFetcher serves canned markdown keyed by URL.
type fakeFetcher struct {
	pages map[string]string
}

func (f *fakeFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	return f.pages[pageURL], nil
}

// fakeExtractor returns canned records per source and passes filtering
// through unchanged.
type fakeExtractor struct {
	records map[string][]map[string]interface{} // keyed by content
}

func (f *fakeExtractor) ExtractEvents(ctx context.Context, content, sourceName string) ([]map[string]interface{}, error) {
	return f.records[content], nil
}

func (f *fakeExtractor) FilterEvents(ctx context.Context, events []models.Event, batchSize int) ([]models.Event, error) {
	return events, nil
}

func newTestPipeline(t *testing.T, fetcher ContentFetcher, extractor EventExtractor) (*Pipeline, *TierStore) {
	t.Helper()

	dir := t.TempDir()
	cfg := config.Config{
		OutputDir:       filepath.Join(dir, "out"),
		GeoCachePath:    filepath.Join(dir, "cache.json"),
		FilterBatchSize: 20,
		Sources: []config.Source{
			{
				Name:       "Marhaba Qatar Events",
				URL:        "https://marhaba.qa/events/photo/",
				Classifier: "marhaba",
				MaxPages:   3,
				Enabled:    true,
			},
		},
	}

	cache := NewGeoCache(cfg.GeoCachePath)
	geocoder := NewGeocoder(&countingResolver{
		results: map[string]models.GeoPoint{
			"Katara Cultural Village": models.NewGeoPoint(25.3594, 51.5256, "Katara Cultural Village"),
		},
	}, cache, 0)

	store := NewTierStore(cfg.OutputDir)
	return NewPipeline(cfg, fetcher, extractor, geocoder, store, nil), store
}

func TestPipelineRun(t *testing.T) {
	listing := `[One](https://marhaba.qa/event/garangao-night/) [Two](https://marhaba.qa/event/jewellery-show/)`

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://marhaba.qa/events/photo/":         listing,
		"https://marhaba.qa/events/photo/page/2/":  listing, // same URLs, pagination must stop
		"https://marhaba.qa/event/garangao-night/": "garangao page",
		"https://marhaba.qa/event/jewellery-show/": "jewellery page",
	}}

	extractor := &fakeExtractor{records: map[string][]map[string]interface{}{
		"garangao page": {{
			"name":        "Garangao Night",
			"date":        "2025-03-10",
			"time":        "6:00 PM",
			"location":    "Katara Cultural Village",
			"description": "Family celebration.",
			"category":    "entertainment",
		}},
		"jewellery page": {{
			"name":        "Jewellery Show",
			"date":        "TBA",
			"time":        "TBA",
			"location":    "DECC",
			"description": "Annual exhibition.",
		}},
	}}

	pipeline, store := newTestPipeline(t, fetcher, extractor)

	summary, err := pipeline.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.RawEvents != 2 {
		t.Errorf("raw events = %d, expected 2", summary.RawEvents)
	}
	if summary.ProcessedEvents != 1 {
		t.Errorf("processed events = %d, expected 1 (TBA event excluded)", summary.ProcessedEvents)
	}
	if summary.FinalEvents != 1 {
		t.Errorf("final events = %d, expected 1", summary.FinalEvents)
	}
	if summary.Interrupted {
		t.Error("run reported interrupted")
	}

	raw, err := store.ReadTier(RawTierFile)
	if err != nil {
		t.Fatalf("reading raw tier: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("raw tier holds %d events, expected 2", len(raw))
	}
	if raw[0].Date == "" || raw[0].Time == "" {
		t.Error("raw tier lost original schedule text")
	}

	processed, err := store.ReadTier(ProcessedTierFile)
	if err != nil {
		t.Fatalf("reading processed tier: %v", err)
	}
	if len(processed) != 1 {
		t.Fatalf("processed tier holds %d events, expected 1", len(processed))
	}
	event := processed[0]
	if !event.HasStartTimestamp() || *event.StartTimestamp != 1741618800 {
		t.Errorf("startTimestamp = %v", event.StartTimestamp)
	}
	if event.Date != "" || event.Time != "" {
		t.Error("processed tier kept raw schedule fields")
	}
	if !event.HasCoordinates() {
		t.Error("processed event missing geocoded coordinates")
	}
	if event.CategoryID != "entertainment" {
		t.Errorf("categoryId = %q, legacy category field not folded", event.CategoryID)
	}
	if event.Website != "https://marhaba.qa/event/garangao-night/" {
		t.Errorf("website = %q, expected detail URL fallback", event.Website)
	}
}

func TestPipelineConsolidatesRecollectedEvents(t *testing.T) {
	events := []models.Event{
		{Name: "Garangao Night", Date: "2025-03-10", Description: "first"},
		{Name: "GARANGAO night!", Date: "2025-03-10", Description: "recollected"},
		{Name: "Garangao Night", Date: "2025-03-11", Description: "different day"},
	}

	got := consolidateEvents(events)
	if len(got) != 2 {
		t.Fatalf("got %d events, expected 2", len(got))
	}
	if got[0].Description != "first" {
		t.Error("consolidation did not keep the first appearance")
	}
}

func TestPipelineFilterAndDeduplicate(t *testing.T) {
	pipeline, store := newTestPipeline(t, &fakeFetcher{}, &fakeExtractor{})

	ts := int64(1741618800)
	lat, lng := 25.3594, 51.5256
	processed := []models.Event{
		{Name: "A", Description: "short", LocationLat: &lat, LocationLng: &lng, StartTimestamp: &ts},
		{Name: "B", Description: "much longer description", LocationLat: &lat, LocationLng: &lng, StartTimestamp: &ts},
	}
	if err := store.WriteTier(ProcessedTierFile, processed); err != nil {
		t.Fatal(err)
	}

	count, err := pipeline.FilterAndDeduplicate(context.Background())
	if err != nil {
		t.Fatalf("FilterAndDeduplicate failed: %v", err)
	}
	if count != 1 {
		t.Errorf("final count = %d, expected 1 after dedup", count)
	}

	final, err := store.ReadTier(FinalTierFile)
	if err != nil {
		t.Fatal(err)
	}
	if len(final) != 1 || final[0].Name != "B" {
		t.Errorf("final tier = %v, expected the longer description to survive", final)
	}
}

func TestPipelineRunCancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipeline, store := newTestPipeline(t, &fakeFetcher{}, &fakeExtractor{})
	summary, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if !summary.Interrupted {
		t.Error("expected interrupted summary")
	}

	// Tiers are still written, just empty.
	raw, err := store.ReadTier(RawTierFile)
	if err != nil {
		t.Fatalf("raw tier missing after cancelled run: %v", err)
	}
	if len(raw) != 0 {
		t.Errorf("raw tier holds %d events, expected 0", len(raw))
	}
}
