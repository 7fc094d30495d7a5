package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"qatar-events-collector/internal/config"
	"qatar-events-collector/internal/models"
)

// ContentFetcher retrieves a page's markdown rendering.
type ContentFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// EventExtractor extracts and filters event records with an LLM.
type EventExtractor interface {
	ExtractEvents(ctx context.Context, content, sourceName string) ([]map[string]interface{}, error)
	FilterEvents(ctx context.Context, events []models.Event, batchSize int) ([]models.Event, error)
}

// Pipeline runs the full collection flow: listing pages to detail URLs,
// detail pages to extracted records, then canonicalization, geocoding,
// timestamp resolution, cultural filtering and deduplication, with the
// three output tiers written along the way.
type Pipeline struct {
	cfg       config.Config
	fetcher   ContentFetcher
	extractor EventExtractor
	geocoder  *Geocoder
	store     *TierStore
	publisher *S3Publisher // nil disables publication
}

// RunSummary reports what a collection run produced.
type RunSummary struct {
	RunID           string        `json:"run_id"`
	StartedAt       time.Time     `json:"started_at"`
	Duration        time.Duration `json:"duration"`
	PagesFetched    int           `json:"pages_fetched"`
	DetailURLsFound int           `json:"detail_urls_found"`
	RawEvents       int           `json:"raw_events"`
	ProcessedEvents int           `json:"processed_events"`
	FinalEvents     int           `json:"final_events"`
	Interrupted     bool          `json:"interrupted"`
}

// NewPipeline wires a pipeline from its stages. publisher may be nil when
// S3 publication is disabled.
func NewPipeline(cfg config.Config, fetcher ContentFetcher, extractor EventExtractor, geocoder *Geocoder, store *TierStore, publisher *S3Publisher) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		geocoder:  geocoder,
		store:     store,
		publisher: publisher,
	}
}

// Run executes a full collection run. Cancelling ctx stops the run at the
// next stage boundary; everything collected so far is still written out, so
// an interrupted run leaves usable partial tiers behind.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	started := time.Now()
	summary := &RunSummary{
		RunID:     models.GenerateRunID(started),
		StartedAt: started,
	}
	log.Printf("Starting collection run %s", summary.RunID)

	var events []models.Event
	for _, source := range p.cfg.Sources {
		if !source.Enabled {
			continue
		}
		if ctx.Err() != nil {
			summary.Interrupted = true
			break
		}

		collected, err := p.collectSource(ctx, source, summary)
		if err != nil {
			if ctx.Err() != nil {
				summary.Interrupted = true
			} else {
				log.Printf("Source %s failed: %v", source.Name, err)
			}
		}
		events = append(events, collected...)
	}

	events = consolidateEvents(events)
	summary.RawEvents = len(events)

	annotated, err := p.geocoder.AnnotateEvents(ctx, events)
	if err != nil {
		summary.Interrupted = true
		log.Printf("Geocoding interrupted, continuing with %d annotated events", len(annotated))
		// Events past the interruption point keep null coordinates.
		annotated = append(annotated, events[len(annotated):]...)
	}
	events = annotated

	if err := p.writeTiers(ctx, events, summary); err != nil {
		return summary, err
	}

	summary.Duration = time.Since(started)
	log.Printf("Run %s finished in %s: %d raw, %d processed, %d final events",
		summary.RunID, summary.Duration.Round(time.Second), summary.RawEvents, summary.ProcessedEvents, summary.FinalEvents)
	return summary, nil
}

// collectSource walks a source's listing pages and extracts events from
// every detail page found. Pagination stops early when a listing page
// yields no new detail URLs.
func (p *Pipeline) collectSource(ctx context.Context, source config.Source, summary *RunSummary) ([]models.Event, error) {
	classifier := NewURLClassifier(source.Classifier)
	if classifier == nil {
		return nil, fmt.Errorf("unknown classifier %q for source %s", source.Classifier, source.Name)
	}
	if !classifier.Matches(source.URL) {
		return nil, fmt.Errorf("source URL %s does not belong to the %s classifier", source.URL, source.Classifier)
	}

	log.Printf("Collecting from %s (%s)", source.Name, source.URL)

	detailURLs, err := p.collectDetailURLs(ctx, source, classifier, summary)
	if err != nil {
		return nil, err
	}
	summary.DetailURLsFound += len(detailURLs)
	log.Printf("Found %d event detail pages on %s", len(detailURLs), source.Name)

	var events []models.Event
	for _, detailURL := range detailURLs {
		if err := ctx.Err(); err != nil {
			return events, err
		}

		event, err := p.extractDetailPage(ctx, detailURL, classifier)
		if err != nil {
			log.Printf("Skipping %s: %v", detailURL, err)
			continue
		}
		if event != nil {
			events = append(events, *event)
		}

		if p.cfg.PageDelay > 0 {
			select {
			case <-ctx.Done():
				return events, ctx.Err()
			case <-time.After(p.cfg.PageDelay):
			}
		}
	}

	log.Printf("Extracted %d events from %s", len(events), source.Name)
	return events, nil
}

// collectDetailURLs paginates through a source's listing pages.
func (p *Pipeline) collectDetailURLs(ctx context.Context, source config.Source, classifier URLClassifier, summary *RunSummary) ([]string, error) {
	seen := make(map[string]bool)
	var detailURLs []string

	for page := 1; page <= source.MaxPages; page++ {
		if err := ctx.Err(); err != nil {
			return detailURLs, err
		}

		pageURL := classifier.PageURL(source.URL, page)
		markdown, err := p.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			log.Printf("Listing page %s failed: %v", pageURL, err)
			break
		}
		summary.PagesFetched++

		newURLs := 0
		for _, u := range classifier.ExtractDetailURLs(markdown) {
			if !seen[u] {
				seen[u] = true
				detailURLs = append(detailURLs, u)
				newURLs++
			}
		}

		// A page with nothing new means pagination ran past the end.
		if newURLs == 0 {
			break
		}

		if p.cfg.PageDelay > 0 && page < source.MaxPages {
			select {
			case <-ctx.Done():
				return detailURLs, ctx.Err()
			case <-time.After(p.cfg.PageDelay):
			}
		}
	}

	return detailURLs, nil
}

// extractDetailPage fetches one detail page and extracts its primary event.
// Returns nil without error when the page yields no records.
func (p *Pipeline) extractDetailPage(ctx context.Context, detailURL string, classifier URLClassifier) (*models.Event, error) {
	markdown, err := p.fetcher.Fetch(ctx, detailURL)
	if err != nil {
		return nil, err
	}

	records, err := p.extractor.ExtractEvents(ctx, markdown, classifier.Source())
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	record := SelectPrimaryEvent(records, detailURL)
	event := CanonicalizeEvent(record, classifier.Source())

	// Prefer the organizer's own site over what the model guessed; the
	// detail-page URL is the fallback so website is never empty.
	if website := ExtractWebsiteURL(markdown); website != "" {
		event.Website = website
	} else if website := ExtractVisitWebsiteURL(markdown); website != "" {
		event.Website = website
	}
	if event.Website == "" {
		event.Website = detailURL
	}

	return &event, nil
}

// consolidateEvents drops exact re-collections of the same event, keyed by
// normalized name plus raw date. Listing pages overlap across pagination
// and sources republish each other's events; first appearance wins.
func consolidateEvents(events []models.Event) []models.Event {
	seen := make(map[string]bool, len(events))
	unique := make([]models.Event, 0, len(events))

	for _, event := range events {
		key := models.NormalizeName(event.Name) + "_" + event.Date
		if seen[key] {
			continue
		}
		seen[key] = true
		unique = append(unique, event)
	}

	if dropped := len(events) - len(unique); dropped > 0 {
		log.Printf("Consolidated %d re-collected events", dropped)
	}
	return unique
}

// writeTiers produces the three output tiers from collected events.
func (p *Pipeline) writeTiers(ctx context.Context, events []models.Event, summary *RunSummary) error {
	// Raw tier: original schedule text intact, plus a schedule note in
	// the description so the raw file reads standalone.
	rawEvents := make([]models.Event, len(events))
	for i, event := range events {
		event.Description = AppendScheduleNote(event.Description, event.Date, event.Time)
		rawEvents[i] = event
	}
	if err := p.store.WriteTier(RawTierFile, rawEvents); err != nil {
		return err
	}

	// Processed tier: timestamps resolved, schedule text dropped, events
	// without a resolvable start excluded.
	var processed []models.Event
	excluded := 0
	for _, event := range events {
		event.StartTimestamp, event.EndTimestamp = ResolveTimestamps(event.Date, event.Time)
		if !event.HasStartTimestamp() {
			excluded++
			continue
		}
		event.Description = StripScheduleNote(event.Description)
		event.Date = ""
		event.Time = ""
		processed = append(processed, event)
	}
	if excluded > 0 {
		log.Printf("%d events could not be converted to timestamps and were excluded from the processed tier", excluded)
	}
	summary.ProcessedEvents = len(processed)
	if err := p.store.WriteTier(ProcessedTierFile, processed); err != nil {
		return err
	}

	// Final tier: culturally filtered, then deduplicated.
	final, err := p.finalizeEvents(ctx, processed)
	if err != nil {
		summary.Interrupted = true
		log.Printf("Filtering interrupted, final tier reflects %d events", len(final))
	}
	summary.FinalEvents = len(final)
	if err := p.store.WriteTier(FinalTierFile, final); err != nil {
		return err
	}

	return p.publishTiers(ctx, rawEvents, processed, final, summary)
}

// finalizeEvents applies the cultural filter and deduplication.
func (p *Pipeline) finalizeEvents(ctx context.Context, processed []models.Event) ([]models.Event, error) {
	filtered, err := p.extractor.FilterEvents(ctx, processed, p.cfg.FilterBatchSize)
	final := Deduplicate(filtered)
	return final, err
}

// publishTiers uploads the tiers to S3 when a publisher is configured.
func (p *Pipeline) publishTiers(ctx context.Context, raw, processed, final []models.Event, summary *RunSummary) error {
	if p.publisher == nil {
		return nil
	}

	tiers := []struct {
		filename string
		events   []models.Event
	}{
		{RawTierFile, raw},
		{ProcessedTierFile, processed},
		{FinalTierFile, final},
	}
	for _, tier := range tiers {
		result, err := p.publisher.PublishTier(ctx, tier.filename, tier.events)
		if err != nil {
			return fmt.Errorf("publish %s: %w", tier.filename, err)
		}
		log.Printf("Published %s (%d bytes)", result.PublicURL, result.Size)
	}

	if _, err := p.publisher.BackupFinal(ctx, final, summary.StartedAt); err != nil {
		return fmt.Errorf("backup final tier: %w", err)
	}
	return nil
}

// FilterAndDeduplicate reruns the cultural filter and deduplication over an
// existing processed tier, without collecting anything. Used to refresh the
// final tier after hand-edits or a filter-stage failure.
func (p *Pipeline) FilterAndDeduplicate(ctx context.Context) (int, error) {
	processed, err := p.store.ReadTier(ProcessedTierFile)
	if err != nil {
		return 0, err
	}
	log.Printf("Loaded %d processed events for filtering", len(processed))

	final, filterErr := p.finalizeEvents(ctx, processed)
	if err := p.store.WriteTier(FinalTierFile, final); err != nil {
		return 0, err
	}
	if filterErr != nil {
		return len(final), filterErr
	}

	if p.publisher != nil {
		if _, err := p.publisher.PublishTier(ctx, FinalTierFile, final); err != nil {
			return len(final), fmt.Errorf("publish %s: %w", FinalTierFile, err)
		}
	}
	return len(final), nil
}
