package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"qatar-events-collector/internal/config"
	"qatar-events-collector/internal/services"
)

// CollectorEvent represents the EventBridge trigger event.
type CollectorEvent struct {
	Source       string                 `json:"source"`
	DetailType   string                 `json:"detail-type"`
	Detail       map[string]interface{} `json:"detail"`
	TriggerType  string                 `json:"trigger-type,omitempty"`  // manual, scheduled
	SourceFilter []string               `json:"source-filter,omitempty"` // optional filter for specific sources
	FilterOnly   bool                   `json:"filter-only,omitempty"`   // rerun filtering without collecting
}

// CollectorResponse represents the function response.
type CollectorResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	RunID           string `json:"run_id"`
	RawEvents       int    `json:"raw_events"`
	ProcessedEvents int    `json:"processed_events"`
	FinalEvents     int    `json:"final_events"`
	ProcessingTime  int64  `json:"processing_time_ms"`
	Interrupted     bool   `json:"interrupted,omitempty"`
}

// HandleCollection runs a collection in response to a trigger event.
func HandleCollection(ctx context.Context, event CollectorEvent) (*CollectorResponse, error) {
	started := time.Now()
	log.Printf("Collection triggered: type=%s source=%s", event.TriggerType, event.Source)

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	cfg.Sources = applySourceFilter(cfg.Sources, event.SourceFilter)

	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("setup error: %w", err)
	}

	if event.FilterOnly {
		count, err := pipeline.FilterAndDeduplicate(ctx)
		if err != nil {
			return nil, err
		}
		return &CollectorResponse{
			Success:        true,
			Message:        "final tier refreshed",
			FinalEvents:    count,
			ProcessingTime: time.Since(started).Milliseconds(),
		}, nil
	}

	summary, err := pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	return &CollectorResponse{
		Success:         true,
		Message:         fmt.Sprintf("collected %d events, %d in final tier", summary.RawEvents, summary.FinalEvents),
		RunID:           summary.RunID,
		RawEvents:       summary.RawEvents,
		ProcessedEvents: summary.ProcessedEvents,
		FinalEvents:     summary.FinalEvents,
		ProcessingTime:  time.Since(started).Milliseconds(),
		Interrupted:     summary.Interrupted,
	}, nil
}

// applySourceFilter keeps only the sources whose names match the filter.
// An empty filter keeps everything.
func applySourceFilter(sources []config.Source, filter []string) []config.Source {
	if len(filter) == 0 {
		return sources
	}

	var kept []config.Source
	for _, source := range sources {
		for _, want := range filter {
			if strings.EqualFold(source.Name, want) {
				kept = append(kept, source)
				break
			}
		}
	}
	return kept
}

func buildPipeline(ctx context.Context, cfg config.Config) (*services.Pipeline, error) {
	fetcher := services.NewReaderClient(cfg.ReaderBaseURL)
	extractor := services.NewLLMClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)

	cache := services.NewGeoCache(cfg.GeoCachePath)
	resolver := services.NewGoogleResolver(cfg.GeocodingAPIKey)
	geocoder := services.NewGeocoder(resolver, cache, cfg.GeocodeDelay)

	store := services.NewTierStore(cfg.OutputDir)

	var publisher *services.S3Publisher
	if cfg.S3BucketName != "" {
		var err error
		publisher, err = services.NewS3Publisher(ctx, cfg.S3BucketName)
		if err != nil {
			return nil, err
		}
	}

	return services.NewPipeline(cfg, fetcher, extractor, geocoder, store, publisher), nil
}

func main() {
	lambda.Start(HandleCollection)
}
