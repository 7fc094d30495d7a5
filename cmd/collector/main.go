package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"qatar-events-collector/internal/config"
	"qatar-events-collector/internal/services"
)

func main() {
	filterOnly := flag.Bool("filter-events", false, "skip collection and rerun filtering + deduplication on the existing processed tier")
	flag.Parse()

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Ctrl-C cancels the context; every stage checks it, so the run stops
	// at the next boundary with partial output written.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pipeline, err := buildPipeline(ctx, cfg)
	if err != nil {
		log.Fatalf("Setup error: %v", err)
	}

	if *filterOnly {
		count, err := pipeline.FilterAndDeduplicate(ctx)
		if err != nil {
			log.Fatalf("Filtering failed: %v", err)
		}
		log.Printf("Final tier refreshed with %d events", count)
		return
	}

	summary, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatalf("Collection run failed: %v", err)
	}
	if summary.Interrupted {
		log.Printf("Run %s was interrupted; output tiers hold partial results", summary.RunID)
	}
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
