package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Source describes one listing-page source to collect from. Classifier
// selects the per-source URL rule set (see services.URLClassifier).
type Source struct {
	Name       string `yaml:"name"`
	URL        string `yaml:"url"`
	Classifier string `yaml:"classifier"` // marhaba | iloveqatar
	MaxPages   int    `yaml:"max_pages"`
	Enabled    bool   `yaml:"enabled"`
}

// Config captures runtime configuration for a collection run.
type Config struct {
	OpenAIAPIKey    string
	OpenAIModel     string
	GeocodingAPIKey string
	ReaderBaseURL   string
	OutputDir       string
	GeoCachePath    string
	S3BucketName    string // empty disables S3 publication
	GeocodeDelay    time.Duration
	PageDelay       time.Duration
	FilterBatchSize int
	Sources         []Source
}

// FromEnv creates a configuration instance sourced from environment
// variables, loading a .env file when one is present. Missing API keys are
// a fatal configuration error: no partial run is attempted without them.
func FromEnv() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		GeocodingAPIKey: os.Getenv("GEOCODING_API_KEY"),
		ReaderBaseURL:   getEnv("READER_BASE_URL", "https://r.jina.ai"),
		OutputDir:       getEnv("OUTPUT_DIR", "collected-events"),
		GeoCachePath:    getEnv("GEO_CACHE_PATH", "cache/geolocation_cache.json"),
		S3BucketName:    os.Getenv("S3_BUCKET_NAME"),
		GeocodeDelay:    500 * time.Millisecond,
		PageDelay:       300 * time.Millisecond,
		FilterBatchSize: 20,
		Sources:         DefaultSources(),
	}

	if cfg.OpenAIAPIKey == "" {
		return Config{}, fmt.Errorf("OPENAI_API_KEY environment variable is required")
	}
	if cfg.GeocodingAPIKey == "" {
		return Config{}, fmt.Errorf("GEOCODING_API_KEY environment variable is required")
	}

	if delay := os.Getenv("GEOCODE_DELAY_MS"); delay != "" {
		var ms int
		if _, err := fmt.Sscanf(delay, "%d", &ms); err != nil {
			return Config{}, fmt.Errorf("parse GEOCODE_DELAY_MS: %w", err)
		}
		cfg.GeocodeDelay = time.Duration(ms) * time.Millisecond
	}

	if path := os.Getenv("SOURCES_FILE"); path != "" {
		sources, err := LoadSources(path)
		if err != nil {
			return Config{}, fmt.Errorf("load sources file: %w", err)
		}
		cfg.Sources = sources
	}

	return cfg, nil
}

// DefaultSources returns the built-in source registry used when no
// SOURCES_FILE override is configured.
func DefaultSources() []Source {
	return []Source{
		{
			Name:       "iLoveQatar Events",
			URL:        "https://www.iloveqatar.net/events",
			Classifier: "iloveqatar",
			MaxPages:   12,
			Enabled:    true,
		},
		{
			Name:       "Marhaba Qatar Events",
			URL:        "https://marhaba.qa/events/photo/",
			Classifier: "marhaba",
			MaxPages:   200,
			Enabled:    true,
		},
	}
}

// LoadSources reads a source registry from a YAML file.
func LoadSources(path string) ([]Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Sources []Source `yaml:"sources"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources YAML: %w", err)
	}
	if len(doc.Sources) == 0 {
		return nil, fmt.Errorf("sources file %s defines no sources", path)
	}

	for i := range doc.Sources {
		if doc.Sources[i].MaxPages <= 0 {
			doc.Sources[i].MaxPages = 1
		}
	}

	return doc.Sources, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
