package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"qatar-events-collector/internal/models"
)

// Output tier filenames. Each run writes three progressively refined views
// of the same collection: raw keeps the original schedule text, processed
// carries resolved timestamps, final is filtered and deduplicated.
const (
	RawTierFile       = "events_01_raw.json"
	ProcessedTierFile = "events_02_processed.json"
	FinalTierFile     = "events_03_final.json"
)

// TierStore reads and writes the JSON output tiers under one directory.
type TierStore struct {
	dir string
}

// NewTierStore creates a store rooted at dir. The directory is created on
// first write.
func NewTierStore(dir string) *TierStore {
	return &TierStore{dir: dir}
}

// Path returns the full path of a tier file.
func (s *TierStore) Path(filename string) string {
	return filepath.Join(s.dir, filename)
}

// WriteTier writes events to a tier file as indented JSON. An empty slice
// writes an empty JSON array, never null.
func (s *TierStore) WriteTier(filename string, events []models.Event) error {
	if events == nil {
		events = []models.Event{}
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	data, err := json.MarshalIndent(events, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filename, err)
	}
	if err := os.WriteFile(s.Path(filename), data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", filename, err)
	}
	return nil
}

// ReadTier reads events back from a tier file.
func (s *TierStore) ReadTier(filename string) ([]models.Event, error) {
	data, err := os.ReadFile(s.Path(filename))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", filename, err)
	}

	var events []models.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	return events, nil
}
