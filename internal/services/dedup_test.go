package services

import (
	"testing"

	"qatar-events-collector/internal/models"
)

func coordEvent(name, description string, lat, lng float64, ts int64) models.Event {
	return models.Event{
		Name:           name,
		Description:    description,
		LocationLat:    &lat,
		LocationLng:    &lng,
		StartTimestamp: &ts,
	}
}

func TestDeduplicateLongestDescriptionWins(t *testing.T) {
	events := []models.Event{
		coordEvent("Garangao Night", "Short.", 25.3594, 51.5256, 1741618800),
		coordEvent("Garangao Night at Katara", "A much longer description with venue details and timings.", 25.3594, 51.5256, 1741618800),
		coordEvent("Garangao", "Medium length description.", 25.3594, 51.5256, 1741618800),
	}

	got := Deduplicate(events)
	if len(got) != 1 {
		t.Fatalf("got %d events, expected 1", len(got))
	}
	if got[0].Name != "Garangao Night at Katara" {
		t.Errorf("survivor = %q, expected the longest description to win", got[0].Name)
	}
}

func TestDeduplicateTiesKeepFirst(t *testing.T) {
	events := []models.Event{
		coordEvent("First", "Same length", 25.3594, 51.5256, 1741618800),
		coordEvent("Second", "Same length", 25.3594, 51.5256, 1741618800),
	}
	got := Deduplicate(events)
	if len(got) != 1 || got[0].Name != "First" {
		t.Errorf("tie should keep the first record, got %v", got)
	}
}

func TestDeduplicateDistinguishesByKey(t *testing.T) {
	testCases := []struct {
		name     string
		events   []models.Event
		expected int
	}{
		{
			name: "same place different times stay separate",
			events: []models.Event{
				coordEvent("Morning Show", "desc", 25.3594, 51.5256, 1741600000),
				coordEvent("Evening Show", "desc", 25.3594, 51.5256, 1741640000),
			},
			expected: 2,
		},
		{
			name: "same time different places stay separate",
			events: []models.Event{
				coordEvent("Show A", "desc", 25.3594, 51.5256, 1741618800),
				coordEvent("Show B", "desc", 25.2884, 51.5327, 1741618800),
			},
			expected: 2,
		},
		{
			name: "no coordinates falls back to location name",
			events: []models.Event{
				{Name: "A", Description: "x", LocationName: "Katara Cultural Village", StartTimestamp: int64Ptr(1741618800)},
				{Name: "B", Description: "longer text", LocationName: "KATARA cultural village!", StartTimestamp: int64Ptr(1741618800)},
			},
			expected: 1,
		},
		{
			name: "no timestamp falls back to raw date",
			events: []models.Event{
				{Name: "A", Description: "x", LocationName: "Souq Waqif", Date: "2025-03-10"},
				{Name: "B", Description: "y", LocationName: "Souq Waqif", Date: "2025-03-11"},
			},
			expected: 2,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := Deduplicate(tc.events)
			if len(got) != tc.expected {
				t.Errorf("got %d events, expected %d", len(got), tc.expected)
			}
		})
	}
}

func TestDeduplicatePreservesGroupOrder(t *testing.T) {
	events := []models.Event{
		coordEvent("First Group", "desc", 25.1, 51.1, 1),
		coordEvent("Second Group", "desc", 25.2, 51.2, 2),
		coordEvent("First Group Duplicate", "much longer description here", 25.1, 51.1, 1),
		coordEvent("Third Group", "desc", 25.3, 51.3, 3),
	}

	got := Deduplicate(events)
	if len(got) != 3 {
		t.Fatalf("got %d events, expected 3", len(got))
	}
	expected := []string{"First Group Duplicate", "Second Group", "Third Group"}
	for i, name := range expected {
		if got[i].Name != name {
			t.Errorf("position %d = %q, expected %q", i, got[i].Name, name)
		}
	}
}

func TestDeduplicateEmpty(t *testing.T) {
	if got := Deduplicate(nil); len(got) != 0 {
		t.Errorf("expected empty result, got %v", got)
	}
}

func int64Ptr(v int64) *int64 { return &v }
