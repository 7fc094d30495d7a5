package services

import (
	"fmt"
	"log"

	"qatar-events-collector/internal/models"
)

// Deduplicate collapses records that describe the same occurrence of the
// same event. Records group by where and when they happen: coordinates
// (rounded to six decimal places) when available, otherwise the normalized
// location name, combined with the start timestamp, or the raw date text
// for records that never resolved one. Within a group the record with the
// longest description survives, earliest-collected winning ties.
//
// Output preserves the order in which groups first appear in the input.
func Deduplicate(events []models.Event) []models.Event {
	if len(events) == 0 {
		return events
	}

	groups := make(map[string][]models.Event)
	var keyOrder []string

	for _, event := range events {
		key := groupKey(event)
		if _, seen := groups[key]; !seen {
			keyOrder = append(keyOrder, key)
		}
		groups[key] = append(groups[key], event)
	}

	unique := make([]models.Event, 0, len(keyOrder))
	duplicates := 0

	for _, key := range keyOrder {
		group := groups[key]
		duplicates += len(group) - 1

		best := group[0]
		for _, candidate := range group[1:] {
			if len(candidate.Description) > len(best.Description) {
				best = candidate
			}
		}
		unique = append(unique, best)
	}

	if duplicates > 0 {
		log.Printf("Merged %d duplicate events, %d unique events remain", duplicates, len(unique))
	}
	return unique
}

// groupKey builds the location+schedule identity for a record.
func groupKey(event models.Event) string {
	var location string
	if event.HasCoordinates() {
		location = fmt.Sprintf("%.6f_%.6f", *event.LocationLat, *event.LocationLng)
	} else {
		location = models.NormalizeName(event.LocationName)
	}

	if event.HasStartTimestamp() {
		return fmt.Sprintf("%s_%d", location, *event.StartTimestamp)
	}
	return fmt.Sprintf("%s_%s", location, event.Date)
}
