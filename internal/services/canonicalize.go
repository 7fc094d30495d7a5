package services

import (
	"regexp"
	"strings"

	"qatar-events-collector/internal/models"
)

var (
	locationLabelPattern = regexp.MustCompile(`(?:Location|Venue|Address):\s*([^\n]+)`)
	phoneLabelPattern    = regexp.MustCompile(`(?:Phone|Tel|Contact):\s*([+\d\s\-\(\)]+)`)
	whatsappLabelPattern = regexp.MustCompile(`WhatsApp:\s*([+\d\s\-\(\)]+)`)
)

// CanonicalizeEvent converts a loosely-shaped extracted record into the
// canonical Event schema. Every schema field is present afterwards: missing
// strings become empty, missing nullables stay nil. Legacy field names
// produced by older extraction prompts (category, location, url) fold into
// their canonical equivalents, and location details and phone numbers are
// mined out of labeled description lines when not set explicitly.
func CanonicalizeEvent(record map[string]interface{}, source string) models.Event {
	event := models.Event{
		Name:         stringField(record, "name"),
		Description:  stringField(record, "description"),
		CategoryID:   stringField(record, "categoryId"),
		LocationName: stringField(record, "locationName"),
		Website:      stringField(record, "website"),
		Date:         stringField(record, "date"),
		Time:         stringField(record, "time"),
		Source:       source,
	}

	if event.CategoryID == "" {
		event.CategoryID = stringField(record, "category")
	}
	if event.LocationName == "" {
		event.LocationName = stringField(record, "location")
	}
	if event.Website == "" {
		event.Website = stringField(record, "url")
	}

	event.StartTimestamp = int64Field(record, "startTimestamp")
	event.EndTimestamp = int64Field(record, "endTimestamp")
	event.LocationLat = floatField(record, "locationLat")
	event.LocationLng = floatField(record, "locationLng")

	if s := stringField(record, "locationDescription"); s != "" {
		event.LocationDescription = &s
	} else if mined := mineLocationDescription(event.Description); mined != "" {
		event.LocationDescription = &mined
	}

	if s := stringField(record, "locationPhone"); s != "" {
		event.LocationPhone = &s
	} else if mined := mineLocationPhone(event.Description); mined != "" {
		event.LocationPhone = &mined
	}

	if s := stringField(record, "image"); s != "" {
		event.Image = &s
	}

	return event
}

// CanonicalizeEvents converts a batch of extracted records.
func CanonicalizeEvents(records []map[string]interface{}, source string) []models.Event {
	events := make([]models.Event, 0, len(records))
	for _, record := range records {
		events = append(events, CanonicalizeEvent(record, source))
	}
	return events
}

// mineLocationDescription pulls venue details from a labeled line in the
// description, e.g. "Venue: Hall 5, DECC".
func mineLocationDescription(description string) string {
	if m := locationLabelPattern.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// mineLocationPhone pulls a contact number from a labeled line in the
// description. A Phone/Tel/Contact line wins over a WhatsApp line; WhatsApp
// numbers keep their label so callers know which channel the number serves.
func mineLocationPhone(description string) string {
	if m := phoneLabelPattern.FindStringSubmatch(description); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := whatsappLabelPattern.FindStringSubmatch(description); m != nil {
		return "WhatsApp: " + strings.TrimSpace(m[1])
	}
	return ""
}

// stringField reads a string value from a loosely-typed record, tolerating
// missing keys, nulls, and non-string junk.
func stringField(record map[string]interface{}, key string) string {
	if v, ok := record[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// floatField reads a numeric value, accepting float64 (the usual JSON
// decode) and int.
func floatField(record map[string]interface{}, key string) *float64 {
	switch v := record[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	}
	return nil
}

// int64Field reads an integer value, accepting the float64 that JSON
// decoding produces for whole numbers.
func int64Field(record map[string]interface{}, key string) *int64 {
	switch v := record[key].(type) {
	case float64:
		n := int64(v)
		return &n
	case int:
		n := int64(v)
		return &n
	case int64:
		return &v
	}
	return nil
}
