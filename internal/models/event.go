package models

// Event represents a single collected event in the canonical schema.
// Struct field order is the canonical serialization order: every JSON
// tier written by the pipeline serializes events in exactly this order.
type Event struct {
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	CategoryID          string   `json:"categoryId"`
	StartTimestamp      *int64   `json:"startTimestamp"`
	EndTimestamp        *int64   `json:"endTimestamp"`
	LocationLat         *float64 `json:"locationLat"`
	LocationLng         *float64 `json:"locationLng"`
	LocationDescription *string  `json:"locationDescription"`
	LocationName        string   `json:"locationName"`
	LocationPhone       *string  `json:"locationPhone"`
	Website             string   `json:"website"`
	Image               *string  `json:"image"`

	// Original free-text schedule, preserved in the raw tier only.
	// Cleared once timestamps are resolved for the processed tier.
	Date string `json:"date,omitempty"`
	Time string `json:"time,omitempty"`

	// Source tags which collector produced the record. Used during
	// consolidation, never serialized.
	Source string `json:"-"`
}

// HasCoordinates reports whether both latitude and longitude are set.
func (e Event) HasCoordinates() bool {
	return e.LocationLat != nil && e.LocationLng != nil
}

// HasStartTimestamp reports whether the record carries a resolved start time.
// Records without one are retained in the raw tier but excluded from the
// processed tier.
func (e Event) HasStartTimestamp() bool {
	return e.StartTimestamp != nil
}

// Source name constants
const (
	SourceMarhaba    = "Marhaba Qatar"
	SourceILoveQatar = "iLoveQatar"
	SourceGeneric    = "Generic"
)
