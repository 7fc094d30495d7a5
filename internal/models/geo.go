package models

// GeoPoint is a resolved coordinate triple for a free-text location name.
// Lat and Lng are nil together when resolution failed or was skipped; Name
// echoes the lookup string.
type GeoPoint struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Name string   `json:"name"`
}

// NewGeoPoint creates a resolved point with both coordinates set.
func NewGeoPoint(lat, lng float64, name string) GeoPoint {
	return GeoPoint{Lat: &lat, Lng: &lng, Name: name}
}

// UnresolvedGeoPoint creates a terminal null-coordinate result for a name.
func UnresolvedGeoPoint(name string) GeoPoint {
	return GeoPoint{Name: name}
}

// HasCoordinates reports whether the point carries a usable coordinate pair.
func (p GeoPoint) HasCoordinates() bool {
	return p.Lat != nil && p.Lng != nil
}
