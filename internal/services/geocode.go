package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"qatar-events-collector/internal/models"
)

// Qatar bounding box. Geocoding results outside it are treated as
// mismatches, since every collected event takes place in Qatar.
const (
	qatarMinLat = 24.5
	qatarMaxLat = 26.5
	qatarMinLng = 50.5
	qatarMaxLng = 52.5
)

// locationPlaceholders are location values that name no real place.
// Lookups for them resolve to null coordinates immediately, without
// touching the resolver or the cache.
var locationPlaceholders = map[string]bool{
	"n/a":              true,
	"tbd":              true,
	"tba":              true,
	"to be announced":  true,
	"to be determined": true,
	"location tba":     true,
	"venue tba":        true,
}

// CoordinateResolver turns a free-text location name into coordinates.
// Implementations perform the external lookup; cache and validation policy
// live in Geocoder.
type CoordinateResolver interface {
	Resolve(ctx context.Context, locationName string) (models.GeoPoint, error)
}

// GoogleResolver resolves location names through the Google Geocoding API.
type GoogleResolver struct {
	client *resty.Client
	apiKey string
}

// NewGoogleResolver creates a resolver using the given API key.
func NewGoogleResolver(apiKey string) *GoogleResolver {
	client := resty.New().
		SetBaseURL("https://maps.googleapis.com").
		SetTimeout(15 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(2 * time.Second)

	return &GoogleResolver{client: client, apiKey: apiKey}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		Geometry struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// Resolve implements CoordinateResolver. The query is suffixed with
// ", Qatar" to bias results toward Qatari places. A successful call with no
// match returns an unresolved point and no error.
func (r *GoogleResolver) Resolve(ctx context.Context, locationName string) (models.GeoPoint, error) {
	var result geocodeResponse

	resp, err := r.client.R().
		SetContext(ctx).
		SetQueryParam("address", locationName+", Qatar").
		SetQueryParam("key", r.apiKey).
		SetResult(&result).
		Get("/maps/api/geocode/json")
	if err != nil {
		return models.GeoPoint{}, fmt.Errorf("geocode %q: %w", locationName, err)
	}
	if resp.StatusCode() != 200 {
		return models.GeoPoint{}, fmt.Errorf("geocode %q: status %d", locationName, resp.StatusCode())
	}

	if result.Status != "OK" || len(result.Results) == 0 {
		return models.UnresolvedGeoPoint(locationName), nil
	}

	loc := result.Results[0].Geometry.Location
	return models.NewGeoPoint(loc.Lat, loc.Lng, locationName), nil
}

// Geocoder resolves event locations to coordinates with a write-through
// cache in front of an external resolver.
type Geocoder struct {
	resolver CoordinateResolver
	cache    *GeoCache
	delay    time.Duration
}

// NewGeocoder creates a geocoder. delay is the pause applied after each
// external lookup to stay under API rate limits; cache hits pay no delay.
func NewGeocoder(resolver CoordinateResolver, cache *GeoCache, delay time.Duration) *Geocoder {
	return &Geocoder{resolver: resolver, cache: cache, delay: delay}
}

// Resolve returns coordinates for a location name.
//
// Blank and placeholder names short-circuit to null coordinates without a
// lookup or a cache write. Cache hits are returned verbatim. On a miss the
// external resolver is consulted; only results inside the Qatar bounding
// box are cached, so a bad match never poisons future runs.
func (g *Geocoder) Resolve(ctx context.Context, locationName string) (models.GeoPoint, error) {
	point, _, err := g.resolve(ctx, locationName)
	return point, err
}

// resolve additionally reports whether the external resolver was consulted,
// which drives rate-limit pacing in AnnotateEvents.
func (g *Geocoder) resolve(ctx context.Context, locationName string) (models.GeoPoint, bool, error) {
	trimmed := strings.TrimSpace(locationName)
	if trimmed == "" || locationPlaceholders[strings.ToLower(trimmed)] {
		return models.UnresolvedGeoPoint(locationName), false, nil
	}

	if point, ok := g.cache.Get(locationName); ok {
		return point, false, nil
	}

	point, err := g.resolver.Resolve(ctx, locationName)
	if err != nil {
		return models.UnresolvedGeoPoint(locationName), true, err
	}

	if !point.HasCoordinates() {
		return models.UnresolvedGeoPoint(locationName), true, nil
	}
	if !inQatarBounds(*point.Lat, *point.Lng) {
		log.Printf("Coordinates outside Qatar for %q: %.6f, %.6f", locationName, *point.Lat, *point.Lng)
		return models.UnresolvedGeoPoint(locationName), true, nil
	}

	if err := g.cache.Put(locationName, point); err != nil {
		log.Printf("Warning: failed to persist geolocation cache: %v", err)
	}
	return point, true, nil
}

// AnnotateEvents fills locationLat and locationLng on each event from its
// locationName. Cancellation is checked per event and already-annotated
// events keep their coordinates, so an interrupted run yields a usable
// partial result. Lookup errors null the coordinates and continue.
func (g *Geocoder) AnnotateEvents(ctx context.Context, events []models.Event) ([]models.Event, error) {
	annotated := make([]models.Event, 0, len(events))
	defer func() {
		if err := g.cache.Flush(); err != nil {
			log.Printf("Warning: failed to flush geolocation cache: %v", err)
		}
	}()

	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return annotated, err
		}
		if event.HasCoordinates() {
			annotated = append(annotated, event)
			continue
		}

		point, external, err := g.resolve(ctx, event.LocationName)
		if err != nil {
			log.Printf("Geocoding failed for %q: %v", event.LocationName, err)
		}
		event.LocationLat = point.Lat
		event.LocationLng = point.Lng
		annotated = append(annotated, event)

		// Pace external lookups only; placeholder and cache hits put
		// no pressure on the API.
		if external && g.delay > 0 {
			select {
			case <-ctx.Done():
				return annotated, ctx.Err()
			case <-time.After(g.delay):
			}
		}
	}

	return annotated, nil
}

func inQatarBounds(lat, lng float64) bool {
	return lat >= qatarMinLat && lat <= qatarMaxLat && lng >= qatarMinLng && lng <= qatarMaxLng
}
