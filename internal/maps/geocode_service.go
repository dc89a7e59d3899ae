package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"tidyhome/internal/types"
)

// GeocodeService resolves postal addresses to coordinates with the Google
// Geocoding API.
type GeocodeService struct {
	client *maps.Client
	region string
}

// NewGeocodeService creates a GeocodeService with the given API key. rps
// caps outbound requests per second; zero leaves the client default.
func NewGeocodeService(apiKey, region string, rps int) (*GeocodeService, error) {
	opts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if rps > 0 {
		opts = append(opts, maps.WithRateLimit(rps))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &GeocodeService{client: client, region: strings.ToLower(region)}, nil
}

// Geocode returns the coordinate of a free-form address. ok is false when the
// provider has no match.
func (s *GeocodeService) Geocode(ctx context.Context, address string) (types.Point, bool, error) {
	if strings.TrimSpace(address) == "" {
		return types.Point{}, false, nil
	}
	return s.first(ctx, &maps.GeocodingRequest{
		Address: address,
		Region:  s.region,
	})
}

// ResolveZip looks up the centroid of a postal code.
func (s *GeocodeService) ResolveZip(ctx context.Context, zipcode string) (types.Point, bool, error) {
	components := map[maps.Component]string{maps.ComponentPostalCode: zipcode}
	if s.region != "" {
		components[maps.ComponentCountry] = s.region
	}
	return s.first(ctx, &maps.GeocodingRequest{
		Components: components,
		Region:     s.region,
	})
}

func (s *GeocodeService) first(ctx context.Context, r *maps.GeocodingRequest) (types.Point, bool, error) {
	results, err := s.client.Geocode(ctx, r)
	if err != nil {
		if strings.Contains(err.Error(), "ZERO_RESULTS") {
			return types.Point{}, false, nil
		}
		return types.Point{}, false, fmt.Errorf("geocoding api error: %w", err)
	}
	if len(results) == 0 {
		return types.Point{}, false, nil
	}
	loc := results[0].Geometry.Location
	return types.Point{Lat: loc.Lat, Lng: loc.Lng}, true, nil
}
