package maps

import (
	"context"
	"errors"
	"testing"

	"googlemaps.github.io/maps"

	"kirana/internal/types"
)

type stubAPI struct {
	results []maps.GeocodingResult
	err     error
	got     *maps.GeocodingRequest
}

func (s *stubAPI) Geocode(_ context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error) {
	s.got = r
	return s.results, s.err
}

func result(lat, lng float64) maps.GeocodingResult {
	var r maps.GeocodingResult
	r.Geometry.Location = maps.LatLng{Lat: lat, Lng: lng}
	return r
}

func TestGeocode_FirstResult(t *testing.T) {
	api := &stubAPI{results: []maps.GeocodingResult{result(12.97, 77.59), result(1, 1)}}
	g := &Geocoder{client: api, region: "in"}

	p, err := g.Geocode(context.Background(), "  12 MG Road  ")
	if err != nil {
		t.Fatalf("geocode: %v", err)
	}
	if p != (types.Point{Lat: 12.97, Lng: 77.59}) {
		t.Fatalf("point = %+v", p)
	}
	if api.got.Address != "12 MG Road" || api.got.Region != "in" {
		t.Fatalf("request = %+v", api.got)
	}
}

func TestGeocode_Errors(t *testing.T) {
	g := &Geocoder{client: &stubAPI{}}
	if _, err := g.Geocode(context.Background(), "nowhere"); !errors.Is(err, ErrNoResult) {
		t.Fatalf("empty result: err = %v", err)
	}
	if _, err := g.Geocode(context.Background(), " "); !errors.Is(err, ErrNoResult) {
		t.Fatalf("blank address: err = %v", err)
	}
	boom := errors.New("quota")
	g = &Geocoder{client: &stubAPI{err: boom}}
	if _, err := g.Geocode(context.Background(), "x"); !errors.Is(err, boom) {
		t.Fatalf("api error not wrapped: %v", err)
	}
}
