package matching

import (
	"context"
	"errors"
	"math"
	"os"
	"testing"

	"github.com/redis/go-redis/v9"

	"kirana/internal/config"
	"kirana/internal/types"
)

func pt(lat, lng float64) *types.Point {
	return &types.Point{Lat: lat, Lng: lng}
}

func TestRankNearbyDrivers_Filters(t *testing.T) {
	delivery := types.Point{Lat: 12.98, Lng: 77.60}
	cands := []Candidate{
		{DriverID: "offline", Online: false, Position: pt(12.98, 77.60)},
		{DriverID: "no-location", Online: true},
		{DriverID: "far", Online: true, Position: pt(13.10, 77.70)},
		{DriverID: "mid", Online: true, Position: pt(12.975, 77.595)},
		{DriverID: "near", Online: true, Position: pt(12.9805, 77.6005)},
	}

	got := RankNearbyDrivers(delivery, cands)
	if len(got) != 2 {
		t.Fatalf("expected 2 ranked drivers, got %d: %+v", len(got), got)
	}
	if got[0].DriverID != "near" || got[1].DriverID != "mid" {
		t.Fatalf("unexpected order: %s, %s", got[0].DriverID, got[1].DriverID)
	}
	if got[0].DistanceKm > got[1].DistanceKm {
		t.Fatalf("distances not ascending: %v > %v", got[0].DistanceKm, got[1].DistanceKm)
	}
}

func TestRankNearbyDrivers_TiesKeepInputOrder(t *testing.T) {
	delivery := types.Point{Lat: 12.98, Lng: 77.60}
	same := pt(12.975, 77.595)
	cands := []Candidate{
		{DriverID: "d2", Online: true, Position: same},
		{DriverID: "d1", Online: true, Position: same},
		{DriverID: "d3", Online: true, Position: same},
	}
	for i := 0; i < 10; i++ {
		got := RankNearbyDrivers(delivery, cands)
		if got[0].DriverID != "d2" || got[1].DriverID != "d1" || got[2].DriverID != "d3" {
			t.Fatalf("tie order changed: %v", got)
		}
	}
}

func TestRankNearbyDrivers_Empty(t *testing.T) {
	if got := RankNearbyDrivers(types.Point{}, nil); len(got) != 0 {
		t.Fatalf("expected empty result, got %v", got)
	}
}

type stubSource struct {
	cands     []Candidate
	err       error
	gotRadius float64
	gotCenter types.Point
}

func (s *stubSource) Candidates(_ context.Context, center types.Point, radiusKm float64) ([]Candidate, error) {
	s.gotCenter = center
	s.gotRadius = radiusKm
	return s.cands, s.err
}

func TestServiceNearby_UsesConfiguredRadius(t *testing.T) {
	src := &stubSource{cands: []Candidate{
		{DriverID: "d1", Online: true, Position: pt(12.975, 77.595)},
	}}
	svc := NewService(src, config.MatchingConfig{RadiusKm: 0.5})

	got, err := svc.Nearby(context.Background(), types.Point{Lat: 12.98, Lng: 77.60})
	if err != nil {
		t.Fatalf("Nearby: %v", err)
	}
	if src.gotRadius != 0.5 {
		t.Fatalf("source radius = %v, want 0.5", src.gotRadius)
	}
	if len(got) != 0 {
		t.Fatalf("driver ~0.78km away should be outside 0.5km, got %v", got)
	}
}

func TestServiceNearby_DefaultRadiusAndErrors(t *testing.T) {
	src := &stubSource{err: errors.New("boom")}
	svc := NewService(src, config.MatchingConfig{})
	if svc.RadiusKm() != DeliveryRadiusKm {
		t.Fatalf("default radius = %v", svc.RadiusKm())
	}
	if _, err := svc.Nearby(context.Background(), types.Point{}); err == nil {
		t.Fatal("expected source error to propagate")
	}
}

func TestGeoIndex_Redis(t *testing.T) {
	addr := os.Getenv("KIRANA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KIRANA_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	idx := NewGeoIndex(rdb)
	id := types.NewID()
	t.Cleanup(func() { _ = idx.Remove(ctx, id) })

	if err := idx.Upsert(ctx, id, types.Point{Lat: 12.975, Lng: 77.595}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	ids, err := idx.Within(ctx, types.Point{Lat: 12.98, Lng: 77.60}, DeliveryRadiusKm)
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	found := false
	for _, got := range ids {
		if got == id {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected %s in %v", id, ids)
	}
	if err := idx.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

// northOf returns the point distKm due north of p along its meridian.
func northOf(p types.Point, distKm float64) types.Point {
	return types.Point{Lat: p.Lat + distKm/earthRadiusKm*180/math.Pi, Lng: p.Lng}
}

func TestSearchRadiusCoversHaversineRadius(t *testing.T) {
	if got := searchRadiusKm(DeliveryRadiusKm); got <= DeliveryRadiusKm*redisEarthRadiusKm/earthRadiusKm {
		t.Fatalf("search radius %v does not cover the Redis sphere scale", got)
	}
}

func TestGeoIndex_RedisKeepsBoundaryDrivers(t *testing.T) {
	addr := os.Getenv("KIRANA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("KIRANA_TEST_REDIS_ADDR not set; skipping integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()

	ctx := context.Background()
	idx := NewGeoIndex(rdb)
	center := types.Point{Lat: 12.9716, Lng: 77.5946}
	edge := northOf(center, 2.999)
	if d := Distance(center, edge); d > DeliveryRadiusKm || d < 2.99 {
		t.Fatalf("edge driver distance = %v, want just under 3", d)
	}
	outside := northOf(center, 3.2)

	edgeID, outsideID := types.NewID(), types.NewID()
	t.Cleanup(func() {
		_ = idx.Remove(ctx, edgeID)
		_ = idx.Remove(ctx, outsideID)
	})
	if err := idx.Upsert(ctx, edgeID, edge); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := idx.Upsert(ctx, outsideID, outside); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	ids, err := idx.Within(ctx, center, DeliveryRadiusKm)
	if err != nil {
		t.Fatalf("within: %v", err)
	}
	var cands []Candidate
	for _, id := range ids {
		switch id {
		case edgeID:
			cands = append(cands, Candidate{DriverID: id, Online: true, Position: &edge})
		case outsideID:
			cands = append(cands, Candidate{DriverID: id, Online: true, Position: &outside})
		}
	}
	ranked := RankNearbyDrivers(center, cands)
	if len(ranked) != 1 || ranked[0].DriverID != edgeID {
		t.Fatalf("ranked = %+v, want only the 2.999 km driver", ranked)
	}
}
