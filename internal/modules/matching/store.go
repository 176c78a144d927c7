// README: Redis GEO index of online drivers, used as a coarse pre-filter.
package matching

import (
	"context"

	"github.com/redis/go-redis/v9"

	"kirana/internal/types"
)

const driverGeoKey = "kirana:drivers:online"

// Redis measures GEO distances on a 6372.797 km sphere and stores 52-bit
// geohashes; the search radius is widened by both so the pre-filter never
// drops a driver that Distance places inside the radius.
const (
	redisEarthRadiusKm = 6372.7976
	geohashErrorKm     = 0.01
)

func searchRadiusKm(radiusKm float64) float64 {
	return radiusKm*redisEarthRadiusKm/earthRadiusKm + geohashErrorKm
}

type GeoIndex struct {
	redis *redis.Client
}

func NewGeoIndex(redis *redis.Client) *GeoIndex {
	return &GeoIndex{redis: redis}
}

func (g *GeoIndex) Upsert(ctx context.Context, id types.ID, p types.Point) error {
	return g.redis.GeoAdd(ctx, driverGeoKey, &redis.GeoLocation{
		Name:      string(id),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}

func (g *GeoIndex) Remove(ctx context.Context, id types.ID) error {
	return g.redis.ZRem(ctx, driverGeoKey, string(id)).Err()
}

// Within returns driver ids inside radiusKm of p, nearest first. The result is
// a superset; callers must re-check exact distances.
func (g *GeoIndex) Within(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error) {
	results, err := g.redis.GeoSearch(ctx, driverGeoKey, &redis.GeoSearchQuery{
		Longitude:  p.Lng,
		Latitude:   p.Lat,
		Radius:     searchRadiusKm(radiusKm),
		RadiusUnit: "km",
		Sort:       "ASC",
	}).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]types.ID, len(results))
	for i, r := range results {
		ids[i] = types.ID(r)
	}
	return ids, nil
}
