// README: Home coordinate cache backed by Redis GEO.
package location

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tidyhome/internal/types"
)

const homesGeoKey = "geo:homes"

type GeoCache struct {
	redis *redis.Client
	key   string
}

func NewGeoCache(rdb *redis.Client) *GeoCache {
	return &GeoCache{redis: rdb, key: homesGeoKey}
}

func (c *GeoCache) Get(ctx context.Context, homeID types.ID) (types.Point, bool, error) {
	pos, err := c.redis.GeoPos(ctx, c.key, string(homeID)).Result()
	if err != nil {
		return types.Point{}, false, fmt.Errorf("geopos %s: %w", homeID, err)
	}
	if len(pos) == 0 || pos[0] == nil {
		return types.Point{}, false, nil
	}
	return types.Point{Lat: pos[0].Latitude, Lng: pos[0].Longitude}, true, nil
}

func (c *GeoCache) Put(ctx context.Context, homeID types.ID, p types.Point) error {
	return c.redis.GeoAdd(ctx, c.key, &redis.GeoLocation{
		Name:      string(homeID),
		Longitude: p.Lng,
		Latitude:  p.Lat,
	}).Err()
}
