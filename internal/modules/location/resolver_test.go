// README: Resolver and RankOpen tests with in-memory collaborators.
package location

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/home"
	"tidyhome/internal/types"
)

type memCache struct {
	mu     sync.Mutex
	points map[types.ID]types.Point
}

func newMemCache() *memCache { return &memCache{points: make(map[types.ID]types.Point)} }

func (c *memCache) Get(_ context.Context, id types.ID) (types.Point, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.points[id]
	return p, ok, nil
}

func (c *memCache) Put(_ context.Context, id types.ID, p types.Point) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.points[id] = p
	return nil
}

type memHomes struct {
	homes map[types.ID]*home.Home
	calls atomic.Int32
	delay time.Duration
}

func (m *memHomes) Get(ctx context.Context, id types.ID) (*home.Home, error) {
	m.calls.Add(1)
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	h, ok := m.homes[id]
	if !ok {
		return nil, home.ErrNotFound
	}
	return h, nil
}

type fakeGeocoder struct {
	known map[string]types.Point
	err   error
}

func (g *fakeGeocoder) Geocode(_ context.Context, address string) (types.Point, bool, error) {
	if g.err != nil {
		return types.Point{}, false, g.err
	}
	p, ok := g.known[address]
	return p, ok, nil
}

func testHomes() *memHomes {
	return &memHomes{homes: map[types.ID]*home.Home{
		"h-stored":  {ID: "h-stored", Coordinate: &types.Point{Lat: 37.76, Lng: -122.43}},
		"h-geocode": {ID: "h-geocode", Address: home.Address{Street: "1 Broadway", City: "Oakland", State: "CA", Zipcode: "94607"}},
		"h-unknown": {ID: "h-unknown", Address: home.Address{Street: "nowhere", City: "x", State: "CA", Zipcode: "00000"}},
	}}
}

func TestResolverLookupOrder(t *testing.T) {
	cache := newMemCache()
	_ = cache.Put(context.Background(), "h-cached", types.Point{Lat: 1, Lng: 2})
	homes := testHomes()
	geo := &fakeGeocoder{known: map[string]types.Point{"1 Broadway, Oakland, CA, 94607": {Lat: 37.80, Lng: -122.27}}}
	r := NewResolver(cache, homes, geo, 2, nil)

	got, err := r.Resolve(context.Background(), []types.ID{"h-cached", "h-stored", "h-geocode", "h-unknown", "h-missing", "h-stored"})
	require.NoError(t, err)

	assert.Equal(t, types.Point{Lat: 1, Lng: 2}, got["h-cached"])
	assert.Equal(t, types.Point{Lat: 37.76, Lng: -122.43}, got["h-stored"])
	assert.Equal(t, types.Point{Lat: 37.80, Lng: -122.27}, got["h-geocode"])
	assert.NotContains(t, got, types.ID("h-unknown"))
	assert.NotContains(t, got, types.ID("h-missing"))
	assert.EqualValues(t, 4, homes.calls.Load(), "cache hit and duplicate skip the home store")

	p, ok, _ := cache.Get(context.Background(), "h-geocode")
	assert.True(t, ok, "geocoded coordinate is cached")
	assert.Equal(t, got["h-geocode"], p)
}

func TestResolverGeocoderOutageDegrades(t *testing.T) {
	r := NewResolver(nil, testHomes(), &fakeGeocoder{err: errors.New("quota exceeded")}, 4, nil)
	got, err := r.Resolve(context.Background(), []types.ID{"h-stored", "h-geocode"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Contains(t, got, types.ID("h-stored"))
}

func TestResolverCancellation(t *testing.T) {
	homes := testHomes()
	homes.delay = time.Second
	r := NewResolver(nil, homes, nil, 1, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := r.Resolve(ctx, []types.ID{"h-stored", "h-geocode", "h-unknown"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

type openList []*appointment.Appointment

func (o openList) ListOpen(context.Context) ([]*appointment.Appointment, error) { return o, nil }

func TestRankOpen(t *testing.T) {
	appts := openList{
		{ID: "far", HomeID: "h-geocode", Price: types.USD(100)},
		{ID: "near", HomeID: "h-stored", Price: types.USD(200)},
		{ID: "lost", HomeID: "h-unknown", Price: types.USD(50)},
	}
	svc := NewService(appts, NewResolver(nil, testHomes(), &fakeGeocoder{known: map[string]types.Point{"1 Broadway, Oakland, CA, 94607": {Lat: 37.80, Lng: -122.27}}}, 4, nil))

	got, err := svc.RankOpen(context.Background(), &mission, SortDistanceClosest)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, types.ID("near"), got[0].Appointment.ID)
	assert.Equal(t, types.ID("far"), got[1].Appointment.ID)
	assert.Equal(t, types.ID("lost"), got[2].Appointment.ID)
	assert.Nil(t, got[2].DistanceKm)

	got, err = svc.RankOpen(context.Background(), &mission, SortPriceLow)
	require.NoError(t, err)
	assert.Equal(t, types.ID("lost"), got[0].Appointment.ID)
}
