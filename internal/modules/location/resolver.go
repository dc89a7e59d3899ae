// README: Parallel coordinate resolution for ranking; failures degrade to unknown.
package location

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"tidyhome/internal/modules/home"
	"tidyhome/internal/types"
)

type CoordinateCache interface {
	Get(ctx context.Context, homeID types.ID) (types.Point, bool, error)
	Put(ctx context.Context, homeID types.ID, p types.Point) error
}

type HomeLookup interface {
	Get(ctx context.Context, id types.ID) (*home.Home, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, bool, error)
}

// Resolver finds home coordinates: cache first, then the stored home, then
// the geocoder. Any of cache and geocoder may be nil.
type Resolver struct {
	cache       CoordinateCache
	homes       HomeLookup
	geocoder    Geocoder
	concurrency int
	log         *slog.Logger
}

func NewResolver(cache CoordinateCache, homes HomeLookup, geocoder Geocoder, concurrency int, log *slog.Logger) *Resolver {
	if concurrency < 1 {
		concurrency = 8
	}
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cache: cache, homes: homes, geocoder: geocoder, concurrency: concurrency, log: log.With("module", "location")}
}

// Resolve looks up every home in parallel. Homes that cannot be resolved are
// absent from the result. The only error returned is ctx's.
func (r *Resolver) Resolve(ctx context.Context, homeIDs []types.ID) (map[types.ID]types.Point, error) {
	var mu sync.Mutex
	out := make(map[types.ID]types.Point, len(homeIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	seen := make(map[types.ID]struct{}, len(homeIDs))
	for _, id := range homeIDs {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		id := id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, ok := r.resolveOne(gctx, id)
			if ok {
				mu.Lock()
				out[id] = p
				mu.Unlock()
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) resolveOne(ctx context.Context, id types.ID) (types.Point, bool) {
	if r.cache != nil {
		p, ok, err := r.cache.Get(ctx, id)
		if err != nil {
			r.log.Warn("coordinate cache read failed", "home_id", id, "error", err)
		} else if ok {
			return p, true
		}
	}

	h, err := r.homes.Get(ctx, id)
	if err != nil {
		r.log.Warn("home lookup failed", "home_id", id, "error", err)
		return types.Point{}, false
	}
	p, ok := types.Point{}, false
	if h.Coordinate != nil {
		p, ok = *h.Coordinate, true
	} else if r.geocoder != nil {
		p, ok, err = r.geocoder.Geocode(ctx, h.Address.String())
		if err != nil {
			r.log.Warn("geocode failed", "home_id", id, "error", err)
			return types.Point{}, false
		}
	}
	if ok && r.cache != nil {
		if err := r.cache.Put(ctx, id, p); err != nil {
			r.log.Warn("coordinate cache write failed", "home_id", id, "error", err)
		}
	}
	return p, ok
}
