// README: Wires stores, optional Redis/maps/Stripe adapters and module services from config.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"tidyhome/internal/config"
	"tidyhome/internal/infra"
	"tidyhome/internal/maps"
	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/assignment"
	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/location"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/payment"
)

type App struct {
	DB    *pgxpool.Pool
	Redis *redis.Client

	Pricing     *pricing.Service
	Homes       *home.Service
	Appointment *appointment.Service
	Assignment  *assignment.Service
	Location    *location.Service
	Sweeper     *appointment.Sweeper
}

// New connects to Postgres (and Redis when configured) and builds every
// service. Integrations without credentials are left out.
func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	db, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.DB.AutoMigrate {
		if err := infra.Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	a := &App{DB: db, Pricing: pricing.NewService()}

	var locker assignment.Locker = assignment.NewLocalLocker()
	var geoCache location.CoordinateCache
	if cfg.Redis.Addr != "" {
		rdb, err := infra.NewRedis(ctx, cfg.Redis.Addr)
		if err != nil {
			db.Close()
			return nil, err
		}
		a.Redis = rdb
		locker = assignment.NewRedisLocker(rdb, cfg.Matching.LockTTL, cfg.Matching.LockWait)
		geoCache = location.NewGeoCache(rdb)
	} else {
		log.Warn("redis not configured; staffing locks are process-local")
	}

	var homeGeocoder home.Geocoder
	var addrGeocoder location.Geocoder
	if cfg.Maps.APIKey != "" {
		gc, err := maps.NewGeocodeService(cfg.Maps.APIKey, cfg.Maps.Region, cfg.Maps.RPS)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("maps client: %w", err)
		}
		homeGeocoder, addrGeocoder = gc, gc
	} else {
		log.Warn("maps api key not configured; new homes cannot be created")
	}

	var payments appointment.Payments
	if cfg.Stripe.SecretKey != "" {
		payments = payment.NewStripeClient(payment.Config{SecretKey: cfg.Stripe.SecretKey})
	} else {
		log.Warn("stripe not configured; payments cannot be captured")
	}

	homeStore := home.NewStore(db)
	a.Appointment = appointment.NewService(appointment.NewStore(db), homeStore, a.Pricing, payments, log)
	a.Homes = home.NewService(homeStore, homeGeocoder, a.Appointment, log)
	a.Assignment = assignment.NewService(assignment.NewStore(db), locker, cfg.Matching.MaxRetries, log)
	resolver := location.NewResolver(geoCache, homeStore, addrGeocoder, cfg.Ranking.Concurrency, log)
	a.Location = location.NewService(a.Appointment, resolver)
	a.Sweeper = appointment.NewSweeper(a.Appointment, cfg.Sweep.Interval, log)
	return a, nil
}

func (a *App) Close() {
	if a.Sweeper != nil {
		a.Sweeper.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	a.DB.Close()
}
