// README: Home service validates bookings-side home data, geocodes it and reprices on size changes.
package home

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type HomeStore interface {
	Create(ctx context.Context, h *Home) error
	Get(ctx context.Context, id types.ID) (*Home, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*Home, error)
	Update(ctx context.Context, h *Home) error
	SetCoordinate(ctx context.Context, id types.ID, p *types.Point) error
}

// Geocoder reports ok=false when a location is unknown to the provider.
type Geocoder interface {
	ResolveZip(ctx context.Context, zipcode string) (types.Point, bool, error)
	Geocode(ctx context.Context, address string) (types.Point, bool, error)
}

// Repricer recomputes prices of a home's upcoming appointments.
type Repricer interface {
	RepriceHome(ctx context.Context, h *Home) (int, error)
}

type Service struct {
	store    HomeStore
	geocoder Geocoder
	repricer Repricer
	log      *slog.Logger
}

func NewService(store HomeStore, geocoder Geocoder, repricer Repricer, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, geocoder: geocoder, repricer: repricer, log: log.With("module", "home")}
}

type CreateCommand struct {
	OwnerID      types.ID
	Nickname     string
	Address      Address
	NumBeds      int
	NumBaths     int
	Defaults     pricing.Options
	Access       Access
	ContactPhone string
	SpecialNotes string
}

type UpdateCommand struct {
	HomeID       types.ID
	Nickname     *string
	Address      *Address
	NumBeds      *int
	NumBaths     *int
	Defaults     *pricing.Options
	Access       *Access
	ContactPhone *string
	SpecialNotes *string
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (types.ID, error) {
	if cmd.OwnerID == "" || cmd.NumBeds < 1 || cmd.NumBaths < 1 {
		return "", ErrBadRequest
	}
	if !cmd.Defaults.TimeWindow.Valid() || !cmd.Access.Method.Valid() {
		return "", ErrBadRequest
	}
	addr := normalizeAddress(cmd.Address)
	if !ValidZip(addr.Zipcode) {
		return "", ErrBadRequest
	}
	coord, err := s.locate(ctx, addr)
	if err != nil {
		return "", err
	}

	now := time.Now()
	h := &Home{
		ID:                types.NewID(),
		OwnerID:           cmd.OwnerID,
		Nickname:          strings.TrimSpace(cmd.Nickname),
		Address:           addr,
		Coordinate:        coord,
		NumBeds:           cmd.NumBeds,
		NumBaths:          cmd.NumBaths,
		SheetsDefault:     cmd.Defaults.BringSheets,
		TowelsDefault:     cmd.Defaults.BringTowels,
		TimeWindowDefault: cmd.Defaults.TimeWindow,
		Access:            cmd.Access,
		ContactPhone:      strings.TrimSpace(cmd.ContactPhone),
		SpecialNotes:      cmd.SpecialNotes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.store.Create(ctx, h); err != nil {
		return "", err
	}
	s.log.Info("home created", "home_id", h.ID, "owner_id", h.OwnerID, "geocoded", coord != nil)
	return h.ID, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Home, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Home, error) {
	return s.store.ListByOwner(ctx, ownerID)
}

// Coordinate returns nil without error when the home's location is unknown.
func (s *Service) Coordinate(ctx context.Context, id types.ID) (*types.Point, error) {
	h, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return h.Coordinate, nil
}

func (s *Service) Update(ctx context.Context, cmd UpdateCommand) (*Home, error) {
	h, err := s.store.Get(ctx, cmd.HomeID)
	if err != nil {
		return nil, err
	}
	prev := *h
	resized := false
	if cmd.NumBeds != nil {
		if *cmd.NumBeds < 1 {
			return nil, ErrBadRequest
		}
		resized = resized || *cmd.NumBeds != h.NumBeds
		h.NumBeds = *cmd.NumBeds
	}
	if cmd.NumBaths != nil {
		if *cmd.NumBaths < 1 {
			return nil, ErrBadRequest
		}
		resized = resized || *cmd.NumBaths != h.NumBaths
		h.NumBaths = *cmd.NumBaths
	}
	if cmd.Defaults != nil {
		if !cmd.Defaults.TimeWindow.Valid() {
			return nil, ErrBadRequest
		}
		h.SheetsDefault = cmd.Defaults.BringSheets
		h.TowelsDefault = cmd.Defaults.BringTowels
		h.TimeWindowDefault = cmd.Defaults.TimeWindow
	}
	if cmd.Access != nil {
		if !cmd.Access.Method.Valid() {
			return nil, ErrBadRequest
		}
		h.Access = *cmd.Access
	}
	if cmd.Address != nil {
		addr := normalizeAddress(*cmd.Address)
		if !ValidZip(addr.Zipcode) {
			return nil, ErrBadRequest
		}
		coord, err := s.locate(ctx, addr)
		if err != nil {
			return nil, err
		}
		h.Address = addr
		h.Coordinate = coord
	}
	if cmd.Nickname != nil {
		h.Nickname = strings.TrimSpace(*cmd.Nickname)
	}
	if cmd.ContactPhone != nil {
		h.ContactPhone = strings.TrimSpace(*cmd.ContactPhone)
	}
	if cmd.SpecialNotes != nil {
		h.SpecialNotes = *cmd.SpecialNotes
	}
	h.UpdatedAt = time.Now()

	if !resized || s.repricer == nil {
		if err := s.store.Update(ctx, h); err != nil {
			return nil, err
		}
		return h, nil
	}

	// Appointments are repriced before the new size is saved; a failed save
	// puts the old prices back.
	n, err := s.repricer.RepriceHome(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("reprice appointments: %w", err)
	}
	if err := s.store.Update(ctx, h); err != nil {
		if _, rerr := s.repricer.RepriceHome(ctx, &prev); rerr != nil {
			s.log.Error("restoring prices after failed home update", "home_id", h.ID, "error", rerr)
		}
		return nil, err
	}
	s.log.Info("home resized", "home_id", h.ID, "beds", h.NumBeds, "baths", h.NumBaths, "repriced", n)
	return h, nil
}

// locate requires the zipcode to resolve; the street address may fail and
// leaves the coordinate unknown.
func (s *Service) locate(ctx context.Context, addr Address) (*types.Point, error) {
	if s.geocoder == nil {
		return nil, ErrUnresolvableZip
	}
	_, ok, err := s.geocoder.ResolveZip(ctx, addr.Zipcode)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnresolvableZip, err)
	}
	if !ok {
		return nil, ErrUnresolvableZip
	}
	p, ok, err := s.geocoder.Geocode(ctx, addr.String())
	if err != nil {
		s.log.Warn("address geocoding failed", "zipcode", addr.Zipcode, "err", err)
		return nil, nil
	}
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func normalizeAddress(a Address) Address {
	return Address{
		Street:  strings.TrimSpace(a.Street),
		City:    strings.TrimSpace(a.City),
		State:   strings.ToUpper(strings.TrimSpace(a.State)),
		Zipcode: strings.TrimSpace(a.Zipcode),
	}
}
