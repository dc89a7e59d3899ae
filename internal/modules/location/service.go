// README: Location service ranks open appointments for a cleaner's position.
package location

import (
	"context"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/types"
)

type OpenAppointments interface {
	ListOpen(ctx context.Context) ([]*appointment.Appointment, error)
}

type Service struct {
	appointments OpenAppointments
	resolver     *Resolver
}

func NewService(appointments OpenAppointments, resolver *Resolver) *Service {
	return &Service{appointments: appointments, resolver: resolver}
}

type RankedAppointment struct {
	Appointment *appointment.Appointment
	DistanceKm  *float64
}

// RankOpen lists OPEN appointments ordered for a cleaner at origin. origin may
// be nil when the cleaner's position is unknown.
func (s *Service) RankOpen(ctx context.Context, origin *types.Point, mode SortMode) ([]RankedAppointment, error) {
	open, err := s.appointments.ListOpen(ctx)
	if err != nil {
		return nil, err
	}
	return s.rank(ctx, open, origin, mode)
}

// RankAppointments ranks an arbitrary set, e.g. a cleaner's own schedule.
func (s *Service) RankAppointments(ctx context.Context, appts []*appointment.Appointment, origin *types.Point, mode SortMode) ([]RankedAppointment, error) {
	return s.rank(ctx, appts, origin, mode)
}

func (s *Service) rank(ctx context.Context, appts []*appointment.Appointment, origin *types.Point, mode SortMode) ([]RankedAppointment, error) {
	homeIDs := make([]types.ID, 0, len(appts))
	byID := make(map[types.ID]*appointment.Appointment, len(appts))
	for _, a := range appts {
		homeIDs = append(homeIDs, a.HomeID)
		byID[a.ID] = a
	}
	coords, err := s.resolver.Resolve(ctx, homeIDs)
	if err != nil {
		return nil, err
	}

	items := make([]Candidate, 0, len(appts))
	for _, a := range appts {
		c := Candidate{ID: a.ID, HomeID: a.HomeID, Price: a.Price}
		if p, ok := coords[a.HomeID]; ok {
			c.Coordinate = &p
		}
		items = append(items, c)
	}

	ranked := Rank(items, origin, mode)
	out := make([]RankedAppointment, len(ranked))
	for i, r := range ranked {
		out[i] = RankedAppointment{Appointment: byID[r.ID], DistanceKm: r.DistanceKm}
	}
	return out, nil
}
