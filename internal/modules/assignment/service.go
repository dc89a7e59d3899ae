// README: Assignment service approves, denies and withdraws cleaners under the appointment's capacity bound.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/types"
)

type AssignmentStore interface {
	GetAppointment(ctx context.Context, id types.ID) (*appointment.Appointment, error)
	GetRequest(ctx context.Context, id types.ID) (*Request, error)
	FindRequest(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error)
	ListRequests(ctx context.Context, appointmentID types.ID) ([]*Request, error)
	ListRequestsByCleaner(ctx context.Context, cleanerID types.ID) ([]*Request, error)
	Commit(ctx context.Context, c *Change) error
}

type Service struct {
	store   AssignmentStore
	locker  Locker
	retries int
	log     *slog.Logger
	now     func() time.Time
}

// NewService wires the store and lock. retries bounds how often a step is
// recomputed after losing a version race to another instance.
func NewService(store AssignmentStore, locker Locker, retries int, log *slog.Logger) *Service {
	if locker == nil {
		locker = NewLocalLocker()
	}
	if retries < 1 {
		retries = 3
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, locker: locker, retries: retries, log: log.With("module", "assignment"), now: time.Now}
}

// step computes the next staffing state from a fresh appointment.
type step func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error)

func (s *Service) apply(ctx context.Context, appointmentID types.ID, fn step) (*Change, error) {
	unlock, err := s.locker.Lock(ctx, appointmentID)
	if err != nil {
		return nil, fmt.Errorf("lock appointment %s: %w", appointmentID, err)
	}
	defer unlock()

	for attempt := 0; attempt <= s.retries; attempt++ {
		a, err := s.store.GetAppointment(ctx, appointmentID)
		if err != nil {
			return nil, err
		}
		c, err := fn(ctx, a, s.now())
		if err != nil {
			return nil, err
		}
		err = s.store.Commit(ctx, c)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		s.log.Debug("staffing version moved, recomputing", "appointment_id", appointmentID, "attempt", attempt+1)
	}
	return nil, ErrConflict
}

// RequestJob files a pending request. A previously denied request is
// reactivated rather than duplicated.
func (s *Service) RequestJob(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	if cleanerID == "" || appointmentID == "" {
		return nil, ErrBadRequest
	}
	c, err := s.apply(ctx, appointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		if err := acceptingRequests(a, now); err != nil {
			return nil, err
		}
		r, err := s.store.FindRequest(ctx, cleanerID, appointmentID)
		switch {
		case errors.Is(err, ErrNotFound):
			r = &Request{ID: types.NewID(), CleanerID: cleanerID, AppointmentID: appointmentID, CreatedAt: now}
		case err != nil:
			return nil, err
		case r.Live():
			return nil, ErrDuplicateRequest
		}
		r.Previous = ""
		r.Status = RequestPending
		r.UpdatedAt = now
		return change(a, a.Clone(), r, appointment.ActorCleaner, cleanerID, "request filed", now), nil
	})
	if err != nil {
		return nil, err
	}
	return c.Request, nil
}

// ApproveRequest assigns the request's cleaner. Capacity is never exceeded:
// approving into a full appointment fails with ErrFullyStaffed.
func (s *Service) ApproveRequest(ctx context.Context, requestID types.ID) (*Request, error) {
	r0, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	c, err := s.apply(ctx, r0.AppointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		r, err := s.store.GetRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if r.Status != RequestPending {
			return nil, ErrNotFound
		}
		if err := acceptingRequests(a, now); err != nil {
			return nil, err
		}
		if a.IsAssigned(r.CleanerID) {
			return nil, ErrDuplicateRequest
		}
		next := a.Clone()
		next.EmployeesAssigned = append(next.EmployeesAssigned, r.CleanerID)
		next.Status = next.StaffingStatus()
		decide(r, RequestApproved, now)
		return change(a, next, r, appointment.ActorOwner, a.OwnerID, "request approved", now), nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("request approved", "request_id", requestID, "appointment_id", r0.AppointmentID, "status", c.Appointment.Status)
	return c.Request, nil
}

// DenyRequest rejects a live request, freeing the cleaner's slot if the
// request had been approved.
func (s *Service) DenyRequest(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	c, err := s.apply(ctx, appointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		if err := staffable(a, now); err != nil {
			return nil, err
		}
		r, err := s.store.FindRequest(ctx, cleanerID, appointmentID)
		if err != nil {
			return nil, err
		}
		if !r.Live() {
			return nil, ErrNotFound
		}
		next := a.Clone()
		if r.Status == RequestApproved {
			next.EmployeesAssigned = without(next.EmployeesAssigned, cleanerID)
			next.Status = next.StaffingStatus()
		}
		decide(r, RequestDenied, now)
		return change(a, next, r, appointment.ActorOwner, a.OwnerID, "request denied", now), nil
	})
	if err != nil {
		return nil, err
	}
	return c.Request, nil
}

// UndoRequestChoice returns an approved or denied request to pending. Undoing
// an approval releases the slot it took.
func (s *Service) UndoRequestChoice(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	c, err := s.apply(ctx, appointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		if err := staffable(a, now); err != nil {
			return nil, err
		}
		r, err := s.store.FindRequest(ctx, cleanerID, appointmentID)
		if err != nil {
			return nil, err
		}
		if r.Status == RequestPending {
			return nil, ErrNotFound
		}
		next := a.Clone()
		if r.Status == RequestApproved {
			next.EmployeesAssigned = without(next.EmployeesAssigned, cleanerID)
			next.Status = next.StaffingStatus()
		}
		decide(r, RequestPending, now)
		return change(a, next, r, appointment.ActorOwner, a.OwnerID, "decision undone", now), nil
	})
	if err != nil {
		return nil, err
	}
	return c.Request, nil
}

// Unassign withdraws an assigned cleaner; their request ends up denied.
func (s *Service) Unassign(ctx context.Context, cleanerID, appointmentID types.ID) error {
	_, err := s.apply(ctx, appointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		if err := staffable(a, now); err != nil {
			return nil, err
		}
		if !a.IsAssigned(cleanerID) {
			return nil, ErrNotFound
		}
		r, err := s.store.FindRequest(ctx, cleanerID, appointmentID)
		if errors.Is(err, ErrNotFound) {
			r = &Request{ID: types.NewID(), CleanerID: cleanerID, AppointmentID: appointmentID, Status: RequestApproved, CreatedAt: now}
		} else if err != nil {
			return nil, err
		}
		next := a.Clone()
		next.EmployeesAssigned = without(next.EmployeesAssigned, cleanerID)
		next.Status = next.StaffingStatus()
		decide(r, RequestDenied, now)
		return change(a, next, r, appointment.ActorCleaner, cleanerID, "cleaner unassigned", now), nil
	})
	return err
}

// Assign adds a cleaner directly, creating or reactivating their request and
// approving it in the same step.
func (s *Service) Assign(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	if cleanerID == "" || appointmentID == "" {
		return nil, ErrBadRequest
	}
	c, err := s.apply(ctx, appointmentID, func(ctx context.Context, a *appointment.Appointment, now time.Time) (*Change, error) {
		if err := acceptingRequests(a, now); err != nil {
			return nil, err
		}
		if a.IsAssigned(cleanerID) {
			return nil, ErrDuplicateRequest
		}
		r, err := s.store.FindRequest(ctx, cleanerID, appointmentID)
		switch {
		case errors.Is(err, ErrNotFound):
			r = &Request{ID: types.NewID(), CleanerID: cleanerID, AppointmentID: appointmentID, Status: RequestPending, CreatedAt: now}
		case err != nil:
			return nil, err
		case r.Status == RequestApproved:
			return nil, ErrDuplicateRequest
		}
		next := a.Clone()
		next.EmployeesAssigned = append(next.EmployeesAssigned, cleanerID)
		next.Status = next.StaffingStatus()
		decide(r, RequestApproved, now)
		return change(a, next, r, appointment.ActorOwner, a.OwnerID, "cleaner assigned", now), nil
	})
	if err != nil {
		return nil, err
	}
	return c.Request, nil
}

func (s *Service) ListRequests(ctx context.Context, appointmentID types.ID) ([]*Request, error) {
	if _, err := s.store.GetAppointment(ctx, appointmentID); err != nil {
		return nil, err
	}
	return s.store.ListRequests(ctx, appointmentID)
}

func (s *Service) ListForCleaner(ctx context.Context, cleanerID types.ID) ([]*Request, error) {
	return s.store.ListRequestsByCleaner(ctx, cleanerID)
}

// acceptingRequests admits only appointments that are effectively OPEN with a free slot.
func acceptingRequests(a *appointment.Appointment, now time.Time) error {
	switch a.EffectiveStatus(now) {
	case appointment.StatusOpen:
		if a.OpenSlots() <= 0 {
			return ErrFullyStaffed
		}
		return nil
	case appointment.StatusStaffed:
		return ErrFullyStaffed
	default:
		return ErrInvalidState
	}
}

func staffable(a *appointment.Appointment, now time.Time) error {
	switch a.EffectiveStatus(now) {
	case appointment.StatusOpen, appointment.StatusStaffed:
		return nil
	default:
		return ErrInvalidState
	}
}

func decide(r *Request, to RequestStatus, now time.Time) {
	r.Previous = r.Status
	r.Status = to
	r.UpdatedAt = now
}

func change(prev, next *appointment.Appointment, r *Request, actorType string, actorID types.ID, note string, now time.Time) *Change {
	return &Change{
		Appointment: next,
		Version:     prev.StaffingVersion,
		Request:     r,
		Event: &appointment.Event{
			AppointmentID: prev.ID,
			FromStatus:    prev.Status,
			ToStatus:      next.Status,
			ActorType:     actorType,
			ActorID:       &actorID,
			Note:          note,
			CreatedAt:     now,
		},
	}
}

func without(ids []types.ID, id types.ID) []types.ID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
