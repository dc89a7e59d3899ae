// README: Appointment service implements booking, option edits, cancellation, completion and payment.
package appointment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type AppointmentStore interface {
	Create(ctx context.Context, a *Appointment) error
	Get(ctx context.Context, id types.ID) (*Appointment, error)
	ListByHome(ctx context.Context, homeID types.ID) ([]*Appointment, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*Appointment, error)
	ListByCleaner(ctx context.Context, cleanerID types.ID) ([]*Appointment, error)
	ListOpenFrom(ctx context.Context, day time.Time) ([]*Appointment, error)
	ListPastDueUnrecorded(ctx context.Context, day time.Time) ([]*Appointment, error)
	ListByStatus(ctx context.Context, status Status) ([]*Appointment, error)
	Update(ctx context.Context, a *Appointment, version int) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, appointmentID types.ID) ([]*Event, error)
}

type Homes interface {
	Get(ctx context.Context, id types.ID) (*home.Home, error)
}

type Pricing interface {
	Estimate(ctx context.Context, q pricing.Quote) (types.Money, error)
}

// Payments captures a previously authorized charge and returns the provider's
// reference for it.
type Payments interface {
	Capture(ctx context.Context, paymentIntentID string, amount types.Money) (string, error)
}

type Service struct {
	store    AppointmentStore
	homes    Homes
	pricing  Pricing
	payments Payments
	log      *slog.Logger
	now      func() time.Time
}

func NewService(store AppointmentStore, homes Homes, pricing Pricing, payments Payments, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:    store,
		homes:    homes,
		pricing:  pricing,
		payments: payments,
		log:      log.With("module", "appointment"),
		now:      time.Now,
	}
}

type BookCommand struct {
	HomeID          types.ID
	OwnerID         types.ID
	Dates           []time.Time
	Options         *pricing.Options
	PaymentIntentID string
}

type UpdateOptionsCommand struct {
	AppointmentID types.ID
	TimeWindow    *pricing.TimeWindow
	BringSheets   *bool
	BringTowels   *bool
}

type CancelCommand struct {
	AppointmentID types.ID
	ActorType     string
	ActorID       *types.ID
}

type CancelResult struct {
	Fee         types.Money
	CancelledAt time.Time
}

// Book creates one OPEN appointment per requested day. Prices come from the
// home's size and the chosen options, falling back to the home defaults.
func (s *Service) Book(ctx context.Context, cmd BookCommand) ([]types.ID, error) {
	if cmd.HomeID == "" || len(cmd.Dates) == 0 {
		return nil, ErrBadRequest
	}
	h, err := s.homes.Get(ctx, cmd.HomeID)
	if err != nil {
		return nil, err
	}
	if cmd.OwnerID != "" && cmd.OwnerID != h.OwnerID {
		return nil, ErrBadRequest
	}
	opts := h.DefaultOptions()
	if cmd.Options != nil {
		opts = *cmd.Options
	}
	if !opts.TimeWindow.Valid() {
		return nil, ErrBadRequest
	}

	now := s.now()
	today := Day(now)
	seen := make(map[time.Time]struct{}, len(cmd.Dates))
	days := make([]time.Time, 0, len(cmd.Dates))
	for _, d := range cmd.Dates {
		day := Day(d)
		if day.Before(today) {
			return nil, ErrBadRequest
		}
		if _, dup := seen[day]; dup {
			return nil, ErrBadRequest
		}
		seen[day] = struct{}{}
		days = append(days, day)
	}

	price, err := s.pricing.Estimate(ctx, pricing.Quote{NumBeds: h.NumBeds, NumBaths: h.NumBaths, Options: opts})
	if err != nil {
		return nil, err
	}

	ids := make([]types.ID, 0, len(days))
	for _, day := range days {
		a := &Appointment{
			ID:                types.NewID(),
			HomeID:            h.ID,
			OwnerID:           h.OwnerID,
			Date:              day,
			Price:             price,
			EmployeesNeeded:   pricing.EmployeesNeeded(h.NumBeds, h.NumBaths),
			EmployeesAssigned: []types.ID{},
			Status:            StatusOpen,
			BringSheets:       opts.BringSheets,
			BringTowels:       opts.BringTowels,
			TimeWindow:        opts.TimeWindow,
			PaymentIntentID:   cmd.PaymentIntentID,
			CancellationFee:   types.USD(0),
			CreatedAt:         now,
		}
		if err := s.store.Create(ctx, a); err != nil {
			return ids, err
		}
		owner := h.OwnerID
		s.appendEvent(ctx, &Event{
			AppointmentID: a.ID,
			FromStatus:    StatusNone,
			ToStatus:      StatusOpen,
			ActorType:     ActorOwner,
			ActorID:       &owner,
			CreatedAt:     now,
		})
		ids = append(ids, a.ID)
	}
	s.log.Info("appointments booked", "home_id", h.ID, "count", len(ids), "price", price.Amount)
	return ids, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Appointment, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) ListByHome(ctx context.Context, homeID types.ID) ([]*Appointment, error) {
	return s.store.ListByHome(ctx, homeID)
}

func (s *Service) ListForCleaner(ctx context.Context, cleanerID types.ID) ([]*Appointment, error) {
	return s.store.ListByCleaner(ctx, cleanerID)
}

// ListOpen returns appointments cleaners can still request.
func (s *Service) ListOpen(ctx context.Context) ([]*Appointment, error) {
	now := s.now()
	all, err := s.store.ListOpenFrom(ctx, now)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, a := range all {
		if a.EffectiveStatus(now) == StatusOpen {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Service) Events(ctx context.Context, id types.ID) ([]*Event, error) {
	if _, err := s.store.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListEvents(ctx, id)
}

// UpdateOptions changes the time window or linens and reprices. Linens cannot
// change inside LockWindow; a request that changes nothing is a no-op.
func (s *Service) UpdateOptions(ctx context.Context, cmd UpdateOptionsCommand) (*Appointment, error) {
	a, err := s.store.Get(ctx, cmd.AppointmentID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	eff := a.EffectiveStatus(now)
	if eff != StatusOpen && eff != StatusStaffed {
		return nil, ErrInvalidState
	}

	next := a.Options()
	if cmd.TimeWindow != nil {
		if !cmd.TimeWindow.Valid() {
			return nil, ErrBadRequest
		}
		next.TimeWindow = *cmd.TimeWindow
	}
	if cmd.BringSheets != nil {
		next.BringSheets = *cmd.BringSheets
	}
	if cmd.BringTowels != nil {
		next.BringTowels = *cmd.BringTowels
	}
	if next == a.Options() {
		return a, nil
	}
	linensChanged := next.BringSheets != a.BringSheets || next.BringTowels != a.BringTowels
	if linensChanged && a.InLockWindow(now) {
		return nil, ErrLocked
	}

	h, err := s.homes.Get(ctx, a.HomeID)
	if err != nil {
		return nil, err
	}
	price, err := s.pricing.Estimate(ctx, pricing.Quote{NumBeds: h.NumBeds, NumBaths: h.NumBaths, Options: next})
	if err != nil {
		return nil, err
	}

	updated := a.Clone()
	updated.TimeWindow = next.TimeWindow
	updated.BringSheets = next.BringSheets
	updated.BringTowels = next.BringTowels
	updated.Price = price
	ok, err := s.store.Update(ctx, updated, a.StaffingVersion)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrConflict
	}
	updated.StaffingVersion++
	s.log.Info("appointment options updated", "appointment_id", a.ID, "price", price.Amount)
	return updated, nil
}

// Cancel moves an OPEN or STAFFED appointment to CANCELLED. Cancelling inside
// LockWindow records CancellationFee on the appointment.
func (s *Service) Cancel(ctx context.Context, cmd CancelCommand) (CancelResult, error) {
	a, err := s.store.Get(ctx, cmd.AppointmentID)
	if err != nil {
		return CancelResult{}, err
	}
	now := s.now()
	from := a.EffectiveStatus(now)
	if !CanTransition(from, StatusCancelled) {
		return CancelResult{}, ErrInvalidState
	}

	fee := types.USD(0)
	if a.InLockWindow(now) {
		fee = types.USD(CancellationFee)
	}
	updated := a.Clone()
	updated.Status = StatusCancelled
	updated.CancellationFee = fee
	updated.CancelledAt = &now
	ok, err := s.store.Update(ctx, updated, a.StaffingVersion)
	if err != nil {
		return CancelResult{}, err
	}
	if !ok {
		return CancelResult{}, ErrConflict
	}
	actorType := cmd.ActorType
	if actorType == "" {
		actorType = ActorOwner
	}
	s.appendEvent(ctx, &Event{
		AppointmentID: a.ID,
		FromStatus:    from,
		ToStatus:      StatusCancelled,
		ActorType:     actorType,
		ActorID:       cmd.ActorID,
		CreatedAt:     now,
	})
	s.log.Info("appointment cancelled", "appointment_id", a.ID, "fee", fee.Amount)
	return CancelResult{Fee: fee, CancelledAt: now}, nil
}

// MarkCompleted records that the cleaning happened. Only past-due appointments
// can be completed.
func (s *Service) MarkCompleted(ctx context.Context, id types.ID, actorID *types.ID) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	now := s.now()
	from := a.EffectiveStatus(now)
	if !CanTransition(from, StatusCompletedUnpaid) {
		return ErrInvalidState
	}
	updated := a.Clone()
	updated.Status = StatusCompletedUnpaid
	updated.Completed = true
	updated.CompletedAt = &now
	ok, err := s.store.Update(ctx, updated, a.StaffingVersion)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	s.appendEvent(ctx, &Event{
		AppointmentID: a.ID,
		FromStatus:    from,
		ToStatus:      StatusCompletedUnpaid,
		ActorType:     ActorCleaner,
		ActorID:       actorID,
		CreatedAt:     now,
	})
	return nil
}

// ConfirmPayment captures the appointment's charge. A capture failure is
// returned unchanged and leaves the appointment COMPLETED_UNPAID.
func (s *Service) ConfirmPayment(ctx context.Context, id types.ID) error {
	a, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !CanTransition(a.Status, StatusCompletedPaid) {
		return ErrInvalidState
	}
	if a.PaymentIntentID == "" || s.payments == nil {
		return ErrNoPayment
	}
	ref, err := s.payments.Capture(ctx, a.PaymentIntentID, a.Price)
	if err != nil {
		s.log.Warn("payment capture failed", "appointment_id", a.ID, "error", err)
		return err
	}

	now := s.now()
	updated := a.Clone()
	updated.Status = StatusCompletedPaid
	updated.Paid = true
	updated.PaidAt = &now
	ok, err := s.store.Update(ctx, updated, a.StaffingVersion)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Error("payment captured but appointment changed concurrently", "appointment_id", a.ID, "reference", ref)
		return ErrConflict
	}
	s.appendEvent(ctx, &Event{
		AppointmentID: a.ID,
		FromStatus:    StatusCompletedUnpaid,
		ToStatus:      StatusCompletedPaid,
		ActorType:     ActorSystem,
		Note:          ref,
		CreatedAt:     now,
	})
	return nil
}

// AmountDue sums what an owner still owes: unpaid prices of live or completed
// appointments plus fees of cancelled ones.
func (s *Service) AmountDue(ctx context.Context, ownerID types.ID) (types.Money, error) {
	all, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return types.Money{}, err
	}
	total := types.USD(0)
	for _, a := range all {
		switch {
		case a.Status == StatusCancelled:
			total = total.Add(a.CancellationFee)
		case !a.Paid:
			total = total.Add(a.Price)
		}
	}
	return total, nil
}

// RepriceHome recomputes the price of every OPEN or STAFFED appointment of h
// after its size changed. Headcount is left alone so that assignments stay
// within capacity. It returns how many appointments changed price.
func (s *Service) RepriceHome(ctx context.Context, h *home.Home) (int, error) {
	all, err := s.store.ListByHome(ctx, h.ID)
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, a := range all {
		ok, err := s.reprice(ctx, h, a)
		if err != nil {
			return changed, err
		}
		if ok {
			changed++
		}
	}
	return changed, nil
}

// reprice writes the price for a's current options. A lost version check
// re-reads a and starts over, so options or status changed underneath are
// honoured. It reports whether the stored price changed.
func (s *Service) reprice(ctx context.Context, h *home.Home, a *Appointment) (bool, error) {
	for attempt := 0; attempt < 2; attempt++ {
		eff := a.EffectiveStatus(s.now())
		if eff != StatusOpen && eff != StatusStaffed {
			return false, nil
		}
		price, err := s.pricing.Estimate(ctx, pricing.Quote{NumBeds: h.NumBeds, NumBaths: h.NumBaths, Options: a.Options()})
		if err != nil {
			return false, err
		}
		if price == a.Price {
			return false, nil
		}
		updated := a.Clone()
		updated.Price = price
		ok, err := s.store.Update(ctx, updated, a.StaffingVersion)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if a, err = s.store.Get(ctx, a.ID); err != nil {
			return false, err
		}
	}
	return false, ErrConflict
}

// RecordPastDue appends a past_due audit event for appointments whose day has
// passed without completion. It returns how many were recorded.
func (s *Service) RecordPastDue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.store.ListPastDueUnrecorded(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, a := range due {
		if err := s.store.AppendEvent(ctx, &Event{
			AppointmentID: a.ID,
			FromStatus:    a.Status,
			ToStatus:      StatusPastDue,
			ActorType:     ActorSystem,
			CreatedAt:     now,
		}); err != nil {
			return 0, err
		}
	}
	return len(due), nil
}

func (s *Service) ListAwaitingPayment(ctx context.Context) ([]*Appointment, error) {
	return s.store.ListByStatus(ctx, StatusCompletedUnpaid)
}

func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Warn("append appointment event failed", "appointment_id", e.AppointmentID, "error", err)
	}
}
