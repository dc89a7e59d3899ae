// README: Appointment aggregate and lifecycle status definitions.
package appointment

import (
	"errors"
	"time"

	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type Status string

const (
	StatusNone            Status = "none"
	StatusOpen            Status = "open"
	StatusStaffed         Status = "staffed"
	StatusPastDue         Status = "past_due"
	StatusCompletedUnpaid Status = "completed_unpaid"
	StatusCompletedPaid   Status = "completed_paid"
	StatusCancelled       Status = "cancelled"
)

var (
	ErrInvalidState = errors.New("invalid state transition")
	ErrNotFound     = errors.New("appointment not found")
	ErrConflict     = errors.New("appointment state conflict")
	ErrLocked       = errors.New("appointment options are locked within 7 days of the cleaning")
	ErrBadRequest   = errors.New("bad request")
	ErrNoPayment    = errors.New("appointment has no payment method on file")
)

const (
	// LockWindow is how long before the cleaning linens become immutable and
	// cancellation starts costing a fee.
	LockWindow = 7 * 24 * time.Hour
	// CancellationFee is charged for cancelling inside LockWindow.
	CancellationFee int64 = 25
)

type Appointment struct {
	ID                types.ID
	HomeID            types.ID
	OwnerID           types.ID
	Date              time.Time
	Price             types.Money
	EmployeesNeeded   int
	EmployeesAssigned []types.ID
	Status            Status
	StaffingVersion   int
	Paid              bool
	Completed         bool
	BringSheets       bool
	BringTowels       bool
	TimeWindow        pricing.TimeWindow
	PaymentIntentID   string
	CancellationFee   types.Money
	CreatedAt         time.Time
	CancelledAt       *time.Time
	CompletedAt       *time.Time
	PaidAt            *time.Time
}

type Event struct {
	ID            int64
	AppointmentID types.ID
	FromStatus    Status
	ToStatus      Status
	ActorType     string
	ActorID       *types.ID
	Note          string
	CreatedAt     time.Time
}

const (
	ActorOwner   = "owner"
	ActorCleaner = "cleaner"
	ActorSystem  = "system"
)

// AllowedTransitions represents the appointment lifecycle as code. PAST_DUE is
// never stored; it is derived from the date by EffectiveStatus.
var AllowedTransitions = map[Status][]Status{
	StatusOpen:            {StatusStaffed, StatusCancelled, StatusPastDue},
	StatusStaffed:         {StatusOpen, StatusCancelled, StatusPastDue},
	StatusPastDue:         {StatusCompletedUnpaid},
	StatusCompletedUnpaid: {StatusCompletedPaid},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompletedPaid || s == StatusCancelled
}

// Day truncates t to its UTC calendar day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EffectiveStatus reports PAST_DUE for open or staffed appointments whose day
// is before now's day.
func (a *Appointment) EffectiveStatus(now time.Time) Status {
	if (a.Status == StatusOpen || a.Status == StatusStaffed) && Day(now).After(Day(a.Date)) {
		return StatusPastDue
	}
	return a.Status
}

func (a *Appointment) InLockWindow(now time.Time) bool {
	return Day(a.Date).Sub(now) < LockWindow
}

func (a *Appointment) Options() pricing.Options {
	return pricing.Options{
		TimeWindow:  a.TimeWindow,
		BringSheets: a.BringSheets,
		BringTowels: a.BringTowels,
	}
}

func (a *Appointment) IsAssigned(cleanerID types.ID) bool {
	for _, id := range a.EmployeesAssigned {
		if id == cleanerID {
			return true
		}
	}
	return false
}

func (a *Appointment) OpenSlots() int {
	return a.EmployeesNeeded - len(a.EmployeesAssigned)
}

// StaffingStatus is the stored status implied by the current assignment count.
func (a *Appointment) StaffingStatus() Status {
	if len(a.EmployeesAssigned) >= a.EmployeesNeeded {
		return StatusStaffed
	}
	return StatusOpen
}

// Clone returns a deep copy safe to mutate.
func (a *Appointment) Clone() *Appointment {
	cp := *a
	cp.EmployeesAssigned = append([]types.ID(nil), a.EmployeesAssigned...)
	return &cp
}
