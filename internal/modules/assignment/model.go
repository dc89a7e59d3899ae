// README: Cleaner requests for appointments and their decision states.
package assignment

import (
	"errors"
	"time"

	"tidyhome/internal/types"
)

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestDenied   RequestStatus = "denied"
)

var (
	ErrFullyStaffed     = errors.New("appointment is fully staffed")
	ErrDuplicateRequest = errors.New("cleaner already has a live request for this appointment")
	ErrNotFound         = errors.New("request not found")
	ErrInvalidState     = errors.New("appointment does not accept staffing changes")
	ErrConflict         = errors.New("staffing changed concurrently")
	ErrBadRequest       = errors.New("bad request")
)

// Request is a cleaner's bid to work an appointment. Rows are never deleted;
// at most one exists per cleaner and appointment and it is reactivated instead.
type Request struct {
	ID            types.ID
	CleanerID     types.ID
	AppointmentID types.ID
	Status        RequestStatus
	// Previous is the status before the latest decision. It is an audit field;
	// undo always returns the request to pending.
	Previous  RequestStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Live reports whether the request still counts against the one-per-pair rule.
func (r *Request) Live() bool {
	return r.Status == RequestPending || r.Status == RequestApproved
}
