// README: Base handler utilities (JSON helpers, error mapping, response views).
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	stripe "github.com/stripe/stripe-go/v82"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/assignment"
	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/location"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/payment"
	"tidyhome/internal/types"
)

const dateLayout = "2006-01-02"

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts the UUIDs we mint and short opaque ids from upstream.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps module sentinel errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	var stripeErr *stripe.Error
	switch {
	case errors.As(err, &stripeErr):
		writeError(c, http.StatusPaymentRequired, stripeErr.Msg)
	case errors.Is(err, payment.ErrNotCaptured), errors.Is(err, appointment.ErrNoPayment):
		writeError(c, http.StatusPaymentRequired, err.Error())
	case errors.Is(err, appointment.ErrBadRequest), errors.Is(err, assignment.ErrBadRequest),
		errors.Is(err, home.ErrBadRequest), errors.Is(err, pricing.ErrBadRequest),
		errors.Is(err, location.ErrUnknownSortMode):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, home.ErrUnresolvableZip):
		writeError(c, http.StatusUnprocessableEntity, home.ErrUnresolvableZip.Error())
	case errors.Is(err, appointment.ErrNotFound), errors.Is(err, assignment.ErrNotFound),
		errors.Is(err, home.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appointment.ErrInvalidState), errors.Is(err, appointment.ErrConflict),
		errors.Is(err, appointment.ErrLocked), errors.Is(err, assignment.ErrInvalidState),
		errors.Is(err, assignment.ErrConflict), errors.Is(err, assignment.ErrFullyStaffed),
		errors.Is(err, assignment.ErrDuplicateRequest), errors.Is(err, assignment.ErrLockTimeout):
		writeError(c, http.StatusConflict, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func pathID(c *gin.Context, name string) (types.ID, bool) {
	v := c.Param(name)
	if !isValidID(v) {
		writeError(c, http.StatusBadRequest, "invalid "+name)
		return "", false
	}
	return types.ID(v), true
}

// optionalPoint reads lat/lng query parameters; both absent means unknown.
func optionalPoint(c *gin.Context) (*types.Point, bool) {
	latS, lngS := c.Query("lat"), c.Query("lng")
	if latS == "" && lngS == "" {
		return nil, true
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lng, err2 := strconv.ParseFloat(lngS, 64)
	if err1 != nil || err2 != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(c, http.StatusBadRequest, "invalid lat/lng")
		return nil, false
	}
	return &types.Point{Lat: lat, Lng: lng}, true
}

type appointmentView struct {
	ID                types.ID           `json:"id"`
	HomeID            types.ID           `json:"home_id"`
	Date              string             `json:"date"`
	Price             types.Money        `json:"price"`
	Status            appointment.Status `json:"status"`
	EmployeesNeeded   int                `json:"employees_needed"`
	EmployeesAssigned []types.ID         `json:"employees_assigned"`
	TimeWindow        pricing.TimeWindow `json:"time_window"`
	BringSheets       bool               `json:"bring_sheets"`
	BringTowels       bool               `json:"bring_towels"`
	Paid              bool               `json:"paid"`
	Completed         bool               `json:"completed"`
	CancellationFee   types.Money        `json:"cancellation_fee"`
	OptionsLocked     bool               `json:"options_locked"`
	DistanceKm        *float64           `json:"distance_km,omitempty"`
}

func newAppointmentView(a *appointment.Appointment, now time.Time) appointmentView {
	assigned := a.EmployeesAssigned
	if assigned == nil {
		assigned = []types.ID{}
	}
	return appointmentView{
		ID:                a.ID,
		HomeID:            a.HomeID,
		Date:              a.Date.Format(dateLayout),
		Price:             a.Price,
		Status:            a.EffectiveStatus(now),
		EmployeesNeeded:   a.EmployeesNeeded,
		EmployeesAssigned: assigned,
		TimeWindow:        a.TimeWindow,
		BringSheets:       a.BringSheets,
		BringTowels:       a.BringTowels,
		Paid:              a.Paid,
		Completed:         a.Completed,
		CancellationFee:   a.CancellationFee,
		OptionsLocked:     a.InLockWindow(now),
	}
}

func appointmentViews(list []*appointment.Appointment) []appointmentView {
	now := time.Now()
	out := make([]appointmentView, 0, len(list))
	for _, a := range list {
		out = append(out, newAppointmentView(a, now))
	}
	return out
}

type requestView struct {
	ID            types.ID                 `json:"id"`
	CleanerID     types.ID                 `json:"cleaner_id"`
	AppointmentID types.ID                 `json:"appointment_id"`
	Status        assignment.RequestStatus `json:"status"`
	UpdatedAt     time.Time                `json:"updated_at"`
}

func newRequestView(r *assignment.Request) requestView {
	return requestView{ID: r.ID, CleanerID: r.CleanerID, AppointmentID: r.AppointmentID, Status: r.Status, UpdatedAt: r.UpdatedAt}
}

func requestViews(list []*assignment.Request) []requestView {
	out := make([]requestView, 0, len(list))
	for _, r := range list {
		out = append(out, newRequestView(r))
	}
	return out
}

func rankedViews(list []location.RankedAppointment) []appointmentView {
	now := time.Now()
	out := make([]appointmentView, 0, len(list))
	for _, r := range list {
		v := newAppointmentView(r.Appointment, now)
		v.DistanceKm = r.DistanceKm
		out = append(out, v)
	}
	return out
}

// actor reads the caller identity set by the upstream gateway.
func actor(c *gin.Context, fallback string) (string, *types.ID) {
	role := c.GetHeader("X-Actor-Type")
	switch role {
	case appointment.ActorOwner, appointment.ActorCleaner, appointment.ActorSystem:
	default:
		role = fallback
	}
	if v := c.GetHeader("X-Actor-ID"); isValidID(v) {
		id := types.ID(v)
		return role, &id
	}
	return role, nil
}
