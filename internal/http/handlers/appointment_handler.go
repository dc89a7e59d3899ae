// README: Appointment handlers for booking, option changes and the owner-side lifecycle.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type AppointmentService interface {
	Book(ctx context.Context, cmd appointment.BookCommand) ([]types.ID, error)
	Get(ctx context.Context, id types.ID) (*appointment.Appointment, error)
	ListByHome(ctx context.Context, homeID types.ID) ([]*appointment.Appointment, error)
	ListForCleaner(ctx context.Context, cleanerID types.ID) ([]*appointment.Appointment, error)
	Events(ctx context.Context, id types.ID) ([]*appointment.Event, error)
	UpdateOptions(ctx context.Context, cmd appointment.UpdateOptionsCommand) (*appointment.Appointment, error)
	Cancel(ctx context.Context, cmd appointment.CancelCommand) (appointment.CancelResult, error)
	MarkCompleted(ctx context.Context, id types.ID, actorID *types.ID) error
	ConfirmPayment(ctx context.Context, id types.ID) error
	AmountDue(ctx context.Context, ownerID types.ID) (types.Money, error)
}

type AppointmentHandler struct {
	appointments AppointmentService
}

func NewAppointmentHandler(svc AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: svc}
}

type bookReq struct {
	OwnerID         string   `json:"owner_id"`
	Dates           []string `json:"dates"`
	TimeWindow      *string  `json:"time_window"`
	Sheets          *string  `json:"sheets"`
	Towels          *string  `json:"towels"`
	PaymentIntentID string   `json:"payment_intent_id"`
}

type updateOptionsReq struct {
	TimeWindow *string `json:"time_window"`
	Sheets     *string `json:"sheets"`
	Towels     *string `json:"towels"`
}

type eventView struct {
	From      appointment.Status `json:"from"`
	To        appointment.Status `json:"to"`
	ActorType string             `json:"actor_type"`
	ActorID   *types.ID          `json:"actor_id,omitempty"`
	Note      string             `json:"note,omitempty"`
	At        time.Time          `json:"at"`
}

func (h *AppointmentHandler) Book(c *gin.Context) {
	homeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req bookReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.OwnerID) || len(req.Dates) == 0 {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	dates := make([]time.Time, 0, len(req.Dates))
	for _, d := range req.Dates {
		t, err := time.Parse(dateLayout, d)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid date "+d)
			return
		}
		dates = append(dates, t)
	}

	cmd := appointment.BookCommand{
		HomeID:          homeID,
		OwnerID:         types.ID(req.OwnerID),
		Dates:           dates,
		PaymentIntentID: req.PaymentIntentID,
	}
	if req.TimeWindow != nil || req.Sheets != nil || req.Towels != nil {
		opts, ok := parseOptions(deref(req.TimeWindow, string(pricing.WindowAnytime)), deref(req.Sheets, "no"), deref(req.Towels, "no"))
		if !ok {
			writeError(c, http.StatusBadRequest, "invalid service options")
			return
		}
		cmd.Options = &opts
	}

	ids, err := h.appointments.Book(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"appointment_ids": ids, "status": appointment.StatusOpen})
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	a, err := h.appointments.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newAppointmentView(a, time.Now()))
}

func (h *AppointmentHandler) ListByHome(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.appointments.ListByHome(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"appointments": appointmentViews(list)})
}

func (h *AppointmentHandler) ListForCleaner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.appointments.ListForCleaner(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"appointments": appointmentViews(list)})
}

func (h *AppointmentHandler) Events(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	events, err := h.appointments.Events(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]eventView, 0, len(events))
	for _, e := range events {
		out = append(out, eventView{From: e.FromStatus, To: e.ToStatus, ActorType: e.ActorType, ActorID: e.ActorID, Note: e.Note, At: e.CreatedAt})
	}
	writeJSON(c, http.StatusOK, map[string]any{"events": out})
}

func (h *AppointmentHandler) UpdateOptions(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateOptionsReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cmd := appointment.UpdateOptionsCommand{AppointmentID: id}
	if req.TimeWindow != nil {
		w, err := pricing.ParseTimeWindow(*req.TimeWindow)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid time_window")
			return
		}
		cmd.TimeWindow = &w
	}
	var err error
	if cmd.BringSheets, err = optionalToggle(req.Sheets); err != nil {
		writeError(c, http.StatusBadRequest, "invalid sheets")
		return
	}
	if cmd.BringTowels, err = optionalToggle(req.Towels); err != nil {
		writeError(c, http.StatusBadRequest, "invalid towels")
		return
	}

	a, err := h.appointments.UpdateOptions(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newAppointmentView(a, time.Now()))
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	role, actorID := actor(c, appointment.ActorOwner)
	res, err := h.appointments.Cancel(c.Request.Context(), appointment.CancelCommand{
		AppointmentID: id,
		ActorType:     role,
		ActorID:       actorID,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{
		"status":           appointment.StatusCancelled,
		"cancellation_fee": res.Fee,
		"cancelled_at":     res.CancelledAt,
	})
}

func (h *AppointmentHandler) Complete(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	_, actorID := actor(c, appointment.ActorCleaner)
	if err := h.appointments.MarkCompleted(c.Request.Context(), id, actorID); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": appointment.StatusCompletedUnpaid})
}

func (h *AppointmentHandler) Pay(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.appointments.ConfirmPayment(c.Request.Context(), id); err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"status": appointment.StatusCompletedPaid})
}

func (h *AppointmentHandler) AmountDue(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	due, err := h.appointments.AmountDue(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"owner_id": id, "amount_due": due})
}

// Quote prices a hypothetical cleaning without touching any home.
func (h *AppointmentHandler) Quote(c *gin.Context) {
	var req struct {
		NumBeds    int    `json:"num_beds"`
		NumBaths   int    `json:"num_baths"`
		TimeWindow string `json:"time_window"`
		Sheets     string `json:"sheets"`
		Towels     string `json:"towels"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if req.NumBeds < 1 || req.NumBaths < 1 {
		writeError(c, http.StatusBadRequest, "num_beds and num_baths must be positive")
		return
	}
	opts, ok := parseOptions(req.TimeWindow, req.Sheets, req.Towels)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid service options")
		return
	}
	b := pricing.Itemize(req.NumBeds, req.NumBaths, opts.TimeWindow, opts.BringSheets, opts.BringTowels)
	writeJSON(c, http.StatusOK, map[string]any{
		"price":            types.USD(b.Total),
		"room_base":        b.RoomBase,
		"window_surcharge": b.WindowSurcharge,
		"add_ons":          b.AddOns,
		"employees_needed": pricing.EmployeesNeeded(req.NumBeds, req.NumBaths),
	})
}

func optionalToggle(s *string) (*bool, error) {
	if s == nil {
		return nil, nil
	}
	v, err := pricing.ParseToggle(*s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func deref(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
