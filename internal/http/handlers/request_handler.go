// README: Cleaner request handlers; every staffing change goes through the assignment service.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"tidyhome/internal/modules/assignment"
	"tidyhome/internal/types"
)

type AssignmentService interface {
	RequestJob(ctx context.Context, cleanerID, appointmentID types.ID) (*assignment.Request, error)
	ApproveRequest(ctx context.Context, requestID types.ID) (*assignment.Request, error)
	DenyRequest(ctx context.Context, cleanerID, appointmentID types.ID) (*assignment.Request, error)
	UndoRequestChoice(ctx context.Context, cleanerID, appointmentID types.ID) (*assignment.Request, error)
	Unassign(ctx context.Context, cleanerID, appointmentID types.ID) error
	Assign(ctx context.Context, cleanerID, appointmentID types.ID) (*assignment.Request, error)
	ListRequests(ctx context.Context, appointmentID types.ID) ([]*assignment.Request, error)
	ListForCleaner(ctx context.Context, cleanerID types.ID) ([]*assignment.Request, error)
}

type RequestHandler struct {
	assignments AssignmentService
}

func NewRequestHandler(svc AssignmentService) *RequestHandler {
	return &RequestHandler{assignments: svc}
}

type cleanerReq struct {
	CleanerID string `json:"cleaner_id"`
}

// bindCleaner reads the appointment id from the path and the cleaner from the body.
func bindCleaner(c *gin.Context) (types.ID, types.ID, bool) {
	appointmentID, ok := pathID(c, "id")
	if !ok {
		return "", "", false
	}
	var req cleanerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return "", "", false
	}
	if !isValidID(req.CleanerID) {
		writeError(c, http.StatusBadRequest, "invalid cleaner_id")
		return "", "", false
	}
	return types.ID(req.CleanerID), appointmentID, true
}

func (h *RequestHandler) Request(c *gin.Context) {
	cleanerID, appointmentID, ok := bindCleaner(c)
	if !ok {
		return
	}
	r, err := h.assignments.RequestJob(c.Request.Context(), cleanerID, appointmentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, newRequestView(r))
}

func (h *RequestHandler) Approve(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	r, err := h.assignments.ApproveRequest(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Deny(c *gin.Context) {
	cleanerID, appointmentID, ok := bindCleaner(c)
	if !ok {
		return
	}
	r, err := h.assignments.DenyRequest(c.Request.Context(), cleanerID, appointmentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Undo(c *gin.Context) {
	cleanerID, appointmentID, ok := bindCleaner(c)
	if !ok {
		return
	}
	r, err := h.assignments.UndoRequestChoice(c.Request.Context(), cleanerID, appointmentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Assign(c *gin.Context) {
	cleanerID, appointmentID, ok := bindCleaner(c)
	if !ok {
		return
	}
	r, err := h.assignments.Assign(c.Request.Context(), cleanerID, appointmentID)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newRequestView(r))
}

func (h *RequestHandler) Unassign(c *gin.Context) {
	cleanerID, appointmentID, ok := bindCleaner(c)
	if !ok {
		return
	}
	if err := h.assignments.Unassign(c.Request.Context(), cleanerID, appointmentID); err != nil {
		writeServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RequestHandler) ListForAppointment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.assignments.ListRequests(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": requestViews(list)})
}

func (h *RequestHandler) ListForCleaner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.assignments.ListForCleaner(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"requests": requestViews(list)})
}
