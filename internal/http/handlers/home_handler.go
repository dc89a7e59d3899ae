// README: Home handlers for create/get/update/list.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type HomeService interface {
	Create(ctx context.Context, cmd home.CreateCommand) (types.ID, error)
	Get(ctx context.Context, id types.ID) (*home.Home, error)
	ListByOwner(ctx context.Context, ownerID types.ID) ([]*home.Home, error)
	Update(ctx context.Context, cmd home.UpdateCommand) (*home.Home, error)
}

type HomeHandler struct {
	homes HomeService
}

func NewHomeHandler(svc HomeService) *HomeHandler {
	return &HomeHandler{homes: svc}
}

type addressReq struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zipcode string `json:"zipcode"`
}

type createHomeReq struct {
	OwnerID      string     `json:"owner_id"`
	Nickname     string     `json:"nickname"`
	Address      addressReq `json:"address"`
	NumBeds      int        `json:"num_beds"`
	NumBaths     int        `json:"num_baths"`
	TimeWindow   string     `json:"time_window"`
	Sheets       string     `json:"sheets"`
	Towels       string     `json:"towels"`
	AccessMethod string     `json:"access_method"`
	AccessDetail string     `json:"access_detail"`
	ContactPhone string     `json:"contact_phone"`
	SpecialNotes string     `json:"special_notes"`
}

type updateHomeReq struct {
	Nickname     *string     `json:"nickname"`
	Address      *addressReq `json:"address"`
	NumBeds      *int        `json:"num_beds"`
	NumBaths     *int        `json:"num_baths"`
	TimeWindow   *string     `json:"time_window"`
	Sheets       *string     `json:"sheets"`
	Towels       *string     `json:"towels"`
	AccessMethod *string     `json:"access_method"`
	AccessDetail *string     `json:"access_detail"`
	ContactPhone *string     `json:"contact_phone"`
	SpecialNotes *string     `json:"special_notes"`
}

type homeView struct {
	ID           types.ID           `json:"id"`
	OwnerID      types.ID           `json:"owner_id"`
	Nickname     string             `json:"nickname"`
	Address      addressReq         `json:"address"`
	Coordinate   *types.Point       `json:"coordinate"`
	NumBeds      int                `json:"num_beds"`
	NumBaths     int                `json:"num_baths"`
	TimeWindow   pricing.TimeWindow `json:"time_window"`
	Sheets       bool               `json:"sheets"`
	Towels       bool               `json:"towels"`
	AccessMethod home.AccessMethod  `json:"access_method"`
	ContactPhone string             `json:"contact_phone"`
	SpecialNotes string             `json:"special_notes"`
}

func newHomeView(h *home.Home) homeView {
	return homeView{
		ID:           h.ID,
		OwnerID:      h.OwnerID,
		Nickname:     h.Nickname,
		Address:      addressReq(h.Address),
		Coordinate:   h.Coordinate,
		NumBeds:      h.NumBeds,
		NumBaths:     h.NumBaths,
		TimeWindow:   h.TimeWindowDefault,
		Sheets:       h.SheetsDefault,
		Towels:       h.TowelsDefault,
		AccessMethod: h.Access.Method,
		ContactPhone: h.ContactPhone,
		SpecialNotes: h.SpecialNotes,
	}
}

// validPhone accepts 10-digit US numbers with common punctuation.
func validPhone(s string) bool {
	digits := 0
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case strings.ContainsRune(" ()-.+", c):
		default:
			return false
		}
	}
	return digits == 10 || (digits == 11 && strings.HasPrefix(strings.TrimSpace(s), "+1"))
}

// parseOptions treats an empty window as anytime.
func parseOptions(window, sheets, towels string) (pricing.Options, bool) {
	if strings.TrimSpace(window) == "" {
		window = string(pricing.WindowAnytime)
	}
	w, err := pricing.ParseTimeWindow(window)
	if err != nil {
		return pricing.Options{}, false
	}
	s, err := pricing.ParseToggle(sheets)
	if err != nil {
		return pricing.Options{}, false
	}
	t, err := pricing.ParseToggle(towels)
	if err != nil {
		return pricing.Options{}, false
	}
	return pricing.Options{TimeWindow: w, BringSheets: s, BringTowels: t}, true
}

func (h *HomeHandler) Create(c *gin.Context) {
	var req createHomeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidID(req.OwnerID) || req.NumBeds < 1 || req.NumBaths < 1 {
		writeError(c, http.StatusBadRequest, "missing fields")
		return
	}
	if !home.ValidZip(strings.TrimSpace(req.Address.Zipcode)) {
		writeError(c, http.StatusBadRequest, "invalid zipcode")
		return
	}
	if req.ContactPhone != "" && !validPhone(req.ContactPhone) {
		writeError(c, http.StatusBadRequest, "invalid contact phone")
		return
	}
	opts, ok := parseOptions(req.TimeWindow, req.Sheets, req.Towels)
	if !ok {
		writeError(c, http.StatusBadRequest, "invalid service options")
		return
	}
	id, err := h.homes.Create(c.Request.Context(), home.CreateCommand{
		OwnerID:      types.ID(req.OwnerID),
		Nickname:     req.Nickname,
		Address:      home.Address(req.Address),
		NumBeds:      req.NumBeds,
		NumBaths:     req.NumBaths,
		Defaults:     opts,
		Access:       home.Access{Method: home.AccessMethod(strings.ToLower(req.AccessMethod)), Detail: req.AccessDetail},
		ContactPhone: req.ContactPhone,
		SpecialNotes: req.SpecialNotes,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, map[string]any{"home_id": id})
}

func (h *HomeHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	got, err := h.homes.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newHomeView(got))
}

func (h *HomeHandler) ListByOwner(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	list, err := h.homes.ListByOwner(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	out := make([]homeView, 0, len(list))
	for _, x := range list {
		out = append(out, newHomeView(x))
	}
	writeJSON(c, http.StatusOK, map[string]any{"homes": out})
}

func (h *HomeHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req updateHomeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	cur, err := h.homes.Get(c.Request.Context(), id)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	cmd := home.UpdateCommand{
		HomeID:       id,
		Nickname:     req.Nickname,
		NumBeds:      req.NumBeds,
		NumBaths:     req.NumBaths,
		SpecialNotes: req.SpecialNotes,
	}
	if req.Address != nil {
		if !home.ValidZip(strings.TrimSpace(req.Address.Zipcode)) {
			writeError(c, http.StatusBadRequest, "invalid zipcode")
			return
		}
		addr := home.Address(*req.Address)
		cmd.Address = &addr
	}
	if req.ContactPhone != nil {
		if *req.ContactPhone != "" && !validPhone(*req.ContactPhone) {
			writeError(c, http.StatusBadRequest, "invalid contact phone")
			return
		}
		cmd.ContactPhone = req.ContactPhone
	}
	if req.TimeWindow != nil || req.Sheets != nil || req.Towels != nil {
		opts := cur.DefaultOptions()
		window, sheets, towels := string(opts.TimeWindow), boolToggle(opts.BringSheets), boolToggle(opts.BringTowels)
		if req.TimeWindow != nil {
			window = *req.TimeWindow
		}
		if req.Sheets != nil {
			sheets = *req.Sheets
		}
		if req.Towels != nil {
			towels = *req.Towels
		}
		next, ok := parseOptions(window, sheets, towels)
		if !ok {
			writeError(c, http.StatusBadRequest, "invalid service options")
			return
		}
		cmd.Defaults = &next
	}
	if req.AccessMethod != nil || req.AccessDetail != nil {
		access := cur.Access
		if req.AccessMethod != nil {
			access.Method = home.AccessMethod(strings.ToLower(*req.AccessMethod))
		}
		if req.AccessDetail != nil {
			access.Detail = *req.AccessDetail
		}
		cmd.Access = &access
	}

	updated, err := h.homes.Update(c.Request.Context(), cmd)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, newHomeView(updated))
}

func boolToggle(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
