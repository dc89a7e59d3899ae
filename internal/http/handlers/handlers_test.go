// README: Handler tests against in-memory service fakes.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidyhome/internal/http/handlers"
	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/modules/assignment"
	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/location"
	"tidyhome/internal/types"
)

type fakeHomes struct {
	created home.CreateCommand
	updated home.UpdateCommand
	home    *home.Home
	err     error
}

func (f *fakeHomes) Create(_ context.Context, cmd home.CreateCommand) (types.ID, error) {
	f.created = cmd
	return "home-1", f.err
}

func (f *fakeHomes) Get(_ context.Context, id types.ID) (*home.Home, error) {
	if f.home == nil || f.home.ID != id {
		return nil, home.ErrNotFound
	}
	return f.home, nil
}

func (f *fakeHomes) ListByOwner(_ context.Context, _ types.ID) ([]*home.Home, error) {
	if f.home == nil {
		return nil, nil
	}
	return []*home.Home{f.home}, nil
}

func (f *fakeHomes) Update(_ context.Context, cmd home.UpdateCommand) (*home.Home, error) {
	f.updated = cmd
	return f.home, f.err
}

type fakeAppointments struct {
	booked appointment.BookCommand
	appt   *appointment.Appointment
	err    error
}

func (f *fakeAppointments) Book(_ context.Context, cmd appointment.BookCommand) ([]types.ID, error) {
	f.booked = cmd
	if f.err != nil {
		return nil, f.err
	}
	return []types.ID{"appt-1"}, nil
}

func (f *fakeAppointments) Get(_ context.Context, id types.ID) (*appointment.Appointment, error) {
	if f.appt == nil || f.appt.ID != id {
		return nil, appointment.ErrNotFound
	}
	return f.appt, nil
}

func (f *fakeAppointments) ListByHome(context.Context, types.ID) ([]*appointment.Appointment, error) {
	return []*appointment.Appointment{f.appt}, nil
}

func (f *fakeAppointments) ListForCleaner(context.Context, types.ID) ([]*appointment.Appointment, error) {
	return []*appointment.Appointment{f.appt}, nil
}

func (f *fakeAppointments) Events(context.Context, types.ID) ([]*appointment.Event, error) {
	return nil, nil
}

func (f *fakeAppointments) UpdateOptions(_ context.Context, _ appointment.UpdateOptionsCommand) (*appointment.Appointment, error) {
	return f.appt, f.err
}

func (f *fakeAppointments) Cancel(context.Context, appointment.CancelCommand) (appointment.CancelResult, error) {
	return appointment.CancelResult{Fee: types.USD(appointment.CancellationFee)}, f.err
}

func (f *fakeAppointments) MarkCompleted(context.Context, types.ID, *types.ID) error {
	return f.err
}

func (f *fakeAppointments) ConfirmPayment(context.Context, types.ID) error {
	return f.err
}

func (f *fakeAppointments) AmountDue(context.Context, types.ID) (types.Money, error) {
	return types.USD(325), f.err
}

type fakeAssignments struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeAssignments) record(op string, cleanerID, appointmentID types.ID) (*assignment.Request, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &assignment.Request{ID: "req-1", CleanerID: cleanerID, AppointmentID: appointmentID, Status: assignment.RequestPending}, nil
}

func (f *fakeAssignments) RequestJob(_ context.Context, c, a types.ID) (*assignment.Request, error) {
	return f.record("request", c, a)
}

func (f *fakeAssignments) ApproveRequest(_ context.Context, id types.ID) (*assignment.Request, error) {
	r, err := f.record("approve", "c1", "a1")
	if r != nil {
		r.ID, r.Status = id, assignment.RequestApproved
	}
	return r, err
}

func (f *fakeAssignments) DenyRequest(_ context.Context, c, a types.ID) (*assignment.Request, error) {
	return f.record("deny", c, a)
}

func (f *fakeAssignments) UndoRequestChoice(_ context.Context, c, a types.ID) (*assignment.Request, error) {
	return f.record("undo", c, a)
}

func (f *fakeAssignments) Unassign(_ context.Context, c, a types.ID) error {
	_, err := f.record("unassign", c, a)
	return err
}

func (f *fakeAssignments) Assign(_ context.Context, c, a types.ID) (*assignment.Request, error) {
	return f.record("assign", c, a)
}

func (f *fakeAssignments) ListRequests(context.Context, types.ID) ([]*assignment.Request, error) {
	return nil, f.err
}

func (f *fakeAssignments) ListForCleaner(context.Context, types.ID) ([]*assignment.Request, error) {
	return nil, f.err
}

type fakeRanking struct {
	origins []*types.Point
	jobs    []location.RankedAppointment
}

func (f *fakeRanking) RankOpen(_ context.Context, origin *types.Point, _ location.SortMode) ([]location.RankedAppointment, error) {
	f.origins = append(f.origins, origin)
	return f.jobs, nil
}

func (f *fakeRanking) RankAppointments(_ context.Context, _ []*appointment.Appointment, _ *types.Point, _ location.SortMode) ([]location.RankedAppointment, error) {
	return f.jobs, nil
}

// Watch runs the real watch loop over the fake's fixed job list.
func (f *fakeRanking) Watch(ctx context.Context, positions <-chan types.Point, mode location.SortMode, fn func([]location.RankedAppointment, error)) *location.Subscription {
	resolver := location.NewResolver(nil, noHomes{}, nil, 1, nil)
	return location.NewService(staticOpen{f.jobs}, resolver).Watch(ctx, positions, mode, fn)
}

type noHomes struct{}

func (noHomes) Get(context.Context, types.ID) (*home.Home, error) {
	return nil, home.ErrNotFound
}

type staticOpen struct {
	list []location.RankedAppointment
}

func (s staticOpen) ListOpen(context.Context) ([]*appointment.Appointment, error) {
	out := make([]*appointment.Appointment, 0, len(s.list))
	for _, r := range s.list {
		out = append(out, r.Appointment)
	}
	return out, nil
}

func newTestRouter(h *fakeHomes, a *fakeAppointments, asg *fakeAssignments, rk *fakeRanking) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	homes := handlers.NewHomeHandler(h)
	r.POST("/api/homes", homes.Create)
	r.GET("/api/homes/:id", homes.Get)
	r.PATCH("/api/homes/:id", homes.Update)

	appts := handlers.NewAppointmentHandler(a)
	r.POST("/api/homes/:id/appointments", appts.Book)
	r.GET("/api/appointments/:id", appts.Get)
	r.PATCH("/api/appointments/:id/options", appts.UpdateOptions)
	r.POST("/api/appointments/:id/cancel", appts.Cancel)
	r.POST("/api/appointments/:id/pay", appts.Pay)
	r.GET("/api/owners/:id/amount-due", appts.AmountDue)
	r.POST("/api/quotes", appts.Quote)

	reqs := handlers.NewRequestHandler(asg)
	r.POST("/api/appointments/:id/requests", reqs.Request)
	r.POST("/api/requests/:id/approve", reqs.Approve)
	r.POST("/api/appointments/:id/unassign", reqs.Unassign)

	ranking := handlers.NewRankingHandler(rk, a, nil)
	r.GET("/api/jobs", ranking.OpenJobs)
	r.GET("/api/jobs/watch", ranking.Watch)
	return r
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func sampleAppointment() *appointment.Appointment {
	return &appointment.Appointment{
		ID:              "appt-1",
		HomeID:          "home-1",
		Date:            time.Now().AddDate(0, 1, 0),
		Price:           types.USD(300),
		EmployeesNeeded: 2,
		Status:          appointment.StatusOpen,
		TimeWindow:      "anytime",
	}
}

func TestCreateHome(t *testing.T) {
	h := &fakeHomes{}
	r := newTestRouter(h, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})

	w := doRequest(r, http.MethodPost, "/api/homes", map[string]any{
		"owner_id":      "owner-1",
		"address":       map[string]any{"street": "1 Main St", "city": "Austin", "state": "tx", "zipcode": "78701"},
		"num_beds":      3,
		"num_baths":     2,
		"time_window":   "10-3",
		"sheets":        "yes",
		"towels":        "no",
		"access_method": "code",
		"access_detail": "4321",
		"contact_phone": "(512) 555-0100",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "home-1", decode(t, w)["home_id"])
	assert.True(t, h.created.Defaults.BringSheets)
	assert.Equal(t, home.AccessCode, h.created.Access.Method)
}

func TestCreateHomeValidation(t *testing.T) {
	r := newTestRouter(&fakeHomes{}, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})
	base := func() map[string]any {
		return map[string]any{
			"owner_id": "owner-1", "num_beds": 1, "num_baths": 1,
			"address":       map[string]any{"zipcode": "78701"},
			"access_method": "key",
		}
	}

	cases := map[string]func(m map[string]any){
		"bad zip":    func(m map[string]any) { m["address"] = map[string]any{"zipcode": "787"} },
		"bad phone":  func(m map[string]any) { m["contact_phone"] = "call me" },
		"bad window": func(m map[string]any) { m["time_window"] = "9-5" },
		"no beds":    func(m map[string]any) { m["num_beds"] = 0 },
		"bad owner":  func(m map[string]any) { m["owner_id"] = "a b" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			body := base()
			mutate(body)
			w := doRequest(r, http.MethodPost, "/api/homes", body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateHomeUnresolvableZip(t *testing.T) {
	r := newTestRouter(&fakeHomes{err: home.ErrUnresolvableZip}, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})
	w := doRequest(r, http.MethodPost, "/api/homes", map[string]any{
		"owner_id": "owner-1", "num_beds": 1, "num_baths": 1,
		"address": map[string]any{"zipcode": "00000"}, "access_method": "key",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUpdateHomeMergesDefaults(t *testing.T) {
	h := &fakeHomes{home: &home.Home{ID: "home-1", NumBeds: 2, NumBaths: 1, TimeWindowDefault: "10-3", SheetsDefault: true, Access: home.Access{Method: home.AccessKey}}}
	r := newTestRouter(h, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})

	w := doRequest(r, http.MethodPatch, "/api/homes/home-1", map[string]any{"towels": "yes", "num_beds": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, h.updated.Defaults)
	assert.Equal(t, "10-3", string(h.updated.Defaults.TimeWindow))
	assert.True(t, h.updated.Defaults.BringSheets)
	assert.True(t, h.updated.Defaults.BringTowels)
	require.NotNil(t, h.updated.NumBeds)
	assert.Equal(t, 3, *h.updated.NumBeds)
}

func TestGetHomeNotFound(t *testing.T) {
	r := newTestRouter(&fakeHomes{}, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})
	w := doRequest(r, http.MethodGet, "/api/homes/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookAppointments(t *testing.T) {
	a := &fakeAppointments{}
	r := newTestRouter(&fakeHomes{}, a, &fakeAssignments{}, &fakeRanking{})

	w := doRequest(r, http.MethodPost, "/api/homes/home-1/appointments", map[string]any{
		"owner_id": "owner-1",
		"dates":    []string{"2030-01-02", "2030-01-03"},
		"sheets":   "yes",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, a.booked.Dates, 2)
	require.NotNil(t, a.booked.Options)
	assert.True(t, a.booked.Options.BringSheets)

	w = doRequest(r, http.MethodPost, "/api/homes/home-1/appointments", map[string]any{
		"owner_id": "owner-1",
		"dates":    []string{"02/01/2030"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAppointmentErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{appointment.ErrLocked, http.StatusConflict},
		{appointment.ErrInvalidState, http.StatusConflict},
		{appointment.ErrNoPayment, http.StatusPaymentRequired},
		{appointment.ErrNotFound, http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		a := &fakeAppointments{appt: sampleAppointment(), err: tc.err}
		r := newTestRouter(&fakeHomes{}, a, &fakeAssignments{}, &fakeRanking{})
		w := doRequest(r, http.MethodPost, "/api/appointments/appt-1/pay", nil)
		assert.Equal(t, tc.want, w.Code, tc.err.Error())
	}
}

func TestCancelReturnsFee(t *testing.T) {
	a := &fakeAppointments{appt: sampleAppointment()}
	r := newTestRouter(&fakeHomes{}, a, &fakeAssignments{}, &fakeRanking{})
	w := doRequest(r, http.MethodPost, "/api/appointments/appt-1/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	fee := decode(t, w)["cancellation_fee"].(map[string]any)
	assert.EqualValues(t, 25, fee["amount"])
}

func TestUpdateOptionsRejectsBadToggle(t *testing.T) {
	a := &fakeAppointments{appt: sampleAppointment()}
	r := newTestRouter(&fakeHomes{}, a, &fakeAssignments{}, &fakeRanking{})
	w := doRequest(r, http.MethodPatch, "/api/appointments/appt-1/options", map[string]any{"sheets": "maybe"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQuote(t *testing.T) {
	r := newTestRouter(&fakeHomes{}, &fakeAppointments{}, &fakeAssignments{}, &fakeRanking{})
	w := doRequest(r, http.MethodPost, "/api/quotes", map[string]any{
		"num_beds": 3, "num_baths": 2, "time_window": "10-3", "sheets": "yes",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.EqualValues(t, 355, body["price"].(map[string]any)["amount"])
	assert.EqualValues(t, 2, body["employees_needed"])
}

func TestRequestFlowErrors(t *testing.T) {
	asg := &fakeAssignments{err: assignment.ErrFullyStaffed}
	r := newTestRouter(&fakeHomes{}, &fakeAppointments{}, asg, &fakeRanking{})

	w := doRequest(r, http.MethodPost, "/api/appointments/appt-1/requests", map[string]any{"cleaner_id": "c1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = doRequest(r, http.MethodPost, "/api/appointments/appt-1/requests", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	asg.err = nil
	w = doRequest(r, http.MethodPost, "/api/requests/req-9/approve", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approved", decode(t, w)["status"])

	w = doRequest(r, http.MethodPost, "/api/appointments/appt-1/unassign", map[string]any{"cleaner_id": "c1"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []string{"request", "approve", "unassign"}, asg.calls)
}

func TestOpenJobs(t *testing.T) {
	d := 4.2
	rk := &fakeRanking{jobs: []location.RankedAppointment{{Appointment: sampleAppointment(), DistanceKm: &d}}}
	r := newTestRouter(&fakeHomes{}, &fakeAppointments{}, &fakeAssignments{}, rk)

	w := doRequest(r, http.MethodGet, "/api/jobs?lat=30.26&lng=-97.74&sort=distanceClosest", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	jobs := decode(t, w)["jobs"].([]any)
	require.Len(t, jobs, 1)
	assert.InDelta(t, 4.2, jobs[0].(map[string]any)["distance_km"], 1e-9)
	require.NotNil(t, rk.origins[0])
	assert.InDelta(t, 30.26, rk.origins[0].Lat, 1e-9)

	w = doRequest(r, http.MethodGet, "/api/jobs?sort=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/jobs?lat=200&lng=0", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(r, http.MethodGet, "/api/jobs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, rk.origins[len(rk.origins)-1])
}

func TestWatchJobsOverWebsocket(t *testing.T) {
	rk := &fakeRanking{jobs: []location.RankedAppointment{{Appointment: sampleAppointment()}}}
	srv := httptest.NewServer(newTestRouter(&fakeHomes{}, &fakeAppointments{}, &fakeAssignments{}, rk))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/jobs/watch?sort=priceHigh"
	conn, _, err := ws.Dial(ctx, url, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.NoError(t, wsjson.Write(ctx, conn, types.Point{Lat: 30.2, Lng: -97.7}))
	var frame struct {
		Jobs []map[string]any `json:"jobs"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &frame))
	require.Len(t, frame.Jobs, 1)
	assert.Equal(t, "appt-1", frame.Jobs[0]["id"])

	require.NoError(t, conn.Close(ws.StatusNormalClosure, ""))
}
