package assignment

import (
	"context"
	"sort"
	"sync"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/types"
)

// mockAssignmentStore is an in-memory AssignmentStore with the same
// compare-and-swap semantics as the Postgres store.
type mockAssignmentStore struct {
	mu       sync.Mutex
	appts    map[types.ID]*appointment.Appointment
	requests map[types.ID]*Request
	events   []*appointment.Event
	commits  int
}

func newMockStore() *mockAssignmentStore {
	return &mockAssignmentStore{
		appts:    make(map[types.ID]*appointment.Appointment),
		requests: make(map[types.ID]*Request),
	}
}

func (m *mockAssignmentStore) put(a *appointment.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a.Clone()
}

func (m *mockAssignmentStore) GetAppointment(_ context.Context, id types.ID) (*appointment.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, appointment.ErrNotFound
	}
	return a.Clone(), nil
}

func (m *mockAssignmentStore) GetRequest(_ context.Context, id types.ID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *mockAssignmentStore) FindRequest(_ context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.CleanerID == cleanerID && r.AppointmentID == appointmentID {
			cp := *r
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockAssignmentStore) listWhere(keep func(*Request) bool) []*Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Request
	for _, r := range m.requests {
		if keep(r) {
			cp := *r
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *mockAssignmentStore) ListRequests(_ context.Context, appointmentID types.ID) ([]*Request, error) {
	return m.listWhere(func(r *Request) bool { return r.AppointmentID == appointmentID }), nil
}

func (m *mockAssignmentStore) ListRequestsByCleaner(_ context.Context, cleanerID types.ID) ([]*Request, error) {
	return m.listWhere(func(r *Request) bool { return r.CleanerID == cleanerID }), nil
}

func (m *mockAssignmentStore) Commit(_ context.Context, c *Change) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[c.Appointment.ID]
	if !ok || cur.StaffingVersion != c.Version {
		return ErrConflict
	}
	next := c.Appointment.Clone()
	next.StaffingVersion = c.Version + 1
	m.appts[next.ID] = next
	if c.Request != nil {
		cp := *c.Request
		m.requests[cp.ID] = &cp
	}
	if c.Event != nil {
		m.events = append(m.events, c.Event)
	}
	m.commits++
	return nil
}

// noLocker lets every caller through so only the version check serializes.
type noLocker struct{}

func (noLocker) Lock(context.Context, types.ID) (func(), error) { return func() {}, nil }
