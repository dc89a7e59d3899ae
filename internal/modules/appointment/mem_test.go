package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"tidyhome/internal/modules/home"
	"tidyhome/internal/types"
)

type memStore struct {
	mu     sync.Mutex
	appts  map[types.ID]*Appointment
	events []*Event
}

func newMemStore() *memStore {
	return &memStore{appts: make(map[types.ID]*Appointment)}
}

func (m *memStore) Create(_ context.Context, a *Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a.Clone()
	return nil
}

func (m *memStore) Get(_ context.Context, id types.ID) (*Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a.Clone(), nil
}

func (m *memStore) filter(keep func(*Appointment) bool) []*Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Appointment
	for _, a := range m.appts {
		if keep(a) {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *memStore) ListByHome(_ context.Context, homeID types.ID) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.HomeID == homeID }), nil
}

func (m *memStore) ListByOwner(_ context.Context, ownerID types.ID) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.OwnerID == ownerID }), nil
}

func (m *memStore) ListByCleaner(_ context.Context, cleanerID types.ID) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.IsAssigned(cleanerID) }), nil
}

func (m *memStore) ListOpenFrom(_ context.Context, day time.Time) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.Status == StatusOpen && !a.Date.Before(Day(day)) }), nil
}

func (m *memStore) ListPastDueUnrecorded(_ context.Context, day time.Time) ([]*Appointment, error) {
	m.mu.Lock()
	recorded := make(map[types.ID]bool)
	for _, e := range m.events {
		if e.ToStatus == StatusPastDue {
			recorded[e.AppointmentID] = true
		}
	}
	m.mu.Unlock()
	return m.filter(func(a *Appointment) bool {
		return (a.Status == StatusOpen || a.Status == StatusStaffed) && a.Date.Before(Day(day)) && !recorded[a.ID]
	}), nil
}

func (m *memStore) ListByStatus(_ context.Context, status Status) ([]*Appointment, error) {
	return m.filter(func(a *Appointment) bool { return a.Status == status }), nil
}

func (m *memStore) Update(_ context.Context, a *Appointment, version int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.appts[a.ID]
	if !ok || cur.StaffingVersion != version {
		return false, nil
	}
	next := a.Clone()
	next.StaffingVersion = version + 1
	m.appts[a.ID] = next
	return true, nil
}

func (m *memStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *e
	cp.ID = int64(len(m.events) + 1)
	m.events = append(m.events, &cp)
	return nil
}

func (m *memStore) ListEvents(_ context.Context, id types.ID) ([]*Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Event
	for _, e := range m.events {
		if e.AppointmentID == id {
			out = append(out, e)
		}
	}
	return out, nil
}

// put stores a fixture directly, bypassing Book's date checks.
func (m *memStore) put(a *Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appts[a.ID] = a.Clone()
}

type stubHomes map[types.ID]*home.Home

func (s stubHomes) Get(_ context.Context, id types.ID) (*home.Home, error) {
	h, ok := s[id]
	if !ok {
		return nil, home.ErrNotFound
	}
	cp := *h
	return &cp, nil
}

type stubPayments struct {
	err      error
	captured []string
}

func (p *stubPayments) Capture(_ context.Context, intentID string, _ types.Money) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.captured = append(p.captured, intentID)
	return "ch_" + intentID, nil
}
