// README: Appointment store backed by PostgreSQL. Writes are compare-and-swap on staffing_version.
package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx so the same store can run
// inside a caller's transaction.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	db DBTX
}

func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

const appointmentColumns = `
        id, home_id, owner_id, date, price, currency, employees_needed, employees_assigned,
        status, staffing_version, paid, completed, bring_sheets, bring_towels, time_window,
        payment_intent_id, cancellation_fee, created_at, cancelled_at, completed_at, paid_at`

func (s *Store) Create(ctx context.Context, a *Appointment) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO appointments (`+appointmentColumns+`
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8,
            $9, $10, $11, $12, $13, $14, $15,
            $16, $17, $18, $19, $20, $21
        )`,
		string(a.ID), string(a.HomeID), string(a.OwnerID), Day(a.Date), a.Price.Amount, a.Price.Currency,
		a.EmployeesNeeded, idStrings(a.EmployeesAssigned),
		string(a.Status), a.StaffingVersion, a.Paid, a.Completed, a.BringSheets, a.BringTowels, string(a.TimeWindow),
		a.PaymentIntentID, a.CancellationFee.Amount, a.CreatedAt, a.CancelledAt, a.CompletedAt, a.PaidAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Appointment, error) {
	row := s.db.QueryRow(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE id = $1`, string(id))
	a, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return a, err
}

func (s *Store) ListByHome(ctx context.Context, homeID types.ID) ([]*Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE home_id = $1 ORDER BY date`, string(homeID))
}

func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE owner_id = $1 ORDER BY date`, string(ownerID))
}

func (s *Store) ListByCleaner(ctx context.Context, cleanerID types.ID) ([]*Appointment, error) {
	return s.list(ctx, `
        SELECT `+appointmentColumns+` FROM appointments
        WHERE $1 = ANY(employees_assigned)
        ORDER BY date`, string(cleanerID))
}

// ListOpenFrom returns stored-OPEN appointments on or after day.
func (s *Store) ListOpenFrom(ctx context.Context, day time.Time) ([]*Appointment, error) {
	return s.list(ctx, `
        SELECT `+appointmentColumns+` FROM appointments
        WHERE status = 'open' AND date >= $1
        ORDER BY date`, Day(day))
}

// ListPastDueUnrecorded returns open or staffed appointments dated before day
// that have no past_due audit event yet.
func (s *Store) ListPastDueUnrecorded(ctx context.Context, day time.Time) ([]*Appointment, error) {
	return s.list(ctx, `
        SELECT `+appointmentColumns+` FROM appointments a
        WHERE a.status IN ('open','staffed') AND a.date < $1
          AND NOT EXISTS (
              SELECT 1 FROM appointment_events e
              WHERE e.appointment_id = a.id AND e.to_status = 'past_due'
          )
        ORDER BY a.date`, Day(day))
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Appointment, error) {
	return s.list(ctx, `SELECT `+appointmentColumns+` FROM appointments WHERE status = $1 ORDER BY date`, string(status))
}

// Update writes every mutable field when the stored staffing_version still
// equals version. It reports false when another writer got there first.
func (s *Store) Update(ctx context.Context, a *Appointment, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
        UPDATE appointments
        SET price = $3, currency = $4, employees_needed = $5, employees_assigned = $6,
            status = $7, staffing_version = staffing_version + 1,
            paid = $8, completed = $9, bring_sheets = $10, bring_towels = $11, time_window = $12,
            payment_intent_id = $13, cancellation_fee = $14,
            cancelled_at = $15, completed_at = $16, paid_at = $17
        WHERE id = $1 AND staffing_version = $2`,
		string(a.ID), version,
		a.Price.Amount, a.Price.Currency, a.EmployeesNeeded, idStrings(a.EmployeesAssigned),
		string(a.Status),
		a.Paid, a.Completed, a.BringSheets, a.BringTowels, string(a.TimeWindow),
		a.PaymentIntentID, a.CancellationFee.Amount,
		a.CancelledAt, a.CompletedAt, a.PaidAt,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) AppendEvent(ctx context.Context, e *Event) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO appointment_events (
            appointment_id, from_status, to_status, actor_type, actor_id, note, created_at
        ) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(e.AppointmentID),
		string(e.FromStatus),
		string(e.ToStatus),
		e.ActorType,
		toStringPtr(e.ActorID),
		e.Note,
		e.CreatedAt,
	)
	return err
}

func (s *Store) ListEvents(ctx context.Context, appointmentID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, appointment_id, from_status, to_status, actor_type, actor_id, note, created_at
        FROM appointment_events
        WHERE appointment_id = $1
        ORDER BY id`, string(appointmentID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.AppointmentID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.Note, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Appointment, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var assigned []string
	var status, window string
	var fee int64
	err := row.Scan(
		&a.ID, &a.HomeID, &a.OwnerID, &a.Date, &a.Price.Amount, &a.Price.Currency, &a.EmployeesNeeded, &assigned,
		&status, &a.StaffingVersion, &a.Paid, &a.Completed, &a.BringSheets, &a.BringTowels, &window,
		&a.PaymentIntentID, &fee, &a.CreatedAt, &a.CancelledAt, &a.CompletedAt, &a.PaidAt,
	)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	a.TimeWindow = pricing.TimeWindow(window)
	a.Date = Day(a.Date)
	a.CancellationFee = types.Money{Amount: fee, Currency: a.Price.Currency}
	for _, id := range assigned {
		a.EmployeesAssigned = append(a.EmployeesAssigned, types.ID(id))
	}
	return &a, nil
}

func idStrings(ids []types.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, string(id))
	}
	return out
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
