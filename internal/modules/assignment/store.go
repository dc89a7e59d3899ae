// README: Request store backed by PostgreSQL; staffing commits run in one transaction.
package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tidyhome/internal/modules/appointment"
	"tidyhome/internal/types"
)

// Change is one serialized staffing step: the appointment's next state, the
// version it was derived from, the request row to upsert and its audit event.
type Change struct {
	Appointment *appointment.Appointment
	Version     int
	Request     *Request
	Event       *appointment.Event
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const requestColumns = `id, cleaner_id, appointment_id, status, previous, created_at, updated_at`

func (s *Store) GetAppointment(ctx context.Context, id types.ID) (*appointment.Appointment, error) {
	return appointment.NewStore(s.db).Get(ctx, id)
}

func (s *Store) GetRequest(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM requests WHERE id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *Store) FindRequest(ctx context.Context, cleanerID, appointmentID types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `
        SELECT `+requestColumns+` FROM requests
        WHERE cleaner_id = $1 AND appointment_id = $2`, string(cleanerID), string(appointmentID))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func (s *Store) ListRequests(ctx context.Context, appointmentID types.ID) ([]*Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM requests WHERE appointment_id = $1 ORDER BY created_at, id`, string(appointmentID))
}

func (s *Store) ListRequestsByCleaner(ctx context.Context, cleanerID types.ID) ([]*Request, error) {
	return s.list(ctx, `SELECT `+requestColumns+` FROM requests WHERE cleaner_id = $1 ORDER BY created_at, id`, string(cleanerID))
}

// Commit applies c atomically. It returns ErrConflict when the appointment's
// staffing_version moved since c was computed.
func (s *Store) Commit(ctx context.Context, c *Change) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appts := appointment.NewStore(tx)
	ok, err := appts.Update(ctx, c.Appointment, c.Version)
	if err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	if !ok {
		return ErrConflict
	}

	if c.Request != nil {
		r := c.Request
		_, err = tx.Exec(ctx, `
            INSERT INTO requests (`+requestColumns+`)
            VALUES ($1, $2, $3, $4, $5, $6, $7)
            ON CONFLICT (id) DO UPDATE
            SET status = EXCLUDED.status, previous = EXCLUDED.previous, updated_at = EXCLUDED.updated_at`,
			string(r.ID), string(r.CleanerID), string(r.AppointmentID),
			string(r.Status), string(r.Previous), r.CreatedAt, r.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("upsert request: %w", err)
		}
	}

	if c.Event != nil {
		if err := appts.AppendEvent(ctx, c.Event); err != nil {
			return fmt.Errorf("append event: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *Store) list(ctx context.Context, query string, args ...any) ([]*Request, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (*Request, error) {
	var r Request
	var status, previous string
	if err := row.Scan(&r.ID, &r.CleanerID, &r.AppointmentID, &status, &previous, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.Status = RequestStatus(status)
	r.Previous = RequestStatus(previous)
	return &r, nil
}
