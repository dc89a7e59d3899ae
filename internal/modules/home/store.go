// README: Home store backed by PostgreSQL.
package home

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const homeColumns = `
        id, owner_id, nickname, street, city, state, zipcode, lat, lng,
        num_beds, num_baths, sheets_default, towels_default, time_window_default,
        access_method, access_detail, contact_phone, special_notes, created_at, updated_at`

func (s *Store) Create(ctx context.Context, h *Home) error {
	lat, lng := pointArgs(h.Coordinate)
	_, err := s.db.Exec(ctx, `
        INSERT INTO homes (`+homeColumns+`
        ) VALUES (
            $1, $2, $3, $4, $5, $6, $7, $8, $9,
            $10, $11, $12, $13, $14,
            $15, $16, $17, $18, $19, $20
        )`,
		string(h.ID), string(h.OwnerID), h.Nickname,
		h.Address.Street, h.Address.City, h.Address.State, h.Address.Zipcode, lat, lng,
		h.NumBeds, h.NumBaths, h.SheetsDefault, h.TowelsDefault, string(h.TimeWindowDefault),
		string(h.Access.Method), h.Access.Detail, h.ContactPhone, h.SpecialNotes, h.CreatedAt, h.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Home, error) {
	row := s.db.QueryRow(ctx, `SELECT `+homeColumns+` FROM homes WHERE id = $1`, string(id))
	h, err := scanHome(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return h, err
}

func (s *Store) ListByOwner(ctx context.Context, ownerID types.ID) ([]*Home, error) {
	rows, err := s.db.Query(ctx, `SELECT `+homeColumns+` FROM homes WHERE owner_id = $1 ORDER BY created_at`, string(ownerID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Home
	for rows.Next() {
		h, err := scanHome(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (s *Store) Update(ctx context.Context, h *Home) error {
	lat, lng := pointArgs(h.Coordinate)
	tag, err := s.db.Exec(ctx, `
        UPDATE homes
        SET nickname = $2, street = $3, city = $4, state = $5, zipcode = $6, lat = $7, lng = $8,
            num_beds = $9, num_baths = $10, sheets_default = $11, towels_default = $12,
            time_window_default = $13, access_method = $14, access_detail = $15,
            contact_phone = $16, special_notes = $17, updated_at = $18
        WHERE id = $1`,
		string(h.ID), h.Nickname, h.Address.Street, h.Address.City, h.Address.State, h.Address.Zipcode, lat, lng,
		h.NumBeds, h.NumBaths, h.SheetsDefault, h.TowelsDefault,
		string(h.TimeWindowDefault), string(h.Access.Method), h.Access.Detail,
		h.ContactPhone, h.SpecialNotes, h.UpdatedAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) SetCoordinate(ctx context.Context, id types.ID, p *types.Point) error {
	lat, lng := pointArgs(p)
	tag, err := s.db.Exec(ctx, `UPDATE homes SET lat = $2, lng = $3, updated_at = $4 WHERE id = $1`,
		string(id), lat, lng, time.Now())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanHome(row pgx.Row) (*Home, error) {
	var h Home
	var lat, lng *float64
	var window, method string
	err := row.Scan(
		&h.ID, &h.OwnerID, &h.Nickname,
		&h.Address.Street, &h.Address.City, &h.Address.State, &h.Address.Zipcode, &lat, &lng,
		&h.NumBeds, &h.NumBaths, &h.SheetsDefault, &h.TowelsDefault, &window,
		&method, &h.Access.Detail, &h.ContactPhone, &h.SpecialNotes, &h.CreatedAt, &h.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	h.TimeWindowDefault = pricing.TimeWindow(window)
	h.Access.Method = AccessMethod(method)
	if lat != nil && lng != nil {
		h.Coordinate = &types.Point{Lat: *lat, Lng: *lng}
	}
	return &h, nil
}

func pointArgs(p *types.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}
