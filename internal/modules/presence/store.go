// README: Driver store backed by PostgreSQL.
package presence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kirana/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `
	id, full_name, phone, vehicle_type, license_number, address, device_token,
	is_online, lat, lng, location_at, created_at, updated_at`

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (
			id, full_name, phone, vehicle_type, license_number, address, device_token,
			is_online, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(d.ID), d.FullName, d.Phone, d.VehicleType, d.LicenseNumber, d.Address, d.DeviceToken,
		d.Online, d.CreatedAt, d.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	return scanOne(row)
}

func (s *Store) GetMany(ctx context.Context, ids []types.ID) ([]*Driver, error) {
	if len(ids) == 0 {
		return []*Driver{}, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = string(id)
	}
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = ANY($1)`, keys)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) SetOnline(ctx context.Context, id types.ID, online bool, at time.Time) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE drivers SET is_online = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+driverColumns,
		string(id), online, at,
	)
	return scanOne(row)
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE drivers SET lat = $2, lng = $3, location_at = $4, updated_at = $4
		WHERE id = $1
		RETURNING `+driverColumns,
		string(id), p.Lat, p.Lng, at,
	)
	return scanOne(row)
}

func (s *Store) ListOnline(ctx context.Context) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE is_online ORDER BY id`)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Driver, error) {
	defer rows.Close()
	out := make([]*Driver, 0)
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanOne(row pgx.Row) (*Driver, error) {
	d, err := scanDriver(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var lat, lng sql.NullFloat64
	var locationAt sql.NullTime
	err := row.Scan(
		&d.ID, &d.FullName, &d.Phone, &d.VehicleType, &d.LicenseNumber, &d.Address, &d.DeviceToken,
		&d.Online, &lat, &lng, &locationAt, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		d.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if locationAt.Valid {
		t := locationAt.Time
		d.LocationAt = &t
	}
	return &d, nil
}
