// README: Buyer store backed by PostgreSQL.
package buyer

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"kirana/internal/types"
)

const buyerColumns = `id, full_name, phone, address, city, pincode, lat, lng, created_at, updated_at`

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, b *Buyer) error {
	var lat, lng *float64
	if b.Location != nil {
		lat, lng = &b.Location.Lat, &b.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO buyers (`+buyerColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(b.ID), b.FullName, b.Phone, b.Address, b.City, b.Pincode,
		lat, lng, b.CreatedAt, b.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Buyer, error) {
	row := s.db.QueryRow(ctx, `SELECT `+buyerColumns+` FROM buyers WHERE id = $1`, string(id))
	b, err := scanBuyer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (s *Store) List(ctx context.Context) ([]*Buyer, error) {
	rows, err := s.db.Query(ctx, `SELECT `+buyerColumns+` FROM buyers ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Buyer, 0)
	for rows.Next() {
		b, err := scanBuyer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBuyer(row pgx.Row) (*Buyer, error) {
	var b Buyer
	var lat, lng sql.NullFloat64
	if err := row.Scan(&b.ID, &b.FullName, &b.Phone, &b.Address, &b.City, &b.Pincode,
		&lat, &lng, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		b.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &b, nil
}
