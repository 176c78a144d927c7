// README: Shop store backed by PostgreSQL.
package shop

import (
	"context"
	"database/sql"
	"errors"

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

func (s *Store) Create(ctx context.Context, sh *Shop) error {
	var lat, lng *float64
	if sh.Location != nil {
		lat, lng = &sh.Location.Lat, &sh.Location.Lng
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO shops (id, shop_name, owner_name, phone, address, city, pincode, lat, lng, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		string(sh.ID), sh.ShopName, sh.OwnerName, sh.Phone, sh.Address, sh.City, sh.Pincode,
		lat, lng, sh.CreatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Shop, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, shop_name, owner_name, phone, address, city, pincode, lat, lng, created_at
		FROM shops WHERE id = $1`, string(id))
	sh, err := scanShop(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return sh, err
}

func (s *Store) List(ctx context.Context) ([]*Shop, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, shop_name, owner_name, phone, address, city, pincode, lat, lng, created_at
		FROM shops ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]*Shop, 0)
	for rows.Next() {
		sh, err := scanShop(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanShop(row pgx.Row) (*Shop, error) {
	var sh Shop
	var lat, lng sql.NullFloat64
	if err := row.Scan(&sh.ID, &sh.ShopName, &sh.OwnerName, &sh.Phone, &sh.Address,
		&sh.City, &sh.Pincode, &lat, &lng, &sh.CreatedAt); err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		sh.Location = &types.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &sh, nil
}
