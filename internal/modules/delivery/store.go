// README: Request store backed by PostgreSQL.
package delivery

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

const selectRequest = `
	SELECT r.id, r.shop_id, r.buyer_name, r.buyer_phone, r.delivery_address,
	       r.buyer_lat, r.buyer_lng, r.shop_lat, r.shop_lng,
	       r.total_amount, r.delivery_fee, r.currency, r.status, r.otp,
	       r.driver_id, r.driver_lat, r.driver_lng,
	       r.created_at, r.updated_at, r.accepted_at, r.picked_up_at, r.delivered_at,
	       s.shop_name, s.phone, s.address,
	       d.full_name, d.phone, d.vehicle_type
	FROM delivery_requests r
	LEFT JOIN shops s ON s.id = r.shop_id
	LEFT JOIN drivers d ON d.id = r.driver_id`

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO delivery_requests (
			id, shop_id, buyer_name, buyer_phone, delivery_address,
			buyer_lat, buyer_lng, shop_lat, shop_lng,
			total_amount, delivery_fee, currency, status, otp,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13, $14,
			$15, $16
		)`,
		string(r.ID),
		toStringPtr(r.ShopID),
		r.BuyerName, r.BuyerPhone, r.DeliveryAddress,
		r.BuyerLocation.Lat, r.BuyerLocation.Lng,
		r.ShopLocation.Lat, r.ShopLocation.Lng,
		r.TotalAmount.Amount, r.DeliveryFee.Amount, r.DeliveryFee.Currency,
		string(r.Status), r.OTP,
		r.CreatedAt, r.UpdatedAt,
	)
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, selectRequest+` WHERE r.id = $1`, string(id))
	r, err := scanRequest(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

// Transition is a compare-and-set on status; the row is only written if it is
// still in `from`.
func (s *Store) Transition(ctx context.Context, id types.ID, from, to Status, driverID *types.ID, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE delivery_requests
		SET status = $3,
		    driver_id = COALESCE($4, driver_id),
		    updated_at = $5,
		    accepted_at = CASE WHEN $3 = 'accepted' THEN $5 ELSE accepted_at END,
		    picked_up_at = CASE WHEN $3 = 'picked_up' THEN $5 ELSE picked_up_at END,
		    delivered_at = CASE WHEN $3 = 'delivered' THEN $5 ELSE delivered_at END
		WHERE id = $1 AND status = $2`,
		string(id), string(from), string(to), toStringPtr(driverID), at,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListByShop(ctx context.Context, shopID types.ID) ([]*Request, error) {
	return s.query(ctx, selectRequest+` WHERE r.shop_id = $1 ORDER BY r.created_at DESC`, string(shopID))
}

func (s *Store) ListByDriver(ctx context.Context, driverID types.ID, activeOnly bool) ([]*Request, error) {
	if activeOnly {
		return s.query(ctx, selectRequest+`
			WHERE r.driver_id = $1 AND r.status IN ('accepted', 'picked_up')
			ORDER BY r.created_at DESC`, string(driverID))
	}
	return s.query(ctx, selectRequest+` WHERE r.driver_id = $1 ORDER BY r.created_at DESC`, string(driverID))
}

func (s *Store) List(ctx context.Context, status *Status) ([]*Request, error) {
	if status != nil {
		return s.query(ctx, selectRequest+` WHERE r.status = $1 ORDER BY r.created_at DESC`, string(*status))
	}
	return s.query(ctx, selectRequest+` ORDER BY r.created_at DESC`)
}

func (s *Store) UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point, at time.Time) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `
		UPDATE delivery_requests
		SET driver_lat = $2, driver_lng = $3, updated_at = $4
		WHERE driver_id = $1 AND status IN ('accepted', 'picked_up')
		RETURNING id`,
		string(driverID), p.Lat, p.Lng, at,
	)
	if err != nil {
		return nil, err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, err
	}
	out := make([]*Request, 0, len(ids))
	for _, id := range ids {
		r, err := s.Get(ctx, types.ID(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// DeleteStale removes requests in the given statuses created before cutoff and
// returns the removed rows.
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time, statuses []Status) ([]*Request, error) {
	names := make([]string, len(statuses))
	for i, st := range statuses {
		names[i] = string(st)
	}
	rows, err := s.db.Query(ctx, `
		DELETE FROM delivery_requests
		WHERE created_at < $1 AND status = ANY($2)
		RETURNING id, shop_id, buyer_name, buyer_phone, delivery_address,
		          buyer_lat, buyer_lng, shop_lat, shop_lng,
		          total_amount, delivery_fee, currency, status, otp,
		          driver_id, driver_lat, driver_lng,
		          created_at, updated_at, accepted_at, picked_up_at, delivered_at,
		          NULL::text, NULL::text, NULL::text, NULL::text, NULL::text, NULL::text`,
		cutoff, names,
	)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]*Request, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	return collect(rows)
}

func collect(rows pgx.Rows) ([]*Request, error) {
	defer rows.Close()
	out := make([]*Request, 0)
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
	var shopID, driverID sql.NullString
	var driverLat, driverLng sql.NullFloat64
	var acceptedAt, pickedUpAt, deliveredAt sql.NullTime
	var shopName, shopPhone, shopAddress sql.NullString
	var driverName, driverPhone, driverVehicle sql.NullString

	err := row.Scan(
		&r.ID, &shopID, &r.BuyerName, &r.BuyerPhone, &r.DeliveryAddress,
		&r.BuyerLocation.Lat, &r.BuyerLocation.Lng, &r.ShopLocation.Lat, &r.ShopLocation.Lng,
		&r.TotalAmount.Amount, &r.DeliveryFee.Amount, &r.DeliveryFee.Currency, &r.Status, &r.OTP,
		&driverID, &driverLat, &driverLng,
		&r.CreatedAt, &r.UpdatedAt, &acceptedAt, &pickedUpAt, &deliveredAt,
		&shopName, &shopPhone, &shopAddress,
		&driverName, &driverPhone, &driverVehicle,
	)
	if err != nil {
		return nil, err
	}
	r.TotalAmount.Currency = r.DeliveryFee.Currency

	if shopID.Valid {
		id := types.ID(shopID.String)
		r.ShopID = &id
		if shopName.Valid {
			r.Shop = &Party{ID: id, Name: shopName.String, Phone: shopPhone.String, Address: shopAddress.String}
		}
	}
	if driverID.Valid {
		id := types.ID(driverID.String)
		r.DriverID = &id
		if driverName.Valid {
			r.Driver = &Party{ID: id, Name: driverName.String, Phone: driverPhone.String, Vehicle: driverVehicle.String}
		}
	}
	if driverLat.Valid && driverLng.Valid {
		r.DriverLocation = &types.Point{Lat: driverLat.Float64, Lng: driverLng.Float64}
	}
	r.AcceptedAt = nullTime(acceptedAt)
	r.PickedUpAt = nullTime(pickedUpAt)
	r.DeliveredAt = nullTime(deliveredAt)
	return &r, nil
}

func nullTime(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}

func toStringPtr(id *types.ID) *string {
	if id == nil {
		return nil
	}
	v := string(*id)
	return &v
}
