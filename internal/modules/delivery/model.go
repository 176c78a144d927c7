// README: Delivery request aggregate and status definitions.
package delivery

import (
	"time"

	"kirana/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusPickedUp  Status = "picked_up"
	StatusDelivered Status = "delivered"
)

func ParseStatus(v string) (Status, bool) {
	switch s := Status(v); s {
	case StatusPending, StatusAccepted, StatusPickedUp, StatusDelivered:
		return s, true
	}
	return "", false
}

// Party is the embedded shop/driver summary expanded from shop_id/driver_id on read.
type Party struct {
	ID      types.ID `json:"id"`
	Name    string   `json:"name"`
	Phone   string   `json:"phone"`
	Address string   `json:"address,omitempty"`
	Vehicle string   `json:"vehicle_type,omitempty"`
}

type Request struct {
	ID              types.ID     `json:"id"`
	ShopID          *types.ID    `json:"shop_id"`
	BuyerName       string       `json:"buyer_name"`
	BuyerPhone      string       `json:"buyer_phone"`
	DeliveryAddress string       `json:"delivery_address"`
	BuyerLocation   types.Point  `json:"buyer_location"`
	ShopLocation    types.Point  `json:"shop_location"`
	TotalAmount     types.Money  `json:"total_amount"`
	DeliveryFee     types.Money  `json:"delivery_fee"`
	Status          Status       `json:"status"`
	OTP             string       `json:"-"`
	DriverID        *types.ID    `json:"driver_id"`
	DriverLocation  *types.Point `json:"driver_location,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
	AcceptedAt      *time.Time   `json:"accepted_at,omitempty"`
	PickedUpAt      *time.Time   `json:"picked_up_at,omitempty"`
	DeliveredAt     *time.Time   `json:"delivered_at,omitempty"`

	Shop   *Party `json:"shop,omitempty"`
	Driver *Party `json:"driver,omitempty"`
}

// Clone returns a deep copy so callers never share pointers with a store.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}
	cp := *r
	if r.ShopID != nil {
		v := *r.ShopID
		cp.ShopID = &v
	}
	if r.DriverID != nil {
		v := *r.DriverID
		cp.DriverID = &v
	}
	if r.DriverLocation != nil {
		v := *r.DriverLocation
		cp.DriverLocation = &v
	}
	cp.AcceptedAt = cloneTime(r.AcceptedAt)
	cp.PickedUpAt = cloneTime(r.PickedUpAt)
	cp.DeliveredAt = cloneTime(r.DeliveredAt)
	if r.Shop != nil {
		v := *r.Shop
		cp.Shop = &v
	}
	if r.Driver != nil {
		v := *r.Driver
		cp.Driver = &v
	}
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// AllowedTransitions represents the request state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAccepted},
	StatusAccepted: {StatusPickedUp},
	StatusPickedUp: {StatusDelivered},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// CanAdvance reports whether a driver may move a request to `to` directly.
// Accepting and OTP-gated completion have their own operations.
func CanAdvance(from, to Status) bool {
	return from == StatusAccepted && to == StatusPickedUp
}

// ActiveStatuses are the statuses of a request held by a driver.
var ActiveStatuses = []Status{StatusAccepted, StatusPickedUp}

// SweepableStatuses are the statuses the retention sweeper may delete.
var SweepableStatuses = []Status{StatusPending, StatusDelivered}

func (s Status) Active() bool {
	return s == StatusAccepted || s == StatusPickedUp
}
