// README: Driver record with availability and last known location.
package presence

import (
	"time"

	"kirana/internal/types"
)

type Driver struct {
	ID            types.ID     `json:"id"`
	FullName      string       `json:"full_name"`
	Phone         string       `json:"phone"`
	VehicleType   string       `json:"vehicle_type"`
	LicenseNumber string       `json:"license_number"`
	Address       string       `json:"address"`
	DeviceToken   string       `json:"-"`
	Online        bool         `json:"is_online"`
	Location      *types.Point `json:"location"`
	LocationAt    *time.Time   `json:"location_updated_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (d *Driver) Clone() *Driver {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Location != nil {
		p := *d.Location
		cp.Location = &p
	}
	if d.LocationAt != nil {
		t := *d.LocationAt
		cp.LocationAt = &t
	}
	return &cp
}
