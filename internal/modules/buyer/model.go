// README: Buyer profile; the delivery address a buyer orders to by default.
package buyer

import (
	"time"

	"kirana/internal/types"
)

type Buyer struct {
	ID        types.ID     `json:"id"`
	FullName  string       `json:"full_name"`
	Phone     string       `json:"phone"`
	Address   string       `json:"address"`
	City      string       `json:"city"`
	Pincode   string       `json:"pincode"`
	Location  *types.Point `json:"location"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}
