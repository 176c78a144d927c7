// README: Shop (pickup origin) registered by a shopkeeper.
package shop

import (
	"time"

	"kirana/internal/types"
)

type Shop struct {
	ID        types.ID     `json:"id"`
	ShopName  string       `json:"shop_name"`
	OwnerName string       `json:"owner_name"`
	Phone     string       `json:"phone"`
	Address   string       `json:"address"`
	City      string       `json:"city"`
	Pincode   string       `json:"pincode"`
	Location  *types.Point `json:"location"`
	CreatedAt time.Time    `json:"created_at"`
}
