// README: Common money value object used across modules.
package types

// Money amounts are in minor units (paise for INR).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}
