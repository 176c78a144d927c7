// README: Delivery fee policy.
package pricing

// Policy describes how the delivery fee of a request is chosen.
type Policy struct {
	DefaultFee int64 // minor units, applied when the shopkeeper leaves the fee unset
	MaxFee     int64 // 0 means unbounded
	Currency   string
}
