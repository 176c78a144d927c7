// README: Pricing service resolves the delivery fee of a request.
package pricing

import (
	"errors"
	"fmt"

	"kirana/internal/config"
	"kirana/internal/types"
)

var ErrInvalidFee = errors.New("invalid delivery fee")

type Service struct {
	policy Policy
}

func NewService(cfg config.FeeConfig) *Service {
	p := Policy{DefaultFee: cfg.DefaultDeliveryFee, Currency: cfg.Currency}
	if p.Currency == "" {
		p.Currency = "INR"
	}
	return &Service{policy: p}
}

func NewServiceWithPolicy(p Policy) *Service {
	return &Service{policy: p}
}

// DeliveryFee returns the requested fee, or the default when requested is nil.
func (s *Service) DeliveryFee(requested *int64) (types.Money, error) {
	if requested == nil {
		return types.Money{Amount: s.policy.DefaultFee, Currency: s.policy.Currency}, nil
	}
	fee := *requested
	if fee < 0 {
		return types.Money{}, fmt.Errorf("%w: %d is negative", ErrInvalidFee, fee)
	}
	if s.policy.MaxFee > 0 && fee > s.policy.MaxFee {
		return types.Money{}, fmt.Errorf("%w: %d exceeds %d", ErrInvalidFee, fee, s.policy.MaxFee)
	}
	return types.Money{Amount: fee, Currency: s.policy.Currency}, nil
}
