// README: Shop service registers shops and resolves their pickup location.
package shop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kirana/internal/types"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("shop not found")
	ErrNoLocation = errors.New("shop has no location")
)

type Repository interface {
	Create(ctx context.Context, s *Shop) error
	Get(ctx context.Context, id types.ID) (*Shop, error)
	List(ctx context.Context) ([]*Shop, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

type Service struct {
	store    Repository
	geocoder Geocoder
	now      func() time.Time
}

func NewService(store Repository, geocoder Geocoder) *Service {
	return &Service{store: store, geocoder: geocoder, now: time.Now}
}

type RegisterCommand struct {
	ShopName  string
	OwnerName string
	Phone     string
	Address   string
	City      string
	Pincode   string
	Location  *types.Point
}

// Register stores a shop. Without an explicit location the address is
// geocoded when a geocoder is configured; a geocoding miss is not an error.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Shop, error) {
	for field, v := range map[string]string{
		"shop_name":  cmd.ShopName,
		"owner_name": cmd.OwnerName,
		"phone":      cmd.Phone,
		"address":    cmd.Address,
	} {
		if strings.TrimSpace(v) == "" {
			return nil, fmt.Errorf("%w: %s is required", ErrValidation, field)
		}
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of range", ErrValidation)
	}
	sh := &Shop{
		ID:        types.NewID(),
		ShopName:  strings.TrimSpace(cmd.ShopName),
		OwnerName: strings.TrimSpace(cmd.OwnerName),
		Phone:     strings.TrimSpace(cmd.Phone),
		Address:   strings.TrimSpace(cmd.Address),
		City:      strings.TrimSpace(cmd.City),
		Pincode:   strings.TrimSpace(cmd.Pincode),
		Location:  cmd.Location,
		CreatedAt: s.now(),
	}
	if sh.Location == nil && s.geocoder != nil {
		if p, err := s.geocoder.Geocode(ctx, fullAddress(sh)); err == nil {
			sh.Location = &p
		}
	}
	if err := s.store.Create(ctx, sh); err != nil {
		return nil, err
	}
	return sh, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Shop, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: shop id is required", ErrValidation)
	}
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Shop, error) {
	return s.store.List(ctx)
}

// Location returns the pickup coordinate of a registered shop.
func (s *Service) Location(ctx context.Context, id types.ID) (types.Point, error) {
	sh, err := s.Get(ctx, id)
	if err != nil {
		return types.Point{}, err
	}
	if sh.Location == nil {
		return types.Point{}, ErrNoLocation
	}
	return *sh.Location, nil
}

func fullAddress(sh *Shop) string {
	parts := []string{sh.Address}
	if sh.City != "" {
		parts = append(parts, sh.City)
	}
	if sh.Pincode != "" {
		parts = append(parts, sh.Pincode)
	}
	return strings.Join(parts, ", ")
}
