// README: Buyer service registers and lists buyer profiles.
package buyer

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
	ErrNotFound   = errors.New("buyer not found")
)

type Repository interface {
	Create(ctx context.Context, b *Buyer) error
	Get(ctx context.Context, id types.ID) (*Buyer, error)
	List(ctx context.Context) ([]*Buyer, error)
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
	FullName string
	Phone    string
	Address  string
	City     string
	Pincode  string
	Location *types.Point
}

// Register stores a buyer profile, geocoding the address when no location is
// given. A geocoding miss leaves the location empty.
func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Buyer, error) {
	if strings.TrimSpace(cmd.FullName) == "" || strings.TrimSpace(cmd.Phone) == "" {
		return nil, fmt.Errorf("%w: full_name and phone are required", ErrValidation)
	}
	if strings.TrimSpace(cmd.Address) == "" {
		return nil, fmt.Errorf("%w: address is required", ErrValidation)
	}
	if cmd.Location != nil && !cmd.Location.Valid() {
		return nil, fmt.Errorf("%w: location out of range", ErrValidation)
	}
	now := s.now()
	b := &Buyer{
		ID:        types.NewID(),
		FullName:  strings.TrimSpace(cmd.FullName),
		Phone:     strings.TrimSpace(cmd.Phone),
		Address:   strings.TrimSpace(cmd.Address),
		City:      strings.TrimSpace(cmd.City),
		Pincode:   strings.TrimSpace(cmd.Pincode),
		Location:  cmd.Location,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if b.Location == nil && s.geocoder != nil {
		if p, err := s.geocoder.Geocode(ctx, joinAddress(b.Address, b.City, b.Pincode)); err == nil {
			b.Location = &p
		}
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Buyer, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: buyer id is required", ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// List returns buyers newest first.
func (s *Service) List(ctx context.Context) ([]*Buyer, error) {
	return s.store.List(ctx)
}

func joinAddress(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
