// README: Presence service tracks driver availability and location.
package presence

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"kirana/internal/modules/matching"
	"kirana/internal/types"
)

var (
	ErrValidation = errors.New("validation error")
	ErrNotFound   = errors.New("driver not found")
)

type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	GetMany(ctx context.Context, ids []types.ID) ([]*Driver, error)
	SetOnline(ctx context.Context, id types.ID, online bool, at time.Time) (*Driver, error)
	UpdateLocation(ctx context.Context, id types.ID, p types.Point, at time.Time) (*Driver, error)
	ListOnline(ctx context.Context) ([]*Driver, error)
}

// GeoIndex is a coarse spatial index of online drivers.
type GeoIndex interface {
	Upsert(ctx context.Context, id types.ID, p types.Point) error
	Remove(ctx context.Context, id types.ID) error
	Within(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

// RequestTracker receives driver coordinates for the requests they hold.
type RequestTracker interface {
	TrackDriverLocation(ctx context.Context, driverID types.ID, p types.Point) error
}

type Publisher interface {
	PublishDriver(ctx context.Context, kind types.ChangeKind, newRec, oldRec *Driver)
}

type Service struct {
	store     Repository
	geo       GeoIndex
	tracker   RequestTracker
	publisher Publisher
	now       func() time.Time
}

func NewService(store Repository, geo GeoIndex, publisher Publisher) *Service {
	return &Service{store: store, geo: geo, publisher: publisher, now: time.Now}
}

// SetTracker wires the lifecycle manager after construction; the two services
// depend on each other only through this hook.
func (s *Service) SetTracker(t RequestTracker) {
	s.tracker = t
}

type RegisterCommand struct {
	FullName      string
	Phone         string
	VehicleType   string
	LicenseNumber string
	Address       string
	DeviceToken   string
}

func (s *Service) Register(ctx context.Context, cmd RegisterCommand) (*Driver, error) {
	if strings.TrimSpace(cmd.FullName) == "" || strings.TrimSpace(cmd.Phone) == "" {
		return nil, fmt.Errorf("%w: full_name and phone are required", ErrValidation)
	}
	if strings.TrimSpace(cmd.VehicleType) == "" {
		return nil, fmt.Errorf("%w: vehicle_type is required", ErrValidation)
	}
	now := s.now()
	d := &Driver{
		ID:            types.NewID(),
		FullName:      strings.TrimSpace(cmd.FullName),
		Phone:         strings.TrimSpace(cmd.Phone),
		VehicleType:   strings.TrimSpace(cmd.VehicleType),
		LicenseNumber: strings.TrimSpace(cmd.LicenseNumber),
		Address:       strings.TrimSpace(cmd.Address),
		DeviceToken:   strings.TrimSpace(cmd.DeviceToken),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.store.Create(ctx, d); err != nil {
		return nil, err
	}
	s.publish(ctx, types.ChangeInsert, d, nil)
	return d, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: driver id is required", ErrValidation)
	}
	return s.store.Get(ctx, id)
}

// SetOnline toggles availability. Requests already assigned to the driver are
// not affected.
func (s *Service) SetOnline(ctx context.Context, id types.ID, online bool) (*Driver, error) {
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	after, err := s.store.SetOnline(ctx, id, online, s.now())
	if err != nil {
		return nil, err
	}
	if s.geo != nil {
		var gerr error
		switch {
		case !online:
			gerr = s.geo.Remove(ctx, id)
		case after.Location != nil:
			gerr = s.geo.Upsert(ctx, id, *after.Location)
		}
		if gerr != nil {
			log.Printf("[presence] geo index update for %s failed: %v", id, gerr)
		}
	}
	s.publish(ctx, types.ChangeUpdate, after, before)
	return after, nil
}

// ReportLocation records the driver's coordinate, then copies it into the
// driver's active requests. The copy is best-effort: its failure is logged and
// does not fail the report.
func (s *Service) ReportLocation(ctx context.Context, id types.ID, p types.Point) (*Driver, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: coordinate out of range", ErrValidation)
	}
	before, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	after, err := s.store.UpdateLocation(ctx, id, p, s.now())
	if err != nil {
		return nil, err
	}
	if s.geo != nil && after.Online {
		if err := s.geo.Upsert(ctx, id, p); err != nil {
			log.Printf("[presence] geo index update for %s failed: %v", id, err)
		}
	}
	if s.tracker != nil {
		if err := s.tracker.TrackDriverLocation(ctx, id, p); err != nil {
			log.Printf("[presence] propagate location of %s to active requests failed: %v", id, err)
		}
	}
	s.publish(ctx, types.ChangeUpdate, after, before)
	return after, nil
}

// Candidates implements matching.CandidateSource. With a geo index the store
// is only asked for the drivers the index returns.
func (s *Service) Candidates(ctx context.Context, center types.Point, radiusKm float64) ([]matching.Candidate, error) {
	drivers, err := s.nearbyOnline(ctx, center, radiusKm)
	if err != nil {
		return nil, err
	}
	out := make([]matching.Candidate, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, matching.Candidate{
			DriverID:    d.ID,
			Online:      d.Online,
			Position:    d.Location,
			DeviceToken: d.DeviceToken,
		})
	}
	return out, nil
}

func (s *Service) nearbyOnline(ctx context.Context, center types.Point, radiusKm float64) ([]*Driver, error) {
	if s.geo != nil {
		ids, err := s.geo.Within(ctx, center, radiusKm)
		if err == nil {
			return s.store.GetMany(ctx, ids)
		}
		log.Printf("[presence] geo index query failed, scanning online drivers: %v", err)
	}
	return s.store.ListOnline(ctx)
}

// RebuildIndex loads every online driver with a known location into the geo
// index. Run at startup since the index is not durable.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	if s.geo == nil {
		return 0, nil
	}
	drivers, err := s.store.ListOnline(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, d := range drivers {
		if d.Location == nil {
			continue
		}
		if err := s.geo.Upsert(ctx, d.ID, *d.Location); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *Service) publish(ctx context.Context, kind types.ChangeKind, newRec, oldRec *Driver) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishDriver(ctx, kind, newRec.Clone(), oldRec.Clone())
}
