// README: Delivery service implements admission, state transitions and persistence.
package delivery

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"kirana/internal/modules/matching"
	"kirana/internal/types"
)

var (
	ErrValidation            = errors.New("validation error")
	ErrNoDriversAvailable    = errors.New("no drivers available")
	ErrRequestAlreadyClaimed = errors.New("request already claimed")
	ErrInvalidTransition     = errors.New("invalid state transition")
	ErrInvalidOTP            = errors.New("invalid otp")
	ErrNotFound              = errors.New("request not found")
	ErrNotAssignedDriver     = errors.New("driver is not assigned to request")
)

// Push notification to candidates is bounded separately from the request.
const notifyTimeout = 10 * time.Second

// StorageError wraps a failure of the underlying store or transport.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

func validationErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Repository is the persistence contract shared by the Postgres and memory stores.
type Repository interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	// Transition moves id from `from` to `to` only if it is still in `from`.
	// A non-nil driverID is assigned in the same write.
	Transition(ctx context.Context, id types.ID, from, to Status, driverID *types.ID, at time.Time) (bool, error)
	ListByShop(ctx context.Context, shopID types.ID) ([]*Request, error)
	ListByDriver(ctx context.Context, driverID types.ID, activeOnly bool) ([]*Request, error)
	List(ctx context.Context, status *Status) ([]*Request, error)
	UpdateDriverLocation(ctx context.Context, driverID types.ID, p types.Point, at time.Time) ([]*Request, error)
	DeleteStale(ctx context.Context, cutoff time.Time, statuses []Status) ([]*Request, error)
}

// DriverFinder returns the online drivers eligible for a pickup point.
type DriverFinder interface {
	Nearby(ctx context.Context, p types.Point) ([]matching.Ranked, error)
}

type FeePolicy interface {
	DeliveryFee(requested *int64) (types.Money, error)
}

type ShopLocator interface {
	Location(ctx context.Context, shopID types.ID) (types.Point, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// Publisher receives committed changes for fan-out.
type Publisher interface {
	PublishRequest(ctx context.Context, kind types.ChangeKind, newRec, oldRec *Request)
}

// Dispatcher notifies candidate drivers about a new request.
type Dispatcher interface {
	NotifyNewRequest(ctx context.Context, r *Request, drivers []matching.Ranked)
}

type Deps struct {
	Store      Repository
	Drivers    DriverFinder
	Fees       FeePolicy
	Shops      ShopLocator
	Geocoder   Geocoder
	Publisher  Publisher
	Dispatcher Dispatcher
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithOTPGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.otp = gen }
}

type Service struct {
	store      Repository
	drivers    DriverFinder
	fees       FeePolicy
	shops      ShopLocator
	geocoder   Geocoder
	publisher  Publisher
	dispatcher Dispatcher
	now        func() time.Time
	otp        func() (string, error)
}

func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{
		store:      deps.Store,
		drivers:    deps.Drivers,
		fees:       deps.Fees,
		shops:      deps.Shops,
		geocoder:   deps.Geocoder,
		publisher:  deps.Publisher,
		dispatcher: deps.Dispatcher,
		now:        time.Now,
		otp:        GenerateOTP,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type CreateCommand struct {
	ShopID          *types.ID
	BuyerName       string
	BuyerPhone      string
	DeliveryAddress string
	BuyerLocation   *types.Point
	ShopLocation    *types.Point
	TotalAmount     int64
	DeliveryFee     *int64
}

type AcceptCommand struct {
	RequestID types.ID
	DriverID  types.ID
}

type AdvanceCommand struct {
	RequestID types.ID
	DriverID  types.ID
	To        Status
}

type CompleteCommand struct {
	RequestID types.ID
	Code      string
}

// Create admits a new pending request. Nothing is persisted unless at least
// one online driver is within range of the buyer.
func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Request, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}
	buyer, err := s.resolveBuyer(ctx, cmd)
	if err != nil {
		return nil, err
	}
	origin, err := s.resolveShop(ctx, cmd)
	if err != nil {
		return nil, err
	}

	candidates, err := s.drivers.Nearby(ctx, buyer)
	if err != nil {
		return nil, storageErr("find drivers", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoDriversAvailable
	}

	code, err := s.otp()
	if err != nil {
		return nil, err
	}
	fee := types.Money{Amount: 3000, Currency: "INR"}
	if s.fees != nil {
		fee, err = s.fees.DeliveryFee(cmd.DeliveryFee)
		if err != nil {
			return nil, validationErr("%v", err)
		}
	} else if cmd.DeliveryFee != nil {
		fee.Amount = *cmd.DeliveryFee
	}

	now := s.now()
	r := &Request{
		ID:              types.NewID(),
		ShopID:          cmd.ShopID,
		BuyerName:       strings.TrimSpace(cmd.BuyerName),
		BuyerPhone:      strings.TrimSpace(cmd.BuyerPhone),
		DeliveryAddress: strings.TrimSpace(cmd.DeliveryAddress),
		BuyerLocation:   buyer,
		ShopLocation:    origin,
		TotalAmount:     types.Money{Amount: cmd.TotalAmount, Currency: fee.Currency},
		DeliveryFee:     fee,
		Status:          StatusPending,
		OTP:             code,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, storageErr("create request", err)
	}
	s.publish(ctx, types.ChangeInsert, r, nil)
	if s.dispatcher != nil {
		go s.notify(ctx, r.Clone(), candidates)
	}
	return r, nil
}

// notify runs after the response is sent; it keeps the caller's values but
// not its cancellation.
func (s *Service) notify(ctx context.Context, r *Request, candidates []matching.Ranked) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	s.dispatcher.NotifyNewRequest(ctx, r, candidates)
}

func (cmd CreateCommand) validate() error {
	if strings.TrimSpace(cmd.BuyerName) == "" {
		return validationErr("buyer_name is required")
	}
	if strings.TrimSpace(cmd.BuyerPhone) == "" {
		return validationErr("buyer_phone is required")
	}
	if strings.TrimSpace(cmd.DeliveryAddress) == "" {
		return validationErr("delivery_address is required")
	}
	if cmd.TotalAmount < 0 {
		return validationErr("total_amount must not be negative")
	}
	if cmd.DeliveryFee != nil && *cmd.DeliveryFee < 0 {
		return validationErr("delivery_fee must not be negative")
	}
	if cmd.BuyerLocation != nil && !cmd.BuyerLocation.Valid() {
		return validationErr("buyer location out of range")
	}
	if cmd.ShopLocation != nil && !cmd.ShopLocation.Valid() {
		return validationErr("shop location out of range")
	}
	return nil
}

func (s *Service) resolveBuyer(ctx context.Context, cmd CreateCommand) (types.Point, error) {
	if cmd.BuyerLocation != nil {
		return *cmd.BuyerLocation, nil
	}
	if s.geocoder == nil {
		return types.Point{}, validationErr("buyer location is required")
	}
	p, err := s.geocoder.Geocode(ctx, cmd.DeliveryAddress)
	if err != nil {
		return types.Point{}, validationErr("cannot locate delivery address: %v", err)
	}
	return p, nil
}

func (s *Service) resolveShop(ctx context.Context, cmd CreateCommand) (types.Point, error) {
	if cmd.ShopLocation != nil {
		return *cmd.ShopLocation, nil
	}
	if cmd.ShopID == nil || s.shops == nil {
		return types.Point{}, validationErr("shop location is required")
	}
	p, err := s.shops.Location(ctx, *cmd.ShopID)
	if err != nil {
		return types.Point{}, validationErr("shop has no known location: %v", err)
	}
	return p, nil
}

// Accept claims a pending request for a driver. Exactly one concurrent caller wins.
func (s *Service) Accept(ctx context.Context, cmd AcceptCommand) (*Request, error) {
	if cmd.RequestID == "" || cmd.DriverID == "" {
		return nil, validationErr("request_id and driver_id are required")
	}
	before, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	driverID := cmd.DriverID
	ok, err := s.store.Transition(ctx, cmd.RequestID, StatusPending, StatusAccepted, &driverID, s.now())
	if err != nil {
		return nil, storageErr("accept request", err)
	}
	if !ok {
		return nil, ErrRequestAlreadyClaimed
	}
	return s.reloadAndPublish(ctx, cmd.RequestID, before)
}

// Advance moves an accepted request to picked_up. Completion goes through
// VerifyAndComplete.
func (s *Service) Advance(ctx context.Context, cmd AdvanceCommand) (*Request, error) {
	if cmd.RequestID == "" {
		return nil, validationErr("request_id is required")
	}
	before, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if !CanAdvance(before.Status, cmd.To) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, cmd.To)
	}
	if cmd.DriverID != "" && (before.DriverID == nil || *before.DriverID != cmd.DriverID) {
		return nil, ErrNotAssignedDriver
	}
	ok, err := s.store.Transition(ctx, cmd.RequestID, before.Status, cmd.To, nil, s.now())
	if err != nil {
		return nil, storageErr("advance request", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.reloadAndPublish(ctx, cmd.RequestID, before)
}

// VerifyAndComplete marks a picked-up request delivered when code matches its OTP.
// A mismatch returns ErrInvalidOTP and leaves the request unchanged.
func (s *Service) VerifyAndComplete(ctx context.Context, cmd CompleteCommand) (*Request, error) {
	if cmd.RequestID == "" {
		return nil, validationErr("request_id is required")
	}
	before, err := s.Get(ctx, cmd.RequestID)
	if err != nil {
		return nil, err
	}
	if before.Status != StatusPickedUp {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, before.Status, StatusDelivered)
	}
	code := strings.TrimSpace(cmd.Code)
	if !validOTP(code) || subtle.ConstantTimeCompare([]byte(code), []byte(before.OTP)) != 1 {
		return nil, ErrInvalidOTP
	}
	ok, err := s.store.Transition(ctx, cmd.RequestID, StatusPickedUp, StatusDelivered, nil, s.now())
	if err != nil {
		return nil, storageErr("complete request", err)
	}
	if !ok {
		return nil, ErrInvalidTransition
	}
	return s.reloadAndPublish(ctx, cmd.RequestID, before)
}

func (s *Service) reloadAndPublish(ctx context.Context, id types.ID, before *Request) (*Request, error) {
	after, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, types.ChangeUpdate, after, before)
	return after, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Request, error) {
	if id == "" {
		return nil, validationErr("request id is required")
	}
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, storageErr("get request", err)
	}
	return r, nil
}

func (s *Service) ListByShop(ctx context.Context, shopID types.ID) ([]*Request, error) {
	if shopID == "" {
		return nil, validationErr("shop id is required")
	}
	out, err := s.store.ListByShop(ctx, shopID)
	return out, storageErr("list shop requests", err)
}

func (s *Service) ListByDriver(ctx context.Context, driverID types.ID, activeOnly bool) ([]*Request, error) {
	if driverID == "" {
		return nil, validationErr("driver id is required")
	}
	out, err := s.store.ListByDriver(ctx, driverID, activeOnly)
	return out, storageErr("list driver requests", err)
}

func (s *Service) List(ctx context.Context, status *Status) ([]*Request, error) {
	out, err := s.store.List(ctx, status)
	return out, storageErr("list requests", err)
}

// TrackDriverLocation copies a driver's coordinate into every request the
// driver currently holds.
func (s *Service) TrackDriverLocation(ctx context.Context, driverID types.ID, p types.Point) error {
	updated, err := s.store.UpdateDriverLocation(ctx, driverID, p, s.now())
	if err != nil {
		return storageErr("track driver location", err)
	}
	for _, r := range updated {
		s.publish(ctx, types.ChangeUpdate, r, nil)
	}
	return nil
}

// PurgeStale deletes pending and delivered requests created before cutoff and
// returns how many were removed.
func (s *Service) PurgeStale(ctx context.Context, cutoff time.Time) (int, error) {
	deleted, err := s.store.DeleteStale(ctx, cutoff, SweepableStatuses)
	if err != nil {
		return 0, storageErr("purge stale requests", err)
	}
	for _, r := range deleted {
		s.publish(ctx, types.ChangeDelete, nil, r)
	}
	return len(deleted), nil
}

func (s *Service) publish(ctx context.Context, kind types.ChangeKind, newRec, oldRec *Request) {
	if s.publisher == nil {
		return
	}
	s.publisher.PublishRequest(ctx, kind, newRec.Clone(), oldRec.Clone())
}
