package service

import (
	"context"
	"errors"
	"log"
	"time"

	"carpool/internal/cache"
	"carpool/internal/domain"
	"carpool/internal/realtime"
	"carpool/internal/redis"
	"carpool/internal/repository"
)

const (
	minTotalSeats = 2
	maxTotalSeats = 8

	// TTL bound on the best-effort cross-client commit lock.
	commitLockTTL = 10 * time.Second
)

// RideService is the operation surface exposed to the UI and other
// collaborators. Every mutation follows the same discipline: reconcile
// the target ride from the gateway, validate through the pure state
// machine, write the cache optimistically, commit to the gateway, then
// broadcast. A transport failure during commit leaves the cache in its
// last-known-good state; the ambiguous remote write is resolved by the
// next reconciliation, never by a blind retry.
type RideService struct {
	rideRepo   repository.RideRepository
	memberRepo repository.MembershipRepository
	cache      *cache.Store
	reconciler *Reconciler
	publisher  *Publisher
	matching   *MatchingService
	locks      redis.LockStoreInterface // optional
}

// NewRideService creates the ride operation surface. locks may be nil;
// commit locking is a best-effort narrowing of the cross-client
// lost-update window, not a correctness requirement.
func NewRideService(
	rideRepo repository.RideRepository,
	memberRepo repository.MembershipRepository,
	store *cache.Store,
	reconciler *Reconciler,
	publisher *Publisher,
	matching *MatchingService,
	locks redis.LockStoreInterface,
) *RideService {
	return &RideService{
		rideRepo:   rideRepo,
		memberRepo: memberRepo,
		cache:      store,
		reconciler: reconciler,
		publisher:  publisher,
		matching:   matching,
		locks:      locks,
	}
}

// Start performs the initial full reconciliation, subscribes to the
// broadcast topic, and launches the polling backstop. The subscription
// treats every event as a reconcile hint and never applies payload state
// directly.
func (s *RideService) Start(ctx context.Context, rt *realtime.Handle) error {
	if err := s.reconciler.ReconcileAll(ctx); err != nil {
		return err
	}

	err := rt.SubscribeAll(func(e domain.Event) {
		hctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if id := e.TargetRide(); id != "" {
			if err := s.reconciler.ReconcileOne(hctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
				log.Printf("rides: reconcile on %s event for ride %s: %v", e.Kind, id, err)
			}
			return
		}
		if err := s.reconciler.ReconcileAll(hctx); err != nil {
			log.Printf("rides: reconcile on %s event: %v", e.Kind, err)
		}
	})
	if err != nil {
		return err
	}

	go s.reconciler.Run(ctx)
	return nil
}

// Close stops the publisher's pending sync re-publishes.
func (s *RideService) Close() {
	s.publisher.Close()
}

// CreateRideRequest contains the parameters for creating a ride offer.
type CreateRideRequest struct {
	ActorID     string
	Origin      domain.Location
	Destination domain.Location
	TotalSeats  int
	Vehicle     domain.Vehicle
	Phone       string
}

// CreateRide creates a new open ride with the creator seated and one seat
// consumed.
func (s *RideService) CreateRide(ctx context.Context, req CreateRideRequest) (*domain.Ride, error) {
	if req.ActorID == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	ride := domain.Ride{
		CreatorID:      req.ActorID,
		Origin:         req.Origin,
		Destination:    req.Destination,
		TotalSeats:     req.TotalSeats,
		SeatsAvailable: req.TotalSeats - 1,
		Status:         domain.RideStatusOpen,
		Vehicle:        req.Vehicle,
		Passengers:     []string{req.ActorID},
	}

	if err := s.rideRepo.Create(ctx, &ride); err != nil {
		return nil, err
	}
	if err := s.memberRepo.Insert(ctx, &domain.Membership{
		RideID: ride.ID,
		UserID: req.ActorID,
		Phone:  req.Phone,
	}); err != nil {
		return nil, err
	}

	s.cache.Put(ride, false)
	s.publisher.Announce(ride, domain.EventCreated)
	return &ride, nil
}

// JoinRide seats the actor on an open ride.
func (s *RideService) JoinRide(ctx context.Context, rideID, actorID, phone string) error {
	if actorID == "" {
		return ErrNotAuthenticated
	}
	if phone == "" {
		return ErrPhoneRequired
	}

	return s.mutate(ctx, rideID, func(current domain.Ride) (domain.Ride, error) {
		return applyJoin(current, actorID)
	}, func(ctx context.Context, next domain.Ride) error {
		if err := s.memberRepo.Insert(ctx, &domain.Membership{
			RideID: rideID,
			UserID: actorID,
			Phone:  phone,
		}); err != nil {
			return err
		}
		return s.rideRepo.Update(ctx, &next)
	}, domain.EventJoined)
}

// LeaveOrCancelRide removes the actor from the ride. For the creator this
// cancels the whole ride; the creator can never merely leave. A
// non-creator leaving a terminal ride still gets their membership row
// removed even though the ride's frozen seat and status fields are
// untouched and the call reports the invalid transition.
func (s *RideService) LeaveOrCancelRide(ctx context.Context, rideID, actorID string) error {
	if actorID == "" {
		return ErrNotAuthenticated
	}

	var cancelled bool
	err := s.mutate(ctx, rideID, func(current domain.Ride) (domain.Ride, error) {
		next, err := applyLeave(current, actorID)
		if errors.Is(err, ErrInvalidTransition) && current.HasPassenger(actorID) {
			// Terminal ride: the membership view may still shrink.
			if derr := s.memberRepo.Delete(ctx, rideID, actorID); derr != nil {
				log.Printf("rides: removing membership of terminal ride %s: %v", rideID, derr)
			}
			return domain.Ride{}, err
		}
		if err == nil {
			cancelled = next.Status == domain.RideStatusCancelled
		}
		return next, err
	}, func(ctx context.Context, next domain.Ride) error {
		if !cancelled {
			// Membership rows of a cancelled ride are retained for the
			// notification view.
			if err := s.memberRepo.Delete(ctx, rideID, actorID); err != nil {
				return err
			}
		}
		return s.rideRepo.Update(ctx, &next)
	}, domain.EventLeft)
	if err != nil {
		return err
	}
	return nil
}

// CompleteRide is the creator-only transition to the terminal completed
// status.
func (s *RideService) CompleteRide(ctx context.Context, rideID, actorID string) error {
	if actorID == "" {
		return ErrNotAuthenticated
	}

	return s.mutate(ctx, rideID, func(current domain.Ride) (domain.Ride, error) {
		return applyComplete(current, actorID)
	}, func(ctx context.Context, next domain.Ride) error {
		return s.rideRepo.Update(ctx, &next)
	}, domain.EventUpdated)
}

// mutate runs the shared mutation flow: best-effort commit lock, per-ride
// cache lock, awaited reconcile, pure transition, optimistic pending
// write, gateway commit, confirmation, broadcast.
func (s *RideService) mutate(
	ctx context.Context,
	rideID string,
	transition func(domain.Ride) (domain.Ride, error),
	commit func(context.Context, domain.Ride) error,
	kind domain.EventKind,
) error {
	if s.locks != nil {
		locked, err := s.locks.AcquireRideLock(ctx, rideID, commitLockTTL)
		if err != nil {
			log.Printf("rides: commit lock for ride %s unavailable: %v", rideID, err)
		} else if locked {
			defer func() {
				if err := s.locks.ReleaseRideLock(ctx, rideID); err != nil {
					log.Printf("rides: releasing commit lock for ride %s: %v", rideID, err)
				}
			}()
		}
	}

	unlock := s.cache.LockRide(rideID)
	defer unlock()

	// The freshest authoritative read is what makes acting on the seat
	// count safe; a prior check is never assumed to still hold.
	if err := s.reconciler.ReconcileOneLocked(ctx, rideID); err != nil {
		return err
	}

	entry, ok := s.cache.Get(rideID)
	if !ok {
		return ErrRideNotCached
	}

	next, err := transition(entry.Ride)
	if err != nil {
		return err
	}

	s.cache.Put(next, true)

	if err := commit(ctx, next); err != nil {
		// The remote write is ambiguous; the cache reverts to its
		// last-known-good state and the next reconciliation settles it.
		s.cache.Restore(entry)
		return err
	}

	s.cache.Put(next, false)
	if next.Status.Terminal() {
		// Terminal transitions broadcast as plain updates, whichever
		// action caused them.
		kind = domain.EventUpdated
	}
	s.publisher.Announce(next, kind)
	return nil
}

// FindMatches scans the local cache for open rides compatible with the
// query route. Never fails; an empty set is the only miss mode.
func (s *RideService) FindMatches(q MatchQuery) MatchSet {
	return s.matching.FindMatches(q)
}

// ReconcileOne refreshes one ride from the gateway on demand.
func (s *RideService) ReconcileOne(ctx context.Context, rideID string) error {
	return s.reconciler.ReconcileOne(ctx, rideID)
}

// ReconcileAll rebuilds the whole cache from the gateway on demand.
func (s *RideService) ReconcileAll(ctx context.Context) error {
	return s.reconciler.ReconcileAll(ctx)
}

// Rides returns a read-only snapshot of the current cache contents.
func (s *RideService) Rides() []domain.Ride {
	return s.cache.Rides()
}

// GetRide returns one cached ride.
func (s *RideService) GetRide(rideID string) (domain.Ride, bool) {
	entry, ok := s.cache.Get(rideID)
	if !ok {
		return domain.Ride{}, false
	}
	return entry.Ride, true
}

// Watch tightens the reconciliation poll while a ride detail view is
// open; Unwatch releases it.
func (s *RideService) Watch(rideID string)   { s.reconciler.Watch(rideID) }
func (s *RideService) Unwatch(rideID string) { s.reconciler.Unwatch(rideID) }

func validateCreate(req CreateRideRequest) error {
	if req.TotalSeats < minTotalSeats || req.TotalSeats > maxTotalSeats {
		return ErrInvalidSeatCount
	}
	if !validLatitude(req.Origin.Lat) || !validLongitude(req.Origin.Lng) {
		return ErrInvalidOrigin
	}
	if !validLatitude(req.Destination.Lat) || !validLongitude(req.Destination.Lng) {
		return ErrInvalidDestination
	}
	if !req.Vehicle.Valid() {
		return ErrInvalidVehicle
	}
	if req.Phone == "" {
		return ErrPhoneRequired
	}
	return nil
}

func validLatitude(lat float64) bool {
	return lat >= -90 && lat <= 90
}

func validLongitude(lng float64) bool {
	return lng >= -180 && lng <= 180
}
