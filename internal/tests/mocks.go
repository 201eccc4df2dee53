package tests

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"carpool/internal/domain"
	"carpool/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK RIDE REPOSITORY
// ──────────────────────────────────────────────

// MockRideRepository is a mock implementation of repository.RideRepository.
type MockRideRepository struct {
	mu    sync.RWMutex
	rides map[string]*domain.Ride

	// Counters for verification
	CreateCallCount  int32
	GetByIDCallCount int32
	UpdateCallCount  int32

	// Error injection
	CreateError  error
	GetByIDError error
	GetAllError  error
	UpdateError  error
}

// NewMockRideRepository creates a new mock ride repository.
func NewMockRideRepository() *MockRideRepository {
	return &MockRideRepository{
		rides: make(map[string]*domain.Ride),
	}
}

// AddRide seeds a ride, assigning an id when missing.
func (m *MockRideRepository) AddRide(ride *domain.Ride) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ride.ID == "" {
		ride.ID = uuid.New().String()
	}
	c := ride.Clone()
	m.rides[ride.ID] = &c
}

func (m *MockRideRepository) Create(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	ride.ID = uuid.New().String()
	ride.CreatedAt = time.Now().UTC()
	m.mu.Lock()
	defer m.mu.Unlock()
	c := ride.Clone()
	m.rides[ride.ID] = &c
	return nil
}

func (m *MockRideRepository) GetByID(ctx context.Context, id string) (*domain.Ride, error) {
	atomic.AddInt32(&m.GetByIDCallCount, 1)
	if m.GetByIDError != nil {
		return nil, m.GetByIDError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ride, ok := m.rides[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	c := ride.Clone()
	return &c, nil
}

func (m *MockRideRepository) GetAll(ctx context.Context) ([]*domain.Ride, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Ride, 0, len(m.rides))
	for _, r := range m.rides {
		c := r.Clone()
		result = append(result, &c)
	}
	return result, nil
}

func (m *MockRideRepository) Update(ctx context.Context, ride *domain.Ride) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rides[ride.ID]; !ok {
		return repository.ErrNotFound
	}
	c := ride.Clone()
	m.rides[ride.ID] = &c
	return nil
}

// RemoveRide drops a ride, simulating a hard delete on the gateway.
func (m *MockRideRepository) RemoveRide(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rides, id)
}

// GetRide returns the stored ride for test assertions.
func (m *MockRideRepository) GetRide(id string) *domain.Ride {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rides[id]
}

// ──────────────────────────────────────────────
// MOCK MEMBERSHIP REPOSITORY
// ──────────────────────────────────────────────

// MockMembershipRepository is a mock implementation of
// repository.MembershipRepository. Memberships are kept in insertion
// order, matching the join-order guarantee of the real gateway.
type MockMembershipRepository struct {
	mu      sync.RWMutex
	members []*domain.Membership

	// Counters for verification
	InsertCallCount int32
	DeleteCallCount int32

	// Error injection
	InsertError error
	DeleteError error
	ListError   error
}

// NewMockMembershipRepository creates a new mock membership repository.
func NewMockMembershipRepository() *MockMembershipRepository {
	return &MockMembershipRepository{}
}

// AddMembership seeds a membership row.
func (m *MockMembershipRepository) AddMembership(rideID, userID, phone string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.members = append(m.members, &domain.Membership{
		RideID:   rideID,
		UserID:   userID,
		Phone:    phone,
		JoinedAt: time.Now().UTC(),
	})
}

func (m *MockMembershipRepository) ListByRide(ctx context.Context, rideID string) ([]*domain.Membership, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []*domain.Membership
	for _, mm := range m.members {
		if mm.RideID == rideID {
			c := *mm
			result = append(result, &c)
		}
	}
	return result, nil
}

func (m *MockMembershipRepository) GetAll(ctx context.Context) ([]*domain.Membership, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Membership, 0, len(m.members))
	for _, mm := range m.members {
		c := *mm
		result = append(result, &c)
	}
	return result, nil
}

func (m *MockMembershipRepository) Insert(ctx context.Context, membership *domain.Membership) error {
	atomic.AddInt32(&m.InsertCallCount, 1)
	if m.InsertError != nil {
		return m.InsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *membership
	if c.JoinedAt.IsZero() {
		c.JoinedAt = time.Now().UTC()
	}
	m.members = append(m.members, &c)
	return nil
}

func (m *MockMembershipRepository) Delete(ctx context.Context, rideID, userID string) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	if m.DeleteError != nil {
		return m.DeleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.members[:0]
	for _, mm := range m.members {
		if mm.RideID == rideID && mm.UserID == userID {
			continue
		}
		kept = append(kept, mm)
	}
	m.members = kept
	return nil
}

// MembersOf returns the user ids of a ride's memberships in join order.
func (m *MockMembershipRepository) MembersOf(rideID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var ids []string
	for _, mm := range m.members {
		if mm.RideID == rideID {
			ids = append(ids, mm.UserID)
		}
	}
	return ids
}

// ──────────────────────────────────────────────
// MOCK BROADCAST BUS
// ──────────────────────────────────────────────

// MockBus is an in-memory broadcast bus. Delivery runs synchronously on
// the publisher's goroutine; tests can also inject publish errors or drop
// messages to exercise the lost-broadcast paths.
type MockBus struct {
	mu       sync.Mutex
	handlers map[string][]func(payload []byte)
	history  []PublishedMessage

	// DropAll silently discards publishes, simulating total broadcast
	// failure.
	DropAll bool

	// PublishError is returned from Publish when set.
	PublishError error
}

// PublishedMessage records one publish for assertions.
type PublishedMessage struct {
	Topic   string
	Event   string
	Payload []byte
}

// NewMockBus creates a new MockBus.
func NewMockBus() *MockBus {
	return &MockBus{handlers: make(map[string][]func(payload []byte))}
}

func (b *MockBus) Publish(ctx context.Context, topic, event string, payload []byte) error {
	b.mu.Lock()
	if b.PublishError != nil {
		err := b.PublishError
		b.mu.Unlock()
		return err
	}
	b.history = append(b.history, PublishedMessage{Topic: topic, Event: event, Payload: payload})
	dropped := b.DropAll
	handlers := append([]func([]byte){}, b.handlers[topic+":"+event]...)
	b.mu.Unlock()

	if dropped {
		return nil
	}
	for _, h := range handlers {
		h(payload)
	}
	return nil
}

func (b *MockBus) Subscribe(topic, event string, handler func(payload []byte)) (func(), error) {
	key := topic + ":" + event
	b.mu.Lock()
	b.handlers[key] = append(b.handlers[key], handler)
	b.mu.Unlock()
	return func() {}, nil
}

// History returns every recorded publish.
func (b *MockBus) History() []PublishedMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PublishedMessage(nil), b.history...)
}

// CountEvent returns how many publishes carried the given event name.
func (b *MockBus) CountEvent(event string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, msg := range b.history {
		if msg.Event == event {
			n++
		}
	}
	return n
}
