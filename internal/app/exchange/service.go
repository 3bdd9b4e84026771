// internal/app/exchange/service.go
package exchange

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dalemusser/giftexchange/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ShuffleFunc permutes n elements in place by calling swap, with the same
// contract as rand.Shuffle.
type ShuffleFunc func(n int, swap func(i, j int))

// Service runs the group operations: create, delete, join, draw. It holds
// no group state of its own; the store is the single source of truth.
type Service struct {
	store   GroupStore
	log     *zap.Logger
	metrics *metrics.Metrics
	shuffle ShuffleFunc
	now     func() time.Time
	hub     *Hub

	schemaLookups singleflight.Group

	drawMu   sync.Mutex
	drawing  map[primitive.ObjectID]struct{}
	attempts int
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics sets the collectors that outcomes are recorded on.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithShuffle replaces the draw's random source. Tests pass a seeded one.
func WithShuffle(f ShuffleFunc) Option {
	return func(s *Service) {
		if f != nil {
			s.shuffle = f
		}
	}
}

// WithClock replaces the time source used to time draws.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// DefaultDrawAttempts bounds how often a draw re-reads after the member
// set changed under it.
const DefaultDrawAttempts = 3

// New builds a Service over store.
func New(store GroupStore, opts ...Option) *Service {
	s := &Service{
		store:    store,
		log:      zap.NewNop(),
		shuffle:  rand.Shuffle,
		now:      time.Now,
		drawing:  make(map[primitive.ObjectID]struct{}),
		attempts: DefaultDrawAttempts,
	}
	for _, o := range opts {
		o(s)
	}
	s.hub = newHub()
	return s
}

// Hub returns the registry of live directories.
func (s *Service) Hub() *Hub { return s.hub }

// Store returns the group store the service runs against.
func (s *Service) Store() GroupStore { return s.store }
