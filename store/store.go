// Package store holds the process-local state the agent owns outright: user
// accounts, orders, and the set of fiat transaction hashes already consumed.
// Every exported method takes the store's lock, so callers never need their
// own synchronization around these maps.
package store

import (
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/common"
)

// ProcessedTxHashRetention is how long a consumed payment-provider hash is
// kept around for dedupe before being swept, per spec §4.1.
const ProcessedTxHashRetention = 30 * 24 * time.Hour

// Store is the concurrency-safe container for C1 in the component table:
// users, orders, and processed fiat transaction hashes.
type Store struct {
	mu sync.Mutex

	users  *UserStore
	orders *OrderStore

	userIDCounter  uint64
	orderIDCounter uint64

	processedTxHashes map[string]time.Time

	log log.Logger
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:             newUserStore(),
		orders:            newOrderStore(),
		processedTxHashes: make(map[string]time.Time),
		log:               log.New("component", "store"),
	}
}

// NextUserID returns a fresh, monotonically increasing user id.
func (s *Store) NextUserID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userIDCounter++
	return s.userIDCounter
}

// NextOrderID returns a fresh, monotonically increasing order id.
func (s *Store) NextOrderID() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orderIDCounter++
	return s.orderIDCounter
}

// InsertUser stores u, returning any previous record at the same id.
func (s *Store) InsertUser(u *User) *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Insert(u)
}

// GetUser returns the user at id, or UserNotFound.
func (s *Store) GetUser(id uint64) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Get(id)
}

// MutateUser atomically applies f to the stored user.
func (s *Store) MutateUser(id uint64, f func(*User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.Mutate(id, f)
}

// FindUserByLogin scans every user for a matching login identity.
func (s *Store) FindUserByLogin(login common.LoginAddress) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.FindByLogin(login)
}

// AllUsers returns every user, newest first.
func (s *Store) AllUsers() []*User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users.All()
}

// InsertOrder stores a freshly Created order.
func (s *Store) InsertOrder(o *Order) *OrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.Insert(o)
}

// GetOrder returns the order state at id, or OrderNotFound.
func (s *Store) GetOrder(id uint64) (OrderState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.Get(id)
}

// MutateOrder atomically applies f to the stored order state.
func (s *Store) MutateOrder(id uint64, f func(*OrderState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.Mutate(id, f)
}

// FilterOrders returns the bounded, newest-first page of orders matching
// filter.
func (s *Store) FilterOrders(filter OrderFilter, page, pageSize uint32) []OrderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders.Filter(filter.Matches, page, pageSize)
}

// MarkTxHashProcessed records hash as consumed, rejecting a resubmission
// that is still within the retention window.
func (s *Store) MarkTxHashProcessed(hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, seen := s.processedTxHashes[hash]; seen {
		return common.NewSystemError(common.ErrInvalidInput, "transaction hash already processed")
	}
	s.processedTxHashes[hash] = time.Now()
	return nil
}

// IsTxHashProcessed reports whether hash is currently tracked as consumed.
func (s *Store) IsTxHashProcessed(hash string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, seen := s.processedTxHashes[hash]
	return seen
}

// SweepProcessedTxHashes discards entries older than ProcessedTxHashRetention,
// returning the count removed.
func (s *Store) SweepProcessedTxHashes(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for hash, ingestedAt := range s.processedTxHashes {
		if now.Sub(ingestedAt) > ProcessedTxHashRetention {
			delete(s.processedTxHashes, hash)
			removed++
		}
	}
	if removed > 0 {
		s.log.Debug("swept processed tx hashes", "removed", removed)
	}
	return removed
}
