package store

import "time"

// Snapshot is the JSON-serializable view of a Store, written atomically at
// graceful shutdown and read back at startup — the Go analogue of the
// canister's pre/post-upgrade stable-memory record (spec §6).
type Snapshot struct {
	UserIDCounter     uint64               `json:"user_id_counter"`
	OrderIDCounter    uint64               `json:"order_id_counter"`
	Users             []*User              `json:"users"`
	UserOrder         []uint64             `json:"user_order"`
	Orders            []snapshotOrderEntry `json:"orders"`
	OrderOrder        []uint64             `json:"order_order"`
	ProcessedTxHashes map[string]time.Time `json:"processed_tx_hashes"`
}

type snapshotOrderEntry struct {
	ID    uint64     `json:"id"`
	State OrderState `json:"state"`
}

// Dump captures the store's entire state for persistence.
func (s *Store) Dump() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	users := make([]*User, 0, len(s.users.order))
	for _, id := range s.users.order {
		users = append(users, s.users.byID[id])
	}

	orders := make([]snapshotOrderEntry, 0, len(s.orders.order))
	for _, id := range s.orders.order {
		orders = append(orders, snapshotOrderEntry{ID: id, State: s.orders.byID[id]})
	}

	hashes := make(map[string]time.Time, len(s.processedTxHashes))
	for h, t := range s.processedTxHashes {
		hashes[h] = t
	}

	return Snapshot{
		UserIDCounter:     s.userIDCounter,
		OrderIDCounter:    s.orderIDCounter,
		Users:             users,
		UserOrder:         append([]uint64(nil), s.users.order...),
		Orders:            orders,
		OrderOrder:        append([]uint64(nil), s.orders.order...),
		ProcessedTxHashes: hashes,
	}
}

// Restore replaces the store's contents with snap, preserving insertion
// order so pagination continues to return the same pages after a restart.
func (s *Store) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userIDCounter = snap.UserIDCounter
	s.orderIDCounter = snap.OrderIDCounter

	s.users = newUserStore()
	byID := make(map[uint64]*User, len(snap.Users))
	for _, u := range snap.Users {
		byID[u.ID] = u
	}
	s.users.byID = byID
	s.users.order = append([]uint64(nil), snap.UserOrder...)

	s.orders = newOrderStore()
	orderByID := make(map[uint64]OrderState, len(snap.Orders))
	for _, entry := range snap.Orders {
		orderByID[entry.ID] = entry.State
	}
	s.orders.byID = orderByID
	s.orders.order = append([]uint64(nil), snap.OrderOrder...)

	s.processedTxHashes = make(map[string]time.Time, len(snap.ProcessedTxHashes))
	for h, t := range snap.ProcessedTxHashes {
		s.processedTxHashes[h] = t
	}
}
