// Package order is C8 OrderManager: the order lifecycle state machine on
// top of store.Store, guarded per-order by a processing latch and driving
// the lock-expiry timer.
package order

import (
	"math/big"
	"strconv"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/rampforge/agent/timer"
)

// LockTTL is how long a Locked order waits for payment before the timer
// auto-unlocks it, per storage.rs's LOCK_DURATION_TIME_SECONDS.
const LockTTL = 1800 * time.Second

// Manager is C8 OrderManager.
type Manager struct {
	store  *store.Store
	timers *timer.Service
	log    log.Logger

	processingMu sync.Mutex
	processing   map[uint64]bool
}

func New(st *store.Store, timers *timer.Service) *Manager {
	return &Manager{
		store:      st,
		timers:     timers,
		log:        log.New("component", "order"),
		processing: make(map[uint64]bool),
	}
}

// enter takes orderID's processing latch, failing fast with OrderProcessing
// if another transition is already in flight. The caller must call exit on
// every return path, including error.
func (m *Manager) enter(orderID uint64) error {
	m.processingMu.Lock()
	defer m.processingMu.Unlock()
	if m.processing[orderID] {
		return common.NewOrderError(common.ErrOrderProcessing)
	}
	m.processing[orderID] = true
	return nil
}

func (m *Manager) exit(orderID uint64) {
	m.processingMu.Lock()
	defer m.processingMu.Unlock()
	delete(m.processing, orderID)
}

func lockTimerKey(orderID uint64) string {
	return "order-lock-" + strconv.FormatUint(orderID, 10)
}

// Create validates the offramper address against the chain, computes fees,
// and persists a freshly Created order.
func (m *Manager) Create(
	fiatAmount uint64,
	currencySymbol string,
	providers *common.PaymentProviderSet,
	blockchain common.Blockchain,
	token *string,
	cryptoAmount *big.Int,
	offramperUserID uint64,
	offramperAddress common.TransactionAddress,
) (uint64, error) {
	id := m.store.NextOrderID()
	o, err := store.NewOrder(id, offramperUserID, fiatAmount, currencySymbol, providers, blockchain, token, cryptoAmount, offramperAddress)
	if err != nil {
		return 0, err
	}
	if prev := m.store.InsertOrder(o); prev != nil {
		return 0, common.NewInvalidOrderStateError(prev.String())
	}
	return id, nil
}

// Lock transitions a Created order to Locked and arms its lock-expiry timer.
func (m *Manager) Lock(
	orderID uint64,
	onramperUserID uint64,
	onramperProvider common.PaymentProvider,
	onramperAddress common.TransactionAddress,
	consent *store.RevolutConsent,
) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	err := m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		if st.Kind != store.OrderCreated {
			return common.NewInvalidOrderStateError(st.String())
		}
		locked, err := st.Created.Lock(onramperUserID, onramperProvider, onramperAddress, consent)
		if err != nil {
			return err
		}
		*st = store.NewLockedState(locked)
		return nil
	})
	if err != nil {
		return err
	}

	m.timers.Schedule(lockTimerKey(orderID), LockTTL, func() {
		if unlockErr := m.Unlock(orderID); unlockErr != nil {
			m.log.Debug("lock-expiry auto-unlock skipped", "order_id", orderID, "err", unlockErr)
		}
	})
	return nil
}

// Unlock reverts a Locked order to Created, penalizing the on-ramper's score
// and clearing the lock timer. Legal from the expiry callback or an explicit
// on-ramper abandon.
func (m *Manager) Unlock(orderID uint64) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	var onramperID uint64
	err := m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		id, err := store.UnlockCreated(st)
		if err != nil {
			return err
		}
		onramperID = id
		return nil
	})
	if err != nil {
		return err
	}

	m.timers.Cancel(lockTimerKey(orderID))
	return m.store.MutateUser(onramperID, func(u *store.User) error {
		u.DecreaseScore()
		return nil
	})
}

// MarkPaid records a successful fiat payment against a Locked order,
// rewarding the on-ramper's score. Re-submission with the same paymentID is
// a no-op, matching mark_order_as_paid's PaymentDone semantics plus spec
// §8's "mark_paid(o,p); mark_paid(o,p) is a no-op" law.
func (m *Manager) MarkPaid(orderID uint64, paymentID string) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	var onramperID, fiatAmount uint64
	var reward bool
	err := m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		if st.Kind != store.OrderLocked {
			return common.NewInvalidOrderStateError(st.String())
		}
		l := st.Locked
		if l.PaymentDone {
			if l.PaymentID != nil && *l.PaymentID == paymentID {
				return nil // idempotent resubmit
			}
			return common.NewOrderError(common.ErrPaymentDone)
		}
		l.PaymentDone = true
		l.PaymentID = &paymentID
		onramperID = l.OnramperUserID
		fiatAmount = l.Base.FiatAmount
		reward = true
		return nil
	})
	if err != nil || !reward {
		return err
	}

	return m.store.MutateUser(onramperID, func(u *store.User) error {
		u.IncreaseScore(fiatAmount)
		return nil
	})
}

// Uncommit records that the vault-manager side has uncommitted the deposit
// for a Locked order (a side effect of the transaction pipeline, not a
// state transition by itself).
func (m *Manager) Uncommit(orderID uint64) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	return m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		if st.Kind != store.OrderLocked {
			return common.NewInvalidOrderStateError(st.String())
		}
		st.Locked.Uncommitted = true
		return nil
	})
}

// Cancel transitions a Created order to Cancelled; the vault-side withdrawal
// is assumed already broadcast by the caller's transaction pipeline.
func (m *Manager) Cancel(orderID uint64) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	return m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		if st.Kind != store.OrderCreated {
			return common.NewInvalidOrderStateError(st.String())
		}
		*st = store.NewCancelledState(orderID)
		return nil
	})
}

// Complete closes out a paid Locked order to Completed, freezing its price
// and fee figures, and clears the lock timer.
func (m *Manager) Complete(orderID uint64) error {
	if err := m.enter(orderID); err != nil {
		return err
	}
	defer m.exit(orderID)

	err := m.store.MutateOrder(orderID, func(st *store.OrderState) error {
		if st.Kind != store.OrderLocked {
			return common.NewInvalidOrderStateError(st.String())
		}
		if !st.Locked.PaymentDone {
			return common.NewInvalidOrderStateError("Locked(unpaid)")
		}
		completed := st.Locked.Complete()
		*st = store.NewCompletedState(&completed)
		return nil
	})
	if err != nil {
		return err
	}
	m.timers.Cancel(lockTimerKey(orderID))
	return nil
}

// Get returns the current state of orderID.
func (m *Manager) Get(orderID uint64) (store.OrderState, error) {
	return m.store.GetOrder(orderID)
}

// Filter returns the bounded, newest-first page of orders matching filter.
func (m *Manager) Filter(filter store.OrderFilter, page, pageSize uint32) []store.OrderState {
	return m.store.FilterOrders(filter, page, pageSize)
}

