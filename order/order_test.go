package order

import (
	"math/big"
	"testing"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/rampforge/agent/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func evmChain(chainID uint64) common.Blockchain {
	return common.Blockchain{Kind: common.BlockchainEVM, ChainID: chainID}
}

func evmAddress(hexAddr string) common.TransactionAddress {
	return common.TransactionAddress{Type: common.AddressEVM, Address: hexAddr}
}

func newTestManager(t *testing.T) (*Manager, *store.Store) {
	st := store.New()
	m := New(st, timer.New("order-test"))
	return m, st
}

func createTestOrder(t *testing.T, m *Manager, st *store.Store) (uint64, uint64) {
	offramperID := st.NextUserID()
	u, uErr := store.NewUser(offramperID, store.UserOfframper, common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"})
	require.NoError(t, uErr)
	st.InsertUser(u)

	orderID, createErr := m.Create(
		10000,
		"USD",
		common.NewPaymentProviderSet(),
		evmChain(1),
		nil,
		big.NewInt(1_000_000),
		offramperID,
		evmAddress("0x0000000000000000000000000000000000000001"),
	)
	require.NoError(t, createErr)
	return orderID, offramperID
}

func TestCreateOrder(t *testing.T) {
	m, st := newTestManager(t)
	orderID, offramperID := createTestOrder(t, m, st)

	state, err := m.Get(orderID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCreated, state.Kind)
	assert.Equal(t, offramperID, state.Created.OfframperUserID)
	assert.Equal(t, uint64(10000), state.Created.FiatAmount)
}

func TestLockAndUnlock(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	onramperID := st.NextUserID()
	onramper, err := store.NewUser(onramperID, store.UserOnramper, common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"})
	require.NoError(t, err)
	st.InsertUser(onramper)

	err = m.Lock(orderID, onramperID, common.NewPayPalProvider("pp-1"), evmAddress("0x0000000000000000000000000000000000000002"), nil)
	require.NoError(t, err)

	state, err := m.Get(orderID)
	require.NoError(t, err)
	require.Equal(t, store.OrderLocked, state.Kind)
	assert.Equal(t, onramperID, state.Locked.OnramperUserID)

	err = m.Unlock(orderID)
	require.NoError(t, err)

	state, err = m.Get(orderID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCreated, state.Kind)

	onramperAfter, err := st.GetUser(onramperID)
	require.NoError(t, err)
	assert.Equal(t, int32(0), onramperAfter.Score)
}

func TestMarkPaidIsIdempotentAndRejectsMismatch(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	onramperID := st.NextUserID()
	onramper, err := store.NewUser(onramperID, store.UserOnramper, common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"})
	require.NoError(t, err)
	st.InsertUser(onramper)

	require.NoError(t, m.Lock(orderID, onramperID, common.NewPayPalProvider("pp-1"), evmAddress("0x0000000000000000000000000000000000000002"), nil))

	require.NoError(t, m.MarkPaid(orderID, "payment-1"))

	onramperAfter, err := st.GetUser(onramperID)
	require.NoError(t, err)
	assert.Equal(t, int32(11), onramperAfter.Score) // 1 (initial) + 10000/1000

	// idempotent resubmit with the same paymentID is a no-op
	require.NoError(t, m.MarkPaid(orderID, "payment-1"))
	onramperAfter, err = st.GetUser(onramperID)
	require.NoError(t, err)
	assert.Equal(t, int32(11), onramperAfter.Score)

	// a different paymentID on an already-paid order is rejected
	err = m.MarkPaid(orderID, "payment-2")
	assert.Error(t, err)
}

func TestUncommitSetsFlag(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	onramperID := st.NextUserID()
	onramper, err := store.NewUser(onramperID, store.UserOnramper, common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"})
	require.NoError(t, err)
	st.InsertUser(onramper)

	require.NoError(t, m.Lock(orderID, onramperID, common.NewPayPalProvider("pp-1"), evmAddress("0x0000000000000000000000000000000000000002"), nil))
	require.NoError(t, m.Uncommit(orderID))

	state, err := m.Get(orderID)
	require.NoError(t, err)
	assert.True(t, state.Locked.Uncommitted)
}

func TestCancelCreatedOrder(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	require.NoError(t, m.Cancel(orderID))

	state, err := m.Get(orderID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCancelled, state.Kind)
	assert.Equal(t, orderID, state.CancelledID)
}

func TestCompleteRequiresPayment(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	onramperID := st.NextUserID()
	onramper, err := store.NewUser(onramperID, store.UserOnramper, common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"})
	require.NoError(t, err)
	st.InsertUser(onramper)

	require.NoError(t, m.Lock(orderID, onramperID, common.NewPayPalProvider("pp-1"), evmAddress("0x0000000000000000000000000000000000000002"), nil))

	// completing an unpaid Locked order fails
	err = m.Complete(orderID)
	assert.Error(t, err)

	require.NoError(t, m.MarkPaid(orderID, "payment-1"))
	require.NoError(t, m.Complete(orderID))

	state, err := m.Get(orderID)
	require.NoError(t, err)
	require.Equal(t, store.OrderCompleted, state.Kind)
	assert.Equal(t, uint64(10000), state.Completed.FiatAmount)

	// the lock timer was cleared, not just left to fire harmlessly later
	assert.False(t, m.timers.Pending(lockTimerKey(orderID)))
}

func TestProcessingLatchRejectsConcurrentTransition(t *testing.T) {
	m, st := newTestManager(t)
	orderID, _ := createTestOrder(t, m, st)

	require.NoError(t, m.enter(orderID))
	defer m.exit(orderID)

	err := m.Cancel(orderID)
	assert.True(t, common.IsOrderError(err, common.ErrOrderProcessing))
}
