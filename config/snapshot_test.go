package config

import (
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/order"
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

func lockTestOrder(t *testing.T, st *store.Store, m *order.Manager) uint64 {
	offramperID := st.NextUserID()
	offramper, err := store.NewUser(offramperID, store.UserOfframper, common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"})
	require.NoError(t, err)
	st.InsertUser(offramper)

	orderID, err := m.Create(10000, "USD", common.NewPaymentProviderSet(), evmChain(1), nil, big.NewInt(1), offramperID, evmAddress("0x0000000000000000000000000000000000000001"))
	require.NoError(t, err)

	onramperID := st.NextUserID()
	onramper, err := store.NewUser(onramperID, store.UserOnramper, common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"})
	require.NoError(t, err)
	st.InsertUser(onramper)

	require.NoError(t, m.Lock(orderID, onramperID, common.NewPayPalProvider("pp-1"), evmAddress("0x0000000000000000000000000000000000000002"), nil))
	return orderID
}

func TestRestoreReschedulesTimerWhenNotYetExpired(t *testing.T) {
	st := store.New()
	timers := timer.New("restore-test")
	m := order.New(st, timers)

	orderID := lockTestOrder(t, st, m)
	snap := Dump(NewStore(Config{}), st, NewExchangeRateCache())

	freshSt := store.New()
	freshTimers := timer.New("restore-test-2")
	freshMgr := order.New(freshSt, freshTimers)
	Restore(snap, NewStore(Config{}), freshSt, NewExchangeRateCache(), freshTimers, freshMgr)

	state, err := freshMgr.Get(orderID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderLocked, state.Kind)
	assert.True(t, freshTimers.Pending("order-lock-"+strconv.FormatUint(orderID, 10)))
}

func TestRestoreImmediatelyUnlocksWhenAlreadyExpired(t *testing.T) {
	st := store.New()
	timers := timer.New("restore-test-3")
	m := order.New(st, timers)

	orderID := lockTestOrder(t, st, m)
	require.NoError(t, st.MutateOrder(orderID, func(s *store.OrderState) error {
		s.Locked.LockedAt = time.Now().Add(-order.LockTTL - time.Hour)
		return nil
	}))

	snap := Dump(NewStore(Config{}), st, NewExchangeRateCache())

	freshSt := store.New()
	freshTimers := timer.New("restore-test-4")
	freshMgr := order.New(freshSt, freshTimers)
	Restore(snap, NewStore(Config{}), freshSt, NewExchangeRateCache(), freshTimers, freshMgr)

	state, err := freshMgr.Get(orderID)
	require.NoError(t, err)
	assert.Equal(t, store.OrderCreated, state.Kind)
}

