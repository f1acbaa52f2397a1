package store

import (
	"math/big"
	"testing"

	"github.com/rampforge/agent/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserInsertGetMutate(t *testing.T) {
	s := New()
	id := s.NextUserID()
	u, err := NewUser(id, UserOfframper, common.LoginAddress{Kind: common.LoginEmail, Email: "a@b.com"})
	require.NoError(t, err)

	require.Nil(t, s.InsertUser(u))

	got, err := s.GetUser(id)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Login.Email)

	err = s.MutateUser(id, func(u *User) error {
		u.UpdateFiatAmount(500)
		return nil
	})
	require.NoError(t, err)

	got, _ = s.GetUser(id)
	assert.Equal(t, uint64(500), got.FiatAmount)
}

func TestGetUserNotFound(t *testing.T) {
	s := New()
	_, err := s.GetUser(42)
	assert.True(t, common.IsUserError(err, common.ErrUserNotFound))
}

func TestFindUserByLogin(t *testing.T) {
	s := New()
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "x@y.com"}
	id := s.NextUserID()
	u, err := NewUser(id, UserOnramper, login)
	require.NoError(t, err)
	s.InsertUser(u)

	found, err := s.FindUserByLogin(common.LoginAddress{Kind: common.LoginEmail, Email: "x@y.com"})
	require.NoError(t, err)
	assert.Equal(t, id, found)

	_, err = s.FindUserByLogin(common.LoginAddress{Kind: common.LoginEmail, Email: "nope@y.com"})
	assert.True(t, common.IsUserError(err, common.ErrUserNotFound))
}

func newTestOrder(t *testing.T, s *Store, offramperID uint64) *Order {
	t.Helper()
	addr := common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"}
	o, err := NewOrder(
		s.NextOrderID(), offramperID, 10000, "EUR",
		common.NewPaymentProviderSet(),
		common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1},
		nil, big.NewInt(1_000_000_000_000_000_000), addr,
	)
	require.NoError(t, err)
	return o
}

func TestOrderLifecycle(t *testing.T) {
	s := New()
	o := newTestOrder(t, s, 1)
	require.Nil(t, s.InsertOrder(o))

	st, err := s.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, st.Kind)

	onramperAddr := common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000002"}
	err = s.MutateOrder(o.ID, func(st *OrderState) error {
		locked, err := st.Created.Lock(2, common.NewPayPalProvider("pp-1"), onramperAddr, nil)
		if err != nil {
			return err
		}
		*st = NewLockedState(locked)
		return nil
	})
	require.NoError(t, err)

	st, _ = s.GetOrder(o.ID)
	assert.Equal(t, OrderLocked, st.Kind)
	assert.Equal(t, uint64(2), st.Locked.OnramperUserID)
}

func TestUnlockCreated(t *testing.T) {
	s := New()
	o := newTestOrder(t, s, 1)
	s.InsertOrder(o)
	onramperAddr := common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000002"}

	require.NoError(t, s.MutateOrder(o.ID, func(st *OrderState) error {
		locked, err := st.Created.Lock(2, common.NewPayPalProvider("pp-1"), onramperAddr, nil)
		if err != nil {
			return err
		}
		*st = NewLockedState(locked)
		return nil
	}))

	var onramperID uint64
	err := s.MutateOrder(o.ID, func(st *OrderState) error {
		var err error
		onramperID, err = UnlockCreated(st)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(2), onramperID)

	st, _ := s.GetOrder(o.ID)
	assert.Equal(t, OrderCreated, st.Kind)
}

func TestFilterOrdersPagination(t *testing.T) {
	s := New()
	for i := 0; i < 15; i++ {
		s.InsertOrder(newTestOrder(t, s, 1))
	}

	createdFilter := OrderFilter{State: func() *OrderStateKind { k := OrderCreated; return &k }()}
	page1 := s.FilterOrders(createdFilter, 1, 10)
	assert.Len(t, page1, 10)
	// newest first: last inserted order id should be first
	assert.Equal(t, uint64(15), page1[0].ID())

	page2 := s.FilterOrders(createdFilter, 2, 10)
	assert.Len(t, page2, 5)
	assert.Equal(t, uint64(5), page2[len(page2)-1].ID())
}

func TestProcessedTxHashesDedupe(t *testing.T) {
	s := New()
	require.NoError(t, s.MarkTxHashProcessed("0xabc"))
	assert.True(t, s.IsTxHashProcessed("0xabc"))
	err := s.MarkTxHashProcessed("0xabc")
	assert.Error(t, err)
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	u, err := NewUser(s.NextUserID(), UserOfframper, common.LoginAddress{Kind: common.LoginEmail, Email: "a@b.com"})
	require.NoError(t, err)
	s.InsertUser(u)
	o := newTestOrder(t, s, u.ID)
	s.InsertOrder(o)
	require.NoError(t, s.MarkTxHashProcessed("0xdead"))

	snap := s.Dump()

	restored := New()
	restored.Restore(snap)

	got, err := restored.GetUser(u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", got.Login.Email)

	gotOrder, err := restored.GetOrder(o.ID)
	require.NoError(t, err)
	assert.Equal(t, OrderCreated, gotOrder.Kind)

	assert.True(t, restored.IsTxHashProcessed("0xdead"))
	assert.Equal(t, u.ID+1, restored.NextUserID()) // counter continues past the restored value
}
