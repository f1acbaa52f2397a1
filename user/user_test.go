package user

import (
	"testing"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() (*Manager, *store.Store) {
	st := store.New()
	return New(st), st
}

func TestRegisterRequiresPasswordForEmail(t *testing.T) {
	m, _ := newTestManager()
	providers := []common.PaymentProvider{common.NewPayPalProvider("off@example.com")}
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"}

	_, err := m.Register(store.UserOfframper, providers, login, nil)
	assert.Error(t, err)

	pw := "hunter2"
	id, err := m.Register(store.UserOfframper, providers, login, &pw)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)
}

func TestRegisterRejectsEmptyProviders(t *testing.T) {
	m, _ := newTestManager()
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"}
	pw := "hunter2"
	_, err := m.Register(store.UserOfframper, nil, login, &pw)
	assert.Error(t, err)
}

func TestLoginWithEmailPassword(t *testing.T) {
	m, _ := newTestManager()
	providers := []common.PaymentProvider{common.NewPayPalProvider("on@example.com")}
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"}
	pw := "hunter2"
	id, err := m.Register(store.UserOnramper, providers, login, &pw)
	require.NoError(t, err)

	gotID, session, err := m.Login(login, &pw, nil)
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	assert.NotEmpty(t, session.Token)

	require.NoError(t, m.ValidateSession(id, session.Token))
	assert.Error(t, m.ValidateSession(id, "wrong-token"))
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	m, _ := newTestManager()
	providers := []common.PaymentProvider{common.NewPayPalProvider("on@example.com")}
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"}
	pw := "hunter2"
	_, err := m.Register(store.UserOnramper, providers, login, &pw)
	require.NoError(t, err)

	wrong := "wrong-password"
	_, _, err = m.Login(login, &wrong, nil)
	assert.Error(t, err)
}

func TestAddAndRemovePaymentProviderIsSessionGated(t *testing.T) {
	m, _ := newTestManager()
	providers := []common.PaymentProvider{common.NewPayPalProvider("on@example.com")}
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"}
	pw := "hunter2"
	id, err := m.Register(store.UserOnramper, providers, login, &pw)
	require.NoError(t, err)

	revolut := common.NewRevolutProvider("sortcode", "on-1", "On Ramper")
	err = m.AddPaymentProvider(id, "no-session-yet", revolut)
	assert.Error(t, err)

	_, session, err := m.Login(login, &pw, nil)
	require.NoError(t, err)

	require.NoError(t, m.AddPaymentProvider(id, session.Token, revolut))

	u, err := m.Get(id)
	require.NoError(t, err)
	assert.True(t, u.PaymentProviders.Contains(common.ProviderRevolut))

	require.NoError(t, m.RemovePaymentProvider(id, session.Token, common.ProviderRevolut))
	u, err = m.Get(id)
	require.NoError(t, err)
	assert.False(t, u.PaymentProviders.Contains(common.ProviderRevolut))
}

func TestAddAddressIsSessionGated(t *testing.T) {
	m, _ := newTestManager()
	providers := []common.PaymentProvider{common.NewPayPalProvider("on@example.com")}
	login := common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"}
	pw := "hunter2"
	id, err := m.Register(store.UserOnramper, providers, login, &pw)
	require.NoError(t, err)
	_, session, err := m.Login(login, &pw, nil)
	require.NoError(t, err)

	addr := common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"}
	require.NoError(t, m.AddAddress(id, session.Token, addr))

	u, err := m.Get(id)
	require.NoError(t, err)
	_, ok := u.Addresses[common.AddressEVM]
	assert.True(t, ok)
}

func TestRecordPaymentRewardsOnramperScoreOnly(t *testing.T) {
	m, _ := newTestManager()
	onramperProviders := []common.PaymentProvider{common.NewPayPalProvider("on@example.com")}
	offramperProviders := []common.PaymentProvider{common.NewPayPalProvider("off@example.com")}
	onramperLogin := common.LoginAddress{Kind: common.LoginEmail, Email: "on@example.com"}
	offramperLogin := common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"}
	pw := "hunter2"

	onramperID, err := m.Register(store.UserOnramper, onramperProviders, onramperLogin, &pw)
	require.NoError(t, err)
	offramperID, err := m.Register(store.UserOfframper, offramperProviders, offramperLogin, &pw)
	require.NoError(t, err)

	require.NoError(t, m.RecordPayment(onramperID, 10000))
	require.NoError(t, m.RecordPayment(offramperID, 10000))

	onramper, err := m.Get(onramperID)
	require.NoError(t, err)
	offramper, err := m.Get(offramperID)
	require.NoError(t, err)

	assert.Equal(t, uint64(10000), onramper.FiatAmount)
	assert.Equal(t, int32(11), onramper.Score) // 1 initial + 10000/1000
	assert.Equal(t, uint64(10000), offramper.FiatAmount)
	assert.Equal(t, int32(1), offramper.Score) // unchanged
}
