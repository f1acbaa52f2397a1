package rampagent

import (
	"context"
	"math/big"
	"testing"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/config"
	"github.com/rampforge/agent/signer"
	"github.com/rampforge/agent/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, cfg config.Config) *Agent {
	oracle, err := signer.GenerateLocalOracle()
	require.NoError(t, err)
	a, err := New(context.Background(), cfg, oracle, nil)
	require.NoError(t, err)
	return a
}

func TestCreateOrderRejectsUnconfiguredChain(t *testing.T) {
	a := newTestAgent(t, config.Config{})

	_, err := a.CreateOrder(10000, "USD", common.NewPaymentProviderSet(), common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1}, nil, big.NewInt(1), 1, common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"})
	assert.True(t, common.IsBlockchainError(err, common.ErrChainIDNotFound))
}

func TestCreateOrderAcceptsConfiguredChain(t *testing.T) {
	cfg := config.Config{Chains: []config.ChainConfig{{ChainID: 1, VaultManagerAddress: "0x0000000000000000000000000000000000000009", CurrencySymbol: "USD"}}}
	a := newTestAgent(t, cfg)

	providers := []common.PaymentProvider{common.NewPayPalProvider("off@example.com")}
	pw := "hunter2"
	offramperID, err := a.Users().Register(store.UserOfframper, providers, common.LoginAddress{Kind: common.LoginEmail, Email: "off@example.com"}, &pw)
	require.NoError(t, err)

	orderID, err := a.CreateOrder(10000, "USD", common.NewPaymentProviderSet(), common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1}, nil, big.NewInt(1), offramperID, common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"})
	require.NoError(t, err)
	assert.NotZero(t, orderID)
}

func TestReconfigureReplacesFieldsAndClearsTokens(t *testing.T) {
	a := newTestAgent(t, config.Config{EcdsaKeyID: "key-1"})

	newKeyID := "key-2"
	next := a.Reconfigure(config.UpdateArg{EcdsaKeyID: &newKeyID})
	assert.Equal(t, "key-2", next.EcdsaKeyID)
	assert.Equal(t, "key-2", a.Config().EcdsaKeyID)
}

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	a := newTestAgent(t, config.Config{EcdsaKeyID: "key-1"})
	a.Rates().Put("USD", "EUR", 0.9)

	snap := a.Snapshot()

	b := newTestAgent(t, config.Config{})
	b.Restore(snap)

	assert.Equal(t, "key-1", b.Config().EcdsaKeyID)
	rate, ok := b.Rates().Get("USD", "EUR")
	require.True(t, ok)
	assert.Equal(t, 0.9, rate)
}
