package rampagent

import (
	"math/big"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
)

// CreateOrder validates that blockchain.ChainID is a configured chain before
// delegating to order.Manager.Create — spec §3's invariants never speak to
// an unconfigured chain, but broadcasting against one later would fail
// uninformatively deep inside TxEngine, so the check happens at creation.
func (a *Agent) CreateOrder(
	fiatAmount uint64,
	currencySymbol string,
	providers *common.PaymentProviderSet,
	blockchain common.Blockchain,
	token *string,
	cryptoAmount *big.Int,
	offramperUserID uint64,
	offramperAddress common.TransactionAddress,
) (uint64, error) {
	if blockchain.Kind == common.BlockchainEVM {
		if _, err := a.chainFor(blockchain.ChainID); err != nil {
			return 0, err
		}
	}
	return a.orders.Create(fiatAmount, currencySymbol, providers, blockchain, token, cryptoAmount, offramperUserID, offramperAddress)
}

// LockOrder, CancelOrder, and UncommitOrder forward directly to
// order.Manager: none of these transitions broadcast a vault-manager call
// in this agent's control flow (only the post-verification release does —
// see releaseFunds), matching the original implementation's commit/uncommit
// calls, which are unreachable dead code there too.
func (a *Agent) LockOrder(orderID, onramperUserID uint64, onramperProvider common.PaymentProvider, onramperAddress common.TransactionAddress, consent *store.RevolutConsent) error {
	return a.orders.Lock(orderID, onramperUserID, onramperProvider, onramperAddress, consent)
}

func (a *Agent) CancelOrder(orderID uint64) error {
	return a.orders.Cancel(orderID)
}

func (a *Agent) UncommitOrder(orderID uint64) error {
	return a.orders.Uncommit(orderID)
}
