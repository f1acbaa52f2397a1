package rampagent

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/rampforge/agent/store"
	"github.com/rampforge/agent/txengine"
)

// releaseFunds broadcasts the vault-manager release call for a just-paid
// order and blocks until its receipt confirms, then advances the order to
// Completed. locked is the pre-MarkPaid snapshot (OnramperAddress, the
// crypto amount/fee, and the chain are all immutable from Lock onward, so
// using the pre-mutation copy is equivalent and avoids a second store read).
func (a *Agent) releaseFunds(ctx context.Context, orderID uint64, locked store.LockedOrder) (string, error) {
	chainID := locked.Base.Crypto.Blockchain.ChainID
	runtime, err := a.chainFor(chainID)
	if err != nil {
		return "", err
	}
	vaultManager, err := a.vaultManagerAddress(chainID)
	if err != nil {
		return "", err
	}

	// _fees is the on-chain crypto fee (Crypto.Fee, 0.5% of the crypto
	// amount in wei), not OfframperFee (the fiat 2.5% fee, tracked in
	// cents) — the vault manager only ever sees wei-denominated amounts.
	variant := txengine.Native
	args := []interface{}{
		ethcommon.HexToAddress(locked.Base.OfframperAddress.Address),
		ethcommon.HexToAddress(locked.OnramperAddress.Address),
		locked.Base.Crypto.Amount,
		locked.Base.Crypto.Fee,
	}
	if locked.Base.Crypto.Token != nil {
		variant = txengine.Token
		args = []interface{}{
			ethcommon.HexToAddress(locked.Base.OfframperAddress.Address),
			ethcommon.HexToAddress(locked.OnramperAddress.Address),
			ethcommon.HexToAddress(*locked.Base.Crypto.Token),
			locked.Base.Crypto.Amount,
			locked.Base.Crypto.Fee,
		}
	}

	action := txengine.Action{Kind: txengine.ActionRelease, Variant: variant}
	req := txengine.Request{
		OrderID: orderID,
		ChainID: chainID,
		Action:  action,
		To:      vaultManager,
		Args:    args,
	}

	hash, err := runtime.engine.Broadcast(ctx, req)
	if err != nil {
		return "", err
	}

	if _, err := runtime.engine.Confirm(ctx, chainID, orderID, action, hash, DefaultReceiptAttempts, DefaultReceiptInterval); err != nil {
		return hash, err
	}
	if err := a.orders.Complete(orderID); err != nil {
		return hash, err
	}
	return hash, nil
}
