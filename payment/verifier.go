// Package payment is C9 PaymentVerifier: the two fiat-rail adapters
// (paypal, revolut) behind one interface, driven by external verify
// calls and feeding OrderManager.MarkPaid.
package payment

import (
	"context"

	"github.com/rampforge/agent/store"
)

// Verifier checks whether a Locked order's fiat leg has actually settled.
// A nil error means the payment is confirmed and the caller should call
// order.Manager.MarkPaid; any error means it has not (yet, or ever).
type Verifier interface {
	Verify(ctx context.Context, order store.LockedOrder) error
}
