package rampagent

import (
	"context"
	"time"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/shopspring/decimal"
)

// decimalFiatAmount converts a fiat-cents integer into a 2-decimal-place
// decimal.Decimal, matching the capture/consent APIs' major-unit amounts.
func decimalFiatAmount(cents uint64) decimal.Decimal {
	return decimal.New(int64(cents), -2)
}

// lockedOrderOrErr fetches orderID and asserts it is currently Locked,
// returning InvalidOrderState otherwise.
func (a *Agent) lockedOrderOrErr(orderID uint64) (store.LockedOrder, error) {
	state, err := a.orders.Get(orderID)
	if err != nil {
		return store.LockedOrder{}, err
	}
	if state.Kind != store.OrderLocked {
		return store.LockedOrder{}, common.NewInvalidOrderStateError(state.String())
	}
	return *state.Locked, nil
}

// VerifyPayPalPayment checks captureID against orderID's Locked state via
// the PayPal adapter and, on success, marks the order paid and releases its
// crypto leg. The caller supplies captureID directly (the onramper's
// claimed PayPal capture id) rather than it having been pre-recorded on the
// order, matching verify_transaction's "fetch by the caller-supplied
// transaction id, then mark paid" sequence in original_source/lib.rs —
// MarkPaid is only ever reached once Verify has already succeeded.
func (a *Agent) VerifyPayPalPayment(ctx context.Context, orderID uint64, captureID string) (string, error) {
	locked, err := a.lockedOrderOrErr(orderID)
	if err != nil {
		return "", err
	}
	candidate := locked
	candidate.PaymentID = &captureID

	if err := a.paypal.Verify(ctx, candidate); err != nil {
		return "", err
	}
	if err := a.orders.MarkPaid(orderID, captureID); err != nil {
		return "", err
	}
	return a.releaseFunds(ctx, orderID, locked)
}

// InitiateAndVerifyRevolutPayment polls for the onramper's Open Banking
// authorization, initiates the domestic payment once granted, verifies its
// settlement, marks the order paid, and releases its crypto leg — the full
// wait_for_revolut_access_token → verify → release sequence from spec §4.9.
func (a *Agent) InitiateAndVerifyRevolutPayment(ctx context.Context, orderID uint64, maxAttempts int, interval time.Duration) (string, error) {
	locked, err := a.lockedOrderOrErr(orderID)
	if err != nil {
		return "", err
	}

	paymentID, err := a.revolut.WaitForAccessToken(ctx, locked, maxAttempts, interval)
	if err != nil {
		return "", err
	}

	candidate := locked
	candidate.PaymentID = &paymentID
	if err := a.revolut.Verify(ctx, candidate); err != nil {
		return "", err
	}
	if err := a.orders.MarkPaid(orderID, paymentID); err != nil {
		return "", err
	}
	return a.releaseFunds(ctx, orderID, locked)
}

// CreateRevolutConsent creates the account-access consent an onramper must
// authorize before InitiateAndVerifyRevolutPayment can proceed, and returns
// the authorization URL the caller redirects the onramper to.
func (a *Agent) CreateRevolutConsent(ctx context.Context, orderID uint64, debtorScheme, debtorID string) (*store.RevolutConsent, error) {
	locked, err := a.lockedOrderOrErr(orderID)
	if err != nil {
		return nil, err
	}
	offramperProvider, ok := locked.Base.OfframperProviders.Get(common.ProviderRevolut)
	if !ok {
		return nil, common.NewOrderError(common.ErrInvalidOfframperProvider)
	}

	amount := decimalFiatAmount(locked.Base.FiatAmount)
	consentID, err := a.revolut.CreateAccountAccessConsent(
		ctx, amount, locked.Base.CurrencySymbol,
		debtorScheme, debtorID,
		offramperProvider.RevolutScheme, offramperProvider.RevolutID, offramperProvider.RevolutName,
	)
	if err != nil {
		return nil, err
	}
	url, err := a.revolut.AuthorizationURL(consentID)
	if err != nil {
		return nil, err
	}
	return &store.RevolutConsent{ID: consentID, URL: url}, nil
}
