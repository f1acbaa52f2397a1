package paypal

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOrder(t *testing.T, fiatAmount, fee uint64, paymentID string) store.LockedOrder {
	providers := common.NewPaymentProviderSet()
	providers.Put(common.NewPayPalProvider("off@example.com"))

	base, err := store.NewOrder(1, 1, fiatAmount, "EUR", providers, common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1}, nil, big.NewInt(1_000_000_000_000_000_000), common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"})
	require.NoError(t, err)
	base.OfframperFee = fee

	return store.LockedOrder{
		Base:        *base,
		PaymentDone: false,
		PaymentID:   &paymentID,
	}
}

func TestVerifyHappyPath(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"token_type":   "Bearer",
			"expires_in":   32400,
		})
	}))
	defer tokenServer.Close()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "capture-1",
			"status": "COMPLETED",
			"amount": map[string]string{
				"currency_code": "EUR",
				"value":         "10.25",
			},
			"payee": map[string]string{
				"email_address": "off@example.com",
			},
		})
	}))
	defer apiServer.Close()

	st := store.New()
	v := New(Config{
		ClientID:     "id",
		ClientSecret: "secret",
		APIBaseURL:   apiServer.URL,
		TokenURL:     tokenServer.URL,
	}, nil, st)

	order := testOrder(t, 1000, 25, "capture-1")

	err := v.Verify(context.Background(), order)
	require.NoError(t, err)

	assert.True(t, st.IsTxHashProcessed("paypal:capture-1"))
}

func TestVerifyRejectsDuplicateCapture(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "COMPLETED",
			"amount": map[string]string{
				"currency_code": "EUR",
				"value":         "10.25",
			},
			"payee": map[string]string{
				"email_address": "off@example.com",
			},
		})
	}))
	defer apiServer.Close()
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 32400})
	}))
	defer tokenServer.Close()

	st := store.New()
	require.NoError(t, st.MarkTxHashProcessed("paypal:capture-1"))

	v := New(Config{APIBaseURL: apiServer.URL, TokenURL: tokenServer.URL}, nil, st)
	order := testOrder(t, 1000, 25, "capture-1")

	err := v.Verify(context.Background(), order)
	assert.Error(t, err)
}

func TestVerifyRejectsMismatchedAmount(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "COMPLETED",
			"amount": map[string]string{
				"currency_code": "EUR",
				"value":         "999.00",
			},
			"payee": map[string]string{
				"email_address": "off@example.com",
			},
		})
	}))
	defer apiServer.Close()
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_in": 32400})
	}))
	defer tokenServer.Close()

	st := store.New()
	v := New(Config{APIBaseURL: apiServer.URL, TokenURL: tokenServer.URL}, nil, st)
	order := testOrder(t, 1000, 25, "capture-1")

	err := v.Verify(context.Background(), order)
	assert.Error(t, err)
}
