package revolut

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rampforge/agent/common"
	"github.com/rampforge/agent/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) *rsa.PrivateKey {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return key
}

func TestCreateAccountAccessConsent(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("x-jws-signature"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"Data": map[string]string{"ConsentId": "consent-1"},
		})
	}))
	defer apiServer.Close()

	c := New(Config{APIBaseURL: apiServer.URL, KID: "kid-1", TAN: "tan-1", PrivateKey: testKey(t)}, nil)

	// proxy token endpoint isn't hit by CreateAccountAccessConsent directly
	// in this test since accessToken() is exercised separately below; here
	// we bypass it by calling through a client whose proxy points at a stub.
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "tok-1",
			"expires_at":   time.Now().Add(time.Hour).Unix(),
		})
	}))
	defer proxy.Close()
	c.cfg.ProxyURL = proxy.URL

	consentID, err := c.CreateAccountAccessConsent(context.Background(), decimal.NewFromFloat(10.25), "EUR", "sortcode", "d-1", "sortcode", "c-1", "Offramper Co")
	require.NoError(t, err)
	assert.Equal(t, "consent-1", consentID)
}

func TestAuthorizationURLContainsState(t *testing.T) {
	c := New(Config{APIBaseURL: "https://revolut.example", ProxyURL: "https://proxy.example", ClientID: "client-1", KID: "kid-1", PrivateKey: testKey(t)}, nil)

	url, err := c.AuthorizationURL("consent-1")
	require.NoError(t, err)
	assert.Contains(t, url, "state=consent-1")
	assert.Contains(t, url, "client_id=client-1")
}

func TestWaitForAccessTokenRejectsNonRevolutProvider(t *testing.T) {
	c := New(Config{PrivateKey: testKey(t)}, nil)

	order := store.LockedOrder{
		OnramperProvider: common.NewPayPalProvider("on@example.com"),
		Consent:          &store.RevolutConsent{ID: "consent-1"},
	}

	_, err := c.WaitForAccessToken(context.Background(), order, 1, time.Millisecond)
	assert.True(t, common.IsOrderError(err, common.ErrInvalidOnramperProvider))
}

func TestWaitForAccessTokenSucceedsOnFirstPoll(t *testing.T) {
	paymentServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/revolut/payment_token":
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "access-1"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer paymentServer.Close()

	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"Data": map[string]string{"DomesticPaymentId": "payment-1"},
		})
	}))
	defer apiServer.Close()

	c := New(Config{APIBaseURL: apiServer.URL, ProxyURL: paymentServer.URL, KID: "kid-1", TAN: "tan-1", PrivateKey: testKey(t)}, nil)

	providers := common.NewPaymentProviderSet()
	base, err := store.NewOrder(1, 1, 1000, "EUR", providers, common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1}, nil, big.NewInt(1), common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"})
	require.NoError(t, err)

	order := store.LockedOrder{
		Base:             *base,
		OnramperProvider: common.NewRevolutProvider("sortcode", "on-1", "Onramper Name"),
		Consent:          &store.RevolutConsent{ID: "consent-1"},
	}

	paymentID, err := c.WaitForAccessToken(context.Background(), order, 3, time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "payment-1", paymentID)
}

func TestVerifyChecksStatusAndAmount(t *testing.T) {
	apiServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"Data": map[string]interface{}{
				"Status": "AcceptedSettlementCompleted",
				"Initiation": map[string]interface{}{
					"InstructedAmount": map[string]string{"Amount": "10.25", "Currency": "EUR"},
					"CreditorAccount":  map[string]string{"SchemeName": "sortcode", "Identification": "off-1"},
				},
			},
		})
	}))
	defer apiServer.Close()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "tok-1", "expires_at": time.Now().Add(time.Hour).Unix()})
	}))
	defer proxy.Close()

	c := New(Config{APIBaseURL: apiServer.URL, ProxyURL: proxy.URL, PrivateKey: testKey(t)}, nil)

	providers := common.NewPaymentProviderSet()
	providers.Put(common.NewRevolutProvider("sortcode", "off-1", "Offramper"))
	base, err := store.NewOrder(1, 1, 1000, "EUR", providers, common.Blockchain{Kind: common.BlockchainEVM, ChainID: 1}, nil, big.NewInt(1), common.TransactionAddress{Type: common.AddressEVM, Address: "0x0000000000000000000000000000000000000001"})
	require.NoError(t, err)
	base.OfframperFee = 25
	paymentID := "payment-1"

	order := store.LockedOrder{Base: *base, PaymentID: &paymentID}

	err = c.Verify(context.Background(), order)
	require.NoError(t, err)
}
